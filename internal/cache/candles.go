// Package cache keeps fetched market data in CSV files so that repeated
// requests only download what the file does not already hold.
package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	apperrors "github.com/johnayoung/go-crypto-datautil/internal/errors"
	"github.com/johnayoung/go-crypto-datautil/internal/logger"
	"github.com/johnayoung/go-crypto-datautil/internal/metrics"
	"github.com/johnayoung/go-crypto-datautil/internal/models"
	"github.com/johnayoung/go-crypto-datautil/internal/table"
)

const component = "cache"

// CandleFetcher is the part of an exchange fetcher the cache needs.
type CandleFetcher interface {
	Name() string
	Period() int64
	HasVolume() bool
	FetchCandles(ctx context.Context, start, end int64) ([]models.Candle, error)
}

// Option configures a cache.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	metrics metrics.Recorder
}

// WithLogger sets the cache logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = logger.OrDefault(l) }
}

// WithMetrics records cache hits and writes on r.
func WithMetrics(r metrics.Recorder) Option {
	return func(o *options) { o.metrics = metrics.OrNop(r) }
}

func buildOptions(opts []Option) options {
	o := options{logger: logger.Discard(), metrics: metrics.Nop{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Result is the outcome of a cached read. Missing lists the spans that could
// not be fetched; Complete is true when it is empty.
type Result struct {
	Candles  []models.Candle
	Complete bool
	Missing  []Span
}

// CandleCache serves candles for one fetcher, backed by an optional CSV file.
// An empty path disables persistence.
type CandleCache struct {
	fetcher CandleFetcher
	path    string
	logger  *slog.Logger
	metrics metrics.Recorder

	mu       sync.Mutex
	loaded   bool
	rows     []models.Candle
	coverage Coverage
}

// NewCandleCache wraps fetcher with the CSV file at path.
func NewCandleCache(fetcher CandleFetcher, path string, opts ...Option) *CandleCache {
	o := buildOptions(opts)
	return &CandleCache{
		fetcher: fetcher,
		path:    path,
		logger:  o.logger.With("component", component, "source", fetcher.Name(), "path", path),
		metrics: o.metrics,
	}
}

// Get returns the candles in [start, end). Rows already in the file are not
// fetched again. A failed fetch is logged and reported through Result rather
// than returned, except for configuration errors.
func (c *CandleCache) Get(ctx context.Context, start, end int64) (Result, error) {
	if end <= start {
		return Result{}, apperrors.New(apperrors.ErrorTypeValidation, component, "get",
			fmt.Errorf("%w: start %d is not before end %d", apperrors.ErrInvalidArgument, start, end))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.load()

	res := Result{Complete: true}
	var fetched []models.Candle
	for _, span := range c.coverage.Missing(start, end) {
		rows, err := c.fetcher.FetchCandles(ctx, span.Start, span.End)
		fetched = append(fetched, rows...)
		if err != nil {
			if apperrors.IsType(err, apperrors.ErrorTypeConfiguration) {
				return Result{}, err
			}
			c.logger.Warn("fetch failed, returning partial data", "start", span.Start, "end", span.End, "rows", len(rows), "error", err)
			res.Complete = false
			res.Missing = append(res.Missing, span)
			continue
		}
		c.coverage.Add(span.Start, span.End)
	}

	merged := models.MergeCandles(c.rows, fetched)
	grew := len(merged) > len(c.rows)
	c.rows = merged
	if grew && c.path != "" {
		if err := c.write(); err != nil {
			c.logger.Warn("cache write failed", "error", err)
		}
	}

	res.Candles = models.FilterCandles(c.rows, start, end)
	fromFetch := len(models.FilterCandles(fetched, start, end))
	if fromFetch > len(res.Candles) {
		fromFetch = len(res.Candles)
	}
	c.metrics.AddCacheRows(metrics.SourceFetch, fromFetch)
	c.metrics.AddCacheRows(metrics.SourceCache, len(res.Candles)-fromFetch)
	c.logger.Debug("cache read", "start", start, "end", end, "rows", len(res.Candles), "fetched", fromFetch, "complete", res.Complete)
	return res, nil
}

// Coverage returns the spans known to be complete.
func (c *CandleCache) Coverage() []Span {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.load()
	return c.coverage.Spans()
}

// load reads the cache file once. A file whose first two rows are not one
// period apart belongs to another period and is ignored.
func (c *CandleCache) load() {
	if c.loaded {
		return
	}
	c.loaded = true
	if c.path == "" {
		return
	}
	f, err := table.ReadCSVFile(c.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.logger.Warn("ignoring unreadable cache file", "error", err)
		}
		return
	}
	rows, err := f.ToCandles()
	if err != nil {
		c.logger.Warn("ignoring cache file without candle columns", "error", err)
		return
	}
	if len(rows) < 2 {
		c.rows = rows
		return
	}
	period := c.fetcher.Period()
	if rows[1].Time-rows[0].Time != period {
		c.logger.Warn("cache file period differs, it will be overwritten",
			"file_period", rows[1].Time-rows[0].Time, "period", period)
		return
	}
	models.SortCandles(rows)
	c.rows = models.DedupeCandles(rows)
	c.coverage.Add(c.rows[0].Time, c.rows[len(c.rows)-1].Time+period)
	c.logger.Debug("cache file loaded", "first", c.rows[0].Time, "last", c.rows[len(c.rows)-1].Time, "rows", len(c.rows))
}

func (c *CandleCache) write() error {
	frame := table.FromCandles(c.rows, c.fetcher.HasVolume())
	if err := writeAtomic(c.path, frame); err != nil {
		return err
	}
	c.metrics.IncCacheWrite()
	c.logger.Info("cache file written", "rows", len(c.rows))
	return nil
}

// writeAtomic writes f next to path under a unique name and renames it over
// path.
func writeAtomic(path string, f *table.Frame) error {
	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+"."+uuid.NewString()+".tmp")
	if err := f.WriteCSVFile(tmp); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return apperrors.New(apperrors.ErrorTypeIO, component, "rename", err)
	}
	return nil
}
