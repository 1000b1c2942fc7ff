package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strconv"
	"time"

	apperrors "github.com/johnayoung/go-crypto-datautil/internal/errors"
	"github.com/johnayoung/go-crypto-datautil/internal/metrics"
	"github.com/johnayoung/go-crypto-datautil/internal/models"
	"github.com/johnayoung/go-crypto-datautil/internal/table"
)

// TradeArchive is the part of an exchange archive the trade cache needs.
type TradeArchive interface {
	Name() string
	FetchDay(ctx context.Context, day time.Time) ([]models.Tick, error)
}

// TradeResult is the outcome of a cached trade read. MissingDays holds the
// YYYY-MM-DD days that could not be downloaded.
type TradeResult struct {
	Ticks       []models.Tick
	Complete    bool
	MissingDays []string
}

// TradeCache serves public trades from a CSV file, downloading whole UTC days
// when the file does not span the request.
type TradeCache struct {
	archive TradeArchive
	path    string
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewTradeCache wraps archive with the CSV file at path. An empty path
// disables persistence.
func NewTradeCache(archive TradeArchive, path string, opts ...Option) *TradeCache {
	o := buildOptions(opts)
	return &TradeCache{
		archive: archive,
		path:    path,
		logger:  o.logger.With("component", component, "source", archive.Name(), "path", path),
		metrics: o.metrics,
	}
}

// Get returns the trades with start <= time < end. The file is used when its
// first and last rows enclose [start, end]; otherwise every UTC day from the
// start day to the day holding end-1 is downloaded and the file is replaced.
func (c *TradeCache) Get(ctx context.Context, start, end int64) (TradeResult, error) {
	if end <= start {
		return TradeResult{}, apperrors.New(apperrors.ErrorTypeValidation, component, "get_trades",
			fmt.Errorf("%w: start %d is not before end %d", apperrors.ErrInvalidArgument, start, end))
	}

	if ticks, ok := c.fromFile(start, end); ok {
		c.metrics.AddCacheRows(metrics.SourceCache, len(ticks))
		c.logger.Info("trades from csv", "rows", len(ticks))
		return TradeResult{Ticks: ticks, Complete: true}, nil
	}

	res := TradeResult{Complete: true}
	var all []models.Tick
	first := time.Unix(start, 0).UTC().Truncate(24 * time.Hour)
	last := time.Unix(end-1, 0).UTC().Truncate(24 * time.Hour)
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return TradeResult{}, err
		}
		ticks, err := c.archive.FetchDay(ctx, day)
		if err != nil {
			c.logger.Warn("trade archive unavailable", "day", day.Format("2006-01-02"), "error", err)
			res.Complete = false
			res.MissingDays = append(res.MissingDays, day.Format("2006-01-02"))
			continue
		}
		all = append(all, ticks...)
	}
	models.SortTicks(all)

	if len(all) > 0 && c.path != "" {
		if err := writeAtomic(c.path, table.FromTicks(all)); err != nil {
			c.logger.Warn("cache write failed", "error", err)
		} else {
			c.metrics.IncCacheWrite()
		}
	}

	res.Ticks = models.FilterTicks(all, float64(start), float64(end))
	c.metrics.AddCacheRows(metrics.SourceFetch, len(res.Ticks))
	c.logger.Info("trades from request", "rows", len(res.Ticks), "complete", res.Complete)
	return res, nil
}

func (c *TradeCache) fromFile(start, end int64) ([]models.Tick, bool) {
	if c.path == "" {
		return nil, false
	}
	f, err := table.ReadCSVFile(c.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.logger.Warn("ignoring unreadable cache file", "error", err)
		}
		return nil, false
	}
	ticks, err := f.ToTicks()
	if err != nil || len(ticks) == 0 {
		return nil, false
	}
	if float64(start) < ticks[0].Time || float64(end) > ticks[len(ticks)-1].Time {
		return nil, false
	}
	return models.FilterTicks(ticks, float64(start), float64(end)), true
}

// KindTrades selects the trade file name in DefaultPath.
const KindTrades = "trades"

// DefaultPath names the cache file for an exchange series under dir:
// {exchange}_{symbol}_trades.csv for trades, otherwise
// {exchange}_{symbol}_ohlcv_{period}[_{kind}].csv.
func DefaultPath(dir, exchange, symbol, kind string, periodMin int) string {
	if dir == "" {
		dir = "."
	}
	if kind == KindTrades {
		return filepath.Join(dir, exchange+"_"+symbol+"_trades.csv")
	}
	name := exchange + "_" + symbol + "_ohlcv_" + strconv.Itoa(periodMin)
	if kind != "" {
		name += "_" + kind
	}
	return filepath.Join(dir, name+".csv")
}
