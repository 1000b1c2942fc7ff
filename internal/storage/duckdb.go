package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	apperrors "github.com/johnayoung/go-crypto-datautil/internal/errors"
	"github.com/johnayoung/go-crypto-datautil/internal/logger"
	"github.com/johnayoung/go-crypto-datautil/internal/models"
	"github.com/johnayoung/go-crypto-datautil/internal/resample"
)

// DuckDBScanner is a RangeReader that lets an in-memory DuckDB read the
// partition files of a FileStore in one read_csv query.
type DuckDBScanner struct {
	store        *FileStore
	ignoreDefect bool
	logger       *slog.Logger

	mu sync.Mutex
	db *sql.DB
}

// NewDuckDBScanner opens an in-memory DuckDB connection over store.
func NewDuckDBScanner(store *FileStore, ignoreDefect bool, log *slog.Logger) (*DuckDBScanner, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, apperrors.New(apperrors.ErrorTypeConfiguration, component, "open_duckdb", err)
	}
	// read_csv runs on one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return &DuckDBScanner{
		store:        store,
		ignoreDefect: ignoreDefect,
		logger:       logger.OrDefault(log).With("component", component, "engine", "duckdb", "dir", store.Dir()),
		db:           db,
	}, nil
}

// ReadRange implements RangeReader.
func (d *DuckDBScanner) ReadRange(ctx context.Context, startYMD, endYMD string, period time.Duration) ([]models.Candle, error) {
	days, err := DayRange(startYMD, endYMD)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, day := range days {
		ok, err := d.store.Exists(day)
		if err != nil {
			return nil, err
		}
		if !ok {
			if !d.ignoreDefect {
				return nil, missingPartition(day)
			}
			d.logger.Warn("partition does not exist", "day", DayName(day))
			continue
		}
		paths = append(paths, d.store.Path(day))
	}
	if len(paths) == 0 {
		return nil, apperrors.New(apperrors.ErrorTypeLookup, component, "scan",
			fmt.Errorf("%w: no partitions between %s and %s", apperrors.ErrMissingPartition, startYMD, endYMD))
	}

	query := buildScanQuery(paths)
	candles, err := d.query(ctx, query)
	if err != nil {
		return nil, err
	}
	candles = models.DedupeCandles(candles)
	d.logger.Debug("partitions scanned", "days", len(paths), "rows", len(candles))

	if period == 0 {
		return candles, nil
	}
	return resample.Downsample(candles, period)
}

func buildScanQuery(paths []string) string {
	quoted := make([]string, len(paths))
	for i, p := range paths {
		quoted[i] = "'" + strings.ReplaceAll(p, "'", "''") + "'"
	}
	return fmt.Sprintf(`
	SELECT
		CAST(unixtime AS BIGINT),
		CAST(open AS DOUBLE),
		CAST(high AS DOUBLE),
		CAST(low AS DOUBLE),
		CAST(close AS DOUBLE),
		CAST(volume AS DOUBLE)
	FROM read_csv([%s], header=true, union_by_name=true)
	ORDER BY unixtime`, strings.Join(quoted, ", "))
}

func (d *DuckDBScanner) query(ctx context.Context, query string) ([]models.Candle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.db == nil {
		return nil, apperrors.Newf(apperrors.ErrorTypeIO, component, "scan", "duckdb scanner is closed")
	}

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrorTypeIO, component, "scan", fmt.Errorf("failed to execute query: %w", err))
	}
	defer rows.Close()

	var candles []models.Candle
	for rows.Next() {
		var (
			c                              models.Candle
			open, high, low, close, volume sql.NullFloat64
		)
		if err := rows.Scan(&c.Time, &open, &high, &low, &close, &volume); err != nil {
			return nil, apperrors.New(apperrors.ErrorTypeParse, component, "scan", fmt.Errorf("failed to scan row: %w", err))
		}
		c.Open, c.High, c.Low, c.Close, c.Volume = nullable(open), nullable(high), nullable(low), nullable(close), nullable(volume)
		candles = append(candles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.New(apperrors.ErrorTypeIO, component, "scan", fmt.Errorf("row iteration error: %w", err))
	}
	return candles, nil
}

func nullable(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

// HealthCheck runs a trivial query on the connection.
func (d *DuckDBScanner) HealthCheck(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.db == nil {
		return apperrors.Newf(apperrors.ErrorTypeIO, component, "health_check", "duckdb scanner is closed")
	}
	var one int
	if err := d.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return apperrors.New(apperrors.ErrorTypeIO, component, "health_check", err)
	}
	return nil
}

// Close releases the connection. It is safe to call more than once.
func (d *DuckDBScanner) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.db == nil {
		return nil
	}
	err := d.db.Close()
	d.db = nil
	if err != nil {
		return apperrors.New(apperrors.ErrorTypeIO, component, "close", err)
	}
	return nil
}
