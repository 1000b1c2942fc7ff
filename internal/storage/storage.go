// Package storage keeps OHLCV candles as daily partitions, one CSV file per
// UTC calendar day, and reads date ranges of them back as a single series.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/johnayoung/go-crypto-datautil/internal/errors"
	"github.com/johnayoung/go-crypto-datautil/internal/logger"
	"github.com/johnayoung/go-crypto-datautil/internal/models"
	"github.com/johnayoung/go-crypto-datautil/internal/resample"
	"github.com/johnayoung/go-crypto-datautil/internal/timeutil"
)

const component = "storage"

// PartitionStore holds one candle partition per UTC day.
type PartitionStore interface {
	// Exists reports whether day has a partition.
	Exists(day time.Time) (bool, error)

	// Write replaces the partition for day.
	Write(day time.Time, candles []models.Candle) error

	// Read returns the partition for day. A missing partition is an
	// ErrMissingPartition lookup error.
	Read(day time.Time) ([]models.Candle, error)

	// Days lists the days that have a partition, ascending.
	Days() ([]time.Time, error)

	// Dir names the location of the store.
	Dir() string
}

// RangeReader reads an inclusive YYYY/MM/DD day range as one candle series.
// A non-zero period downsamples the result.
type RangeReader interface {
	ReadRange(ctx context.Context, startYMD, endYMD string, period time.Duration) ([]models.Candle, error)
}

// DayName is the partition name of day, YYYYMMDD in UTC.
func DayName(day time.Time) string {
	return day.UTC().Format("20060102")
}

// DayRange expands an inclusive YYYY/MM/DD range into UTC midnights.
func DayRange(startYMD, endYMD string) ([]time.Time, error) {
	start, err := timeutil.ParseYMD(startYMD)
	if err != nil {
		return nil, err
	}
	end, err := timeutil.ParseYMD(endYMD)
	if err != nil {
		return nil, err
	}
	if start.After(end) {
		return nil, apperrors.New(apperrors.ErrorTypeValidation, component, "day_range",
			fmt.Errorf("%w: end %s should be after start %s", apperrors.ErrInvalidArgument, endYMD, startYMD))
	}
	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days, nil
}

func missingPartition(day time.Time) error {
	return apperrors.New(apperrors.ErrorTypeLookup, component, "read",
		fmt.Errorf("%w: %s.csv", apperrors.ErrMissingPartition, DayName(day)))
}

// ScanOptions controls ScanRange.
type ScanOptions struct {
	// IgnoreDefect logs missing days instead of failing on them.
	IgnoreDefect bool
	// Period downsamples the merged rows when non-zero.
	Period time.Duration
	Logger *slog.Logger
}

// ScanRange reads every partition from startYMD to endYMD, merges them in
// time order and optionally downsamples the result.
func ScanRange(ctx context.Context, store PartitionStore, startYMD, endYMD string, opts ScanOptions) ([]models.Candle, error) {
	log := logger.OrDefault(opts.Logger).With("component", component, "dir", store.Dir())
	days, err := DayRange(startYMD, endYMD)
	if err != nil {
		return nil, err
	}

	var parts [][]models.Candle
	for _, day := range days {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := store.Read(day)
		if err != nil {
			if opts.IgnoreDefect && apperrors.IsType(err, apperrors.ErrorTypeLookup) {
				log.Warn("partition does not exist", "day", DayName(day))
				continue
			}
			return nil, err
		}
		parts = append(parts, rows)
	}
	if len(parts) == 0 {
		return nil, apperrors.New(apperrors.ErrorTypeLookup, component, "scan",
			fmt.Errorf("%w: no partitions between %s and %s", apperrors.ErrMissingPartition, startYMD, endYMD))
	}

	candles := models.MergeCandles(parts...)
	log.Debug("partitions scanned", "days", len(parts), "rows", len(candles))
	if opts.Period == 0 {
		return candles, nil
	}
	return resample.Downsample(candles, opts.Period)
}

// NativeScanner is the RangeReader over any PartitionStore.
type NativeScanner struct {
	store        PartitionStore
	ignoreDefect bool
	logger       *slog.Logger
}

// NewNativeScanner creates a scanner over store.
func NewNativeScanner(store PartitionStore, ignoreDefect bool, logger *slog.Logger) *NativeScanner {
	return &NativeScanner{store: store, ignoreDefect: ignoreDefect, logger: logger}
}

// ReadRange implements RangeReader.
func (s *NativeScanner) ReadRange(ctx context.Context, startYMD, endYMD string, period time.Duration) ([]models.Candle, error) {
	return ScanRange(ctx, s.store, startYMD, endYMD, ScanOptions{
		IgnoreDefect: s.ignoreDefect,
		Period:       period,
		Logger:       s.logger,
	})
}
