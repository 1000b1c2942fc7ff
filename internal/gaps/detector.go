package gaps

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	apperrors "github.com/johnayoung/go-crypto-datautil/internal/errors"
	"github.com/johnayoung/go-crypto-datautil/internal/logger"
	"github.com/johnayoung/go-crypto-datautil/internal/models"
	"github.com/johnayoung/go-crypto-datautil/internal/storage"
)

// Report is the result of scanning a store for missing data.
type Report struct {
	Dir        string       `json:"dir"`
	StartDay   string       `json:"start_day"`
	EndDay     string       `json:"end_day"`
	Rows       int          `json:"rows"`
	Period     int64        `json:"period"`
	Days       []models.Gap `json:"missing_days"`
	Candles    []models.Gap `json:"candle_gaps"`
	MissingBar int64        `json:"missing_bars"` // between the first and last row
	Invalid    []int64      `json:"invalid_rows"` // times of rows failing Candle.Validate
}

// Empty reports whether nothing is missing.
func (r *Report) Empty() bool { return len(r.Days) == 0 && len(r.Candles) == 0 && len(r.Invalid) == 0 }

// String renders one line per gap after a summary line.
func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s - %s: rows=%d period=%ds missing_days=%d candle_gaps=%d missing_bars=%d invalid_rows=%d\n",
		r.Dir, r.StartDay, r.EndDay, r.Rows, r.Period, len(r.Days), len(r.Candles), r.MissingBar, len(r.Invalid))
	for _, g := range r.Days {
		b.WriteString("  " + g.String() + "\n")
	}
	for _, g := range r.Candles {
		b.WriteString("  " + g.String() + "\n")
	}
	return b.String()
}

// Detector scans a partition store.
type Detector struct {
	store  storage.PartitionStore
	logger *slog.Logger
}

// NewDetector creates a detector over store.
func NewDetector(store storage.PartitionStore, log *slog.Logger) *Detector {
	return &Detector{store: store, logger: logger.OrDefault(log).With("component", "gaps", "dir", store.Dir())}
}

// Scan finds missing days, then reads the partitions that exist and finds the
// holes inside them. The period is the smallest spacing between rows.
func (d *Detector) Scan(ctx context.Context, startYMD, endYMD string) (*Report, error) {
	days, err := DetectMissingDays(ctx, d.store, startYMD, endYMD)
	if err != nil {
		return nil, err
	}
	r := &Report{Dir: d.store.Dir(), StartDay: startYMD, EndDay: endYMD, Days: days}

	candles, err := storage.ScanRange(ctx, d.store, startYMD, endYMD, storage.ScanOptions{
		IgnoreDefect: true,
		Logger:       logger.Discard(),
	})
	switch {
	case apperrors.IsType(err, apperrors.ErrorTypeLookup):
		d.logger.Warn("no partitions in range", "start", startYMD, "end", endYMD)
		return r, nil
	case err != nil:
		return nil, err
	}

	r.Rows = len(candles)
	r.Period = models.Spacing(candles)
	holes := DetectCandleGaps(candles, r.Period)
	r.MissingBar = MissingBars(holes, r.Period)
	// Holes that are whole missing days are already reported above.
	for _, g := range holes {
		if !coveredByDays(g, days) {
			r.Candles = append(r.Candles, g)
		}
	}

	for _, c := range candles {
		if err := c.Validate(); err != nil {
			r.Invalid = append(r.Invalid, c.Time)
			d.logger.Debug("invalid candle", "time", c.Time, "error", err)
		}
	}

	d.logger.Info("gap scan finished", "rows", r.Rows, "missing_days", len(r.Days),
		"candle_gaps", len(r.Candles), "invalid_rows", len(r.Invalid))
	return r, nil
}

func coveredByDays(g models.Gap, days []models.Gap) bool {
	for _, d := range days {
		if d.Start <= g.Start && g.End <= d.End {
			return true
		}
	}
	return false
}
