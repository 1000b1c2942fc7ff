// Package gaps finds missing data: days without a partition in a daily
// store, and holes inside a candle series.
package gaps

import (
	"context"
	"time"

	"github.com/johnayoung/go-crypto-datautil/internal/models"
	"github.com/johnayoung/go-crypto-datautil/internal/storage"
)

const day = int64(24 * time.Hour / time.Second)

// DetectMissingDays returns the days from startYMD to endYMD that have no
// partition. Consecutive missing days are merged into one gap.
func DetectMissingDays(ctx context.Context, store storage.PartitionStore, startYMD, endYMD string) ([]models.Gap, error) {
	days, err := storage.DayRange(startYMD, endYMD)
	if err != nil {
		return nil, err
	}

	var out []models.Gap
	for _, d := range days {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ok, err := store.Exists(d)
		if err != nil {
			return nil, err
		}
		if ok {
			continue
		}
		start := d.Unix()
		if n := len(out); n > 0 && out[n-1].End == start {
			out[n-1].End += day
			continue
		}
		out = append(out, models.Gap{Kind: models.GapKindDay, Start: start, End: start + day})
	}
	return out, nil
}

// DetectCandleGaps returns the spans where consecutive candles are more than
// one period apart. Each gap starts one period after the earlier candle and
// ends at the later one. The candles must be sorted.
func DetectCandleGaps(candles []models.Candle, period int64) []models.Gap {
	if period <= 0 {
		return nil
	}
	var out []models.Gap
	for i := 1; i < len(candles); i++ {
		prev, cur := candles[i-1].Time, candles[i].Time
		if cur-prev > period {
			out = append(out, models.Gap{Kind: models.GapKindCandle, Start: prev + period, End: cur})
		}
	}
	return out
}

// MissingBars is the number of bars of the given period the gaps hold.
func MissingBars(gaps []models.Gap, period int64) int64 {
	var n int64
	for _, g := range gaps {
		n += g.Periods(period)
	}
	return n
}
