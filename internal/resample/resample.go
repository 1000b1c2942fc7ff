// Package resample aggregates trade ticks into OHLCV candles and candles
// into coarser candles. Buckets are aligned to the Unix epoch.
package resample

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/johnayoung/go-crypto-datautil/internal/errors"
	"github.com/johnayoung/go-crypto-datautil/internal/models"
	"github.com/johnayoung/go-crypto-datautil/internal/table"
)

const component = "resample"

var units = map[string]time.Duration{
	"s": time.Second, "S": time.Second, "sec": time.Second, "secs": time.Second,
	"T": time.Minute, "m": time.Minute, "min": time.Minute, "mins": time.Minute,
	"H": time.Hour, "h": time.Hour,
	"D": 24 * time.Hour, "d": 24 * time.Hour,
}

// ParsePeriod reads a period such as "1S", "5T", "5min", "4H" or "1D". A
// missing count means 1.
func ParsePeriod(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	n := 1
	if i > 0 {
		v, err := strconv.Atoi(s[:i])
		if err != nil {
			return 0, invalidPeriod(s)
		}
		n = v
	}
	unit, ok := units[s[i:]]
	if !ok || n < 1 {
		return 0, invalidPeriod(s)
	}
	return time.Duration(n) * unit, nil
}

func invalidPeriod(s string) error {
	return apperrors.New(apperrors.ErrorTypeConfiguration, component, "parse_period",
		fmt.Errorf("%w: %q", apperrors.ErrInvalidPeriod, s))
}

func periodSeconds(period time.Duration) (int64, error) {
	if period < time.Second || period%time.Second != 0 {
		return 0, apperrors.New(apperrors.ErrorTypeConfiguration, component, "period",
			fmt.Errorf("%w: %s is not a whole number of seconds", apperrors.ErrInvalidPeriod, period))
	}
	return int64(period / time.Second), nil
}

// BucketStart returns the start of the epoch-aligned bucket holding t.
func BucketStart(t float64, periodSec int64) int64 {
	return int64(math.Floor(t/float64(periodSec))) * periodSec
}

// TradesToOHLCV groups ticks into candles. Ticks are ordered by time first,
// keeping the input order of simultaneous trades. Buckets without trades are
// omitted.
func TradesToOHLCV(ticks []models.Tick, period time.Duration) ([]models.Candle, error) {
	p, err := periodSeconds(period)
	if err != nil {
		return nil, err
	}
	sorted := append([]models.Tick(nil), ticks...)
	models.SortTicks(sorted)

	var out []models.Candle
	for _, tk := range sorted {
		b := BucketStart(tk.Time, p)
		if n := len(out); n > 0 && out[n-1].Time == b {
			c := &out[n-1]
			c.High = math.Max(c.High, tk.Price)
			c.Low = math.Min(c.Low, tk.Price)
			c.Close = tk.Price
			c.Volume += tk.Size
			continue
		}
		out = append(out, models.Candle{Time: b, Open: tk.Price, High: tk.Price, Low: tk.Price, Close: tk.Price, Volume: tk.Size})
	}
	return out, nil
}

// Downsample merges candles into coarser buckets: first open, max high, min
// low, last close, summed volume. The period must be a multiple of the input
// spacing.
func Downsample(candles []models.Candle, period time.Duration) ([]models.Candle, error) {
	p, err := periodSeconds(period)
	if err != nil {
		return nil, err
	}
	sorted := append([]models.Candle(nil), candles...)
	models.SortCandles(sorted)

	if spacing := models.Spacing(sorted); spacing > 0 && (p < spacing || p%spacing != 0) {
		return nil, apperrors.New(apperrors.ErrorTypeConfiguration, component, "downsample",
			fmt.Errorf("%w: %ds from %ds rows", apperrors.ErrUpsample, p, spacing))
	}

	var out []models.Candle
	for _, c := range sorted {
		b := BucketStart(float64(c.Time), p)
		if n := len(out); n > 0 && out[n-1].Time == b {
			o := &out[n-1]
			o.High = math.Max(o.High, c.High)
			o.Low = math.Min(o.Low, c.Low)
			o.Close = c.Close
			o.Volume += c.Volume
			continue
		}
		c.Time = b
		out = append(out, c)
	}
	return out, nil
}

// FillGaps inserts a flat candle at the previous close, with zero volume, for
// every missing bucket between the first and last row.
func FillGaps(candles []models.Candle, period time.Duration) ([]models.Candle, error) {
	p, err := periodSeconds(period)
	if err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return nil, nil
	}
	sorted := append([]models.Candle(nil), candles...)
	models.SortCandles(sorted)

	out := make([]models.Candle, 0, len(sorted))
	out = append(out, sorted[0])
	for _, c := range sorted[1:] {
		prev := out[len(out)-1]
		for t := prev.Time + p; t < c.Time; t += p {
			out = append(out, models.Candle{Time: t, Open: prev.Close, High: prev.Close, Low: prev.Close, Close: prev.Close})
		}
		out = append(out, c)
	}
	return out, nil
}

// TradesFrameToOHLCV is TradesToOHLCV over a frame with unixtime, price and size columns.
func TradesFrameToOHLCV(f *table.Frame, period time.Duration) (*table.Frame, error) {
	ticks, err := f.ToTicks()
	if err != nil {
		return nil, err
	}
	candles, err := TradesToOHLCV(ticks, period)
	if err != nil {
		return nil, err
	}
	return table.FromCandles(candles, true), nil
}

// DownsampleFrame is Downsample over a candle frame. Frames without a volume
// column stay without one.
func DownsampleFrame(f *table.Frame, period time.Duration) (*table.Frame, error) {
	candles, err := f.ToCandles()
	if err != nil {
		return nil, err
	}
	out, err := Downsample(candles, period)
	if err != nil {
		return nil, err
	}
	return table.FromCandles(out, f.HasColumn(table.ColVolume)), nil
}
