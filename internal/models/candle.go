// Package models provides the records passed between the fetchers, caches,
// resamplers and reports: candles, trade ticks, gap spans, download jobs and
// the private-API account records.
package models

import (
	"fmt"
	"math"
	"sort"
)

// Candle is one OHLCV bar keyed by the Unix second its bucket starts at.
type Candle struct {
	Time   int64   `json:"unixtime" yaml:"unixtime"`
	Open   float64 `json:"open" yaml:"open"`
	High   float64 `json:"high" yaml:"high"`
	Low    float64 `json:"low" yaml:"low"`
	Close  float64 `json:"close" yaml:"close"`
	Volume float64 `json:"volume" yaml:"volume"`
}

// CandleSeries is a run of candles plus whether the source reports volume.
// bybit mark, index and premium klines carry no volume.
type CandleSeries struct {
	Candles   []Candle `json:"candles"`
	HasVolume bool     `json:"has_volume"`
}

// ValidationError represents a candle validation error with specific field context.
type ValidationError struct {
	Field   string // Field is the name of the field that failed validation
	Message string // Message is a descriptive error message explaining the validation failure
}

// Error implements the error interface for ValidationError.
func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field %s: %s", e.Field, e.Message)
}

// Validate checks that prices are finite, that high and low bound open and
// close, and that volume is non-negative.
func (c Candle) Validate() error {
	fields := []struct {
		name  string
		value float64
	}{
		{"open", c.Open}, {"high", c.High}, {"low", c.Low}, {"close", c.Close}, {"volume", c.Volume},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return &ValidationError{Field: f.name, Message: fmt.Sprintf("%s must be a finite number", f.name)}
		}
	}

	if c.Volume < 0 {
		return &ValidationError{Field: "volume", Message: "volume must be greater than or equal to 0"}
	}
	if hi := math.Max(c.Open, c.Close); c.High < hi {
		return &ValidationError{
			Field:   "high",
			Message: fmt.Sprintf("high price (%v) must be greater than or equal to max(open, close) (%v)", c.High, hi),
		}
	}
	if lo := math.Min(c.Open, c.Close); c.Low > lo {
		return &ValidationError{
			Field:   "low",
			Message: fmt.Sprintf("low price (%v) must be less than or equal to min(open, close) (%v)", c.Low, lo),
		}
	}
	return nil
}

// SortCandles orders candles by time. Rows with equal times keep their input order.
func SortCandles(candles []Candle) {
	sort.SliceStable(candles, func(i, j int) bool { return candles[i].Time < candles[j].Time })
}

// DedupeCandles drops repeated times from a sorted slice, keeping the first row
// seen for each time. The input slice is reused.
func DedupeCandles(candles []Candle) []Candle {
	if len(candles) < 2 {
		return candles
	}
	out := candles[:1]
	for _, c := range candles[1:] {
		if c.Time != out[len(out)-1].Time {
			out = append(out, c)
		}
	}
	return out
}

// FilterCandles returns the rows with start <= Time < end.
func FilterCandles(candles []Candle, start, end int64) []Candle {
	out := make([]Candle, 0, len(candles))
	for _, c := range candles {
		if c.Time >= start && c.Time < end {
			out = append(out, c)
		}
	}
	return out
}

// Spacing returns the smallest positive gap between consecutive rows of a
// sorted slice, or 0 when there are fewer than two distinct times.
func Spacing(candles []Candle) int64 {
	var min int64
	for i := 1; i < len(candles); i++ {
		d := candles[i].Time - candles[i-1].Time
		if d > 0 && (min == 0 || d < min) {
			min = d
		}
	}
	return min
}

// MergeCandles concatenates the inputs, sorts them, and keeps the first row
// for each time. Earlier slices win on duplicate times.
func MergeCandles(sets ...[]Candle) []Candle {
	n := 0
	for _, s := range sets {
		n += len(s)
	}
	out := make([]Candle, 0, n)
	for _, s := range sets {
		out = append(out, s...)
	}
	SortCandles(out)
	return DedupeCandles(out)
}
