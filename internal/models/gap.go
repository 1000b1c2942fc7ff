package models

import (
	"fmt"
	"time"
)

// GapKind tells whether a gap is a missing partition day or a hole inside a candle series.
type GapKind string

const (
	// GapKindDay marks a day with no partition file
	GapKindDay GapKind = "day"
	// GapKindCandle marks consecutive candles more than one period apart
	GapKindCandle GapKind = "candle"
)

// Gap is a half-open span [Start, End) of Unix seconds with no data.
type Gap struct {
	Kind  GapKind `json:"kind"`
	Start int64   `json:"start"`
	End   int64   `json:"end"`
}

// NewGap creates a gap, rejecting empty or inverted spans.
func NewGap(kind GapKind, start, end int64) (Gap, error) {
	if end <= start {
		return Gap{}, fmt.Errorf("gap end %d must be after start %d", end, start)
	}
	return Gap{Kind: kind, Start: start, End: end}, nil
}

// Duration is the length of the span.
func (g Gap) Duration() time.Duration {
	return time.Duration(g.End-g.Start) * time.Second
}

// Periods returns how many bars of the given length fit in the gap.
func (g Gap) Periods(period int64) int64 {
	if period <= 0 {
		return 0
	}
	return (g.End - g.Start) / period
}

// String renders the span in UTC, by day for day gaps.
func (g Gap) String() string {
	layout := "2006-01-02 15:04:05"
	if g.Kind == GapKindDay {
		layout = "2006/01/02"
	}
	start := time.Unix(g.Start, 0).UTC().Format(layout)
	end := time.Unix(g.End, 0).UTC().Format(layout)
	return fmt.Sprintf("%s gap %s - %s (%s)", g.Kind, start, end, g.Duration())
}
