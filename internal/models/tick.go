package models

import "sort"

// Trade sides as reported by the exchanges.
const (
	SideBuy  = "Buy"
	SideSell = "Sell"
)

// Tick is a single executed trade. Time is Unix seconds with a fractional part.
type Tick struct {
	Time  float64 `json:"unixtime"`
	Side  string  `json:"side"`
	Size  float64 `json:"size"`
	Price float64 `json:"price"`
}

// SortTicks orders ticks by time, keeping the input order of equal times.
func SortTicks(ticks []Tick) {
	sort.SliceStable(ticks, func(i, j int) bool { return ticks[i].Time < ticks[j].Time })
}

// FilterTicks returns the ticks with start <= Time < end.
func FilterTicks(ticks []Tick, start, end float64) []Tick {
	out := make([]Tick, 0, len(ticks))
	for _, t := range ticks {
		if t.Time >= start && t.Time < end {
			out = append(out, t)
		}
	}
	return out
}
