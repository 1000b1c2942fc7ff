package cache

import (
	"fmt"
	"sort"
)

// Span is a half-open time range [Start, End) in Unix seconds.
type Span struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

func (s Span) String() string { return fmt.Sprintf("[%d, %d)", s.Start, s.End) }

// Coverage is a sorted set of non-overlapping spans. Adjacent or overlapping
// spans are merged on insert.
type Coverage struct {
	spans []Span
}

// Add records [start, end) as covered. Empty ranges are ignored.
func (c *Coverage) Add(start, end int64) {
	if end <= start {
		return
	}
	spans := append(c.spans, Span{start, end})
	sort.Slice(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })

	merged := spans[:1]
	for _, s := range spans[1:] {
		last := &merged[len(merged)-1]
		if s.Start <= last.End {
			if s.End > last.End {
				last.End = s.End
			}
			continue
		}
		merged = append(merged, s)
	}
	c.spans = merged
}

// Contains reports whether [start, end) lies inside one covered span.
func (c *Coverage) Contains(start, end int64) bool {
	if end <= start {
		return true
	}
	for _, s := range c.spans {
		if s.Start <= start && end <= s.End {
			return true
		}
	}
	return false
}

// Missing returns the parts of [start, end) that are not covered, ascending.
func (c *Coverage) Missing(start, end int64) []Span {
	var out []Span
	cur := start
	for _, s := range c.spans {
		if cur >= end {
			break
		}
		if s.End <= cur {
			continue
		}
		if s.Start >= end {
			break
		}
		if s.Start > cur {
			out = append(out, Span{cur, s.Start})
		}
		cur = s.End
	}
	if cur < end {
		out = append(out, Span{cur, end})
	}
	return out
}

// Spans returns a copy of the covered spans.
func (c *Coverage) Spans() []Span {
	return append([]Span(nil), c.spans...)
}
