package table

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	apperrors "github.com/johnayoung/go-crypto-datautil/internal/errors"
)

type fillMethod int

const (
	fillNone fillMethod = iota
	fillConstant
	fillForward
	fillBackward
	fillLinear
)

// Fill is a strategy for replacing NaN cells after an outer join.
type Fill struct {
	method fillMethod
	value  float64
}

var (
	FillNone     = Fill{method: fillNone}
	FillForward  = Fill{method: fillForward}
	FillBackward = Fill{method: fillBackward}
	FillLinear   = Fill{method: fillLinear}
)

// FillConstant replaces every NaN with v.
func FillConstant(v float64) Fill { return Fill{method: fillConstant, value: v} }

// ParseFill maps a CLI name to a strategy: none, ffill, bfill, linear, or a number.
func ParseFill(s string) (Fill, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return FillNone, nil
	case "ffill", "pad", "forward":
		return FillForward, nil
	case "bfill", "backfill", "backward":
		return FillBackward, nil
	case "linear":
		return FillLinear, nil
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(v) {
		return FillConstant(v), nil
	}
	return FillNone, apperrors.New(apperrors.ErrorTypeConfiguration, component, "parse_fill",
		fmt.Errorf("%w: %q", apperrors.ErrUnsupportedFill, s))
}

func (f Fill) String() string {
	switch f.method {
	case fillConstant:
		return FormatValue(f.value)
	case fillForward:
		return "ffill"
	case fillBackward:
		return "bfill"
	case fillLinear:
		return "linear"
	}
	return "none"
}

// Apply fills NaN cells in place. Forward fill leaves leading NaN, backward
// fill leaves trailing NaN. Linear interpolates on row position, leaves
// leading NaN and carries the last value over trailing NaN.
func (f Fill) Apply(values []float64) {
	switch f.method {
	case fillConstant:
		for i, v := range values {
			if math.IsNaN(v) {
				values[i] = f.value
			}
		}
	case fillForward:
		last := math.NaN()
		for i, v := range values {
			if math.IsNaN(v) {
				values[i] = last
			} else {
				last = v
			}
		}
	case fillBackward:
		next := math.NaN()
		for i := len(values) - 1; i >= 0; i-- {
			if math.IsNaN(values[i]) {
				values[i] = next
			} else {
				next = values[i]
			}
		}
	case fillLinear:
		interpolate(values)
	}
}

func interpolate(values []float64) {
	prev := -1
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if prev >= 0 && i-prev > 1 {
			step := (v - values[prev]) / float64(i-prev)
			for k := prev + 1; k < i; k++ {
				values[k] = values[prev] + step*float64(k-prev)
			}
		}
		prev = i
	}
	if prev >= 0 {
		for k := prev + 1; k < len(values); k++ {
			values[k] = values[prev]
		}
	}
}

// SortOrder selects how joined rows are ordered by key. SortNone and SortAsc
// both give ascending keys.
type SortOrder int

const (
	SortNone SortOrder = iota
	SortAsc
	SortDesc
)

// JoinOptions configures OuterJoin.
type JoinOptions struct {
	Fill      Fill
	SortIndex SortOrder
	// Summary collapses the value columns into their row sum, NaN counted as 0.
	Summary bool
}

// OuterJoin aligns the value column of each frame on the key column. The
// result has the key column followed by value_0 .. value_n-1, with one row per
// distinct key. Keys are ascending while the fill runs, so a forward fill takes
// the nearest lower key of the same column; SortDesc reverses the rows after
// the fill. Within one frame the first row for a key wins.
func OuterJoin(frames []*Frame, on, value string, opts JoinOptions) (*Frame, error) {
	if len(frames) < 2 {
		return nil, apperrors.New(apperrors.ErrorTypeValidation, component, "outer_join",
			fmt.Errorf("%w: need at least 2 frames, got %d", apperrors.ErrTooFewInputs, len(frames)))
	}

	keyIndex := make(map[float64]int)
	var keys []float64
	perFrame := make([]map[float64]float64, len(frames))
	for i, f := range frames {
		k, err := f.Column(on)
		if err != nil {
			return nil, apperrors.New(apperrors.ErrorTypeLookup, component, "outer_join", err)
		}
		v, err := f.Column(value)
		if err != nil {
			return nil, apperrors.New(apperrors.ErrorTypeLookup, component, "outer_join", err)
		}
		perFrame[i] = make(map[float64]float64, len(k))
		for r, key := range k {
			if _, seen := keyIndex[key]; !seen {
				keyIndex[key] = len(keys)
				keys = append(keys, key)
			}
			if _, dup := perFrame[i][key]; !dup {
				perFrame[i][key] = v[r]
			}
		}
	}

	out := NewFrame()
	_ = out.AddColumn(on, keys)
	for i := range frames {
		col := make([]float64, len(keys))
		for r, key := range keys {
			if v, ok := perFrame[i][key]; ok {
				col[r] = v
			} else {
				col[r] = math.NaN()
			}
		}
		_ = out.AddColumn(fmt.Sprintf("%s_%d", value, i), col)
	}

	if err := out.SortBy(on, true); err != nil {
		return nil, err
	}
	for _, n := range out.names[1:] {
		opts.Fill.Apply(out.cols[n])
	}
	if opts.SortIndex == SortDesc {
		if err := out.SortBy(on, false); err != nil {
			return nil, err
		}
	}

	if !opts.Summary {
		return out, nil
	}
	sums := make([]float64, out.Len())
	for _, n := range out.names[1:] {
		for r, v := range out.cols[n] {
			if !math.IsNaN(v) {
				sums[r] += v
			}
		}
	}
	summary := NewFrame()
	_ = summary.AddColumn(on, out.cols[on])
	_ = summary.AddColumn(value, sums)
	return summary, nil
}
