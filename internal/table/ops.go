package table

import (
	"fmt"
	"sort"

	apperrors "github.com/johnayoung/go-crypto-datautil/internal/errors"
)

// FilterRange returns the rows whose col value lies in [min, max].
func FilterRange(f *Frame, col string, min, max float64) (*Frame, error) {
	values, err := f.Column(col)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrorTypeLookup, component, "filter_range", err)
	}
	idx := make([]int, 0, len(values))
	for i, v := range values {
		if v >= min && v <= max {
			idx = append(idx, i)
		}
	}
	return f.take(idx), nil
}

// Concat stacks frames with the same column set, in the first frame's column
// order. When sortCol is set the result is stably sorted by it, ascending.
// Duplicate rows are kept.
func Concat(frames []*Frame, sortCol string) (*Frame, error) {
	if len(frames) == 0 {
		return nil, apperrors.New(apperrors.ErrorTypeValidation, component, "concat",
			fmt.Errorf("%w: need at least 1 frame", apperrors.ErrTooFewInputs))
	}
	want := sortedNames(frames[0])
	for i, f := range frames[1:] {
		if got := sortedNames(f); !equalStrings(want, got) {
			return nil, apperrors.New(apperrors.ErrorTypeValidation, component, "concat",
				fmt.Errorf("%w: frame %d has %v, frame 0 has %v", apperrors.ErrSchemaMismatch, i+1, got, want))
		}
	}

	out := NewFrame(frames[0].names...)
	for _, f := range frames {
		for _, n := range out.names {
			out.cols[n] = append(out.cols[n], f.cols[n]...)
		}
	}
	if sortCol != "" {
		if err := out.SortBy(sortCol, true); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func sortedNames(f *Frame) []string {
	names := f.Columns()
	sort.Strings(names)
	return names
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
