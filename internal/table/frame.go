// Package table implements a small column-oriented frame of float64 values
// with the filtering, concatenation and outer-join operations the CLI and
// chart packages need.
package table

import (
	"fmt"
	"math"
	"sort"

	apperrors "github.com/johnayoung/go-crypto-datautil/internal/errors"
	"github.com/johnayoung/go-crypto-datautil/internal/models"
)

const component = "table"

// Well-known column names.
const (
	ColTime   = "unixtime"
	ColOpen   = "open"
	ColHigh   = "high"
	ColLow    = "low"
	ColClose  = "close"
	ColVolume = "volume"
	ColSide   = "side"
	ColSize   = "size"
	ColPrice  = "price"
)

// CandleColumns is the column order used for candle frames and partition files.
var CandleColumns = []string{ColTime, ColOpen, ColHigh, ColLow, ColClose, ColVolume}

// Frame is an ordered set of named float64 columns of equal length.
type Frame struct {
	names []string
	cols  map[string][]float64
}

// NewFrame creates an empty frame with the given columns.
func NewFrame(names ...string) *Frame {
	f := &Frame{cols: make(map[string][]float64, len(names))}
	for _, n := range names {
		if _, ok := f.cols[n]; ok {
			continue
		}
		f.names = append(f.names, n)
		f.cols[n] = []float64{}
	}
	return f
}

func lookupError(op, name string) error {
	return apperrors.New(apperrors.ErrorTypeLookup, component, op,
		fmt.Errorf("%w: %q", apperrors.ErrColumnNotFound, name))
}

// AddColumn appends a column, or replaces it when the name exists. The first
// column sets the frame length; later columns must match it.
func (f *Frame) AddColumn(name string, values []float64) error {
	replacingOnly := len(f.names) == 1 && f.names[0] == name
	if len(f.names) > 0 && !replacingOnly && len(values) != f.Len() {
		return apperrors.New(apperrors.ErrorTypeValidation, component, "add_column",
			fmt.Errorf("%w: column %q has %d rows, frame has %d", apperrors.ErrSchemaMismatch, name, len(values), f.Len()))
	}
	if _, ok := f.cols[name]; !ok {
		f.names = append(f.names, name)
	}
	f.cols[name] = values
	return nil
}

// AppendRow adds one row with a value per column, in column order.
func (f *Frame) AppendRow(values ...float64) error {
	if len(values) != len(f.names) {
		return apperrors.New(apperrors.ErrorTypeValidation, component, "append_row",
			fmt.Errorf("%w: got %d values for %d columns", apperrors.ErrSchemaMismatch, len(values), len(f.names)))
	}
	for i, n := range f.names {
		f.cols[n] = append(f.cols[n], values[i])
	}
	return nil
}

// Column returns the values of a column. The slice is shared with the frame.
func (f *Frame) Column(name string) ([]float64, error) {
	c, ok := f.cols[name]
	if !ok {
		return nil, lookupError("column", name)
	}
	return c, nil
}

// HasColumn reports whether the frame has the named column.
func (f *Frame) HasColumn(name string) bool {
	_, ok := f.cols[name]
	return ok
}

// Columns returns the column names in order.
func (f *Frame) Columns() []string {
	return append([]string(nil), f.names...)
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	if len(f.names) == 0 {
		return 0
	}
	return len(f.cols[f.names[0]])
}

// Row returns row i keyed by column name.
func (f *Frame) Row(i int) map[string]float64 {
	row := make(map[string]float64, len(f.names))
	for _, n := range f.names {
		row[n] = f.cols[n][i]
	}
	return row
}

// Clone returns a deep copy.
func (f *Frame) Clone() *Frame {
	return f.take(identity(f.Len()))
}

// Slice returns rows [i, j), clamped to the frame.
func (f *Frame) Slice(i, j int) *Frame {
	n := f.Len()
	i = max(0, min(i, n))
	j = max(i, min(j, n))
	idx := make([]int, 0, j-i)
	for k := i; k < j; k++ {
		idx = append(idx, k)
	}
	return f.take(idx)
}

// Head returns the first n rows.
func (f *Frame) Head(n int) *Frame { return f.Slice(0, n) }

// SortBy sorts rows by a column in place. The sort is stable and NaN sorts last.
func (f *Frame) SortBy(col string, asc bool) error {
	keys, err := f.Column(col)
	if err != nil {
		return err
	}
	idx := identity(len(keys))
	sort.SliceStable(idx, func(a, b int) bool {
		x, y := keys[idx[a]], keys[idx[b]]
		if math.IsNaN(x) || math.IsNaN(y) {
			return !math.IsNaN(x) && math.IsNaN(y)
		}
		if asc {
			return x < y
		}
		return x > y
	})
	sorted := f.take(idx)
	f.cols = sorted.cols
	return nil
}

// take builds a new frame from the given row indices.
func (f *Frame) take(idx []int) *Frame {
	out := &Frame{names: append([]string(nil), f.names...), cols: make(map[string][]float64, len(f.names))}
	for _, n := range f.names {
		src := f.cols[n]
		dst := make([]float64, len(idx))
		for k, i := range idx {
			dst[k] = src[i]
		}
		out.cols[n] = dst
	}
	return out
}

func identity(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// FromCandles builds a candle frame. The volume column is omitted when hasVolume is false.
func FromCandles(candles []models.Candle, hasVolume bool) *Frame {
	cols := make([][]float64, 6)
	for i := range cols {
		cols[i] = make([]float64, len(candles))
	}
	for i, c := range candles {
		cols[0][i] = float64(c.Time)
		cols[1][i] = c.Open
		cols[2][i] = c.High
		cols[3][i] = c.Low
		cols[4][i] = c.Close
		cols[5][i] = c.Volume
	}
	names := CandleColumns
	if !hasVolume {
		names = CandleColumns[:5]
	}
	f := NewFrame()
	for i, n := range names {
		f.names = append(f.names, n)
		f.cols[n] = cols[i]
	}
	return f
}

// ToCandles reads the OHLC columns back into candles. A missing volume column yields zero volume.
func (f *Frame) ToCandles() ([]models.Candle, error) {
	var cols [5][]float64
	for i, n := range CandleColumns[:5] {
		c, err := f.Column(n)
		if err != nil {
			return nil, err
		}
		cols[i] = c
	}
	vol, _ := f.Column(ColVolume)

	out := make([]models.Candle, f.Len())
	for i := range out {
		out[i] = models.Candle{
			Time:  int64(cols[0][i]),
			Open:  cols[1][i],
			High:  cols[2][i],
			Low:   cols[3][i],
			Close: cols[4][i],
		}
		if vol != nil {
			out[i].Volume = vol[i]
		}
	}
	return out, nil
}

// SideValue encodes a trade side as +1 for Buy and -1 for Sell.
func SideValue(side string) float64 {
	switch side {
	case models.SideBuy:
		return 1
	case models.SideSell:
		return -1
	}
	return 0
}

// SideName is the inverse of SideValue.
func SideName(v float64) string {
	switch {
	case v > 0:
		return models.SideBuy
	case v < 0:
		return models.SideSell
	}
	return ""
}

// FromTicks builds a trade frame with unixtime, side, size and price columns.
func FromTicks(ticks []models.Tick) *Frame {
	t := make([]float64, len(ticks))
	side := make([]float64, len(ticks))
	size := make([]float64, len(ticks))
	price := make([]float64, len(ticks))
	for i, tk := range ticks {
		t[i], side[i], size[i], price[i] = tk.Time, SideValue(tk.Side), tk.Size, tk.Price
	}
	f := NewFrame()
	f.names = []string{ColTime, ColSide, ColSize, ColPrice}
	f.cols[ColTime], f.cols[ColSide], f.cols[ColSize], f.cols[ColPrice] = t, side, size, price
	return f
}

// ToTicks reads a trade frame back into ticks. The side column is optional.
func (f *Frame) ToTicks() ([]models.Tick, error) {
	t, err := f.Column(ColTime)
	if err != nil {
		return nil, err
	}
	size, err := f.Column(ColSize)
	if err != nil {
		return nil, err
	}
	price, err := f.Column(ColPrice)
	if err != nil {
		return nil, err
	}
	side, _ := f.Column(ColSide)

	out := make([]models.Tick, f.Len())
	for i := range out {
		out[i] = models.Tick{Time: t[i], Size: size[i], Price: price[i]}
		if side != nil {
			out[i].Side = SideName(side[i])
		}
	}
	return out, nil
}
