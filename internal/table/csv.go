package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"

	apperrors "github.com/johnayoung/go-crypto-datautil/internal/errors"
)

// ReadCSV reads a frame from CSV with a header row. Empty fields and "nan"
// become NaN. The side column accepts Buy and Sell.
func ReadCSV(r io.Reader) (*Frame, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err == io.EOF {
		return NewFrame(), nil
	}
	if err != nil {
		return nil, apperrors.New(apperrors.ErrorTypeParse, component, "read_csv", err)
	}
	names := make([]string, len(header))
	for i, h := range header {
		names[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	f := NewFrame(names...)
	if len(f.names) != len(names) {
		return nil, apperrors.Newf(apperrors.ErrorTypeParse, component, "read_csv", "duplicate column in header %v", names)
	}

	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, apperrors.New(apperrors.ErrorTypeParse, component, "read_csv", err)
		}
		for i, field := range rec {
			v, err := parseField(names[i], field)
			if err != nil {
				return nil, apperrors.New(apperrors.ErrorTypeParse, component, "read_csv",
					fmt.Errorf("line %d column %q: %w", line, names[i], err))
			}
			f.cols[names[i]] = append(f.cols[names[i]], v)
		}
	}
	return f, nil
}

func parseField(col, field string) (float64, error) {
	field = strings.TrimSpace(field)
	switch strings.ToLower(field) {
	case "", "nan":
		return math.NaN(), nil
	case "inf", "+inf":
		return math.Inf(1), nil
	case "-inf":
		return math.Inf(-1), nil
	}
	if col == ColSide {
		if v := SideValue(field); v != 0 {
			return v, nil
		}
	}
	d, err := decimal.NewFromString(field)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", apperrors.ErrParse, field)
	}
	return d.InexactFloat64(), nil
}

// FormatValue renders v in its shortest exact decimal form. NaN is empty.
func FormatValue(v float64) string {
	switch {
	case math.IsNaN(v):
		return ""
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	return decimal.NewFromFloat(v).String()
}

// WriteCSV writes the frame with a header row. The side column is written as Buy/Sell.
func (f *Frame) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(f.names); err != nil {
		return apperrors.New(apperrors.ErrorTypeIO, component, "write_csv", err)
	}
	rec := make([]string, len(f.names))
	for i := 0; i < f.Len(); i++ {
		for j, n := range f.names {
			v := f.cols[n][i]
			if n == ColSide && SideName(v) != "" {
				rec[j] = SideName(v)
				continue
			}
			rec[j] = FormatValue(v)
		}
		if err := cw.Write(rec); err != nil {
			return apperrors.New(apperrors.ErrorTypeIO, component, "write_csv", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return apperrors.New(apperrors.ErrorTypeIO, component, "write_csv", err)
	}
	return nil
}

// ReadCSVFile reads a frame from a file.
func ReadCSVFile(path string) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrorTypeIO, component, "read_csv", err)
	}
	defer file.Close()
	return ReadCSV(file)
}

// WriteCSVFile writes the frame to path, creating parent directories.
func (f *Frame) WriteCSVFile(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return apperrors.New(apperrors.ErrorTypeIO, component, "write_csv", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return apperrors.New(apperrors.ErrorTypeIO, component, "write_csv", err)
	}
	if err := f.WriteCSV(file); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return apperrors.New(apperrors.ErrorTypeIO, component, "write_csv", err)
	}
	return nil
}
