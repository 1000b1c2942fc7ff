package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/johnayoung/go-crypto-datautil/internal/debugprint"
	apperrors "github.com/johnayoung/go-crypto-datautil/internal/errors"
	"github.com/johnayoung/go-crypto-datautil/internal/table"
	"github.com/johnayoung/go-crypto-datautil/internal/timeutil"
)

// Output formats accepted by --format.
const (
	FormatCSV   = "csv"
	FormatJSON  = "json"
	FormatTable = "table"
)

// parseUnix reads a time argument as Unix seconds or as a date string.
func parseUnix(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(v), nil
	}
	v, err := timeutil.ToUnix(s).Get()
	if err != nil {
		return 0, apperrors.New(apperrors.ErrorTypeValidation, "cli", "parse_time",
			fmt.Errorf("%w: %q: %v", apperrors.ErrInvalidArgument, s, err))
	}
	return int64(math.Floor(v)), nil
}

// parseRange reads --start and --end and checks that start is before end.
func parseRange(start, end string) (int64, int64, error) {
	s, err := parseUnix(start)
	if err != nil {
		return 0, 0, err
	}
	e, err := parseUnix(end)
	if err != nil {
		return 0, 0, err
	}
	if e <= s {
		return 0, 0, apperrors.Newf(apperrors.ErrorTypeValidation, "cli", "parse_range",
			"start %q must be before end %q", start, end)
	}
	return s, e, nil
}

// openOutput returns a writer for path, or w when path is empty or "-".
func openOutput(w io.Writer, path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return w, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, apperrors.New(apperrors.ErrorTypeIO, "cli", "open_output", err)
	}
	return f, f.Close, nil
}

// writeFrame prints f in format. The table format shows at most limit rows.
func writeFrame(w io.Writer, name string, f *table.Frame, format string, limit int) error {
	switch format {
	case "", FormatCSV:
		return f.WriteCSV(w)
	case FormatJSON:
		rows := make([]map[string]any, f.Len())
		for i := range rows {
			row := make(map[string]any, len(f.Columns()))
			for k, v := range f.Row(i) {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					row[k] = nil
				} else {
					row[k] = v
				}
			}
			rows[i] = row
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rows); err != nil {
			return apperrors.New(apperrors.ErrorTypeIO, "cli", "write_json", err)
		}
		return nil
	case FormatTable:
		opts := debugprint.DefaultOptions()
		opts.Limit = limit
		return debugprint.Fprint(w, name, f, opts)
	}
	return apperrors.New(apperrors.ErrorTypeConfiguration, "cli", "write_frame",
		fmt.Errorf("%w: output format %q", apperrors.ErrUnsupportedFormat, format))
}

// saveFrame writes f to path, or to w when path is empty.
func saveFrame(w io.Writer, path, name string, f *table.Frame, format string, limit int) error {
	out, closeFn, err := openOutput(w, path)
	if err != nil {
		return err
	}
	if err := writeFrame(out, name, f, format, limit); err != nil {
		closeFn()
		return err
	}
	if err := closeFn(); err != nil {
		return apperrors.New(apperrors.ErrorTypeIO, "cli", "close_output", err)
	}
	return nil
}
