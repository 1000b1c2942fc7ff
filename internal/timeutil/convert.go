package timeutil

import (
	"fmt"
	"time"

	apperrors "github.com/johnayoung/go-crypto-datautil/internal/errors"
)

type attempt struct {
	input  string
	format string
}

// fallbacks lists the layouts tried after the caller's format, keyed by the
// length of the input.
func fallbacks(s string) []attempt {
	var out []attempt
	switch n := len(s); {
	case n == 6:
		out = append(out, attempt{s, "%Y%m"})
	case n == 7:
		out = append(out, attempt{s, "%Y-%m"}, attempt{s, "%Y/%m"})
	case n == 8:
		out = append(out, attempt{s, "%Y%m%d"})
	case n == 10:
		out = append(out, attempt{s, "%Y-%m-%d"}, attempt{s, "%Y/%m/%d"})
	case n == 19:
		out = append(out,
			attempt{s + ".000Z", DefaultFormat},
			attempt{s, "%Y-%m-%d %H:%M:%S"},
			attempt{s, "%Y/%m/%d %H:%M:%S"},
		)
	case n == 24:
		out = append(out,
			attempt{s, DefaultFormat},
			attempt{s, "%Y-%m-%dT%H:%M:%S%z"},
			attempt{s, "%Y-%m-%d %H:%M:%S%z"},
			attempt{s, "%Y/%m/%d %H:%M:%S%z"},
		)
	case n > 24:
		out = append(out,
			attempt{s, DefaultFormat},
			attempt{s, "%Y-%m-%dT%H:%M:%S.%f"},
			attempt{s, "%Y/%m/%d %H:%M:%S.%f"},
			attempt{s, "%Y-%m-%dT%H:%M:%S.%fZ%z"},
			attempt{s, "%Y-%m-%dT%H:%M:%S.%f%z"},
			attempt{s, "%Y-%m-%d %H:%M:%S.%f%z"},
			attempt{s, "%Y/%m/%d %H:%M:%S.%f%z"},
		)
	}
	if len(s) > 22 {
		out = append(out,
			attempt{s[:23], "%Y-%m-%dT%H:%M:%S.%f"},
			attempt{s[:23], "%Y/%m/%d %H:%M:%S.%f"},
		)
	}
	return out
}

// parseWithFallbacks returns the parsed time and the format that matched.
func parseWithFallbacks(s, format string, loc *time.Location) (time.Time, string, error) {
	t, _, err := Strptime(s, format, loc)
	if err == nil {
		return t, format, nil
	}
	for _, a := range fallbacks(s) {
		if t, _, ferr := Strptime(a.input, a.format, loc); ferr == nil {
			return t, a.format, nil
		}
	}
	return time.Time{}, format, fmt.Errorf("%w: %q matches no known layout", apperrors.ErrParse, s)
}

// StrToTime converts a date string. Strings without an offset are read as UTC.
// Formats shorter than 10 characters are rejected.
func StrToTime(s string, format string) Result[time.Time] {
	if format == "" {
		format = DefaultFormat
	}
	if len(format) < 10 {
		return Fail[time.Time](fmt.Errorf("%w: format %q is too short", apperrors.ErrInvalidArgument, format))
	}
	t, _, err := parseWithFallbacks(s, format, time.UTC)
	if err != nil {
		return Fail[time.Time](err)
	}
	return Ok(t)
}

// StrToTimes converts a list of date strings. The layout that matched the
// first element is tried first for the rest. Any unparseable element fails
// the whole conversion.
func StrToTimes(values []string, format string) Result[[]time.Time] {
	if len(values) == 0 {
		return Fail[[]time.Time](fmt.Errorf("%w: empty input", apperrors.ErrInvalidArgument))
	}
	first := StrToTime(values[0], format)
	if !first.OK() {
		return Fail[[]time.Time](first.Err())
	}
	_, matched, _ := parseWithFallbacks(values[0], orDefault(format), time.UTC)

	out := make([]time.Time, len(values))
	out[0] = first.Value()
	for i := 1; i < len(values); i++ {
		t, _, err := parseWithFallbacks(values[i], matched, time.UTC)
		if err != nil {
			return Fail[[]time.Time](fmt.Errorf("element %d: %w", i, err))
		}
		out[i] = t
	}
	return Ok(out)
}

func orDefault(format string) string {
	if format == "" {
		return DefaultFormat
	}
	return format
}

func unixSeconds(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond()/1000)/1e6
}

// ToUnix converts a string, time.Time or Value to Unix seconds.
func ToUnix(v any) Result[float64] {
	switch x := v.(type) {
	case string:
		r := StrToTime(x, DefaultFormat)
		if !r.OK() {
			return Fail[float64](r.Err())
		}
		return Ok(unixSeconds(r.Value()))
	case time.Time:
		return Ok(unixSeconds(x))
	case Value:
		if x.Err() != nil {
			return Fail[float64](x.Err())
		}
		return Ok(x.Unix())
	default:
		return Fail[float64](fmt.Errorf("%w: cannot convert %T to unix time", apperrors.ErrInvalidArgument, v))
	}
}

// ToUnixSlice converts []string, []time.Time or []Value to Unix seconds.
func ToUnixSlice(v any) Result[[]float64] {
	switch x := v.(type) {
	case []string:
		r := StrToTimes(x, DefaultFormat)
		if !r.OK() {
			return Fail[[]float64](r.Err())
		}
		return Ok(mapTimes(r.Value()))
	case []time.Time:
		return Ok(mapTimes(x))
	case []Value:
		out := make([]float64, len(x))
		for i, val := range x {
			if val.Err() != nil {
				return Fail[[]float64](fmt.Errorf("element %d: %w", i, val.Err()))
			}
			out[i] = val.Unix()
		}
		return Ok(out)
	default:
		return Fail[[]float64](fmt.Errorf("%w: cannot convert %T to unix times", apperrors.ErrInvalidArgument, v))
	}
}

func mapTimes(ts []time.Time) []float64 {
	out := make([]float64, len(ts))
	for i, t := range ts {
		out[i] = unixSeconds(t)
	}
	return out
}

// ParseYMD reads the YYYY/MM/DD day strings used by the daily partition tools.
func ParseYMD(s string) (time.Time, error) {
	t, _, err := Strptime(s, "%Y/%m/%d", time.UTC)
	if err != nil {
		return time.Time{}, apperrors.New(apperrors.ErrorTypeParse, "timeutil", "parse_ymd", err)
	}
	return t, nil
}
