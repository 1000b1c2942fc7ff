// Package timeutil provides a zone-aware time value with calendar arithmetic,
// rounding and strftime-style formatting, plus the conversion helpers the
// fetchers and CLI use to turn user input into Unix timestamps.
//
// Value is immutable: every operation returns a new Value. Errors from
// arithmetic are sticky, so a chain can be checked once at the end:
//
//	v := timeutil.MustParse("2021-01-01", timeutil.JST).AddMonths(1).RoundHours(4, true)
//	if err := v.Err(); err != nil { ... }
package timeutil

import (
	"fmt"
	"math"
	"math/big"
	"time"

	apperrors "github.com/johnayoung/go-crypto-datautil/internal/errors"
)

const (
	minYear = 1
	maxYear = 9999
)

// Value is an instant paired with the zone it is displayed in.
type Value struct {
	t   time.Time
	err error
}

// FromUnix builds a Value from Unix seconds. Fractions are kept to the microsecond.
func FromUnix(seconds float64, loc *time.Location) Value {
	if loc == nil {
		loc = time.UTC
	}
	whole := math.Floor(seconds)
	micros := math.Round((seconds - whole) * 1e6)
	return Value{t: time.Unix(int64(whole), int64(micros)*1000).In(loc)}
}

// FromTime builds a Value from t. A nil loc keeps t's own location.
func FromTime(t time.Time, loc *time.Location) Value {
	if loc != nil {
		t = t.In(loc)
	}
	return Value{t: t}.checkRange()
}

// Now returns the current instant displayed in loc.
func Now(loc *time.Location) Value {
	return FromTime(time.Now(), orUTC(loc))
}

// Parse reads s with the given strftime format (DefaultFormat when omitted),
// falling back to the common layouts keyed by the input's length. Strings
// without an offset are read in loc; an explicit offset is honoured. The
// result is displayed in loc.
func Parse(s string, loc *time.Location, format ...string) (Value, error) {
	loc = orUTC(loc)
	f := DefaultFormat
	if len(format) > 0 && format[0] != "" {
		f = format[0]
	}
	t, _, err := parseWithFallbacks(s, f, loc)
	if err != nil {
		return Value{}, apperrors.New(apperrors.ErrorTypeParse, "timeutil", "parse", err)
	}
	return FromTime(t, loc), nil
}

// MustParse is Parse that panics on error. Intended for constants and tests.
func MustParse(s string, loc *time.Location, format ...string) Value {
	v, err := Parse(s, loc, format...)
	if err != nil {
		panic(err)
	}
	return v
}

func orUTC(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}

func (v Value) checkRange() Value {
	if v.err == nil && (v.t.Year() < minYear || v.t.Year() > maxYear) {
		v.err = fmt.Errorf("%w: year %d is outside %d..%d", apperrors.ErrOutOfRange, v.t.Year(), minYear, maxYear)
	}
	return v
}

func (v Value) apply(fn func(time.Time) time.Time) Value {
	if v.err != nil {
		return v
	}
	return Value{t: fn(v.t)}.checkRange()
}

// Err returns the first error raised by the chain that produced v.
func (v Value) Err() error { return v.err }

// In returns the same instant displayed in loc.
func (v Value) In(loc *time.Location) Value {
	return v.apply(func(t time.Time) time.Time { return t.In(orUTC(loc)) })
}

// Location returns the display zone.
func (v Value) Location() *time.Location { return v.t.Location() }

// Time returns the underlying time in the display zone.
func (v Value) Time() time.Time { return v.t }

// Unix returns seconds since the epoch with microsecond fraction.
func (v Value) Unix() float64 {
	return float64(v.t.Unix()) + float64(v.t.Nanosecond()/1000)/1e6
}

// Format renders v with a strftime format, DefaultFormat when omitted.
func (v Value) Format(format ...string) string {
	f := DefaultFormat
	if len(format) > 0 && format[0] != "" {
		f = format[0]
	}
	return Strftime(v.t, f)
}

func (v Value) String() string { return v.Format() }

// Date returns the calendar fields in the display zone.
func (v Value) Date() (year, month, day, hour, minute, second, microsecond int) {
	return v.t.Year(), int(v.t.Month()), v.t.Day(), v.t.Hour(), v.t.Minute(), v.t.Second(), v.t.Nanosecond() / 1000
}

func (v Value) Year() int        { return v.t.Year() }
func (v Value) Month() int       { return int(v.t.Month()) }
func (v Value) Day() int         { return v.t.Day() }
func (v Value) Hour() int        { return v.t.Hour() }
func (v Value) Minute() int      { return v.t.Minute() }
func (v Value) Second() int      { return v.t.Second() }
func (v Value) Microsecond() int { return v.t.Nanosecond() / 1000 }

// Weekday returns 0 for Monday through 6 for Sunday.
func (v Value) Weekday() int { return mondayIndex(v.t.Weekday()) }

// WeekdayName returns the English day name.
func (v Value) WeekdayName() string { return weekdayNames[v.Weekday()] }

// Add shifts the instant by d.
func (v Value) Add(d time.Duration) Value {
	return v.apply(func(t time.Time) time.Time { return t.Add(d) })
}

// AddSeconds shifts the instant by a fractional number of seconds.
func (v Value) AddSeconds(seconds float64) Value {
	return v.Add(time.Duration(math.Round(seconds*1e6)) * time.Microsecond)
}

// AddDate applies each field in order: years, months, days, hours, minutes,
// seconds, microseconds. Years and months clamp to the last day of the
// target month, so Jan 31 plus one month is the end of February.
func (v Value) AddDate(years, months, days, hours, minutes, seconds, microseconds int) Value {
	return v.AddYears(years).
		AddMonths(months).
		AddDays(days).
		AddHours(hours).
		AddMinutes(minutes).
		Add(time.Duration(seconds)*time.Second + time.Duration(microseconds)*time.Microsecond)
}

func (v Value) AddYears(n int) Value {
	return v.addMonthsClamped(12 * n)
}

func (v Value) AddMonths(n int) Value {
	return v.addMonthsClamped(n)
}

func (v Value) addMonthsClamped(n int) Value {
	if n == 0 {
		return v
	}
	return v.apply(func(t time.Time) time.Time {
		y, m, d := t.Date()
		total := int(m) - 1 + n
		ty := y + floorDiv(total, 12)
		tm := time.Month(total - floorDiv(total, 12)*12 + 1)
		if last := daysIn(ty, tm); d > last {
			d = last
		}
		return time.Date(ty, tm, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	})
}

// AddDays moves the wall-clock date, which equals 24h steps in fixed zones.
func (v Value) AddDays(n int) Value {
	if n == 0 {
		return v
	}
	return v.apply(func(t time.Time) time.Time { return t.AddDate(0, 0, n) })
}

func (v Value) AddHours(n int) Value   { return v.Add(time.Duration(n) * time.Hour) }
func (v Value) AddMinutes(n int) Value { return v.Add(time.Duration(n) * time.Minute) }
func (v Value) AddMicroseconds(n int) Value {
	return v.Add(time.Duration(n) * time.Microsecond)
}

// MonthFirstDay returns midnight on the first day of v's month.
func (v Value) MonthFirstDay() Value {
	return v.apply(func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	})
}

// MonthLastDay returns midnight on the last day of v's month.
func (v Value) MonthLastDay() Value {
	return v.apply(func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), daysIn(t.Year(), t.Month()), 0, 0, 0, 0, t.Location())
	})
}

// YearFirstDay returns midnight on January 1st.
func (v Value) YearFirstDay() Value {
	return v.apply(func(t time.Time) time.Time {
		return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, t.Location())
	})
}

// YearLastDay returns midnight on December 31st.
func (v Value) YearLastDay() Value {
	return v.apply(func(t time.Time) time.Time {
		return time.Date(t.Year(), time.December, 31, 0, 0, 0, 0, t.Location())
	})
}

// RoundDays rounds to a multiple of n days measured from midnight in the
// display zone.
func (v Value) RoundDays(n float64, down bool) Value {
	if v.err != nil {
		return v
	}
	_, offset := v.t.Zone()
	return v.round(n*86400, down, int64(offset))
}

func (v Value) RoundHours(n float64, down bool) Value   { return v.round(n*3600, down, 0) }
func (v Value) RoundMinutes(n float64, down bool) Value { return v.round(n*60, down, 0) }
func (v Value) RoundSeconds(n float64, down bool) Value { return v.round(n, down, 0) }

// round snaps to a multiple of unit seconds counted from the Unix epoch.
// Rounding up leaves exact multiples unchanged. Nanoseconds are held in a
// big.Int because years 1..9999 do not fit an int64 nanosecond count.
func (v Value) round(unitSeconds float64, down bool, offsetSeconds int64) Value {
	if v.err != nil {
		return v
	}
	unit := int64(math.Round(unitSeconds * 1e9))
	if unit <= 0 {
		v.err = fmt.Errorf("%w: %v seconds", apperrors.ErrInvalidBase, unitSeconds)
		return v
	}
	return v.apply(func(t time.Time) time.Time {
		ns := new(big.Int).Mul(big.NewInt(t.Unix()+offsetSeconds), big.NewInt(int64(time.Second)))
		ns.Add(ns, big.NewInt(int64(t.Nanosecond())))
		u := big.NewInt(unit)
		rem := new(big.Int).Mod(ns, u)
		ns.Sub(ns, rem)
		if !down && rem.Sign() != 0 {
			ns.Add(ns, u)
		}
		sec, nsec := new(big.Int).DivMod(ns, big.NewInt(int64(time.Second)), new(big.Int))
		return time.Unix(sec.Int64()-offsetSeconds, nsec.Int64()).In(t.Location())
	})
}

// Before reports whether v is earlier than other.
func (v Value) Before(other Value) bool { return v.t.Before(other.t) }

// After reports whether v is later than other.
func (v Value) After(other Value) bool { return v.t.After(other.t) }

// Equal compares instants, ignoring the display zone.
func (v Value) Equal(other Value) bool { return v.t.Equal(other.t) }

// Compare returns -1, 0 or +1.
func (v Value) Compare(other Value) int { return v.t.Compare(other.t) }

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func floorDiv64(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
