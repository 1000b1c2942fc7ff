package timeutil

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/johnayoung/go-crypto-datautil/internal/errors"
)

// DefaultFormat is the ISO-8601 layout used when no format is supplied.
const DefaultFormat = "%Y-%m-%dT%H:%M:%S.%fZ"

var (
	monthNames = []string{"January", "February", "March", "April", "May", "June",
		"July", "August", "September", "October", "November", "December"}
	// Monday first, matching Value.Weekday
	weekdayNames = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}
)

// Strftime formats t using C-style directives:
// %Y %y %m %d %H %I %M %S %f %p %z %Z %j %a %A %b %B %%.
// Unknown directives are copied through unchanged.
func Strftime(t time.Time, format string) string {
	var b strings.Builder
	b.Grow(len(format) + 8)

	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' || i+1 >= len(format) {
			b.WriteByte(c)
			continue
		}
		i++
		switch format[i] {
		case 'Y':
			fmt.Fprintf(&b, "%04d", t.Year())
		case 'y':
			fmt.Fprintf(&b, "%02d", t.Year()%100)
		case 'm':
			fmt.Fprintf(&b, "%02d", int(t.Month()))
		case 'd':
			fmt.Fprintf(&b, "%02d", t.Day())
		case 'H':
			fmt.Fprintf(&b, "%02d", t.Hour())
		case 'I':
			h := t.Hour() % 12
			if h == 0 {
				h = 12
			}
			fmt.Fprintf(&b, "%02d", h)
		case 'M':
			fmt.Fprintf(&b, "%02d", t.Minute())
		case 'S':
			fmt.Fprintf(&b, "%02d", t.Second())
		case 'f':
			fmt.Fprintf(&b, "%06d", t.Nanosecond()/1000)
		case 'p':
			if t.Hour() < 12 {
				b.WriteString("AM")
			} else {
				b.WriteString("PM")
			}
		case 'z':
			_, off := t.Zone()
			b.WriteString(formatOffset(off))
		case 'Z':
			name, off := t.Zone()
			if name == "" {
				name = "UTC" + formatOffset(off)
			}
			b.WriteString(name)
		case 'j':
			fmt.Fprintf(&b, "%03d", t.YearDay())
		case 'a':
			b.WriteString(weekdayNames[mondayIndex(t.Weekday())][:3])
		case 'A':
			b.WriteString(weekdayNames[mondayIndex(t.Weekday())])
		case 'b':
			b.WriteString(monthNames[t.Month()-1][:3])
		case 'B':
			b.WriteString(monthNames[t.Month()-1])
		case '%':
			b.WriteByte('%')
		default:
			b.WriteByte('%')
			b.WriteByte(format[i])
		}
	}
	return b.String()
}

func formatOffset(seconds int) string {
	sign := '+'
	if seconds < 0 {
		sign = '-'
		seconds = -seconds
	}
	return fmt.Sprintf("%c%02d%02d", sign, seconds/3600, (seconds%3600)/60)
}

func mondayIndex(w time.Weekday) int {
	return (int(w) + 6) % 7
}

// parsed holds the fields collected by Strptime before the time is assembled.
type parsed struct {
	year, month, day      int
	hour, minute, second  int
	micro                 int
	yday                  int
	pm, hasPM, twelveHour bool
	offset                int
	hasOffset             bool
}

// Strptime parses s against a C-style format. Fields missing from the format
// default to 1900-01-01 00:00:00. Strings without %z are read in loc; the
// second return value reports whether an explicit offset was present.
// The whole input must be consumed.
func Strptime(s, format string, loc *time.Location) (time.Time, bool, error) {
	if loc == nil {
		loc = time.UTC
	}
	p := parsed{year: 1900, month: 1, day: 1}
	si := 0

	fail := func(reason string) (time.Time, bool, error) {
		return time.Time{}, false, fmt.Errorf("%w: %q does not match %q: %s", apperrors.ErrParse, s, format, reason)
	}

	for fi := 0; fi < len(format); fi++ {
		c := format[fi]
		if c != '%' || fi+1 >= len(format) {
			if si >= len(s) || s[si] != c {
				return fail(fmt.Sprintf("expected %q at position %d", c, si))
			}
			si++
			continue
		}
		fi++
		var (
			n   int
			ok  bool
			err string
		)
		switch format[fi] {
		case 'Y':
			n, si, ok = readInt(s, si, 4, 4)
			p.year = n
		case 'y':
			n, si, ok = readInt(s, si, 2, 2)
			if n < 69 {
				p.year = 2000 + n
			} else {
				p.year = 1900 + n
			}
		case 'm':
			n, si, ok = readInt(s, si, 1, 2)
			p.month = n
		case 'd':
			n, si, ok = readInt(s, si, 1, 2)
			p.day = n
		case 'H':
			n, si, ok = readInt(s, si, 1, 2)
			p.hour = n
		case 'I':
			n, si, ok = readInt(s, si, 1, 2)
			p.hour = n
			p.twelveHour = true
		case 'M':
			n, si, ok = readInt(s, si, 1, 2)
			p.minute = n
		case 'S':
			n, si, ok = readInt(s, si, 1, 2)
			p.second = n
		case 'j':
			n, si, ok = readInt(s, si, 1, 3)
			p.yday = n
		case 'f':
			start := si
			n, si, ok = readInt(s, si, 1, 6)
			for digits := si - start; ok && digits < 6; digits++ {
				n *= 10
			}
			p.micro = n
		case 'p':
			ok = si+2 <= len(s)
			if ok {
				switch strings.ToUpper(s[si : si+2]) {
				case "AM":
					p.hasPM, p.pm = true, false
				case "PM":
					p.hasPM, p.pm = true, true
				default:
					ok = false
				}
				si += 2
			}
		case 'z':
			p.offset, si, ok = readOffset(s, si)
			p.hasOffset = ok
		case 'b', 'B':
			n, si, ok = readName(s, si, monthNames, format[fi] == 'B')
			p.month = n + 1
		case 'a', 'A':
			_, si, ok = readName(s, si, weekdayNames, format[fi] == 'A')
		case '%':
			ok = si < len(s) && s[si] == '%'
			si++
		default:
			err = "unsupported directive %" + string(format[fi])
		}
		if err != "" {
			return fail(err)
		}
		if !ok {
			return fail(fmt.Sprintf("bad value for %%%c", format[fi]))
		}
	}
	if si != len(s) {
		return fail("unconverted data remains: " + s[si:])
	}

	if p.twelveHour {
		if p.hour < 1 || p.hour > 12 {
			return fail("hour out of range")
		}
		p.hour %= 12
		if p.pm {
			p.hour += 12
		}
	}

	if p.month < 1 || p.month > 12 || p.hour > 23 || p.minute > 59 || p.second > 61 {
		return fail("field out of range")
	}
	if p.day < 1 || p.day > daysIn(p.year, time.Month(p.month)) {
		return fail("day is out of range for month")
	}

	if p.hasOffset {
		loc = fixedZone(p.offset)
	}
	t := time.Date(p.year, time.Month(p.month), p.day, p.hour, p.minute, p.second, p.micro*1000, loc)
	if p.yday > 0 {
		if p.yday > 366 {
			return fail("day of year out of range")
		}
		t = time.Date(p.year, 1, p.yday, p.hour, p.minute, p.second, p.micro*1000, loc)
	}
	return t, p.hasOffset, nil
}

func readInt(s string, pos, minDigits, maxDigits int) (int, int, bool) {
	end := pos
	for end < len(s) && end-pos < maxDigits && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end-pos < minDigits {
		return 0, pos, false
	}
	n, err := strconv.Atoi(s[pos:end])
	if err != nil {
		return 0, pos, false
	}
	return n, end, true
}

// readOffset accepts Z, ±HH, ±HHMM and ±HH:MM.
func readOffset(s string, pos int) (int, int, bool) {
	if pos < len(s) && s[pos] == 'Z' {
		return 0, pos + 1, true
	}
	if pos >= len(s) || (s[pos] != '+' && s[pos] != '-') {
		return 0, pos, false
	}
	sign := 1
	if s[pos] == '-' {
		sign = -1
	}
	hh, next, ok := readInt(s, pos+1, 2, 2)
	if !ok {
		return 0, pos, false
	}
	mm := 0
	if next < len(s) && s[next] == ':' {
		next++
	}
	if m, after, ok := readInt(s, next, 2, 2); ok {
		mm, next = m, after
	}
	if hh > 23 || mm > 59 {
		return 0, pos, false
	}
	return sign * (hh*3600 + mm*60), next, true
}

func readName(s string, pos int, names []string, full bool) (int, int, bool) {
	rest := strings.ToLower(s[pos:])
	for i, name := range names {
		candidate := strings.ToLower(name)
		if !full {
			candidate = candidate[:3]
		}
		if strings.HasPrefix(rest, candidate) {
			return i, pos + len(candidate), true
		}
	}
	return 0, pos, false
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func fixedZone(offsetSeconds int) *time.Location {
	if offsetSeconds == 0 {
		return time.UTC
	}
	return time.FixedZone("", offsetSeconds)
}
