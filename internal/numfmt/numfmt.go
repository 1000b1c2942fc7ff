// Package numfmt renders numbers for the fixed-layout text reports: rounded
// through decimal, grouped by thousands, with an optional explicit sign.
package numfmt

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Round rounds v half away from zero to places digits and returns the
// shortest decimal form, so 1.50 with places 2 prints as "1.5".
func Round(v float64, places int32) string {
	if s, ok := special(v, false); ok {
		return s
	}
	return decimal.NewFromFloat(v).Round(places).String()
}

// Fixed rounds v to exactly places digits, padding with zeros.
func Fixed(v float64, places int32) string {
	if s, ok := special(v, false); ok {
		return s
	}
	return decimal.NewFromFloat(v).StringFixed(places)
}

// Grouped is Round with thousands separators.
func Grouped(v float64, places int32) string {
	if s, ok := special(v, false); ok {
		return s
	}
	return group(decimal.NewFromFloat(v).Round(places).String())
}

// Signed is Grouped with a leading + for non-negative values.
func Signed(v float64, places int32) string {
	if s, ok := special(v, true); ok {
		return s
	}
	s := group(decimal.NewFromFloat(v).Round(places).String())
	if !strings.HasPrefix(s, "-") {
		s = "+" + s
	}
	return s
}

// GroupedFixed is Fixed with thousands separators.
func GroupedFixed(v float64, places int32) string {
	if s, ok := special(v, false); ok {
		return s
	}
	return group(decimal.NewFromFloat(v).StringFixed(places))
}

// SignedFixed is GroupedFixed with a leading + for non-negative values.
func SignedFixed(v float64, places int32) string {
	if s, ok := special(v, true); ok {
		return s
	}
	s := GroupedFixed(v, places)
	if !strings.HasPrefix(s, "-") {
		s = "+" + s
	}
	return s
}

// Percent renders a ratio as a percentage with places digits, so 0.2 is "20.00%".
func Percent(ratio float64, places int32) string {
	if s, ok := special(ratio, false); ok {
		return s
	}
	return decimal.NewFromFloat(ratio).Mul(decimal.NewFromInt(100)).StringFixed(places) + "%"
}

func special(v float64, signed bool) (string, bool) {
	switch {
	case math.IsNaN(v):
		return "nan", true
	case math.IsInf(v, 1):
		if signed {
			return "+inf", true
		}
		return "inf", true
	case math.IsInf(v, -1):
		return "-inf", true
	}
	return "", false
}

// group inserts commas into the integer part of a plain decimal string.
func group(s string) string {
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteString(frac)
	return b.String()
}

// GroupedPoint is Grouped but always keeps a fractional part, so 1220 with
// any places prints as "1,220.0".
func GroupedPoint(v float64, places int32) string {
	return point(Grouped(v, places))
}

// SignedPoint is Signed but always keeps a fractional part.
func SignedPoint(v float64, places int32) string {
	return point(Signed(v, places))
}

// SignedPercent is Percent with a leading + for non-negative ratios.
func SignedPercent(ratio float64, places int32) string {
	s := Percent(ratio, places)
	if !strings.HasPrefix(s, "-") && s != "nan" {
		s = "+" + s
	}
	return s
}

func point(s string) string {
	if strings.ContainsAny(s, ".na") {
		return s
	}
	return s + ".0"
}
