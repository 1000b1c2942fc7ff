package timeutil

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/johnayoung/go-crypto-datautil/internal/errors"
)

// JST is the fixed +09:00 zone used by the exchange reports.
var JST = time.FixedZone("JST", 9*3600)

// Offset returns a fixed zone hours away from UTC. Fractional hours are
// allowed (for example 5.5 or -3.5).
func Offset(hours float64) *time.Location {
	seconds := int(math.Round(hours * 3600))
	if seconds == 0 {
		return time.UTC
	}
	return time.FixedZone("", seconds)
}

// ParseZone accepts "UTC", "JST", a signed hour offset such as "+9" or
// "-3.5", or an IANA zone name.
func ParseZone(s string) (*time.Location, error) {
	trimmed := strings.TrimSpace(s)
	switch strings.ToUpper(trimmed) {
	case "", "UTC", "Z":
		return time.UTC, nil
	case "JST":
		return JST, nil
	}
	if hours, err := strconv.ParseFloat(trimmed, 64); err == nil {
		if hours <= -24 || hours >= 24 {
			return nil, fmt.Errorf("%w: zone offset %s", apperrors.ErrOutOfRange, s)
		}
		return Offset(hours), nil
	}
	loc, err := time.LoadLocation(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: zone %q", apperrors.ErrParse, s)
	}
	return loc, nil
}
