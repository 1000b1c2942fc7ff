package timeutil

import (
	"fmt"
	"math"
	"time"

	apperrors "github.com/johnayoung/go-crypto-datautil/internal/errors"
)

// Number is the set of value types RoundDown and RoundUp accept.
type Number interface {
	int | int64 | float64
}

func checkBase(base int) error {
	if base < 1 {
		return fmt.Errorf("%w: got %d", apperrors.ErrInvalidBase, base)
	}
	return nil
}

// RoundDown returns the largest multiple of base that is <= v.
func RoundDown[T Number](v T, base int) (T, error) {
	if err := checkBase(base); err != nil {
		return v, err
	}
	return roundNumber(v, base, true), nil
}

// RoundUp returns the smallest multiple of base that is >= v, so an exact
// multiple is returned unchanged.
func RoundUp[T Number](v T, base int) (T, error) {
	if err := checkBase(base); err != nil {
		return v, err
	}
	return roundNumber(v, base, false), nil
}

// RoundDownAll applies RoundDown to every element.
func RoundDownAll[T Number](values []T, base int) ([]T, error) {
	return roundAll(values, base, true)
}

// RoundUpAll applies RoundUp to every element.
func RoundUpAll[T Number](values []T, base int) ([]T, error) {
	return roundAll(values, base, false)
}

func roundAll[T Number](values []T, base int, down bool) ([]T, error) {
	if err := checkBase(base); err != nil {
		return nil, err
	}
	out := make([]T, len(values))
	for i, v := range values {
		out[i] = roundNumber(v, base, down)
	}
	return out, nil
}

func roundNumber[T Number](v T, base int, down bool) T {
	switch x := any(v).(type) {
	case float64:
		b := float64(base)
		if down {
			return T(math.Floor(x/b) * b)
		}
		return T(math.Ceil(x/b) * b)
	case int64:
		r := floorDiv64(x, int64(base)) * int64(base)
		if !down && r != x {
			r += int64(base)
		}
		return T(r)
	case int:
		r := floorDiv(x, base) * base
		if !down && r != x {
			r += base
		}
		return T(r)
	}
	return v
}

// RoundTime rounds t to a multiple of base seconds since the epoch, keeping t's location.
func RoundTime(t time.Time, base int, down bool) (time.Time, error) {
	if err := checkBase(base); err != nil {
		return t, err
	}
	sec := roundNumber(t.Unix(), base, down)
	if !down && sec == t.Unix() && t.Nanosecond() > 0 {
		sec += int64(base)
	}
	return time.Unix(sec, 0).In(t.Location()), nil
}
