package timeutil

// Result holds either a converted value or the reason the conversion failed.
// It replaces zero and nil sentinels, so the Unix epoch is distinguishable
// from "no value".
type Result[T any] struct {
	value T
	err   error
}

// Ok wraps a successful value.
func Ok[T any](v T) Result[T] {
	return Result[T]{value: v}
}

// Fail wraps a conversion error.
func Fail[T any](err error) Result[T] {
	return Result[T]{err: err}
}

// OK reports whether the conversion succeeded.
func (r Result[T]) OK() bool { return r.err == nil }

// Value returns the converted value, or the zero value on failure.
func (r Result[T]) Value() T { return r.value }

// Err returns the conversion error.
func (r Result[T]) Err() error { return r.err }

// Get returns the value and error together.
func (r Result[T]) Get() (T, error) { return r.value, r.err }

// Or returns the value, or fallback on failure.
func (r Result[T]) Or(fallback T) T {
	if r.err != nil {
		return fallback
	}
	return r.value
}
