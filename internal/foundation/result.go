// Package foundation provides small generic containers shared by the
// processor registry and the documentation loader.
package foundation

import "fmt"

// Result is either a value or an error. The processor registry keeps one
// per graph node so failed creations stay addressable by handle.
type Result[T any, E error] struct {
	value T
	err   E
	isOk  bool
}

func Ok[T any, E error](value T) Result[T, E] { return Result[T, E]{value: value, isOk: true} }
func Err[T any, E error](err E) Result[T, E]  { return Result[T, E]{err: err} }

func (r Result[T, E]) IsOk() bool { return r.isOk }

// Unwrap returns the value and panics on an error result.
func (r Result[T, E]) Unwrap() T {
	if !r.isOk {
		panic(fmt.Sprintf("called Unwrap on Err result: %v", r.err))
	}
	return r.value
}

// UnwrapOr returns the value, or fallback on an error result.
func (r Result[T, E]) UnwrapOr(fallback T) T {
	if r.isOk {
		return r.value
	}
	return fallback
}

// UnwrapErr returns the error and panics on a successful result.
func (r Result[T, E]) UnwrapErr() E {
	if r.isOk {
		panic("called UnwrapErr on Ok result")
	}
	return r.err
}
