package foundation

// Option holds a value that may be absent.
type Option[T any] struct {
	value   T
	present bool
}

func Some[T any](value T) Option[T] { return Option[T]{value: value, present: true} }
func None[T any]() Option[T]        { return Option[T]{} }

func (o Option[T]) IsSome() bool { return o.present }
func (o Option[T]) IsNone() bool { return !o.present }

// Unwrap returns the value and panics on None.
func (o Option[T]) Unwrap() T {
	if !o.present {
		panic("called Unwrap on None option")
	}
	return o.value
}

// UnwrapOr returns the value, or fallback on None.
func (o Option[T]) UnwrapOr(fallback T) T {
	if o.present {
		return o.value
	}
	return fallback
}
