package foundation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOption(t *testing.T) {
	some := Some("book")
	assert.True(t, some.IsSome())
	assert.Equal(t, "book", some.Unwrap())

	none := None[string]()
	assert.True(t, none.IsNone())
	assert.Equal(t, "fallback", none.UnwrapOr("fallback"))
	assert.Panics(t, func() { none.Unwrap() })
}

func TestResult(t *testing.T) {
	ok := Ok[int, error](3)
	assert.True(t, ok.IsOk())
	assert.Equal(t, 3, ok.Unwrap())
	assert.Panics(t, func() { ok.UnwrapErr() })

	boom := errors.New("boom")
	failed := Err[int](boom)
	assert.False(t, failed.IsOk())
	assert.Equal(t, 7, failed.UnwrapOr(7))
	assert.Same(t, boom, failed.UnwrapErr())
	assert.Panics(t, func() { failed.Unwrap() })
}
