package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecoverAsError(t *testing.T) {
	t.Run("recovers from panic", func(t *testing.T) {
		fn := func() (err error) {
			defer RecoverAsError(&err)
			panic("test panic")
		}

		err := fn()
		require.Error(t, err)

		var panicErr *PanicError
		require.True(t, errors.As(err, &panicErr))
		assert.Equal(t, "test panic", panicErr.Value)
		assert.NotEmpty(t, panicErr.StackTrace)
	})

	t.Run("no error when no panic", func(t *testing.T) {
		fn := func() (err error) {
			defer RecoverAsError(&err)
			return nil
		}
		assert.NoError(t, fn())
	})
}

func TestCatchPanic(t *testing.T) {
	sentinel := errors.New("boom")

	assert.NoError(t, CatchPanic(func() error { return nil }))
	assert.ErrorIs(t, CatchPanic(func() error { return sentinel }), sentinel)

	err := CatchPanic(func() error {
		var m map[string]int
		m["x"] = 1
		return nil
	})
	var panicErr *PanicError
	assert.ErrorAs(t, err, &panicErr)

	err = CatchPanic(func() error { panic(sentinel) })
	assert.ErrorIs(t, err, sentinel, "panic(err) unwraps to err")
}
