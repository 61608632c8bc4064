package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpyrunError_Error(t *testing.T) {
	cause := errors.New("boom")
	err := Template("command.materialize", "render failed", cause).WithSpy("logs")

	msg := err.Error()
	assert.Contains(t, msg, "spy=logs")
	assert.Contains(t, msg, "command.materialize")
	assert.Contains(t, msg, "render failed")
	assert.Contains(t, msg, "boom")
}

func TestSpyrunError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := IO("executor.exec", "spawn failed", cause)
	require.ErrorIs(t, err, cause)
}

func TestSpyrunError_IsMatchesKind(t *testing.T) {
	a := Config("config.load", "missing field", nil)
	b := &SpyrunError{Kind: KindConfig}
	assert.True(t, errors.Is(a, b))

	c := Watcher("spy.start", "setup failed", nil)
	assert.False(t, errors.Is(a, c))
}
