package logging

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveLevel_FallsBackWhenUnset(t *testing.T) {
	t.Setenv("SPYRUN_LOG_TEST_UNSET", "")
	assert.Equal(t, LevelWarn, ResolveLevel("SPYRUN_LOG_TEST_DOES_NOT_EXIST", LevelWarn))
}

func TestResolveLevel_OverridesWhenSet(t *testing.T) {
	t.Setenv("SPYRUN_LOG_TEST_LEVEL", "debug")
	assert.Equal(t, LevelDebug, ResolveLevel("SPYRUN_LOG_TEST_LEVEL", LevelError))
}

func TestMultiLogger_WritesToEveryLogger(t *testing.T) {
	var a, b bytes.Buffer
	logger := NewMultiLogger(
		New(Config{Level: LevelInfo, Output: &a}),
		New(Config{Level: LevelInfo, Output: &b}),
	)

	logger.Info(context.Background(), "fan out")

	assert.Contains(t, a.String(), "fan out")
	assert.Contains(t, b.String(), "fan out")
}

func TestMultiLogger_IndependentLevelFiltering(t *testing.T) {
	var quiet, verbose bytes.Buffer
	logger := NewMultiLogger(
		New(Config{Level: LevelError, Output: &quiet}),
		New(Config{Level: LevelDebug, Output: &verbose}),
	)

	logger.Info(context.Background(), "only verbose should see this")

	assert.Empty(t, quiet.String())
	assert.Contains(t, verbose.String(), "only verbose should see this")
}

func TestMultiLogger_WithComponentAppliesToAll(t *testing.T) {
	var a, b bytes.Buffer
	logger := NewMultiLogger(
		New(Config{Level: LevelInfo, Output: &a}),
		New(Config{Level: LevelInfo, Output: &b}),
	).WithComponent("supervisor")

	logger.Info(context.Background(), "tagged")

	assert.Contains(t, a.String(), "supervisor")
	assert.Contains(t, b.String(), "supervisor")
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelWarn, Output: &buf})

	logger.Info(context.Background(), "should not appear")
	assert.Empty(t, buf.String())

	logger.Warn(context.Background(), nil, "should appear")
	assert.Contains(t, buf.String(), "should appear")
}

func TestLogger_WithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelInfo, Output: &buf}).WithComponent("spy:logs")

	logger.Info(context.Background(), "hello")
	assert.Contains(t, buf.String(), "spy:logs")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LevelWarn, ParseLevel("warn"))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelInfo, ParseLevel("nonsense"))
}

func TestNewFileLogger_RotatesOnSwitch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "spyrun.log")

	logger, closer, err := NewFileLogger(FileConfig{Path: path, Level: LevelInfo})
	require.NoError(t, err)
	logger.Info(context.Background(), "first run")
	require.NoError(t, closer.Close())

	logger2, closer2, err := NewFileLogger(FileConfig{Path: path, Level: LevelInfo, Switch: true})
	require.NoError(t, err)
	logger2.Info(context.Background(), "second run")
	require.NoError(t, closer2.Close())

	matches, err := filepath.Glob(filepath.Join(dir, "spyrun-*.log"))
	require.NoError(t, err)
	assert.NotEmpty(t, matches, "expected a rotated backup file")
}
