package executor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yukimemi/spyrun/internal/command"
)

func TestRun_CapturesStdoutAndStderr(t *testing.T) {
	dir := t.TempDir()
	info := command.Info{
		Name:   "echoer",
		Cmd:    "sh",
		Arg:    []string{"-c", "echo out; echo err 1>&2"},
		Output: dir,
	}

	result, err := Run(context.Background(), info)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Status)
	assert.False(t, result.Skipped)

	stdout, err := os.ReadFile(result.StdoutPath)
	require.NoError(t, err)
	assert.Equal(t, "out\n", string(stdout))

	stderr, err := os.ReadFile(result.StderrPath)
	require.NoError(t, err)
	assert.Equal(t, "err\n", string(stderr))
}

func TestRun_NonZeroExitIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	info := command.Info{
		Name:   "failer",
		Cmd:    "sh",
		Arg:    []string{"-c", "exit 7"},
		Output: dir,
	}

	result, err := Run(context.Background(), info)
	require.NoError(t, err)
	assert.Equal(t, 7, result.Status)
}

func TestRun_CreatesOutputDirIfMissing(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	info := command.Info{Name: "n", Cmd: "true", Output: dir}

	_, err := Run(context.Background(), info)
	require.NoError(t, err)

	fi, statErr := os.Stat(dir)
	require.NoError(t, statErr)
	assert.True(t, fi.IsDir())
}

func TestRun_SpawnFailureIsAnError(t *testing.T) {
	dir := t.TempDir()
	info := command.Info{Name: "n", Cmd: "spyrun-no-such-binary-xyz", Output: dir}

	_, err := Run(context.Background(), info)
	assert.Error(t, err)
}
