// Package executor spawns the external process for a materialized
// command.Info, with stdout and stderr each captured to their own
// timestamped, independently-opened append-create log file, using
// exec.CommandContext for an arbitrary cmd/arg pair.
package executor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/yukimemi/spyrun/internal/command"
	spyrunerrors "github.com/yukimemi/spyrun/internal/errors"
)

// timestamp formats now as a YYYYMMDD_HHMMSSfff token.
func timestamp(now time.Time) string {
	return now.Format("20060102_150405") + fmt.Sprintf("%03d", now.Nanosecond()/1e6)
}

// Run spawns info's command, redirecting stdout and stderr to
// timestamped log files under info.Output, and blocks until the child
// exits. A non-zero exit status is reported through Result.Status, not
// as an error; only directory-creation, file-open, or spawn failures
// return an error (wrapped as errors.IO).
func Run(ctx context.Context, info command.Info) (command.Result, error) {
	ts := timestamp(time.Now())
	stdoutPath := filepath.Join(info.Output, fmt.Sprintf("%s_stdout_%s.log", info.Name, ts))
	stderrPath := filepath.Join(info.Output, fmt.Sprintf("%s_stderr_%s.log", info.Name, ts))

	if info.Output != "" {
		if err := os.MkdirAll(info.Output, 0o755); err != nil {
			return command.Result{}, spyrunerrors.IO("executor.Run", "create output dir", err)
		}
	}

	stdoutFile, err := os.OpenFile(stdoutPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return command.Result{}, spyrunerrors.IO("executor.Run", "open stdout log", err)
	}
	defer stdoutFile.Close()

	stderrFile, err := os.OpenFile(stderrPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return command.Result{}, spyrunerrors.IO("executor.Run", "open stderr log", err)
	}
	defer stderrFile.Close()

	cmd := exec.CommandContext(ctx, info.Cmd, info.Arg...)
	cmd.Stdout = stdoutFile
	cmd.Stderr = stderrFile

	runErr := cmd.Run()

	status := 0
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			status = exitErr.ExitCode()
		} else {
			return command.Result{}, spyrunerrors.IO("executor.Run", "spawn process", runErr)
		}
	}

	return command.Result{
		Status:     status,
		StdoutPath: stdoutPath,
		StderrPath: stderrPath,
		Skipped:    false,
	}, nil
}
