package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// LocalSandbox runs the test runner as a subprocess in the per-run working
// directory. Isolation comes from the directory, not a container; use
// DockerSandbox when the host must be protected from the script.
type LocalSandbox struct{}

func NewLocalSandbox() *LocalSandbox {
	return &LocalSandbox{}
}

func (s *LocalSandbox) Run(ctx context.Context, spec RunSpec) (*RunResult, error) {
	command, err := expandCommand(spec.Command, spec.ScriptPath)
	if err != nil {
		return nil, err
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if spec.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, command[0], command[1:]...)
	cmd.Dir = spec.WorkDir
	cmd.Env = append(os.Environ(), spec.Env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	started := time.Now()
	err = cmd.Run()
	result := &RunResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(started),
		TimedOut: errors.Is(runCtx.Err(), context.DeadlineExceeded),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// Runner ran and failed; the exit code is the signal,
			// not the error.
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		if result.TimedOut {
			result.ExitCode = -1
			return result, nil
		}
		return nil, fmt.Errorf("failed to launch runner: %w", err)
	}
	return result, nil
}
