package sandbox

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// RunSpec describes one isolated script execution. WorkDir is a
// per-run directory that is never shared between concurrent runs.
type RunSpec struct {
	WorkDir    string
	ScriptPath string
	// Command is the runner invocation; occurrences of {script} are
	// replaced with ScriptPath.
	Command []string
	Timeout time.Duration
	Env     []string
}

// RunResult is always returned when the runner could be launched, even on
// nonzero exit or timeout. Only launch failures produce an error.
type RunResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool
	Duration time.Duration
}

// Sandbox executes a test script in isolation with a hard wall-clock
// timeout.
type Sandbox interface {
	Run(ctx context.Context, spec RunSpec) (*RunResult, error)
}

// expandCommand substitutes the script path into the runner command.
func expandCommand(command []string, scriptPath string) ([]string, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("runner command is empty")
	}
	out := make([]string, len(command))
	for i, arg := range command {
		out[i] = strings.ReplaceAll(arg, "{script}", scriptPath)
	}
	return out, nil
}
