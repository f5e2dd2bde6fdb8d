package scanners

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
)

// Runner executes an external command in dir and captures both streams.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) (stdout, stderr string, err error)
}

// ExecRunner runs commands with os/exec
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, dir, name string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// ExecutionError is returned when the audit tool cannot be started or exits non-zero
type ExecutionError struct {
	Command  string
	Stderr   string
	ExitCode int
	Err      error
}

func (e *ExecutionError) Error() string {
	return e.Err.Error()
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

func newExecutionError(command, stderr string, err error) *ExecutionError {
	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	}
	if errors.Is(err, exec.ErrNotFound) {
		exitCode = 127
	}
	return &ExecutionError{Command: command, Stderr: stderr, ExitCode: exitCode, Err: err}
}
