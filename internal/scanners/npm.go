package scanners

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-version"
	"github.com/kballard/go-shellquote"
)

const (
	// DefaultCommand is the audit tool invocation without output flags
	DefaultCommand = "npm audit"

	// StderrTag prefixes the tool's diagnostics in debug logs
	StderrTag = "npm audit stderr: "

	// MinNpmVersion is the first npm release emitting audit report v2
	MinNpmVersion = ">= 7.0.0"
)

// NpmAudit runs `npm audit --json` and returns its JSON payload.
type NpmAudit struct {
	Runner  Runner
	Command []string
	Logger  *slog.Logger
}

// NewNpmAudit splits command (shell quoting rules) into the argv prefix.
func NewNpmAudit(runner Runner, command string, logger *slog.Logger) (*NpmAudit, error) {
	if strings.TrimSpace(command) == "" {
		command = DefaultCommand
	}
	argv, err := shellquote.Split(command)
	if err != nil {
		return nil, fmt.Errorf("invalid audit command %q: %w", command, err)
	}
	if len(argv) == 0 || argv[0] == "" {
		return nil, fmt.Errorf("invalid audit command %q", command)
	}
	return &NpmAudit{Runner: runner, Command: argv, Logger: logger}, nil
}

// Args returns the full argv for one run
func (a *NpmAudit) Args(fix bool) []string {
	args := a.command()
	args = append(args, "--json")
	if fix {
		args = append(args, "fix")
	}
	return args
}

// CommandLine is Args joined for display
func (a *NpmAudit) CommandLine(fix bool) string {
	return shellquote.Join(a.Args(fix)...)
}

// Run executes the audit in dir. Diagnostics are logged at debug level on
// every path; a failed run is returned as *ExecutionError.
func (a *NpmAudit) Run(ctx context.Context, dir string, fix bool) (string, error) {
	args := a.Args(fix)
	a.logger().Debug("running audit", "command", a.CommandLine(fix), "dir", dir)

	stdout, stderr, err := a.Runner.Run(ctx, dir, args[0], args[1:]...)
	if stderr != "" {
		a.logger().Debug(StderrTag + stderr)
	}
	if err != nil {
		return "", newExecutionError(a.CommandLine(fix), stderr, err)
	}
	return ExtractJSON(stdout), nil
}

// CheckVersion verifies that npm is new enough to emit audit report v2.
// It is a no-op when the configured tool is not npm.
func (a *NpmAudit) CheckVersion(ctx context.Context, dir string) error {
	tool := a.command()[0]
	if filepath.Base(tool) != "npm" {
		return nil
	}

	stdout, stderr, err := a.Runner.Run(ctx, dir, tool, "--version")
	if err != nil {
		return newExecutionError(shellquote.Join(tool, "--version"), stderr, err)
	}

	current, err := version.NewVersion(strings.TrimSpace(stdout))
	if err != nil {
		return fmt.Errorf("unrecognized npm version %q: %w", strings.TrimSpace(stdout), err)
	}
	constraint, err := version.NewConstraint(MinNpmVersion)
	if err != nil {
		return err
	}
	if !constraint.Check(current) {
		return fmt.Errorf("npm %s is not supported, need %s", current, MinNpmVersion)
	}
	a.logger().Debug("npm version", "version", current.String())
	return nil
}

// command returns a copy of the argv prefix, DefaultCommand when none is set
func (a *NpmAudit) command() []string {
	if len(a.Command) == 0 || a.Command[0] == "" {
		return strings.Fields(DefaultCommand)
	}
	return append([]string{}, a.Command...)
}

func (a *NpmAudit) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}

// ExtractJSON drops anything printed before the first '{', such as the
// package change lines npm writes in fix mode. Output without '{' is returned unchanged.
func ExtractJSON(output string) string {
	if i := strings.Index(output, "{"); i >= 0 {
		return output[i:]
	}
	return output
}
