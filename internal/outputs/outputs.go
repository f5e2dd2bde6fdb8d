package outputs

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
)

// Output names exposed to the workflow
const (
	Markdown        = "markdown"
	IssuesTotal     = "issues-total"
	IssuesFixable   = "issues-fixable"
	IssuesUnfixable = "issues-unfixable"
)

// Setter publishes a named output value
type Setter interface {
	Set(name, value string) error
}

// GitHubOutput appends outputs to the file named by $GITHUB_OUTPUT
type GitHubOutput struct {
	Path string

	// NewDelimiter is overridable in tests
	NewDelimiter func() string
}

func (g GitHubOutput) Set(name, value string) error {
	entry, err := format(name, value, g.delimiter())
	if err != nil {
		return err
	}

	f, err := os.OpenFile(g.Path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("open GITHUB_OUTPUT: %w", err)
	}
	defer f.Close()

	if _, err := io.WriteString(f, entry); err != nil {
		return fmt.Errorf("write output %s: %w", name, err)
	}
	return nil
}

func (g GitHubOutput) delimiter() string {
	if g.NewDelimiter != nil {
		return g.NewDelimiter()
	}
	return NewDelimiter()
}

// WriterOutput prints outputs in the same format, e.g. to stdout outside Actions
type WriterOutput struct {
	W io.Writer
}

func (o WriterOutput) Set(name, value string) error {
	entry, err := format(name, value, NewDelimiter())
	if err != nil {
		return err
	}
	_, err = io.WriteString(o.W, entry)
	return err
}

// FromEnv selects the $GITHUB_OUTPUT file when set and falls back to fallback
func FromEnv(fallback io.Writer) Setter {
	if path := os.Getenv("GITHUB_OUTPUT"); path != "" {
		return GitHubOutput{Path: path}
	}
	return WriterOutput{W: fallback}
}

func NewDelimiter() string {
	return "ghadelimiter_" + uuid.NewString()
}

func format(name, value, delimiter string) (string, error) {
	if strings.Contains(name, delimiter) {
		return "", fmt.Errorf("unexpected input: name should not contain the delimiter %q", delimiter)
	}
	if strings.Contains(value, delimiter) {
		return "", fmt.Errorf("unexpected input: value should not contain the delimiter %q", delimiter)
	}
	return fmt.Sprintf("%s<<%s\n%s\n%s\n", name, delimiter, value, delimiter), nil
}
