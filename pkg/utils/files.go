package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yorozuya-cybersecurity/auditfix/internal/schema"
)

// PathEscapeError is returned when a configured path leaves the workspace
type PathEscapeError struct {
	Path      string
	Workspace string
}

func (e *PathEscapeError) Error() string {
	return "output path is outside of the workspace"
}

// ResolveInWorkspace resolves p against root and fails when the result is
// not root itself or below it. Absolute paths are kept as is.
func ResolveInWorkspace(root, p string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve workspace: %w", err)
	}

	resolved := p
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(absRoot, resolved)
	}
	resolved = filepath.Clean(resolved)

	rel, err := filepath.Rel(absRoot, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", &PathEscapeError{Path: resolved, Workspace: absRoot}
	}
	return resolved, nil
}

// WriteReport writes md verbatim to p inside the workspace root, creating
// or truncating the file. Nothing is written when p escapes the workspace.
func WriteReport(root, p, md string) (string, error) {
	file, err := ResolveInWorkspace(root, p)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}
	if err := os.WriteFile(file, []byte(md), 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return file, nil
}

// SaveResult writes the normalized audit result as indented JSON
func SaveResult(res schema.AuditResult, file string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}

	fh, err := os.Create(file)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", filepath.Base(file), err)
	}
	defer fh.Close()

	enc := json.NewEncoder(fh)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return "", fmt.Errorf("failed to encode results: %w", err)
	}

	return file, nil
}
