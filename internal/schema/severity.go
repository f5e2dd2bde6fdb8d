package schema

import (
	"fmt"
	"strings"
)

// Severity is an advisory severity as reported by npm, kept verbatim
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityModerate Severity = "moderate"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank returns an integer rank for comparison (Info=1, Critical=5, unknown=0).
// Spelling variants accepted by ParseSeverity rank like their canonical value.
func (s Severity) Rank() int {
	canonical, err := ParseSeverity(string(s))
	if err != nil {
		return 0
	}
	switch canonical {
	case SeverityInfo:
		return 1
	case SeverityLow:
		return 2
	case SeverityModerate:
		return 3
	case SeverityHigh:
		return 4
	default:
		return 5
	}
}

func (s Severity) String() string {
	return string(s)
}

// ParseSeverity parses a severity string case-insensitively.
// Accepts "medium" as "moderate".
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "info":
		return SeverityInfo, nil
	case "low":
		return SeverityLow, nil
	case "moderate", "medium":
		return SeverityModerate, nil
	case "high":
		return SeverityHigh, nil
	case "critical":
		return SeverityCritical, nil
	default:
		return "", fmt.Errorf("invalid severity: %s", s)
	}
}

