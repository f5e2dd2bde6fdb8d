package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/yorozuya-cybersecurity/auditfix/internal/schema"
)

var (
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	pink   = color.New(color.FgMagenta).SprintFunc()
)

// WriteSummaryTable prints counts and one row per vulnerability to w
func WriteSummaryTable(w io.Writer, res schema.AuditResult) {
	counts := res.Counts()
	bySeverity := map[schema.Severity]int{}
	for _, v := range res.Vulnerabilities.All() {
		bySeverity[canonical(v.Severity)]++
	}

	fmt.Fprintf(w, "\nDetected %s vulnerabilities (%s fixable, %s unfixable) | "+
		"Critical: %s High: %s Moderate: %s Low: %s\n\n",
		yellow(counts.Total), green(counts.Fixable), red(counts.Unfixable),
		red(bySeverity[schema.SeverityCritical]),
		pink(bySeverity[schema.SeverityHigh]),
		yellow(bySeverity[schema.SeverityModerate]),
		green(bySeverity[schema.SeverityLow]))

	if counts.Total == 0 {
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Package", "Severity", "Direct", "Fix", "Range"})
	table.SetAutoWrapText(false)

	// most severe first, mapping order within a severity
	rows := res.Vulnerabilities.All()
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Severity.Rank() > rows[j].Severity.Rank()
	})

	for i, v := range rows {
		table.Append([]string{
			strconv.Itoa(i + 1), v.Name, colorSeverity(v.Severity),
			strconv.FormatBool(v.IsDirect), fixLabel(v.FixAvailable), v.Range,
		})
	}

	table.Render()
}

// canonical folds spelling variants ("HIGH", "medium") for counting and coloring
func canonical(s schema.Severity) schema.Severity {
	if c, err := schema.ParseSeverity(s.String()); err == nil {
		return c
	}
	return s
}

func colorSeverity(s schema.Severity) string {
	switch canonical(s) {
	case schema.SeverityCritical:
		return red(s.String())
	case schema.SeverityHigh:
		return pink(s.String())
	case schema.SeverityModerate:
		return yellow(s.String())
	case schema.SeverityLow:
		return green(s.String())
	default:
		return s.String()
	}
}

func fixLabel(f schema.FixAvailable) string {
	switch {
	case f.Target != nil:
		label := f.Target.Name + "@" + f.Target.Version
		if f.Target.IsSemVerMajor {
			label += " (major)"
		}
		return label
	case f.Enabled:
		return "yes"
	default:
		return "no"
	}
}

// RenderTerminal formats the Markdown report for a terminal
func RenderTerminal(md string, width int) (string, error) {
	if width <= 0 {
		width = 80
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("terminal renderer: %w", err)
	}
	out, err := renderer.Render(md)
	if err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return strings.TrimRight(out, "\n") + "\n", nil
}
