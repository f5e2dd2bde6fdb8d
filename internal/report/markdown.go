package report

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/yorozuya-cybersecurity/auditfix/internal/schema"
)

const (
	title         = "# Audit report"
	criticalGlyph = "⚠️"
)

// Section is an immutable block of report lines
type Section struct {
	lines []string
}

// NewSection copies lines into a new section
func NewSection(lines ...string) Section {
	return Section{lines: append([]string{}, lines...)}
}

// Lines returns a copy of the section's lines
func (s Section) Lines() []string {
	return append([]string{}, s.lines...)
}

func (s Section) String() string {
	return strings.Join(s.lines, "\n")
}

// Fold joins sections with a blank line between each
func Fold(sections []Section) string {
	parts := make([]string, len(sections))
	for i, s := range sections {
		parts[i] = s.String()
	}
	return strings.Join(parts, "\n\n")
}

// Markdown renders the audit report and logs how many issues are fixable.
func Markdown(logger *slog.Logger, res schema.AuditResult) string {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info(fmt.Sprintf("Found %d fixable issues", len(res.Fixable())))
	return Fold(Sections(res))
}

// Sections returns the report blocks in output order
func Sections(res schema.AuditResult) []Section {
	fixable := res.Fixable()
	total := res.Vulnerabilities.Len()

	if len(fixable) == 0 {
		return []Section{NewSection(title, fmt.Sprintf("No fixable problems found (%d unfixable)", total))}
	}

	sections := []Section{
		NewSection(title),
		SummarySection(len(fixable), total),
		DependenciesSection(fixable),
		NewSection("## Fixed vulnerabilities"),
	}
	for _, v := range fixable {
		sections = append(sections, VulnerabilitySection(v))
	}
	return sections
}

// SummarySection states how many of the findings the fix resolves
func SummarySection(fixable, total int) Section {
	return NewSection(fmt.Sprintf("This audit fix resolves %d of the total %d vulnerabilities found in your project.", fixable, total))
}

// DependenciesSection links every updated package to its details
func DependenciesSection(fixable []schema.Vulnerability) Section {
	lines := []string{"## Updated dependencies"}
	for _, v := range fixable {
		lines = append(lines, "* "+link(v.Name))
	}
	return NewSection(lines...)
}

// VulnerabilitySection describes one fixed vulnerability. The first advisory
// in via is shown; without one, the causing packages are linked instead.
func VulnerabilitySection(v schema.Vulnerability) Section {
	lines := []string{fmt.Sprintf(`### <a id="%s"></a>%s`, Anchor(v.Name), link(v.Name))}

	if reports := v.Reports(); len(reports) > 0 {
		r := reports[0]
		lines = append(lines,
			"* "+r.Title,
			"  * Severity: "+severity(r),
			fmt.Sprintf("  * Reference: [%s](%s)", r.URL, r.URL),
		)
	} else {
		lines = append(lines, "* Caused by vulnerable dependency:")
		for _, name := range v.Causes() {
			lines = append(lines, "  * "+link(name))
		}
	}

	lines = append(lines, "* Affected versions: "+v.Range, "* Package usage:")
	for _, node := range v.Nodes {
		lines = append(lines, "  * `"+node+"`")
	}
	return NewSection(lines...)
}

// link points at name's anchor. Backslashes are escapes in a Markdown link
// destination, so they are doubled to render the same fragment as the raw id.
// Anchors with a space (escaped leading digits) need the <...> form.
func link(name string) string {
	dest := "#" + strings.ReplaceAll(Anchor(name), `\`, `\\`)
	if strings.Contains(dest, " ") {
		dest = "<" + dest + ">"
	}
	return fmt.Sprintf("[%s](%s)", name, dest)
}

func severity(r schema.VulnerabilityReport) string {
	s := "**" + r.Severity.String() + "**"
	if r.Severity == schema.SeverityCritical {
		s += " " + criticalGlyph
	}
	if r.CVSS.HasScore() {
		s += " (CVSS " + strconv.FormatFloat(r.CVSS.Score, 'f', -1, 64) + ")"
	}
	return s
}
