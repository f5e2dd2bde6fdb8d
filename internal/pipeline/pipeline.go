package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/yorozuya-cybersecurity/auditfix/internal/outputs"
	"github.com/yorozuya-cybersecurity/auditfix/internal/report"
	"github.com/yorozuya-cybersecurity/auditfix/internal/schema"
	"github.com/yorozuya-cybersecurity/auditfix/pkg/utils"
)

// Scanner runs the audit tool and returns its JSON output
type Scanner interface {
	Run(ctx context.Context, dir string, fix bool) (string, error)
	CheckVersion(ctx context.Context, dir string) error
}

type Options struct {
	Fix              bool
	WorkingDirectory string
	Workspace        string
	OutputPath       string
	JSONOutputPath   string
	CheckVersion     bool
}

// Result is what one run produced
type Result struct {
	Audit      schema.AuditResult
	Envelope   *schema.FixEnvelope
	Counts     schema.Counts
	Markdown   string
	ReportFile string
	JSONFile   string
}

type Pipeline struct {
	Scanner Scanner
	Outputs outputs.Setter
	Logger  *slog.Logger
}

// Run audits opts.WorkingDirectory, publishes the outputs and writes the
// report files. The first failing step ends the run; outputs that were not
// reached stay unset.
func (p *Pipeline) Run(ctx context.Context, opts Options) (Result, error) {
	var res Result
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if opts.CheckVersion {
		if err := p.Scanner.CheckVersion(ctx, opts.WorkingDirectory); err != nil {
			return res, err
		}
	}

	raw, err := p.Scanner.Run(ctx, opts.WorkingDirectory, opts.Fix)
	if err != nil {
		return res, err
	}

	out, err := schema.Parse(raw)
	if err != nil {
		return res, err
	}
	if env, ok := out.(schema.FixEnvelope); ok {
		res.Envelope = &env
		logger.Info("audit fix applied",
			"added", env.Added, "removed", env.Removed, "changed", env.Changed, "audited", env.Audited)
	}
	res.Audit = out.Unwrap()

	res.Counts = res.Audit.Counts()
	counts := []struct {
		name  string
		value int
	}{
		{outputs.IssuesTotal, res.Counts.Total},
		{outputs.IssuesFixable, res.Counts.Fixable},
		{outputs.IssuesUnfixable, res.Counts.Unfixable},
	}
	for _, c := range counts {
		if err := p.Outputs.Set(c.name, strconv.Itoa(c.value)); err != nil {
			return res, fmt.Errorf("set %s: %w", c.name, err)
		}
	}

	res.Markdown = report.Markdown(logger, res.Audit)
	if err := p.Outputs.Set(outputs.Markdown, res.Markdown); err != nil {
		return res, fmt.Errorf("set %s: %w", outputs.Markdown, err)
	}

	if opts.JSONOutputPath != "" {
		file, err := utils.ResolveInWorkspace(opts.Workspace, opts.JSONOutputPath)
		if err != nil {
			return res, err
		}
		if res.JSONFile, err = utils.SaveResult(res.Audit, file); err != nil {
			return res, err
		}
		logger.Debug("audit result saved", "path", res.JSONFile)
	}

	if opts.OutputPath != "" {
		file, err := utils.WriteReport(opts.Workspace, opts.OutputPath, res.Markdown)
		if err != nil {
			return res, err
		}
		res.ReportFile = file
		logger.Info("report written", "path", file)
	}

	return res, nil
}
