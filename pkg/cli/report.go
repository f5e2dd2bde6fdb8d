package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	reportpkg "github.com/yorozuya-cybersecurity/auditfix/internal/report"
	"github.com/yorozuya-cybersecurity/auditfix/internal/telemetry"
)

var supportedFormats = []string{"md", "html", "pdf", "term"}

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "report",
		Short:   "Render a saved npm audit JSON file as Markdown/HTML/PDF or in the terminal",
		Example: "auditfix report --from ./reports/audit.json --format md,html,pdf",
		Args:    cobra.NoArgs,
		RunE:    runReport,
	}

	cmd.Flags().String("from", "", "Saved output of `npm audit --json` or `npm audit fix --json`")
	cmd.Flags().String("format", "md,html", "Output formats: md,html,pdf,term (pdf implies html)")
	cmd.Flags().String("out", "", "Output directory (default: directory of --from)")

	_ = viper.BindPFlag("report.from", cmd.Flags().Lookup("from"))
	_ = viper.BindPFlag("report.format", cmd.Flags().Lookup("format"))
	_ = viper.BindPFlag("report.out", cmd.Flags().Lookup("out"))
	return cmd
}

func runReport(cmd *cobra.Command, _ []string) error {
	from := viper.GetString("report.from")
	if from == "" {
		return errors.New("please provide --from pointing to a saved audit JSON file")
	}

	formats, err := parseFormats(viper.GetString("report.format"))
	if err != nil {
		return err
	}

	outDir := viper.GetString("report.out")
	if outDir == "" {
		outDir = filepath.Dir(from)
	}

	res, err := reportpkg.LoadAuditResult(from)
	if err != nil {
		return err
	}
	md := reportpkg.Markdown(slog.Default(), res)
	out := cmd.OutOrStdout()

	if contains(formats, "md") {
		mdPath, err := reportpkg.WriteMarkdown(md, outDir)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "📝 Markdown report: %s\n", mdPath)
	}

	if contains(formats, "html") || contains(formats, "pdf") {
		htmlPath, err := reportpkg.GenerateHTML(md, outDir)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "🌐 HTML report: %s\n", htmlPath)

		// Optional PDF (Chromedp-based)
		if contains(formats, "pdf") {
			pdfPath, err := reportpkg.GeneratePDF(cmd.Context(), htmlPath)
			if err != nil {
				telemetry.LogDebug("pdf generation failed", "error", err)
				fmt.Fprintf(out, "⚠️  PDF generation failed: %v\n", err)
			} else {
				fmt.Fprintf(out, "📄 PDF report:  %s\n", pdfPath)
			}
		}
	}

	if contains(formats, "term") {
		rendered, err := reportpkg.RenderTerminal(md, 80)
		if err != nil {
			return err
		}
		fmt.Fprint(out, rendered)
	}

	telemetry.LogInfo("report generated", "formats", strings.Join(formats, ","))
	return nil
}

func parseFormats(s string) ([]string, error) {
	var formats []string
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(strings.ToLower(f))
		if f == "" {
			continue
		}
		if !contains(supportedFormats, f) {
			return nil, fmt.Errorf("unsupported format %q (supported: %s)", f, strings.Join(supportedFormats, ","))
		}
		formats = append(formats, f)
	}
	if len(formats) == 0 {
		return nil, errors.New("please provide at least one --format")
	}
	return formats, nil
}

func contains(arr []string, v string) bool {
	for _, x := range arr {
		if x == v {
			return true
		}
	}
	return false
}
