package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yorozuya-cybersecurity/auditfix/internal/config"
	"github.com/yorozuya-cybersecurity/auditfix/internal/outputs"
	"github.com/yorozuya-cybersecurity/auditfix/internal/pipeline"
	"github.com/yorozuya-cybersecurity/auditfix/internal/report"
	"github.com/yorozuya-cybersecurity/auditfix/internal/scanners"
)

func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run npm audit (fix) and publish the Markdown report",
		Example: "auditfix scan --output-path audit-report.md\n" +
			"auditfix scan --fix=false --working-directory packages/web",
		Args: cobra.NoArgs,
		RunE: runScan,
	}

	cmd.Flags().Bool("fix", true, "Run `npm audit fix` instead of a plain audit")
	cmd.Flags().String("output-path", "", "Write the Markdown report to this file (relative to the workspace)")
	cmd.Flags().String("working-directory", "", "Directory containing package.json (relative to the workspace)")
	cmd.Flags().String("command", scanners.DefaultCommand, "Audit command; --json and fix are appended")
	cmd.Flags().String("json-output-path", "", "Also save the normalized audit result as JSON")
	cmd.Flags().Bool("check-version", true, "Require npm >= 7 before running")
	cmd.Flags().Bool("summary", true, "Print a summary table to stderr")

	for _, key := range []string{
		config.KeyFix, config.KeyOutputPath, config.KeyWorkingDirectory,
		config.KeyCommand, config.KeyJSONOutputPath, config.KeyCheckVersion,
	} {
		_ = viper.BindPFlag(key, cmd.Flags().Lookup(key))
	}
	_ = viper.BindPFlag("scan.summary", cmd.Flags().Lookup("summary"))

	return cmd
}

func runScan(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger := slog.Default()
	audit, err := scanners.NewNpmAudit(scanners.ExecRunner{}, cfg.Command, logger)
	if err != nil {
		return err
	}

	logger.Info(fmt.Sprintf("Running %s", audit.CommandLine(cfg.Fix)), "dir", cfg.WorkingDirectory)

	p := &pipeline.Pipeline{
		Scanner: audit,
		Outputs: outputs.FromEnv(cmd.OutOrStdout()),
		Logger:  logger,
	}
	res, err := p.Run(cmd.Context(), pipeline.Options{
		Fix:              cfg.Fix,
		WorkingDirectory: cfg.WorkingDirectory,
		Workspace:        cfg.Workspace,
		OutputPath:       cfg.OutputPath,
		JSONOutputPath:   cfg.JSONOutputPath,
		CheckVersion:     cfg.CheckVersion,
	})
	if err != nil {
		return err
	}

	if viper.GetBool("scan.summary") {
		report.WriteSummaryTable(cmd.ErrOrStderr(), res.Audit)
	}
	return nil
}
