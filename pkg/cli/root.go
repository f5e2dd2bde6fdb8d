package cli

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yorozuya-cybersecurity/auditfix/internal/config"
	"github.com/yorozuya-cybersecurity/auditfix/internal/telemetry"
)

var (
	Version = "0.0.1"
	rootCmd *cobra.Command
)

func init() {
	rootCmd = newRootCmd()
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auditfix",
		Short: "Run npm audit fix and summarize it as a Markdown report",
		Long: "auditfix runs `npm audit` (optionally in fix mode), renders a Markdown report of the fixed " +
			"vulnerabilities and publishes the counts and report as GitHub Actions outputs.",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
	}

	// Global flags
	cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentFlags().String("workspace", "", "Workspace root; files are only written below it (default: $GITHUB_WORKSPACE or the current directory)")
	_ = viper.BindPFlag(config.KeyDebug, cmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag(config.KeyWorkspace, cmd.PersistentFlags().Lookup("workspace"))

	// Environment variable support (AUDITFIX_OUTPUT_PATH, INPUT_OUTPUT-PATH, etc.)
	viper.SetEnvPrefix("AUDITFIX")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
	_ = config.Bind(viper.GetViper())

	// Subcommands
	cmd.AddCommand(newScanCmd())
	cmd.AddCommand(newReportCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

func setup(cmd *cobra.Command, _ []string) error {
	if err := config.LoadDotEnv(".env"); err != nil {
		return err
	}
	telemetry.InitLogger(cmd.ErrOrStderr(), viper.GetBool(config.KeyDebug), telemetry.InActions())
	return nil
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		telemetry.LogError("auditfix failed", err)
		stop()
		os.Exit(1)
	}
}
