package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pkgindex/pkgindex/internal/config"
	"github.com/pkgindex/pkgindex/internal/observability"
	"github.com/pkgindex/pkgindex/internal/observability/logging"
	otelobs "github.com/pkgindex/pkgindex/internal/observability/otel"
	"github.com/pkgindex/pkgindex/internal/observability/receipt"
	"github.com/pkgindex/pkgindex/internal/version"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "pkgindex",
	Short: "Package catalog reconciler and collection signer",
	Long: `pkgindex keeps a package catalog in sync with the published package
lists and renders signed package collections from it.`,
	Version:           version.BuildVersion(),
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

var (
	configFlag      string
	logFormatFlag   string
	logLevelFlag    string
	receiptFlag     string
	receiptModeFlag string
)

// cleanups run in reverse order once the command returns.
var cleanups []func()

func Execute() {
	err := rootCmd.ExecuteContext(context.Background())
	runCleanups()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFlag, "config", "", "Path to config file (default: ./pkgindex.yaml if present)")
	pf.StringVar(&logFormatFlag, "log-format", "", "Log format: pretty or jsonl")
	pf.StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn or error")
	pf.StringVar(&receiptFlag, "receipt", "", "Write a run receipt to this file")
	pf.StringVar(&receiptModeFlag, "receipt-mode", string(receipt.ModeOverwrite), "Receipt file mode: overwrite or append")

	rootCmd.AddCommand(GetReconcileCmd())
	rootCmd.AddCommand(GetGenerateCmd())
	rootCmd.AddCommand(GetSignCmd())
	rootCmd.AddCommand(GetVerifyCmd())
	rootCmd.AddCommand(GetKeygenCmd())
	rootCmd.AddCommand(GetDiffCmd())
	rootCmd.AddCommand(GetPolicyCmd())
	rootCmd.AddCommand(GetPublishCmd())
	rootCmd.AddCommand(GetPullCmd())
	rootCmd.AddCommand(GetImportCmd())
	rootCmd.AddCommand(GetVersionCmd())
}

// setup loads configuration and installs the logger, tracer, op ID and
// receipt writer into the command context.
func setup(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	loader := config.NewLoader()
	if cmd.Flags().Changed("log-format") {
		loader.Set("log.format", logFormatFlag)
	}
	if cmd.Flags().Changed("log-level") {
		loader.Set("log.level", logLevelFlag)
	}
	cfg, err := loader.Load(configFlag)
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(cfg.LoggingConfig())
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	cleanups = append(cleanups, func() { _ = logger.Close() })

	ctx = observability.WithOpID(ctx)
	ctx = logging.WithLogger(ctx, logger)
	ctx = withConfig(ctx, cfg)

	if cfg.Otel.Enabled {
		h, err := otelobs.Init(ctx, cfg.OtelConfig())
		if err != nil {
			return fmt.Errorf("failed to init tracing: %w", err)
		}
		ctx = otelobs.WithHandle(ctx, h)
		cleanups = append(cleanups, func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = h.Shutdown(sctx)
		})
	}

	if receiptFlag != "" {
		w, err := receipt.NewWriter(receiptFlag, receiptModeFlag)
		if err != nil {
			return err
		}
		ctx = receipt.WithWriter(ctx, w)
		cleanups = append(cleanups, func() { _ = w.Close() })
	}

	cmd.SetContext(ctx)
	return nil
}

func runCleanups() {
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
	cleanups = nil
}

type configKey struct{}

func withConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// configFrom returns the loaded config, or defaults when setup did not run.
func configFrom(ctx context.Context) (*config.Config, error) {
	if cfg, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return cfg, nil
	}
	return config.Load(configFlag)
}
