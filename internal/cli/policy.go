package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkgindex/pkgindex/internal/collection"
	"github.com/pkgindex/pkgindex/internal/observability/logging"
	otelobs "github.com/pkgindex/pkgindex/internal/observability/otel"
	"github.com/pkgindex/pkgindex/internal/observability/receipt"
	"github.com/pkgindex/pkgindex/internal/policy"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
)

// ErrPolicyFailed is returned when an error-severity rule fails.
var ErrPolicyFailed = errors.New("policy check failed")

// policyCmd is the parent command for policy operations
var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Policy enforcement commands",
	Long:  `Commands for evaluating collection documents against CEL policy rules.`,
}

var policyCheckCmd = &cobra.Command{
	Use:   "check <collection.json>",
	Short: "Evaluate a collection against a policy",
	Long: `Check evaluates a collection document, plain or signed, against the
rules of a policy file or built-in preset. Rules are CEL expressions over
the document as "input". Only failed rules with severity "error" fail
the check.

Example:
  pkgindex policy check collection.json --preset baseline
  pkgindex policy check signed.json --policy ./policy.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runPolicyCheck,
}

var policyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List built-in policy presets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, name := range policy.ListPresetNames() {
			p := policy.MustGetPreset(name)
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d rules\n", name, len(p.Rules))
		}
		return nil
	},
}

var (
	policyFile   string
	policyPreset string
)

func init() {
	policyCheckCmd.Flags().StringVarP(&policyFile, "policy", "P", "", "Path to policy YAML file")
	policyCheckCmd.Flags().StringVar(&policyPreset, "preset", "", "Use built-in policy preset: baseline or strict")
	policyCheckCmd.MarkFlagsMutuallyExclusive("policy", "preset")
	policyCmd.AddCommand(policyCheckCmd)
	policyCmd.AddCommand(policyListCmd)
}

// GetPolicyCmd export
func GetPolicyCmd() *cobra.Command {
	return policyCmd
}

func runPolicyCheck(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()
	sess := receipt.Start(ctx, "pkgindex policy check", os.Args[1:])
	var name, status string
	var hits []string
	defer func() {
		_ = sess.Finish(err, receipt.WithPolicy(name, status, hits))
	}()

	ctx, end := otelobs.StartSpan(ctx, "pkgindex.policy.check", attribute.String("pkgindex.preset", policyPreset))
	defer func() { end(err) }()

	log := logging.From(ctx)
	start := time.Now()
	log.Event(ctx, "policy_check.start", nil)
	defer func() {
		log.Event(ctx, "policy_check.complete", map[string]any{
			"duration_ms": time.Since(start).Milliseconds(),
			"result":      status,
		})
	}()

	c, err := readCollection(args[0])
	if err != nil {
		status = "fail"
		return err
	}

	cfg, name, err := loadPolicyWithPreset(policyFile, policyPreset)
	if err != nil {
		status = "fail"
		return fmt.Errorf("failed to load policy: %w", err)
	}

	hits, err = evaluatePolicy(cmd.OutOrStdout(), cfg, c)
	status = "pass"
	if err != nil {
		status = "fail"
	}
	return err
}

// loadPolicyWithPreset resolves a policy file or preset, defaulting to
// the baseline preset. It returns the policy and a name for receipts.
func loadPolicyWithPreset(file, preset string) (*policy.Config, string, error) {
	if file != "" && preset != "" {
		return nil, "", fmt.Errorf("cannot use both --preset and --policy; choose one")
	}
	if file != "" {
		cfg, err := policy.LoadConfig(file)
		if err != nil {
			return nil, "", err
		}
		return cfg, file, nil
	}
	if preset == "" {
		preset = "baseline"
	}
	cfg := policy.GetPreset(preset)
	if cfg == nil {
		return nil, "", fmt.Errorf("unknown preset: %s (valid: %s)", preset, strings.Join(policy.ListPresetNames(), ", "))
	}
	return cfg, preset, nil
}

// evaluatePolicy prints every rule outcome and returns the names of failed
// rules. It returns ErrPolicyFailed when an error rule failed.
func evaluatePolicy(out io.Writer, cfg *policy.Config, c *collection.Collection) ([]string, error) {
	engine, err := policy.NewEngine()
	if err != nil {
		return nil, err
	}
	results, err := engine.Evaluate(cfg, c)
	if err != nil {
		return nil, fmt.Errorf("policy evaluation failed: %w", err)
	}

	fmt.Fprintf(out, "Policy: %s\n", cfg.Name)
	var hits []string
	for _, r := range results {
		switch {
		case r.Passed:
			fmt.Fprintf(out, "  %s✓ %s%s\n", colorGreen, r.RuleName, colorReset)
		case r.Severity == policy.SeverityWarn:
			hits = append(hits, r.RuleName)
			fmt.Fprintf(out, "  %s⚠ %s: %s%s\n", colorYellow, r.RuleName, r.FailureMsg, colorReset)
		default:
			hits = append(hits, r.RuleName)
			fmt.Fprintf(out, "  %s✗ %s: %s%s\n", colorRed, r.RuleName, r.FailureMsg, colorReset)
		}
	}

	if !policy.Passed(results) {
		return hits, ErrPolicyFailed
	}
	return hits, nil
}
