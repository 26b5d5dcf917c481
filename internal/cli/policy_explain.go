package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pkgindex/pkgindex/internal/policy"
	"github.com/spf13/cobra"
)

// policyExplainCmd outputs policy rules
var policyExplainCmd = &cobra.Command{
	Use:   "explain",
	Short: "Output policy rules",
	Long: `Display the rules of a policy with their severity, failure message and
CEL expression in human-readable Markdown or machine-readable JSON.

Example:
  pkgindex policy explain --preset strict
  pkgindex policy explain --preset baseline --json
  pkgindex policy explain --policy ./my-policy.yaml --output report.md`,
	Args: cobra.NoArgs,
	RunE: runPolicyExplain,
}

var (
	explainPreset string
	explainPolicy string
	explainJSON   bool
	explainOutput string
)

func init() {
	policyExplainCmd.Flags().StringVar(&explainPreset, "preset", "", "Use built-in preset: baseline or strict")
	policyExplainCmd.Flags().StringVar(&explainPolicy, "policy", "", "Path to policy YAML file")
	policyExplainCmd.Flags().BoolVar(&explainJSON, "json", false, "Output JSON instead of Markdown")
	policyExplainCmd.Flags().StringVar(&explainOutput, "output", "", "Write output to file (default: stdout)")
	policyCmd.AddCommand(policyExplainCmd)
}

// ExplainOutput is the JSON output schema
type ExplainOutput struct {
	SchemaVersion string        `json:"schema_version"`
	Source        ExplainSource `json:"source"`
	GeneratedAt   string        `json:"generated_at"`
	Rules         []ExplainRule `json:"rules"`
}

// ExplainSource identifies where the policy came from
type ExplainSource struct {
	Type string `json:"type"` // "preset" or "file"
	Name string `json:"name"` // preset name or file path
}

type ExplainRule struct {
	Name       string `json:"name"`
	Severity   string `json:"severity"`
	Expr       string `json:"expr"`
	FailureMsg string `json:"failure_msg"`
}

func runPolicyExplain(cmd *cobra.Command, args []string) error {
	config, _, err := loadPolicyWithPreset(explainPolicy, explainPreset)
	if err != nil {
		return err
	}
	source := ExplainSource{Type: "preset", Name: explainPreset}
	switch {
	case explainPolicy != "":
		source = ExplainSource{Type: "file", Name: explainPolicy}
	case explainPreset == "":
		source.Name = "baseline"
	}

	var output string
	if explainJSON {
		output, err = generateExplainJSON(config, source)
	} else {
		output = generateExplainMarkdown(config, source)
	}
	if err != nil {
		return err
	}

	if explainOutput != "" {
		if err := os.WriteFile(explainOutput, []byte(output), 0644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Output written to %s\n", explainOutput)
		return nil
	}

	fmt.Fprint(cmd.OutOrStdout(), output)
	return nil
}

func ruleSeverity(r policy.Rule) string {
	if r.Severity == "" {
		return string(policy.SeverityError)
	}
	return string(r.Severity)
}

func generateExplainJSON(config *policy.Config, source ExplainSource) (string, error) {
	output := ExplainOutput{
		SchemaVersion: "1.0",
		Source:        source,
		GeneratedAt:   time.Now().UTC().Format(time.RFC3339Nano),
		Rules:         make([]ExplainRule, 0, len(config.Rules)),
	}
	for _, rule := range config.Rules {
		output.Rules = append(output.Rules, ExplainRule{
			Name:       rule.Name,
			Severity:   ruleSeverity(rule),
			Expr:       rule.Expr,
			FailureMsg: rule.FailureMsg,
		})
	}

	jsonBytes, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(jsonBytes) + "\n", nil
}

func generateExplainMarkdown(config *policy.Config, source ExplainSource) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Policy: %s\n\n", config.Name)
	fmt.Fprintf(&sb, "**Source**: %s (`%s`)\n\n", source.Type, source.Name)

	sb.WriteString("| Rule | Severity | Failure | Expr |\n")
	sb.WriteString("|------|----------|---------|------|\n")
	for _, rule := range config.Rules {
		fmt.Fprintf(&sb, "| %s | %s | %s | `%s` |\n",
			rule.Name, ruleSeverity(rule), rule.FailureMsg, truncateExpr(rule.Expr, 120))
	}

	sb.WriteString("\n")
	return sb.String()
}

// truncateExpr shortens CEL expressions for table display
func truncateExpr(expr string, maxLen int) string {
	expr = strings.Join(strings.Fields(expr), " ")
	if len(expr) <= maxLen {
		return expr
	}
	return expr[:maxLen-3] + "..."
}
