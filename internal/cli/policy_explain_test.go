package cli

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/pkgindex/pkgindex/internal/policy"
)

func TestPolicyExplain_JSON(t *testing.T) {
	config := policy.GetPreset("strict")
	if config == nil {
		t.Fatal("strict preset not found")
	}

	source := ExplainSource{Type: "preset", Name: "strict"}
	output, err := generateExplainJSON(config, source)
	if err != nil {
		t.Fatalf("generateExplainJSON failed: %v", err)
	}

	var result ExplainOutput
	if err := json.Unmarshal([]byte(output), &result); err != nil {
		t.Fatalf("failed to parse JSON output: %v", err)
	}

	if result.SchemaVersion != "1.0" {
		t.Errorf("schema_version = %q, want %q", result.SchemaVersion, "1.0")
	}
	if result.Source.Type != "preset" || result.Source.Name != "strict" {
		t.Errorf("source = %+v, want preset/strict", result.Source)
	}
	if result.GeneratedAt == "" {
		t.Error("generated_at should not be empty")
	}
	if len(result.Rules) != len(config.Rules) {
		t.Fatalf("got %d rules, want %d", len(result.Rules), len(config.Rules))
	}
	for _, r := range result.Rules {
		if r.Severity != "error" && r.Severity != "warn" {
			t.Errorf("rule %s: severity %q", r.Name, r.Severity)
		}
	}
}

func TestPolicyExplain_DefaultSeverity(t *testing.T) {
	config := &policy.Config{
		Name:  "Test",
		Rules: []policy.Rule{{Name: "test_rule", Expr: "true", FailureMsg: "Test"}},
	}

	output, err := generateExplainJSON(config, ExplainSource{Type: "file", Name: "test.yaml"})
	if err != nil {
		t.Fatalf("generateExplainJSON failed: %v", err)
	}
	if !strings.Contains(output, `"severity": "error"`) {
		t.Errorf("rule without severity should explain as error:\n%s", output)
	}
}

func TestPolicyExplain_Markdown(t *testing.T) {
	config := policy.GetPreset("baseline")
	if config == nil {
		t.Fatal("baseline preset not found")
	}

	output := generateExplainMarkdown(config, ExplainSource{Type: "preset", Name: "baseline"})

	if !strings.Contains(output, "| Rule | Severity | Failure | Expr |") {
		t.Error("markdown should contain table header")
	}
	for _, rule := range config.Rules {
		if !strings.Contains(output, rule.Name) {
			t.Errorf("markdown should contain rule %q", rule.Name)
		}
	}
	if !strings.Contains(output, "# Policy: "+config.Name) {
		t.Errorf("markdown should contain policy name %q", config.Name)
	}
}

func TestPolicyExplain_TruncateExpr(t *testing.T) {
	tests := []struct {
		name   string
		expr   string
		maxLen int
		want   string
	}{
		{
			name:   "short expr unchanged",
			expr:   "size(input.packages) > 0",
			maxLen: 120,
			want:   "size(input.packages) > 0",
		},
		{
			name:   "long expr truncated",
			expr:   strings.Repeat("a", 150),
			maxLen: 120,
			want:   strings.Repeat("a", 117) + "...",
		},
		{
			name:   "multiline collapsed",
			expr:   "input.packages.all(p,\n  has(p.license))",
			maxLen: 120,
			want:   "input.packages.all(p, has(p.license))",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncateExpr(tt.expr, tt.maxLen)
			if got != tt.want {
				t.Errorf("truncateExpr(%q, %d) = %q, want %q", tt.expr, tt.maxLen, got, tt.want)
			}
		})
	}
}

func TestLoadPolicyWithPreset(t *testing.T) {
	cfg, name, err := loadPolicyWithPreset("", "")
	if err != nil {
		t.Fatalf("default preset: %v", err)
	}
	if name != "baseline" || cfg.Name != "baseline" {
		t.Errorf("default preset = %q (%q), want baseline", name, cfg.Name)
	}

	if _, _, err := loadPolicyWithPreset("", "nope"); err == nil {
		t.Error("expected error for unknown preset")
	}
	if _, _, err := loadPolicyWithPreset("p.yaml", "strict"); err == nil {
		t.Error("expected error when both policy and preset are set")
	}
}
