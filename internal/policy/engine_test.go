package policy

import (
	"strings"
	"testing"
	"time"

	"github.com/pkgindex/pkgindex/internal/collection"
	"github.com/pkgindex/pkgindex/internal/models"
)

func sampleCollection() *collection.Collection {
	overview := "overview"
	return &collection.Collection{
		Name:          "Foo",
		Overview:      &overview,
		FormatVersion: collection.FormatVersion,
		GeneratedAt:   time.Unix(1610112345, 0).UTC(),
		Packages: []collection.Package{{
			URL:     "https://github.com/foo/1",
			License: &collection.License{Name: "MIT", URL: "https://foo/mit"},
			Versions: []collection.Version{{
				Version:             "1.2.3",
				DefaultToolsVersion: "5.4",
				Manifests: map[string]collection.Manifest{"5.4": {
					ToolsVersion: "5.4",
					PackageName:  "package",
					Targets:      []collection.Target{},
					Products: []collection.Product{{
						Name:    "P1",
						Type:    collection.ProductType{Kind: models.ProductLibrary, Library: models.LibraryAutomatic},
						Targets: []string{},
					}},
				}},
				VerifiedCompatibility: []collection.Compatibility{{Platform: collection.Platform{Name: "ios"}, SwiftVersion: "5.9"}},
			}},
		}},
	}
}

func TestEvaluate(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	config := &Config{
		Name: "test",
		Rules: []Rule{
			{Name: "named", Expr: `input.name == "Foo"`, FailureMsg: "wrong name"},
			{Name: "two_packages", Expr: `input.stats.packages == 2`, FailureMsg: "want two packages"},
			{Name: "version_count", Expr: `input.stats.versions == 1`},
		},
	}

	results, err := engine.Evaluate(config, sampleCollection())
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if !results[0].Passed {
		t.Errorf("rule named should pass: %s", results[0].FailureMsg)
	}
	if results[1].Passed || results[1].FailureMsg != "want two packages" {
		t.Errorf("rule two_packages should fail with its message, got %+v", results[1])
	}
	if !results[2].Passed {
		t.Errorf("rule version_count should pass: %s", results[2].FailureMsg)
	}
	if Passed(results) {
		t.Error("gate should fail when an error rule fails")
	}
}

func TestEvaluateErrorsFailRule(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	config := &Config{Rules: []Rule{
		{Name: "syntax", Expr: `input.name ==`},
		{Name: "not_bool", Expr: `input.name`},
		{Name: "missing_key", Expr: `input.nope == 1`},
	}}
	results, err := engine.Evaluate(config, sampleCollection())
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	wantPrefix := []string{"CEL compile error", "Rule expression must return boolean", "CEL evaluation error"}
	for i, r := range results {
		if r.Passed {
			t.Errorf("rule %q should fail", r.RuleName)
		}
		if !strings.HasPrefix(r.FailureMsg, wantPrefix[i]) {
			t.Errorf("rule %q: failure %q, want prefix %q", r.RuleName, r.FailureMsg, wantPrefix[i])
		}
	}
}

func TestWarnRulesDoNotFailGate(t *testing.T) {
	results := []Result{
		{RuleName: "a", Passed: true, Severity: SeverityError},
		{RuleName: "b", Passed: false, Severity: SeverityWarn},
	}
	if !Passed(results) {
		t.Error("warn failures should not fail the gate")
	}
}

func TestPresets(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	for _, name := range ListPresetNames() {
		t.Run(name, func(t *testing.T) {
			preset := MustGetPreset(name)
			if preset.Name != name {
				t.Errorf("preset name = %q, want %q", preset.Name, name)
			}
			if err := engine.CompileAndValidate(preset); err != nil {
				t.Fatalf("preset does not compile: %v", err)
			}

			results, err := engine.Evaluate(preset, sampleCollection())
			if err != nil {
				t.Fatalf("Evaluate failed: %v", err)
			}
			for _, r := range results {
				if !r.Passed {
					t.Errorf("rule %q failed on a compliant collection: %s", r.RuleName, r.FailureMsg)
				}
			}
		})
	}
}

func TestStrictPresetRejectsUnlicensed(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	c := sampleCollection()
	c.Packages[0].License = nil

	baseline, err := engine.Evaluate(MustGetPreset("baseline"), c)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if !Passed(baseline) {
		t.Error("baseline only warns on missing licenses")
	}

	strict, err := engine.Evaluate(MustGetPreset("strict"), c)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if Passed(strict) {
		t.Error("strict should reject unlicensed packages")
	}
}

func TestGetPresetUnknown(t *testing.T) {
	if GetPreset("nope") != nil {
		t.Error("expected nil for unknown preset")
	}
	if got := ListPresetNames(); len(got) != 2 || got[0] != "baseline" || got[1] != "strict" {
		t.Errorf("ListPresetNames = %v", got)
	}
}

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
name: "Test Policy"
rules:
  - name: "test_rule"
    expr: 'size(input.packages) > 0'
    failure_msg: "No packages found"
`))
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}
	if cfg.Rules[0].Severity != SeverityError {
		t.Errorf("default severity = %q, want error", cfg.Rules[0].Severity)
	}

	if _, err := ParseConfig([]byte(`name: empty`)); err == nil {
		t.Error("expected error for policy without rules")
	}
	if _, err := ParseConfig([]byte("rules:\n  - name: x\n    expr: 'true'\n    severity: loud\n")); err == nil {
		t.Error("expected error for unknown severity")
	}
}
