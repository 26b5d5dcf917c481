package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Severity of a failed rule. Only error rules fail the gate.
type Severity string

const (
	SeverityError Severity = "error"
	SeverityWarn  Severity = "warn"
)

// Config from yaml
type Config struct {
	Name  string `yaml:"name"`
	Rules []Rule `yaml:"rules"`
}

// Rule cel rule
type Rule struct {
	Name       string   `yaml:"name"`
	Expr       string   `yaml:"expr"`
	FailureMsg string   `yaml:"failure_msg"`
	Severity   Severity `yaml:"severity,omitempty"`
}

// Result eval result
type Result struct {
	RuleName   string
	Passed     bool
	FailureMsg string
	Severity   Severity
}

// LoadConfig reads a policy file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy: %w", err)
	}
	return ParseConfig(data)
}

func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse policy: %w", err)
	}
	if len(cfg.Rules) == 0 {
		return nil, fmt.Errorf("policy %q has no rules", cfg.Name)
	}
	for i, r := range cfg.Rules {
		if r.Name == "" || r.Expr == "" {
			return nil, fmt.Errorf("rule %d: name and expr are required", i)
		}
		switch r.Severity {
		case "":
			cfg.Rules[i].Severity = SeverityError
		case SeverityError, SeverityWarn:
		default:
			return nil, fmt.Errorf("rule %q: unknown severity %q", r.Name, r.Severity)
		}
	}
	return &cfg, nil
}

// Passed is false when any error-severity rule failed.
func Passed(results []Result) bool {
	for _, r := range results {
		if !r.Passed && r.Severity != SeverityWarn {
			return false
		}
	}
	return true
}
