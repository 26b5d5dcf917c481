// Package policy gates generated collections on CEL rules.
package policy

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/pkgindex/pkgindex/internal/collection"
)

// Engine is the policy evaluation engine using CEL
type Engine struct {
	env *cel.Env
}

func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("input", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{env: env}, nil
}

// Evaluate checks rules against the collection
func (e *Engine) Evaluate(config *Config, c *collection.Collection) ([]Result, error) {
	input, err := collectionInput(c)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(config.Rules))
	for _, rule := range config.Rules {
		results = append(results, e.evaluateRule(rule, input))
	}
	return results, nil
}

// evaluateRule; compile and runtime errors fail the rule
func (e *Engine) evaluateRule(rule Rule, input map[string]any) Result {
	sev := rule.Severity
	if sev == "" {
		sev = SeverityError
	}
	fail := func(format string, args ...any) Result {
		return Result{RuleName: rule.Name, Passed: false, FailureMsg: fmt.Sprintf(format, args...), Severity: sev}
	}

	// compile
	ast, issues := e.env.Compile(rule.Expr)
	if issues != nil && issues.Err() != nil {
		return fail("CEL compile error: %v", issues.Err())
	}

	// program
	prg, err := e.env.Program(ast)
	if err != nil {
		return fail("CEL program error: %v", err)
	}

	// eval
	out, _, err := prg.Eval(map[string]any{"input": input})
	if err != nil {
		return fail("CEL evaluation error: %v", err)
	}

	// check bool
	passed, ok := out.Value().(bool)
	if !ok {
		return fail("Rule expression must return boolean, got %T", out.Value())
	}

	result := Result{RuleName: rule.Name, Passed: passed, Severity: sev}
	if !passed {
		result.FailureMsg = rule.FailureMsg
	}
	return result
}

// collectionInput exposes the document JSON as input, plus input.stats.
func collectionInput(c *collection.Collection) (map[string]any, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode collection: %w", err)
	}
	var input map[string]any
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, fmt.Errorf("failed to decode collection: %w", err)
	}

	versions := 0
	for _, p := range c.Packages {
		versions += len(p.Versions)
	}
	input["stats"] = map[string]any{
		"packages": int64(len(c.Packages)),
		"versions": int64(versions),
	}
	return input, nil
}

// CompileAndValidate
func (e *Engine) CompileAndValidate(config *Config) error {
	var errs []string

	for _, rule := range config.Rules {
		_, issues := e.env.Compile(rule.Expr)
		if issues != nil && issues.Err() != nil {
			errs = append(errs, fmt.Sprintf("rule %q: %v", rule.Name, issues.Err()))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("policy validation failed:\n  %s", strings.Join(errs, "\n  "))
	}

	return nil
}
