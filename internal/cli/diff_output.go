package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/pkgindex/pkgindex/internal/differ"
)

// FailOnLevel is the lowest change severity that fails a diff.
type FailOnLevel string

const (
	FailOnCritical FailOnLevel = "critical"
	FailOnModerate FailOnLevel = "moderate"
	FailOnInfo     FailOnLevel = "info"
)

// ParseFailOnLevel from string
func ParseFailOnLevel(s string) (FailOnLevel, error) {
	switch strings.ToLower(s) {
	case "critical":
		return FailOnCritical, nil
	case "moderate":
		return FailOnModerate, nil
	case "info":
		return FailOnInfo, nil
	default:
		return "", fmt.Errorf("invalid fail-on level: %s (use critical, moderate, or info)", s)
	}
}

// ShouldFail reports whether a change of severity crosses the threshold.
func (f FailOnLevel) ShouldFail(severity differ.SeverityLevel) bool {
	switch f {
	case FailOnModerate:
		return severity >= differ.SeverityModerate
	case FailOnInfo:
		return true
	default:
		return severity == differ.SeverityCritical
	}
}

// DiffReport is the rendered outcome of comparing two collections.
type DiffReport struct {
	From    string             `json:"from"`
	To      string             `json:"to"`
	Summary DiffSummary        `json:"summary"`
	Changes []ChangeOutputItem `json:"changes"`
	FailOn  string             `json:"failOn"`
	Outcome string             `json:"outcome"` // "PASS" or "FAIL"
}

// DiffSummary counts changes by severity.
type DiffSummary struct {
	Critical int `json:"critical"`
	Moderate int `json:"moderate"`
	Info     int `json:"info"`
	Total    int `json:"total"`
}

type ChangeOutputItem struct {
	Type         string   `json:"type"`
	Severity     string   `json:"severity"`
	Package      string   `json:"package,omitempty"`
	Version      string   `json:"version,omitempty"`
	Message      string   `json:"message"`
	Translations []string `json:"translations,omitempty"`
}

// BuildDiffReport renders res against the fail-on threshold.
func BuildDiffReport(fromPath, toPath string, res *differ.Result, failOn FailOnLevel) *DiffReport {
	report := &DiffReport{
		From:    fromPath,
		To:      toPath,
		Changes: []ChangeOutputItem{},
		FailOn:  string(failOn),
		Outcome: "PASS",
	}
	if res == nil {
		return report
	}

	for _, c := range res.Changes {
		report.Changes = append(report.Changes, ChangeOutputItem{
			Type:         string(c.Type),
			Severity:     c.Severity.String(),
			Package:      c.Package,
			Version:      c.Version,
			Message:      c.Message,
			Translations: c.Translations,
		})
		switch c.Severity {
		case differ.SeverityCritical:
			report.Summary.Critical++
		case differ.SeverityModerate:
			report.Summary.Moderate++
		default:
			report.Summary.Info++
		}
		report.Summary.Total++

		if failOn.ShouldFail(c.Severity) {
			report.Outcome = "FAIL"
		}
	}
	return report
}

// FormatTextOutput human readable
func FormatTextOutput(report *DiffReport) string {
	var sb strings.Builder

	if report.Outcome == "PASS" {
		fmt.Fprintf(&sb, "%spkgindex diff: PASS%s (fail-on=%s)\n", colorGreen, colorReset, report.FailOn)
	} else {
		fmt.Fprintf(&sb, "%spkgindex diff: FAIL%s (fail-on=%s)\n", colorRed, colorReset, report.FailOn)
	}
	fmt.Fprintf(&sb, "From: %s\nTo:   %s\n\n", report.From, report.To)

	if report.Summary.Total == 0 {
		fmt.Fprintf(&sb, "%s✓ No changes detected%s\n", colorGreen, colorReset)
		return sb.String()
	}

	groups := groupChangesBySeverity(report.Changes)
	for _, g := range []struct {
		key, label, color string
	}{
		{"critical", "CRITICAL", colorRed},
		{"moderate", "MODERATE", colorYellow},
		{"info", "INFO", ""},
	} {
		items := groups[g.key]
		if len(items) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "%s%s (%d)%s\n", g.color, g.label, len(items), resetIf(g.color))
		for _, c := range items {
			formatChangeItem(&sb, c, g.color)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func resetIf(color string) string {
	if color == "" {
		return ""
	}
	return colorReset
}

// groupChangesBySeverity sorts each group by package then version.
func groupChangesBySeverity(changes []ChangeOutputItem) map[string][]ChangeOutputItem {
	groups := map[string][]ChangeOutputItem{}
	for _, c := range changes {
		groups[c.Severity] = append(groups[c.Severity], c)
	}
	for k := range groups {
		sort.SliceStable(groups[k], func(i, j int) bool {
			a, b := groups[k][i], groups[k][j]
			if a.Package != b.Package {
				return a.Package < b.Package
			}
			return a.Version < b.Version
		})
	}
	return groups
}

func formatChangeItem(sb *strings.Builder, c ChangeOutputItem, color string) {
	subject := c.Package
	if subject == "" {
		subject = "collection"
	}
	if c.Version != "" {
		subject += "@" + c.Version
	}
	fmt.Fprintf(sb, "%s- %s: %s%s\n", color, c.Type, subject, resetIf(color))
	for _, t := range c.Translations {
		fmt.Fprintf(sb, "    • %s\n", t)
	}
}

// FormatJSONOutput raw json
func FormatJSONOutput(report *DiffReport) ([]byte, error) {
	return json.MarshalIndent(report, "", "  ")
}
