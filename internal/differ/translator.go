package differ

import (
	"strings"

	"github.com/wI2L/jsondiff"
)

// Translate patches to english
func Translate(patches jsondiff.Patch) []string {
	if len(patches) == 0 {
		return nil
	}

	var translations []string
	seen := make(map[string]bool)

	for _, op := range patches {
		translation := translateOperation(op)
		if translation != "" && !seen[translation] {
			seen[translation] = true
			translations = append(translations, translation)
		}
	}

	return translations
}

func translateOperation(op jsondiff.Operation) string {
	switch op.Type {
	case jsondiff.OperationAdd:
		return translateAdd(op.Path)
	case jsondiff.OperationRemove:
		return translateRemove(op.Path)
	case jsondiff.OperationReplace:
		return translateReplace(op.Path)
	default:
		return ""
	}
}

// segmentAfter returns the path segment following key, unescaped.
func segmentAfter(path, key string) string {
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if part == key && i+1 < len(parts) {
			return strings.NewReplacer("~1", "/", "~0", "~").Replace(parts[i+1])
		}
	}
	return ""
}

// translateAdd
func translateAdd(path string) string {
	switch {
	case strings.HasSuffix(path, "/minimumPlatformVersions") || strings.Contains(path, "/minimumPlatformVersions/"):
		return "⚠️  CRITICAL: Minimum platform requirement added."
	case strings.HasPrefix(path, "/manifests/") && strings.Count(path, "/") == 2:
		return "Manifest for tools version " + segmentAfter(path, "manifests") + " added."
	case strings.Contains(path, "/products"):
		return "New product added."
	case strings.Contains(path, "/targets"):
		return "New target added."
	case strings.Contains(path, "/verifiedCompatibility"):
		return "Verified compatibility added."
	case strings.HasSuffix(path, "/license"):
		return "License added."
	default:
		return "Version metadata added."
	}
}

// translateRemove
func translateRemove(path string) string {
	switch {
	case strings.HasPrefix(path, "/manifests/") && strings.Count(path, "/") == 2:
		return "Manifest for tools version " + segmentAfter(path, "manifests") + " removed."
	case strings.Contains(path, "/products"):
		return "⚠️  CRITICAL: Product removed."
	case strings.Contains(path, "/targets"):
		return "Target removed."
	case strings.Contains(path, "/verifiedCompatibility"):
		return "Verified compatibility removed."
	case strings.HasSuffix(path, "/license"):
		return "License removed."
	default:
		return "Version metadata removed."
	}
}

// translateReplace
func translateReplace(path string) string {
	switch {
	case strings.HasSuffix(path, "/summary") || strings.HasSuffix(path, "/overview"):
		return "Documentation update."
	case strings.HasSuffix(path, "/defaultToolsVersion"):
		return "Default tools version changed."
	case strings.Contains(path, "/products/") && strings.Contains(path, "/type"):
		return "⚠️  CRITICAL: Product type changed."
	case strings.Contains(path, "/license"):
		return "License changed."
	case strings.Contains(path, "/minimumPlatformVersions"):
		return "Minimum platform version changed."
	default:
		return "Version metadata modified."
	}
}

// SeverityLevel 0=safe, 1=mod, 2=crit
type SeverityLevel int

const (
	SeveritySafe SeverityLevel = iota
	SeverityModerate
	SeverityCritical
)

// String to lowercase
func (s SeverityLevel) String() string {
	switch s {
	case SeverityCritical:
		return "critical"
	case SeverityModerate:
		return "moderate"
	case SeveritySafe:
		return "info"
	default:
		return "unknown"
	}
}

// GetSeverity
func GetSeverity(translation string) SeverityLevel {
	lowerMsg := strings.ToLower(translation)

	// Critical changes (Red)
	if strings.Contains(translation, "⚠️") ||
		strings.Contains(translation, "CRITICAL") ||
		strings.Contains(lowerMsg, "removed") {
		return SeverityCritical
	}

	// Safe changes (Green)
	if strings.Contains(lowerMsg, "documentation") || strings.Contains(lowerMsg, "compatibility added") {
		return SeveritySafe
	}

	// Everything else is moderate (Yellow)
	return SeverityModerate
}
