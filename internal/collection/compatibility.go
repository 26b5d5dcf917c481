package collection

import (
	"sort"

	"github.com/pkgindex/pkgindex/internal/models"
)

// platformName maps a build platform to its document name. Both macOS build
// flavours report as "macos".
func platformName(p models.Platform) string {
	switch p {
	case models.PlatformMacOSSPM, models.PlatformMacOSXcodebuild:
		return "macos"
	default:
		return string(p)
	}
}

// ReduceCompatibility collapses successful builds to distinct
// (platform, swift version) pairs sorted by platform then version.
func ReduceCompatibility(builds []models.Build) []Compatibility {
	type key struct {
		platform string
		swift    models.SwiftVersion
	}
	seen := make(map[key]bool)
	var keys []key
	for _, b := range builds {
		if b.Status != models.BuildOK {
			continue
		}
		k := key{platform: platformName(b.Platform), swift: b.SwiftVersion}
		if seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return nil
	}

	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.platform != b.platform {
			return a.platform < b.platform
		}
		if a.swift.Major != b.swift.Major {
			return a.swift.Major < b.swift.Major
		}
		if a.swift.Minor != b.swift.Minor {
			return a.swift.Minor < b.swift.Minor
		}
		return a.swift.Patch < b.swift.Patch
	})

	out := make([]Compatibility, len(keys))
	for i, k := range keys {
		out[i] = Compatibility{Platform: Platform{Name: k.platform}, SwiftVersion: k.swift.String()}
	}
	return out
}
