package collection

import (
	"sort"

	"github.com/Masterminds/semver/v3"
	"github.com/pkgindex/pkgindex/internal/models"
)

var significantKinds = []models.Latest{
	models.LatestDefaultBranch,
	models.LatestRelease,
	models.LatestPreRelease,
}

// SignificantVersions keeps at most one version per latest kind, each with
// at least one product, ordered default branch, release, pre-release.
func SignificantVersions(versions []models.Version) []models.Version {
	var out []models.Version
	for _, kind := range significantKinds {
		for _, v := range versions {
			if v.Latest == kind && len(v.Products) > 0 {
				out = append(out, v)
				break
			}
		}
	}
	return out
}

type semverVersion struct {
	sv *semver.Version
	v  models.Version
}

// releasedVersions drops versions without a semantic version and orders the
// rest highest first.
func releasedVersions(versions []models.Version) []semverVersion {
	out := make([]semverVersion, 0, len(versions))
	for _, v := range versions {
		if sv, ok := v.SemVer(); ok {
			out = append(out, semverVersion{sv: sv, v: v})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].sv.GreaterThan(out[j].sv)
	})
	return out
}
