// Package differ compares two collection documents.
package differ

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/pkgindex/pkgindex/internal/collection"
	"github.com/pkgindex/pkgindex/internal/identity"
	"github.com/wI2L/jsondiff"
)

// ChangeType indicates what kind of difference was detected
type ChangeType string

const (
	ChangePackageAdded    ChangeType = "PACKAGE_ADDED"
	ChangePackageRemoved  ChangeType = "PACKAGE_REMOVED"
	ChangeVersionAdded    ChangeType = "VERSION_ADDED"
	ChangeVersionRemoved  ChangeType = "VERSION_REMOVED"
	ChangeVersionChanged  ChangeType = "VERSION_CHANGED"
	ChangeMetadataChanged ChangeType = "METADATA_CHANGED"
)

// Change is one difference between two collections.
type Change struct {
	Type     ChangeType
	Severity SeverityLevel
	Package  string // package URL, empty for collection metadata
	Version  string
	Message  string
	// Patches and Translations are set for changed versions and metadata.
	Patches      jsondiff.Patch
	Translations []string
}

// Result contains the complete diff result
type Result struct {
	HasChanges bool
	Changes    []Change
}

// Summary counts changes by type.
func (r *Result) Summary() map[ChangeType]int {
	out := make(map[ChangeType]int)
	for _, c := range r.Changes {
		out[c.Type]++
	}
	return out
}

// MaxSeverity is the highest severity of any change, or safe when none.
func (r *Result) MaxSeverity() SeverityLevel {
	highest := SeveritySafe
	for _, c := range r.Changes {
		if c.Severity > highest {
			highest = c.Severity
		}
	}
	return highest
}

// Compare diffs from against to. Packages match on normalized URL and
// versions on their version string. generatedAt is ignored.
func Compare(from, to *collection.Collection) (*Result, error) {
	result := &Result{Changes: []Change{}}

	meta, err := compareMetadata(from, to)
	if err != nil {
		return nil, err
	}
	if meta != nil {
		result.Changes = append(result.Changes, *meta)
	}

	oldPkgs := indexPackages(from.Packages)
	newPkgs := indexPackages(to.Packages)

	// removed
	for _, p := range from.Packages {
		if _, found := newPkgs[identity.Normalize(p.URL)]; !found {
			result.Changes = append(result.Changes, Change{
				Type:     ChangePackageRemoved,
				Severity: SeverityCritical,
				Package:  p.URL,
				Message:  fmt.Sprintf("Package [%s] has been removed from the collection", p.URL),
			})
		}
	}

	// added/changed
	for _, p := range to.Packages {
		prev, found := oldPkgs[identity.Normalize(p.URL)]
		if !found {
			result.Changes = append(result.Changes, Change{
				Type:     ChangePackageAdded,
				Severity: SeverityModerate,
				Package:  p.URL,
				Message:  fmt.Sprintf("Package [%s] has been added to the collection", p.URL),
			})
			continue
		}

		changes, err := compareVersions(p.URL, prev.Versions, p.Versions)
		if err != nil {
			return nil, fmt.Errorf("failed to compare versions of %s: %w", p.URL, err)
		}
		result.Changes = append(result.Changes, changes...)
	}

	result.HasChanges = len(result.Changes) > 0
	return result, nil
}

func indexPackages(pkgs []collection.Package) map[identity.Key]collection.Package {
	out := make(map[identity.Key]collection.Package, len(pkgs))
	for _, p := range pkgs {
		out[identity.Normalize(p.URL)] = p
	}
	return out
}

func compareVersions(url string, from, to []collection.Version) ([]Change, error) {
	var changes []Change

	newByVersion := make(map[string]collection.Version, len(to))
	for _, v := range to {
		newByVersion[v.Version] = v
	}
	oldByVersion := make(map[string]collection.Version, len(from))
	for _, v := range from {
		oldByVersion[v.Version] = v
	}

	for _, v := range from {
		if _, found := newByVersion[v.Version]; !found {
			changes = append(changes, Change{
				Type:     ChangeVersionRemoved,
				Severity: SeverityCritical,
				Package:  url,
				Version:  v.Version,
				Message:  fmt.Sprintf("Version %s of [%s] has been removed", v.Version, url),
			})
		}
	}

	for _, v := range to {
		prev, found := oldByVersion[v.Version]
		if !found {
			changes = append(changes, Change{
				Type:     ChangeVersionAdded,
				Severity: SeveritySafe,
				Package:  url,
				Version:  v.Version,
				Message:  fmt.Sprintf("Version %s of [%s] has been added", v.Version, url),
			})
			continue
		}

		patches, err := comparePayloads(prev, v)
		if err != nil {
			return nil, err
		}
		if len(patches) == 0 {
			continue
		}
		translations := Translate(patches)
		changes = append(changes, Change{
			Type:         ChangeVersionChanged,
			Severity:     maxSeverity(translations),
			Package:      url,
			Version:      v.Version,
			Message:      fmt.Sprintf("Version %s of [%s] has changed", v.Version, url),
			Patches:      patches,
			Translations: translations,
		})
	}
	return changes, nil
}

// collectionMetadata is the document minus packages and generatedAt.
type collectionMetadata struct {
	Name          string             `json:"name"`
	Overview      *string            `json:"overview,omitempty"`
	Keywords      []string           `json:"keywords,omitempty"`
	FormatVersion string             `json:"formatVersion"`
	Revision      *int               `json:"revision,omitempty"`
	GeneratedBy   *collection.Author `json:"generatedBy,omitempty"`
}

func metadataOf(c *collection.Collection) collectionMetadata {
	return collectionMetadata{
		Name:          c.Name,
		Overview:      c.Overview,
		Keywords:      c.Keywords,
		FormatVersion: c.FormatVersion,
		Revision:      c.Revision,
		GeneratedBy:   c.GeneratedBy,
	}
}

func compareMetadata(from, to *collection.Collection) (*Change, error) {
	patches, err := comparePayloads(metadataOf(from), metadataOf(to))
	if err != nil {
		return nil, err
	}
	if len(patches) == 0 {
		return nil, nil
	}

	fields := make([]string, 0, len(patches))
	seen := make(map[string]bool)
	for _, op := range patches {
		f := topLevelField(op.Path)
		if !seen[f] {
			seen[f] = true
			fields = append(fields, f)
		}
	}
	sort.Strings(fields)

	translations := make([]string, len(fields))
	for i, f := range fields {
		translations[i] = "Collection " + f + " changed."
	}
	return &Change{
		Type:         ChangeMetadataChanged,
		Severity:     SeveritySafe,
		Message:      "Collection metadata has changed",
		Patches:      patches,
		Translations: translations,
	}, nil
}

func topLevelField(path string) string {
	if len(path) < 2 {
		return path
	}
	rest := path[1:]
	for i := 0; i < len(rest); i++ {
		if rest[i] == '/' {
			return rest[:i]
		}
	}
	return rest
}

// comparePayloads diffs the JSON encodings of a and b
func comparePayloads(a, b any) (jsondiff.Patch, error) {
	aJSON, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal old value: %w", err)
	}
	bJSON, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal new value: %w", err)
	}

	patches, err := jsondiff.CompareJSON(aJSON, bJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to compute diff: %w", err)
	}
	return patches, nil
}

func maxSeverity(translations []string) SeverityLevel {
	highest := SeveritySafe
	for _, t := range translations {
		if s := GetSeverity(t); s > highest {
			highest = s
		}
	}
	return highest
}
