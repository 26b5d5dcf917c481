package differ

import (
	"testing"

	"github.com/pkgindex/pkgindex/internal/collection"
	"github.com/pkgindex/pkgindex/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func version(v string, products ...string) collection.Version {
	ps := make([]collection.Product, 0, len(products))
	for _, p := range products {
		ps = append(ps, collection.Product{
			Name:    p,
			Type:    collection.ProductType{Kind: models.ProductLibrary, Library: models.LibraryAutomatic},
			Targets: []string{},
		})
	}
	return collection.Version{
		Version:             v,
		DefaultToolsVersion: "5.9",
		Manifests: map[string]collection.Manifest{"5.9": {
			ToolsVersion: "5.9",
			PackageName:  "pkg",
			Targets:      []collection.Target{},
			Products:     ps,
		}},
	}
}

func doc(pkgs ...collection.Package) *collection.Collection {
	return &collection.Collection{Name: "c", FormatVersion: "1.0", Packages: pkgs}
}

func TestCompareNoChanges(t *testing.T) {
	c := doc(collection.Package{URL: "https://example.com/a", Versions: []collection.Version{version("1.0.0", "A")}})

	res, err := Compare(c, c)
	require.NoError(t, err)
	assert.False(t, res.HasChanges)
	assert.Empty(t, res.Changes)
	assert.Equal(t, SeveritySafe, res.MaxSeverity())
}

func TestComparePackages(t *testing.T) {
	old := doc(
		collection.Package{URL: "https://example.com/a", Versions: []collection.Version{version("1.0.0", "A")}},
		collection.Package{URL: "https://example.com/b", Versions: []collection.Version{version("1.0.0", "B")}},
	)
	next := doc(
		// case and trailing slash differences are the same package
		collection.Package{URL: "https://EXAMPLE.com/a/", Versions: []collection.Version{version("1.0.0", "A")}},
		collection.Package{URL: "https://example.com/c", Versions: []collection.Version{version("1.0.0", "C")}},
	)

	res, err := Compare(old, next)
	require.NoError(t, err)
	require.True(t, res.HasChanges)
	assert.Equal(t, map[ChangeType]int{ChangePackageRemoved: 1, ChangePackageAdded: 1}, res.Summary())
	assert.Equal(t, SeverityCritical, res.MaxSeverity())
	assert.Equal(t, "https://example.com/b", res.Changes[0].Package)
	assert.Equal(t, "https://example.com/c", res.Changes[1].Package)
}

func TestCompareVersions(t *testing.T) {
	old := doc(collection.Package{URL: "https://example.com/a", Versions: []collection.Version{
		version("2.0.0", "A", "B"),
		version("1.0.0", "A"),
	}})
	next := doc(collection.Package{URL: "https://example.com/a", Versions: []collection.Version{
		version("3.0.0", "A"),
		version("2.0.0", "A"),
	}})

	res, err := Compare(old, next)
	require.NoError(t, err)
	assert.Equal(t, map[ChangeType]int{
		ChangeVersionRemoved: 1,
		ChangeVersionAdded:   1,
		ChangeVersionChanged: 1,
	}, res.Summary())

	var changed *Change
	for i := range res.Changes {
		if res.Changes[i].Type == ChangeVersionChanged {
			changed = &res.Changes[i]
		}
	}
	require.NotNil(t, changed)
	assert.Equal(t, "2.0.0", changed.Version)
	assert.NotEmpty(t, changed.Patches)
	assert.Contains(t, changed.Translations, "⚠️  CRITICAL: Product removed.")
	assert.Equal(t, SeverityCritical, changed.Severity)
}

func TestCompareMetadata(t *testing.T) {
	old := doc()
	next := doc()
	overview := "new overview"
	next.Overview = &overview
	next.Name = "renamed"

	res, err := Compare(old, next)
	require.NoError(t, err)
	require.Len(t, res.Changes, 1)
	assert.Equal(t, ChangeMetadataChanged, res.Changes[0].Type)
	assert.Equal(t, []string{"Collection name changed.", "Collection overview changed."}, res.Changes[0].Translations)
	assert.Equal(t, SeveritySafe, res.MaxSeverity())
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		path string
		op   string
		want string
	}{
		{"/summary", "replace", "Documentation update."},
		{"/manifests/5.9", "add", "Manifest for tools version 5.9 added."},
		{"/manifests/5.9/products/1", "add", "New product added."},
		{"/manifests/5.9/minimumPlatformVersions", "add", "⚠️  CRITICAL: Minimum platform requirement added."},
		{"/verifiedCompatibility/0", "remove", "Verified compatibility removed."},
		{"/license/url", "replace", "License changed."},
		{"/defaultToolsVersion", "replace", "Default tools version changed."},
	}
	for _, tt := range tests {
		var got string
		switch tt.op {
		case "add":
			got = translateAdd(tt.path)
		case "remove":
			got = translateRemove(tt.path)
		case "replace":
			got = translateReplace(tt.path)
		}
		assert.Equal(t, tt.want, got, tt.path)
	}
}

func TestSeverity(t *testing.T) {
	assert.Equal(t, SeverityCritical, GetSeverity("⚠️  CRITICAL: Product removed."))
	assert.Equal(t, SeverityCritical, GetSeverity("Target removed."))
	assert.Equal(t, SeveritySafe, GetSeverity("Documentation update."))
	assert.Equal(t, SeverityModerate, GetSeverity("New product added."))

	tests := []struct {
		level    SeverityLevel
		expected string
	}{
		{SeverityCritical, "critical"},
		{SeverityModerate, "moderate"},
		{SeveritySafe, "info"},
		{SeverityLevel(99), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.level.String())
	}
}
