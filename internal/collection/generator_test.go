package collection

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkgindex/pkgindex/internal/models"
	"github.com/pkgindex/pkgindex/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Unix(1610112345, 0)

func openTestStore(t *testing.T) *store.GormStore {
	t.Helper()
	s, err := store.Open(store.Config{Driver: store.DriverSQLite, DSN: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func strPtr(s string) *string { return &s }

func library(name string, targets ...string) models.Product {
	return models.Product{
		Name:    name,
		Type:    models.ProductType{Kind: models.ProductLibrary, Library: models.LibraryAutomatic},
		Targets: targets,
	}
}

func tagVersion(ref string, latest models.Latest) models.Version {
	return models.Version{
		ReferenceKind: models.ReferenceTag,
		ReferenceName: ref,
		Latest:        latest,
		PackageName:   strPtr("P1-main"),
		ToolsVersion:  strPtr("5.0"),
		CommitDate:    t0,
		Products:      []models.Product{library("P1Lib")},
		Targets:       []models.Target{{Name: "t1"}},
	}
}

func TestSignificantVersions(t *testing.T) {
	main := tagVersion("main", models.LatestDefaultBranch)
	main.ReferenceKind = models.ReferenceBranch
	noProducts := tagVersion("3.0.0", models.LatestRelease)
	noProducts.Products = nil

	versions := []models.Version{
		tagVersion("1.0.0", models.LatestNone),
		tagVersion("2.0.0-b1", models.LatestPreRelease),
		noProducts,
		tagVersion("1.2.3", models.LatestRelease),
		main,
		tagVersion("1.5.0-b1", models.LatestNone),
	}

	got := SignificantVersions(versions)
	var refs []string
	for _, v := range got {
		refs = append(refs, v.ReferenceName)
	}
	assert.Equal(t, []string{"main", "1.2.3", "2.0.0-b1"}, refs)

	released := releasedVersions(got)
	require.Len(t, released, 2)
	assert.Equal(t, "2.0.0-b1", released[0].sv.String())
	assert.Equal(t, "1.2.3", released[1].sv.String())
}

func TestReduceCompatibility(t *testing.T) {
	v1 := models.SwiftVersion{Major: 5, Minor: 8}
	v2 := models.SwiftVersion{Major: 5, Minor: 9}
	v3 := models.SwiftVersion{Major: 5, Minor: 10, Patch: 1}

	var builds []models.Build
	for _, p := range models.AllPlatforms {
		for _, s := range []models.SwiftVersion{v1, v2, v3} {
			builds = append(builds, models.Build{Platform: p, SwiftVersion: s, Status: models.BuildFailed})
		}
	}
	builds = append(builds,
		models.Build{Platform: models.PlatformIOS, SwiftVersion: v3, Status: models.BuildOK},
		models.Build{Platform: models.PlatformIOS, SwiftVersion: v2, Status: models.BuildOK},
		models.Build{Platform: models.PlatformIOS, SwiftVersion: v1, Status: models.BuildOK},
		models.Build{Platform: models.PlatformIOS, SwiftVersion: v1, Status: models.BuildOK},
	)

	got := ReduceCompatibility(builds)
	assert.Equal(t, []Compatibility{
		{Platform: Platform{Name: "ios"}, SwiftVersion: "5.8"},
		{Platform: Platform{Name: "ios"}, SwiftVersion: "5.9"},
		{Platform: Platform{Name: "ios"}, SwiftVersion: "5.10.1"},
	}, got)
}

func TestReduceCompatibilityMergesMacOS(t *testing.T) {
	s := models.SwiftVersion{Major: 5, Minor: 9}
	got := ReduceCompatibility([]models.Build{
		{Platform: models.PlatformMacOSSPM, SwiftVersion: s, Status: models.BuildOK},
		{Platform: models.PlatformMacOSXcodebuild, SwiftVersion: s, Status: models.BuildOK},
		{Platform: models.PlatformLinux, SwiftVersion: s, Status: models.BuildOK},
	})
	assert.Equal(t, []Compatibility{
		{Platform: Platform{Name: "linux"}, SwiftVersion: "5.9"},
		{Platform: Platform{Name: "macos"}, SwiftVersion: "5.9"},
	}, got)

	assert.Nil(t, ReduceCompatibility(nil))
}

func TestAuthorLabel(t *testing.T) {
	repos := []models.Repository{{Owner: "owner-0"}, {Owner: "owner-1"}, {Owner: "owner-2"}}

	assert.Nil(t, AuthorLabel(nil))
	assert.Equal(t, "owner-0", *AuthorLabel(repos[:1]))
	assert.Equal(t, "owner-0 and owner-1", *AuthorLabel(repos[:2]))
	assert.Equal(t, "multiple authors", *AuthorLabel(repos))

	dup := []models.Repository{{Owner: "foo", OwnerName: strPtr("Foo Org")}, {Owner: "foo", OwnerName: strPtr("Foo Org")}}
	assert.Equal(t, "Foo Org", *AuthorLabel(dup))
}

func TestModuleName(t *testing.T) {
	assert.Equal(t, "T1", ModuleName("T1"))
	assert.Equal(t, "T_2", ModuleName("T-2"))
	assert.Equal(t, "a_b_c_", ModuleName("a.b c!"))
}

func TestProductTypeJSON(t *testing.T) {
	data, err := json.Marshal(ProductType{Kind: models.ProductLibrary, Library: models.LibraryStatic})
	require.NoError(t, err)
	assert.JSONEq(t, `{"library":["static"]}`, string(data))

	data, err = json.Marshal(ProductType{Kind: models.ProductExecutable})
	require.NoError(t, err)
	assert.JSONEq(t, `{"executable":null}`, string(data))

	var pt ProductType
	require.NoError(t, json.Unmarshal([]byte(`{"library":["dynamic"]}`), &pt))
	assert.Equal(t, ProductType{Kind: models.ProductLibrary, Library: models.LibraryDynamic}, pt)

	assert.Error(t, json.Unmarshal([]byte(`{"widget":null}`), &pt))
	_, err = json.Marshal(ProductType{Kind: "widget"})
	assert.Error(t, err)
}

func TestGenerateFromURLs(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	v := tagVersion("1.2.3", models.LatestRelease)
	v.PackageName = strPtr("package")
	v.ToolsVersion = strPtr("5.4")
	v.ReleaseNotes = strPtr("Bar")
	v.PublishedAt = &t0
	v.SupportedPlatforms = []models.PlatformVersion{{Name: "ios", Version: "14.0"}}
	v.Products = []models.Product{library("P1", "T1"), library("P2", "T2")}
	v.Targets = []models.Target{{Name: "T1"}, {Name: "T-2"}}
	v.Builds = []models.Build{
		{Platform: models.PlatformIOS, SwiftVersion: models.SwiftVersion{Major: 5, Minor: 8}, Status: models.BuildOK},
		{Platform: models.PlatformMacOSXcodebuild, SwiftVersion: models.SwiftVersion{Major: 5, Minor: 9}, Status: models.BuildOK},
	}
	require.NoError(t, s.Import(ctx, []models.Package{{
		URL:    "https://github.com/foo/1",
		Status: models.StatusOK,
		Repository: &models.Repository{
			Owner:      "foo",
			License:    models.LicenseMIT,
			LicenseURL: strPtr("https://foo/mit"),
			Summary:    strPtr("summary"),
			Keywords:   []string{"a", "b"},
		},
		Versions: []models.Version{v},
	}}))

	rev := 3
	g := NewGenerator(s, WithClock(func() time.Time { return t0.Add(500 * time.Millisecond) }))
	res, err := g.Generate(ctx, store.ByURLs("HTTPS://GITHUB.COM/FOO/1"), Options{
		AuthorName:     "Foo",
		CollectionName: "Foo",
		Keywords:       []string{"key", "word"},
		Overview:       "overview",
		Revision:       &rev,
	})
	require.NoError(t, err)

	assert.Equal(t, "Foo", res.Name)
	assert.Equal(t, "overview", *res.Overview)
	assert.Equal(t, FormatVersion, res.FormatVersion)
	assert.True(t, t0.Equal(res.GeneratedAt))
	assert.Equal(t, &Author{Name: "Foo"}, res.GeneratedBy)
	assert.Equal(t, 3, *res.Revision)

	require.Len(t, res.Packages, 1)
	p := res.Packages[0]
	assert.Equal(t, "summary", *p.Summary)
	assert.Equal(t, []string{"a", "b"}, p.Keywords)
	assert.Equal(t, &License{Name: "MIT", URL: "https://foo/mit"}, p.License)

	require.Len(t, p.Versions, 1)
	ver := p.Versions[0]
	assert.Equal(t, "1.2.3", ver.Version)
	assert.Equal(t, "Bar", *ver.Summary)
	assert.Equal(t, "5.4", ver.DefaultToolsVersion)
	assert.True(t, t0.Equal(*ver.CreatedAt))
	assert.Equal(t, []Compatibility{
		{Platform: Platform{Name: "ios"}, SwiftVersion: "5.8"},
		{Platform: Platform{Name: "macos"}, SwiftVersion: "5.9"},
	}, ver.VerifiedCompatibility)

	m, ok := ver.Manifests[ver.DefaultToolsVersion]
	require.True(t, ok)
	assert.Equal(t, "package", m.PackageName)
	assert.Equal(t, []Target{
		{Name: "T-2", ModuleName: strPtr("T_2")},
		{Name: "T1", ModuleName: strPtr("T1")},
	}, m.Targets)
	assert.Equal(t, []Product{
		{Name: "P1", Type: ProductType{Kind: models.ProductLibrary, Library: models.LibraryAutomatic}, Targets: []string{"T1"}},
		{Name: "P2", Type: ProductType{Kind: models.ProductLibrary, Library: models.LibraryAutomatic}, Targets: []string{"T2"}},
	}, m.Products)
	assert.Equal(t, []PlatformVersion{{Name: "ios", Version: "14.0"}}, m.MinimumPlatformVersions)
}

func TestGenerateNoResults(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := NewGenerator(s).Generate(ctx, store.ByURLs("https://github.com/foo/1"), Options{})
	assert.True(t, errors.Is(err, ErrNoResults))

	// a package whose only version has no products is not publishable
	v := tagVersion("1.2.3", models.LatestRelease)
	v.Products = nil
	require.NoError(t, s.Import(ctx, []models.Package{{URL: "https://github.com/foo/1", Versions: []models.Version{v}}}))

	_, err = NewGenerator(s).Generate(ctx, store.ByURLs("https://github.com/foo/1"), Options{})
	assert.ErrorIs(t, err, ErrNoResults)
}

func TestGenerateSignificantVersionsOnly(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	main := tagVersion("main", models.LatestDefaultBranch)
	main.ReferenceKind = models.ReferenceBranch
	require.NoError(t, s.Import(ctx, []models.Package{{
		URL:        "https://github.com/foo/1",
		Repository: &models.Repository{Owner: "foo", License: models.LicenseMIT, LicenseURL: strPtr("https://foo/mit")},
		Versions: []models.Version{
			main,
			tagVersion("1.2.3", models.LatestRelease),
			tagVersion("1.0.0", models.LatestNone),
			tagVersion("2.0.0-b1", models.LatestPreRelease),
			tagVersion("1.5.0-b1", models.LatestNone),
		},
	}}))

	res, err := NewGenerator(s).Generate(ctx, store.ByAuthor("foo"), Options{CollectionName: "Foo"})
	require.NoError(t, err)
	require.Len(t, res.Packages, 1)

	var got []string
	for _, v := range res.Packages[0].Versions {
		got = append(got, v.Version)
	}
	assert.Equal(t, []string{"2.0.0-b1", "1.2.3"}, got)
}

func TestGenerateOwnerNameDefaults(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Import(ctx, []models.Package{{
		URL:        "https://github.com/foo/1",
		Repository: &models.Repository{Owner: "Foo", OwnerName: strPtr("Foo Org")},
		Versions:   []models.Version{tagVersion("2.0.0", models.LatestRelease)},
	}}))

	res, err := NewGenerator(s).Generate(ctx, store.ByAuthor("foo"), Options{AuthorName: "Foo"})
	require.NoError(t, err)
	assert.Equal(t, "Packages by Foo Org", res.Name)
	assert.Equal(t, "A collection of packages authored by Foo Org from the Swift Package Index", *res.Overview)
	assert.Nil(t, res.Packages[0].License)
}

func TestGenerateCustomCollectionOrder(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	var pkgs []models.Package
	for _, u := range []string{"https://example.com/a", "https://example.com/b", "https://example.com/c"} {
		pkgs = append(pkgs, models.Package{ID: uuid.New(), URL: u, Versions: []models.Version{tagVersion("1.0.0", models.LatestRelease)}})
	}
	require.NoError(t, s.Import(ctx, pkgs))

	c := &models.CustomCollection{Name: "List", URL: "https://example.com/list.json"}
	require.NoError(t, s.UpsertCustomCollection(ctx, c))
	require.NoError(t, s.ReplaceMembership(ctx, c.ID, []uuid.UUID{pkgs[2].ID, pkgs[0].ID}))

	res, err := NewGenerator(s).Generate(ctx, store.ByCustomCollection("List"), Options{})
	require.NoError(t, err)
	assert.Equal(t, "Package List", res.Name)
	assert.Nil(t, res.Overview)
	require.Len(t, res.Packages, 2)
	assert.Equal(t, "https://example.com/c", res.Packages[0].URL)
	assert.Equal(t, "https://example.com/a", res.Packages[1].URL)
}

func TestCollectionJSONShape(t *testing.T) {
	c := Collection{
		Name:          "c",
		Packages:      []Package{},
		FormatVersion: FormatVersion,
		GeneratedAt:   t0.UTC(),
	}
	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"c","packages":[],"formatVersion":"1.0","generatedAt":"2021-01-08T13:25:45Z"}`, string(data))
}
