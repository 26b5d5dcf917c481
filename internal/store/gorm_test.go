package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/pkgindex/pkgindex/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *GormStore {
	t.Helper()
	s, err := Open(Config{Driver: DriverSQLite, DSN: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func strPtr(s string) *string { return &s }

func TestAddAndListPackages(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.AddPackages(ctx, []string{"https://example.com/b", "https://example.com/a"}))

	urls, err := s.PackageURLs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/a", "https://example.com/b"}, urls)

	pkgs, err := s.PackagesByURL(ctx, []string{"HTTPS://EXAMPLE.COM/A/"})
	require.NoError(t, err)
	require.Len(t, pkgs, 1)
	assert.Equal(t, models.StatusNew, pkgs[0].Status)
	assert.Equal(t, models.StageReconciliation, pkgs[0].ProcessingStage)
}

func TestDeletePackagesCascades(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	pkg := models.Package{
		URL:        "https://example.com/owner/repo",
		Status:     models.StatusOK,
		Repository: &models.Repository{Name: "repo", Owner: "owner"},
		Versions: []models.Version{{
			ReferenceKind: models.ReferenceTag,
			ReferenceName: "1.0.0",
			Latest:        models.LatestRelease,
			Products:      []models.Product{{Name: "P", Type: models.ProductType{Kind: models.ProductLibrary, Library: models.LibraryAutomatic}}},
			Targets:       []models.Target{{Name: "T"}},
			Builds:        []models.Build{{Platform: models.PlatformLinux, Status: models.BuildOK}},
		}},
	}
	require.NoError(t, s.Import(ctx, []models.Package{pkg}))

	c := &models.CustomCollection{Name: "c", URL: "https://example.com/c.json"}
	require.NoError(t, s.UpsertCustomCollection(ctx, c))
	imported, err := s.PackagesByURL(ctx, []string{pkg.URL})
	require.NoError(t, err)
	require.NoError(t, s.ReplaceMembership(ctx, c.ID, []uuid.UUID{imported[0].ID}))

	require.NoError(t, s.DeletePackages(ctx, []string{"https://example.com/OWNER/repo"}))

	for _, m := range []any{&models.Package{}, &models.Repository{}, &models.Version{}, &models.Product{}, &models.Target{}, &models.Build{}, &models.CustomCollectionPackage{}} {
		var n int64
		require.NoError(t, s.db.Model(m).Count(&n).Error)
		assert.Zero(t, n, "%T rows left", m)
	}
}

func TestTransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	err := s.Transaction(ctx, func(tx Store) error {
		require.NoError(t, tx.AddPackages(ctx, []string{"https://example.com/a"}))
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	urls, err := s.PackageURLs(ctx)
	require.NoError(t, err)
	assert.Empty(t, urls)
}

func TestUpsertCustomCollection(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	first := &models.CustomCollection{Name: "List", URL: "https://example.com/a.json"}
	require.NoError(t, s.UpsertCustomCollection(ctx, first))

	second := &models.CustomCollection{Name: "List", URL: "https://example.com/b.json", Badge: strPtr("New")}
	require.NoError(t, s.UpsertCustomCollection(ctx, second))
	assert.Equal(t, first.ID, second.ID)

	got, err := s.CustomCollectionByName(ctx, "List")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/b.json", got.URL)
	require.NotNil(t, got.Badge)
	assert.Equal(t, "New", *got.Badge)

	_, err = s.CustomCollectionByName(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReplaceMembership(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	urls := []string{"https://example.com/1", "https://example.com/2", "https://example.com/3"}
	require.NoError(t, s.AddPackages(ctx, urls))
	pkgs, err := s.PackagesByURL(ctx, urls)
	require.NoError(t, err)
	ids := map[string]uuid.UUID{}
	for _, p := range pkgs {
		ids[p.URL] = p.ID
	}

	c := &models.CustomCollection{Name: "c", URL: "https://example.com/c.json"}
	require.NoError(t, s.UpsertCustomCollection(ctx, c))

	want := []uuid.UUID{ids[urls[0]], ids[urls[1]]}
	require.NoError(t, s.ReplaceMembership(ctx, c.ID, want))
	got, err := s.CollectionMembers(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	want = []uuid.UUID{ids[urls[2]], ids[urls[0]]}
	require.NoError(t, s.ReplaceMembership(ctx, c.ID, want))
	got, err = s.CollectionMembers(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, s.ReplaceMembership(ctx, c.ID, nil))
	got, err = s.CollectionMembers(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestQueryVersionResults(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	mk := func(url, owner string) models.Package {
		return models.Package{
			URL:        url,
			Status:     models.StatusOK,
			Repository: &models.Repository{Name: "r", Owner: owner},
			Versions: []models.Version{{
				ReferenceKind: models.ReferenceTag,
				ReferenceName: "1.0.0",
				Latest:        models.LatestRelease,
				Products:      []models.Product{{Name: "b"}, {Name: "a"}},
				Builds:        []models.Build{{Platform: models.PlatformIOS, Status: models.BuildOK}},
			}},
		}
	}
	require.NoError(t, s.Import(ctx, []models.Package{
		mk("https://example.com/foo/1", "foo"),
		mk("https://example.com/foo/2", "Foo"),
		mk("https://example.com/bar/1", "bar"),
	}))

	t.Run("urls", func(t *testing.T) {
		res, err := s.QueryVersionResults(ctx, ByURLs("https://EXAMPLE.com/foo/2", "https://example.com/none"))
		require.NoError(t, err)
		require.Len(t, res, 1)
		assert.Equal(t, "https://example.com/foo/2", res[0].URL)
		require.NotNil(t, res[0].Repository)
		require.Len(t, res[0].Versions, 1)
		require.Len(t, res[0].Versions[0].Products, 2)
		assert.Equal(t, "a", res[0].Versions[0].Products[0].Name)
		assert.Len(t, res[0].Versions[0].Builds, 1)
	})

	t.Run("author", func(t *testing.T) {
		res, err := s.QueryVersionResults(ctx, ByAuthor("FOO"))
		require.NoError(t, err)
		require.Len(t, res, 2)
		assert.Equal(t, "https://example.com/foo/1", res[0].URL)
		assert.Equal(t, "https://example.com/foo/2", res[1].URL)
	})

	t.Run("custom collection", func(t *testing.T) {
		pkgs, err := s.PackagesByURL(ctx, []string{"https://example.com/bar/1", "https://example.com/foo/1"})
		require.NoError(t, err)
		byURL := map[string]uuid.UUID{}
		for _, p := range pkgs {
			byURL[p.URL] = p.ID
		}
		c := &models.CustomCollection{Name: "Picks", URL: "https://example.com/picks.json"}
		require.NoError(t, s.UpsertCustomCollection(ctx, c))
		require.NoError(t, s.ReplaceMembership(ctx, c.ID, []uuid.UUID{byURL["https://example.com/foo/1"], byURL["https://example.com/bar/1"]}))

		res, err := s.QueryVersionResults(ctx, ByCustomCollection("Picks"))
		require.NoError(t, err)
		require.Len(t, res, 2)
		assert.Equal(t, "https://example.com/foo/1", res[0].URL)
		assert.Equal(t, "https://example.com/bar/1", res[1].URL)
	})
}
