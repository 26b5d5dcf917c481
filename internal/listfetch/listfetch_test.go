package listfetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkgindex/pkgindex/internal/fetch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, routes map[string]string) (*Client, string) {
	t.Helper()
	mux := http.NewServeMux()
	for path, body := range routes {
		body := body
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		})
	}
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	f := fetch.NewFetcher()
	t.Cleanup(f.Close)

	return NewClient(Config{
		PackageListURL:       server.URL + "/packages.json",
		DenyListURL:          server.URL + "/denylist.json",
		CustomCollectionsURL: server.URL + "/collections.json",
	}, f), server.URL
}

func TestFetchPackageList(t *testing.T) {
	c, _ := newTestClient(t, map[string]string{
		"/packages.json": `["https://github.com/a/a.git", 42, "not a url", "https://github.com/b/b.git"]`,
	})

	urls, err := c.FetchPackageList(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"https://github.com/a/a.git", "https://github.com/b/b.git"}, urls)
}

func TestFetchPackageDenyList(t *testing.T) {
	c, _ := newTestClient(t, map[string]string{
		"/denylist.json": `[{"package_url": "https://github.com/bad/bad.git", "reason": "spam"}, {"url": "x"}, "str"]`,
	})

	urls, err := c.FetchPackageDenyList(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"https://github.com/bad/bad.git"}, urls)
}

func TestFetchCustomCollections(t *testing.T) {
	c, base := newTestClient(t, map[string]string{
		"/collections.json": `[
			{"name": "Featured", "url": "https://example.com/featured.json", "badge": "New"},
			{"name": "", "url": "https://example.com/nameless.json"},
			{"name": "Broken", "url": "::"}
		]`,
		"/featured.json": `["https://github.com/a/a.git"]`,
	})

	details, err := c.FetchCustomCollections(context.Background())
	require.NoError(t, err)
	require.Len(t, details, 1)
	assert.Equal(t, "Featured", details[0].Name)
	require.NotNil(t, details[0].Badge)
	assert.Equal(t, "New", *details[0].Badge)

	urls, err := c.FetchCustomCollection(context.Background(), base+"/featured.json")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://github.com/a/a.git"}, urls)
}

func TestFetchFailures(t *testing.T) {
	c, base := newTestClient(t, map[string]string{
		"/packages.json": `{"not": "a list"}`,
	})
	ctx := context.Background()

	_, err := c.FetchPackageList(ctx)
	assert.ErrorIs(t, err, ErrFetchFailed, "top-level decode failure")

	_, err = c.FetchPackageDenyList(ctx)
	assert.ErrorIs(t, err, ErrFetchFailed, "404")
	assert.ErrorIs(t, err, fetch.ErrNotFound)

	_, err = c.FetchCustomCollection(ctx, base+"/missing.json")
	assert.ErrorIs(t, err, ErrFetchFailed)

	empty := NewClient(Config{}, nil)
	_, err = empty.FetchPackageList(ctx)
	assert.ErrorIs(t, err, ErrFetchFailed)
}
