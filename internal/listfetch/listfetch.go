// Package listfetch reads the external package lists that drive
// reconciliation: the main list, the deny list and custom collections.
package listfetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/pkgindex/pkgindex/internal/fetch"
)

// ErrFetchFailed marks any failure to obtain or decode a list as a whole.
var ErrFetchFailed = errors.New("fetch failed")

// CollectionDetails names a custom collection and the list that feeds it.
type CollectionDetails struct {
	Name        string  `json:"name"`
	URL         string  `json:"url"`
	Description *string `json:"description,omitempty"`
	Badge       *string `json:"badge,omitempty"`
}

// Source is what the reconciler consumes.
type Source interface {
	FetchPackageList(ctx context.Context) ([]string, error)
	FetchPackageDenyList(ctx context.Context) ([]string, error)
	FetchCustomCollections(ctx context.Context) ([]CollectionDetails, error)
	FetchCustomCollection(ctx context.Context, url string) ([]string, error)
}

// Config holds the list locations.
type Config struct {
	PackageListURL       string
	DenyListURL          string
	CustomCollectionsURL string
}

// Client fetches lists over HTTP.
type Client struct {
	cfg    Config
	getter fetch.Getter
}

var _ Source = (*Client)(nil)

func NewClient(cfg Config, getter fetch.Getter) *Client {
	return &Client{cfg: cfg, getter: getter}
}

// FetchPackageList returns the main list in source order.
func (c *Client) FetchPackageList(ctx context.Context) ([]string, error) {
	var raw []json.RawMessage
	if err := c.getJSON(ctx, "package list", c.cfg.PackageListURL, &raw); err != nil {
		return nil, err
	}
	return decodeURLs(raw, func(m json.RawMessage) (string, error) {
		var s string
		err := json.Unmarshal(m, &s)
		return s, err
	}), nil
}

// FetchPackageDenyList returns denied package URLs. Wire entries are
// objects carrying a package_url field.
func (c *Client) FetchPackageDenyList(ctx context.Context) ([]string, error) {
	var raw []json.RawMessage
	if err := c.getJSON(ctx, "deny list", c.cfg.DenyListURL, &raw); err != nil {
		return nil, err
	}
	return decodeURLs(raw, func(m json.RawMessage) (string, error) {
		var entry struct {
			PackageURL string `json:"package_url"`
		}
		err := json.Unmarshal(m, &entry)
		return entry.PackageURL, err
	}), nil
}

// FetchCustomCollections returns the collection index. Entries missing a
// name or a valid URL are dropped.
func (c *Client) FetchCustomCollections(ctx context.Context) ([]CollectionDetails, error) {
	var raw []json.RawMessage
	if err := c.getJSON(ctx, "custom collections", c.cfg.CustomCollectionsURL, &raw); err != nil {
		return nil, err
	}
	out := make([]CollectionDetails, 0, len(raw))
	for _, m := range raw {
		var d CollectionDetails
		if err := json.Unmarshal(m, &d); err != nil {
			continue
		}
		if d.Name == "" || !validURL(d.URL) {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// FetchCustomCollection returns the package URLs of one collection.
func (c *Client) FetchCustomCollection(ctx context.Context, listURL string) ([]string, error) {
	var raw []json.RawMessage
	if err := c.getJSON(ctx, "custom collection", listURL, &raw); err != nil {
		return nil, err
	}
	return decodeURLs(raw, func(m json.RawMessage) (string, error) {
		var s string
		err := json.Unmarshal(m, &s)
		return s, err
	}), nil
}

func (c *Client) getJSON(ctx context.Context, what, src string, v any) error {
	if src == "" {
		return fmt.Errorf("%w: %s: no url configured", ErrFetchFailed, what)
	}
	body, err := c.getter.Get(ctx, src)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrFetchFailed, what, err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %s: decode: %w", ErrFetchFailed, what, err)
	}
	return nil
}

// decodeURLs decodes each entry independently; undecodable entries and
// entries that are not absolute http(s) URLs are skipped.
func decodeURLs(raw []json.RawMessage, decode func(json.RawMessage) (string, error)) []string {
	out := make([]string, 0, len(raw))
	for _, m := range raw {
		s, err := decode(m)
		if err != nil || !validURL(s) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func validURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "https" || u.Scheme == "http") && u.Host != ""
}
