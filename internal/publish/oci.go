// Package publish distributes signed collections as single-layer OCI
// artifacts.
package publish

import (
	"context"
	"fmt"
	"io"

	"github.com/google/go-containerregistry/pkg/crane"
	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/empty"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	"github.com/google/go-containerregistry/pkg/v1/static"
	"github.com/google/go-containerregistry/pkg/v1/types"
	"github.com/pkgindex/pkgindex/internal/observability/logging"
)

const (
	// MediaTypeSignedCollection is the layer media type of a pushed document.
	MediaTypeSignedCollection types.MediaType = "application/vnd.pkgindex.collection.signed.v1+json"
	// MediaTypeConfig marks the artifact config blob.
	MediaTypeConfig types.MediaType = "application/vnd.pkgindex.collection.config.v1+json"

	annotationTitle = "org.opencontainers.image.title"
	component       = "publish"
)

// Result identifies a pushed artifact.
type Result struct {
	Reference string
	Digest    string
}

type options struct {
	insecure bool
	title    string
}

type Option func(*options)

// WithInsecure allows plain HTTP registries.
func WithInsecure() Option {
	return func(o *options) { o.insecure = true }
}

// WithTitle sets the artifact title annotation.
func WithTitle(title string) Option {
	return func(o *options) { o.title = title }
}

func (o options) craneOptions(ctx context.Context) []crane.Option {
	opts := []crane.Option{crane.WithContext(ctx)}
	if o.insecure {
		opts = append(opts, crane.Insecure)
	}
	return opts
}

func (o options) nameOptions() []name.Option {
	if o.insecure {
		return []name.Option{name.Insecure}
	}
	return nil
}

// Push uploads document to ref and returns the manifest digest.
func Push(ctx context.Context, document []byte, ref string, opts ...Option) (*Result, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	r, err := name.ParseReference(ref, o.nameOptions()...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse reference: %w", err)
	}

	img, err := mutate.AppendLayers(empty.Image, static.NewLayer(document, MediaTypeSignedCollection))
	if err != nil {
		return nil, fmt.Errorf("failed to build artifact: %w", err)
	}
	img = mutate.MediaType(img, types.OCIManifestSchema1)
	img = mutate.ConfigMediaType(img, MediaTypeConfig)
	if o.title != "" {
		img = mutate.Annotations(img, map[string]string{annotationTitle: o.title}).(v1.Image)
	}

	if err := crane.Push(img, r.String(), o.craneOptions(ctx)...); err != nil {
		return nil, fmt.Errorf("failed to push %s: %w", r, err)
	}

	digest, err := img.Digest()
	if err != nil {
		return nil, fmt.Errorf("failed to compute digest: %w", err)
	}

	logging.From(ctx).Info(component, "pushed collection", "ref", r.String(), "digest", digest.String())
	return &Result{Reference: r.Context().Digest(digest.String()).String(), Digest: digest.String()}, nil
}

// Pull fetches the document pushed to ref.
func Pull(ctx context.Context, ref string, opts ...Option) ([]byte, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	img, err := crane.Pull(ref, o.craneOptions(ctx)...)
	if err != nil {
		return nil, fmt.Errorf("failed to pull %s: %w", ref, err)
	}
	layers, err := img.Layers()
	if err != nil {
		return nil, fmt.Errorf("failed to read layers: %w", err)
	}

	for _, l := range layers {
		mt, err := l.MediaType()
		if err != nil {
			return nil, err
		}
		if mt != MediaTypeSignedCollection {
			continue
		}
		rc, err := l.Uncompressed()
		if err != nil {
			return nil, fmt.Errorf("failed to open layer: %w", err)
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("%s: no %s layer", ref, MediaTypeSignedCollection)
}

// ResolveDigest returns the manifest digest of ref.
func ResolveDigest(ctx context.Context, ref string, opts ...Option) (string, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	digest, err := crane.Digest(ref, o.craneOptions(ctx)...)
	if err != nil {
		return "", fmt.Errorf("failed to resolve digest: %w", err)
	}
	return digest, nil
}
