package collection

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/pkgindex/pkgindex/internal/models"
	"github.com/pkgindex/pkgindex/internal/observability/logging"
	"github.com/pkgindex/pkgindex/internal/store"
)

// ErrNoResults is returned when no package matching the filter has a
// publishable version.
var ErrNoResults = errors.New("no results")

// DefaultToolsVersion keys manifests of versions that record none.
const DefaultToolsVersion = "5.0"

const component = "collection"

var nonIdentifier = regexp.MustCompile(`[^A-Za-z0-9_]`)

// Options shapes the generated document. Empty fields take defaults derived
// from the matched repositories.
type Options struct {
	AuthorName     string
	CollectionName string
	Keywords       []string
	Overview       string
	Revision       *int
	Signer         *Signer
}

// Generator renders collections from the store. It only reads.
type Generator struct {
	store store.Store
	now   func() time.Time
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithClock overrides the time source for generatedAt.
func WithClock(now func() time.Time) GeneratorOption {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

func NewGenerator(st store.Store, opts ...GeneratorOption) *Generator {
	g := &Generator{store: st, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate builds the collection for filter.
func (g *Generator) Generate(ctx context.Context, filter store.Filter, opts Options) (*Collection, error) {
	pkgs, err := g.store.QueryVersionResults(ctx, filter)
	if err != nil {
		return nil, err
	}

	repos := make([]models.Repository, 0, len(pkgs))
	packages := make([]Package, 0, len(pkgs))
	for _, p := range pkgs {
		if p.Repository != nil {
			repos = append(repos, *p.Repository)
		}
		if cp, ok := newPackage(p, opts.Signer); ok {
			packages = append(packages, cp)
		}
	}
	if len(packages) == 0 {
		return nil, fmt.Errorf("generate %s: %w", filter, ErrNoResults)
	}

	label := AuthorLabel(repos)
	name := opts.CollectionName
	if name == "" {
		if label != nil {
			name = "Packages by " + *label
		} else {
			name = "Package List"
		}
	}
	overview := opts.Overview
	if overview == "" && label != nil {
		overview = fmt.Sprintf("A collection of packages authored by %s from the Swift Package Index", *label)
	}

	c := &Collection{
		Name:          name,
		Keywords:      opts.Keywords,
		Packages:      packages,
		FormatVersion: FormatVersion,
		Revision:      opts.Revision,
		GeneratedAt:   g.now().UTC().Truncate(time.Second),
	}
	if overview != "" {
		c.Overview = &overview
	}
	if opts.AuthorName != "" {
		c.GeneratedBy = &Author{Name: opts.AuthorName}
	}

	logging.From(ctx).Info(component, "generated collection",
		"filter", filter.String(), "matched", len(pkgs), "packages", len(packages))
	return c, nil
}

// AuthorLabel names the distinct owners of repos: nil for none, the name
// for one, "a and b" for two, "multiple authors" beyond that.
func AuthorLabel(repos []models.Repository) *string {
	seen := make(map[string]bool)
	var names []string
	for _, r := range repos {
		n := r.OwnerDisplayName()
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		names = append(names, n)
	}

	var label string
	switch len(names) {
	case 0:
		return nil
	case 1:
		label = names[0]
	case 2:
		label = names[0] + " and " + names[1]
	default:
		label = "multiple authors"
	}
	return &label
}

func newPackage(p models.Package, signer *Signer) (Package, bool) {
	var license *License
	out := Package{URL: p.URL}
	if r := p.Repository; r != nil {
		out.Summary = r.Summary
		out.ReadmeURL = r.ReadmeURL
		if len(r.Keywords) > 0 {
			out.Keywords = []string(r.Keywords)
		}
		license = documentLicense(*r)
		out.License = license
	}

	for _, sv := range releasedVersions(SignificantVersions(p.Versions)) {
		if v, ok := newVersion(sv, license, signer); ok {
			out.Versions = append(out.Versions, v)
		}
	}
	if len(out.Versions) == 0 {
		return Package{}, false
	}
	return out, true
}

func newVersion(sv semverVersion, license *License, signer *Signer) (Version, bool) {
	v := sv.v
	if v.PackageName == nil || len(v.Products) == 0 {
		return Version{}, false
	}

	toolsVersion := DefaultToolsVersion
	if v.ToolsVersion != nil && *v.ToolsVersion != "" {
		toolsVersion = *v.ToolsVersion
	}

	m := Manifest{
		ToolsVersion: toolsVersion,
		PackageName:  *v.PackageName,
		Targets:      make([]Target, 0, len(v.Targets)),
		Products:     make([]Product, 0, len(v.Products)),
	}
	for _, t := range v.Targets {
		mod := ModuleName(t.Name)
		m.Targets = append(m.Targets, Target{Name: t.Name, ModuleName: &mod})
	}
	for _, p := range v.Products {
		targets := []string(p.Targets)
		if targets == nil {
			targets = []string{}
		}
		m.Products = append(m.Products, Product{
			Name:    p.Name,
			Type:    ProductType{Kind: p.Type.Kind, Library: p.Type.Library},
			Targets: targets,
		})
	}
	for _, pv := range v.SupportedPlatforms {
		m.MinimumPlatformVersions = append(m.MinimumPlatformVersions, PlatformVersion{Name: pv.Name, Version: pv.Version})
	}

	out := Version{
		Version:               sv.sv.String(),
		Summary:               v.ReleaseNotes,
		Manifests:             map[string]Manifest{toolsVersion: m},
		DefaultToolsVersion:   toolsVersion,
		VerifiedCompatibility: ReduceCompatibility(v.Builds),
		License:               license,
		Signer:                signer,
	}
	if v.PublishedAt != nil {
		t := v.PublishedAt.UTC()
		out.CreatedAt = &t
	}
	return out, true
}

func documentLicense(r models.Repository) *License {
	if r.License == models.LicenseNone || r.License == "" || r.LicenseURL == nil {
		return nil
	}
	return &License{Name: r.License.ShortName(), URL: *r.LicenseURL}
}

// ModuleName derives a module name from a target name by replacing every
// character outside [A-Za-z0-9_] with an underscore.
func ModuleName(target string) string {
	return nonIdentifier.ReplaceAllString(target, "_")
}
