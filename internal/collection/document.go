// Package collection builds package collection documents (format 1.0) from
// the catalog.
package collection

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkgindex/pkgindex/internal/models"
)

// FormatVersion is the only document format produced.
const FormatVersion = "1.0"

// Collection is a package collection document.
type Collection struct {
	Name          string    `json:"name"`
	Overview      *string   `json:"overview,omitempty"`
	Keywords      []string  `json:"keywords,omitempty"`
	Packages      []Package `json:"packages"`
	FormatVersion string    `json:"formatVersion"`
	Revision      *int      `json:"revision,omitempty"`
	GeneratedAt   time.Time `json:"generatedAt"`
	GeneratedBy   *Author   `json:"generatedBy,omitempty"`
}

// Package is one package entry of a collection.
type Package struct {
	URL       string    `json:"url"`
	Summary   *string   `json:"summary,omitempty"`
	Keywords  []string  `json:"keywords,omitempty"`
	ReadmeURL *string   `json:"readmeURL,omitempty"`
	License   *License  `json:"license,omitempty"`
	Versions  []Version `json:"versions"`
}

// Version is a released version of a package.
type Version struct {
	Version               string              `json:"version"`
	Summary               *string             `json:"summary,omitempty"`
	Manifests             map[string]Manifest `json:"manifests"`
	DefaultToolsVersion   string              `json:"defaultToolsVersion"`
	VerifiedCompatibility []Compatibility     `json:"verifiedCompatibility,omitempty"`
	License               *License            `json:"license,omitempty"`
	Author                *Author             `json:"author,omitempty"`
	Signer                *Signer             `json:"signer,omitempty"`
	CreatedAt             *time.Time          `json:"createdAt,omitempty"`
}

// Manifest describes a version under one tools version.
type Manifest struct {
	ToolsVersion            string            `json:"toolsVersion"`
	PackageName             string            `json:"packageName"`
	Targets                 []Target          `json:"targets"`
	Products                []Product         `json:"products"`
	MinimumPlatformVersions []PlatformVersion `json:"minimumPlatformVersions,omitempty"`
}

type Target struct {
	Name       string  `json:"name"`
	ModuleName *string `json:"moduleName,omitempty"`
}

type Product struct {
	Name    string      `json:"name"`
	Type    ProductType `json:"type"`
	Targets []string    `json:"targets"`
}

// ProductType encodes as a single-key object: {"library":["automatic"]},
// {"executable":null} and so on.
type ProductType struct {
	Kind    models.ProductKind
	Library models.LibraryType
}

func (p ProductType) MarshalJSON() ([]byte, error) {
	switch p.Kind {
	case models.ProductLibrary:
		lib := p.Library
		if lib == "" {
			lib = models.LibraryAutomatic
		}
		return json.Marshal(map[string][]models.LibraryType{string(p.Kind): {lib}})
	case models.ProductExecutable, models.ProductPlugin, models.ProductTest,
		models.ProductMacro, models.ProductSnippet:
		return json.Marshal(map[string]any{string(p.Kind): nil})
	default:
		return nil, fmt.Errorf("unknown product kind %q", p.Kind)
	}
}

func (p *ProductType) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 1 {
		return fmt.Errorf("product type: want one key, got %d", len(raw))
	}
	for k, v := range raw {
		kind := models.ProductKind(k)
		switch kind {
		case models.ProductLibrary:
			var libs []models.LibraryType
			if err := json.Unmarshal(v, &libs); err != nil {
				return fmt.Errorf("product type library: %w", err)
			}
			if len(libs) != 1 {
				return fmt.Errorf("product type library: want one linkage, got %d", len(libs))
			}
			*p = ProductType{Kind: kind, Library: libs[0]}
		case models.ProductExecutable, models.ProductPlugin, models.ProductTest,
			models.ProductMacro, models.ProductSnippet:
			*p = ProductType{Kind: kind}
		default:
			return fmt.Errorf("unknown product kind %q", k)
		}
	}
	return nil
}

type PlatformVersion struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type Platform struct {
	Name string `json:"name"`
}

// Compatibility is a platform and Swift version a version built cleanly on.
type Compatibility struct {
	Platform     Platform `json:"platform"`
	SwiftVersion string   `json:"swiftVersion"`
}

type License struct {
	Name string `json:"name,omitempty"`
	URL  string `json:"url"`
}

type Author struct {
	Name string `json:"name"`
}

// Signer identifies who signed a version's release.
type Signer struct {
	Type                   string `json:"type"`
	CommonName             string `json:"commonName"`
	OrganizationalUnitName string `json:"organizationalUnitName"`
	OrganizationName       string `json:"organizationName"`
}
