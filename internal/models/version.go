package models

import (
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ReferenceKind distinguishes tag and branch references
type ReferenceKind string

const (
	ReferenceTag    ReferenceKind = "tag"
	ReferenceBranch ReferenceKind = "branch"
)

// Latest marks the version that currently represents a kind of release.
// At most one version per package holds each value other than LatestNone.
type Latest string

const (
	LatestNone          Latest = "none"
	LatestRelease       Latest = "release"
	LatestPreRelease    Latest = "preRelease"
	LatestDefaultBranch Latest = "defaultBranch"
)

// PlatformVersion is a minimum deployment target declared by a manifest.
type PlatformVersion struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Version is one git reference of a package with its analysed manifest.
type Version struct {
	ID                 uuid.UUID                            `gorm:"type:uuid;primaryKey" json:"id"`
	PackageID          uuid.UUID                            `gorm:"type:uuid;not null;index" json:"package_id"`
	ReferenceKind      ReferenceKind                        `gorm:"size:16;not null" json:"reference_kind"`
	ReferenceName      string                               `gorm:"size:255;not null" json:"reference_name"`
	Latest             Latest                               `gorm:"size:16;not null;default:none" json:"latest"`
	PackageName        *string                              `json:"package_name,omitempty"`
	ToolsVersion       *string                              `gorm:"size:32" json:"tools_version,omitempty"`
	ReleaseNotes       *string                              `gorm:"type:text" json:"release_notes,omitempty"`
	PublishedAt        *time.Time                           `json:"published_at,omitempty"`
	CommitDate         time.Time                            `json:"commit_date"`
	SupportedPlatforms datatypes.JSONSlice[PlatformVersion] `json:"supported_platforms,omitempty"`
	CreatedAt          time.Time                            `json:"created_at"`

	Products []Product `gorm:"foreignKey:VersionID;constraint:OnDelete:CASCADE" json:"products,omitempty"`
	Targets  []Target  `gorm:"foreignKey:VersionID;constraint:OnDelete:CASCADE" json:"targets,omitempty"`
	Builds   []Build   `gorm:"foreignKey:VersionID;constraint:OnDelete:CASCADE" json:"builds,omitempty"`
}

func (v *Version) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	if v.Latest == "" {
		v.Latest = LatestNone
	}
	return nil
}

// SemVer parses the reference as a semantic version. Branches never have one.
func (v Version) SemVer() (*semver.Version, bool) {
	if v.ReferenceKind != ReferenceTag {
		return nil, false
	}
	sv, err := semver.NewVersion(v.ReferenceName)
	if err != nil {
		return nil, false
	}
	return sv, true
}

// Product is a buildable artifact declared by a version's manifest.
type Product struct {
	ID        uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"id"`
	VersionID uuid.UUID                   `gorm:"type:uuid;not null;index" json:"version_id"`
	Name      string                      `gorm:"size:255;not null" json:"name"`
	Type      ProductType                 `gorm:"embedded;embeddedPrefix:type_" json:"type"`
	Targets   datatypes.JSONSlice[string] `json:"targets,omitempty"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// ProductKind enumerates manifest product kinds
type ProductKind string

const (
	ProductLibrary    ProductKind = "library"
	ProductExecutable ProductKind = "executable"
	ProductPlugin     ProductKind = "plugin"
	ProductTest       ProductKind = "test"
	ProductMacro      ProductKind = "macro"
	ProductSnippet    ProductKind = "snippet"
)

// LibraryType is the linkage of a library product
type LibraryType string

const (
	LibraryAutomatic LibraryType = "automatic"
	LibraryStatic    LibraryType = "static"
	LibraryDynamic   LibraryType = "dynamic"
)

// ProductType is a product kind plus, for libraries, its linkage.
type ProductType struct {
	Kind    ProductKind `gorm:"size:16;not null" json:"kind"`
	Library LibraryType `gorm:"size:16" json:"library,omitempty"`
}

// Target is a compile target of a version.
type Target struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	VersionID uuid.UUID `gorm:"type:uuid;not null;index" json:"version_id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
}

func (t *Target) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
