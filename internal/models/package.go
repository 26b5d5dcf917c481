// Package models defines the persisted catalog entities.
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Status of a package in the ingestion pipeline
type Status string

const (
	StatusNew             Status = "new"
	StatusOK              Status = "ok"
	StatusNotFound        Status = "notFound"
	StatusNoValidVersions Status = "noValidVersions"
	StatusAnalysisFailed  Status = "analysisFailed"
	StatusIngestionFailed Status = "ingestionFailed"
)

// ProcessingStage is the last pipeline stage that touched a package
type ProcessingStage string

const (
	StageReconciliation ProcessingStage = "reconciliation"
	StageIngestion      ProcessingStage = "ingestion"
	StageAnalysis       ProcessingStage = "analysis"
)

// Package is a catalog entry identified by its origin URL.
type Package struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	URL             string          `gorm:"not null;uniqueIndex" json:"url"`
	Status          Status          `gorm:"size:32;not null" json:"status"`
	ProcessingStage ProcessingStage `gorm:"size:32" json:"processing_stage,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`

	Repository *Repository `gorm:"foreignKey:PackageID;constraint:OnDelete:CASCADE" json:"repository,omitempty"`
	Versions   []Version   `gorm:"foreignKey:PackageID;constraint:OnDelete:CASCADE" json:"versions,omitempty"`
}

// NewPackage returns a package freshly admitted by reconciliation.
func NewPackage(url string) Package {
	return Package{
		ID:              uuid.New(),
		URL:             url,
		Status:          StatusNew,
		ProcessingStage: StageReconciliation,
	}
}

func (p *Package) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = StatusNew
	}
	return nil
}

// Repository holds the hosting metadata ingested for a package.
type Repository struct {
	ID         uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"id"`
	PackageID  uuid.UUID                   `gorm:"type:uuid;not null;uniqueIndex" json:"package_id"`
	Name       string                      `gorm:"size:255" json:"name"`
	Owner      string                      `gorm:"size:255;index" json:"owner"`
	OwnerName  *string                     `gorm:"size:255" json:"owner_name,omitempty"`
	Summary    *string                     `gorm:"type:text" json:"summary,omitempty"`
	Keywords   datatypes.JSONSlice[string] `json:"keywords,omitempty"`
	ReadmeURL  *string                     `json:"readme_url,omitempty"`
	LicenseURL *string                     `json:"license_url,omitempty"`
	License    License                     `gorm:"size:32;not null;default:none" json:"license"`
}

func (r *Repository) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.License == "" {
		r.License = LicenseNone
	}
	return nil
}

// OwnerDisplayName prefers the owner's display name over the login.
func (r Repository) OwnerDisplayName() string {
	if r.OwnerName != nil && *r.OwnerName != "" {
		return *r.OwnerName
	}
	return r.Owner
}
