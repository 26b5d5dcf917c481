// Package store is the persistence boundary for the catalog. The gorm
// implementation runs on SQLite or PostgreSQL.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/pkgindex/pkgindex/internal/models"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("not found")

// Store is the unit-of-work scoped view of the catalog.
type Store interface {
	// Transaction runs fn against a Store bound to a single transaction.
	// Any error from fn rolls back every write made through tx.
	Transaction(ctx context.Context, fn func(tx Store) error) error

	PackageURLs(ctx context.Context) ([]string, error)
	AddPackages(ctx context.Context, urls []string) error
	// DeletePackages removes packages and every row that depends on them.
	DeletePackages(ctx context.Context, urls []string) error
	// PackagesByURL matches urls case-insensitively.
	PackagesByURL(ctx context.Context, urls []string) ([]models.Package, error)

	UpsertCustomCollection(ctx context.Context, c *models.CustomCollection) error
	CustomCollectionByName(ctx context.Context, name string) (*models.CustomCollection, error)
	CollectionMembers(ctx context.Context, collectionID uuid.UUID) ([]uuid.UUID, error)
	// ReplaceMembership makes the collection's members exactly packageIDs,
	// in that order.
	ReplaceMembership(ctx context.Context, collectionID uuid.UUID, packageIDs []uuid.UUID) error

	// QueryVersionResults returns matching packages with repository,
	// versions, products, targets and builds loaded.
	QueryVersionResults(ctx context.Context, filter Filter) ([]models.Package, error)

	// Import creates packages together with their loaded associations.
	Import(ctx context.Context, pkgs []models.Package) error
}
