package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/pkgindex/pkgindex/internal/identity"
	"github.com/pkgindex/pkgindex/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// batchSize bounds IN clauses and batched inserts
const batchSize = 500

// Config selects the database backend.
type Config struct {
	Driver string
	DSN    string
	// Debug logs every statement.
	Debug bool
}

// GormStore implements Store on gorm.
type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

// Open connects to the configured database and migrates the schema.
func Open(cfg Config) (*GormStore, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case DriverSQLite, "":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "pkgindex.db"
		}
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	level := logger.Silent
	if cfg.Debug {
		level = logger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(level)})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Driver, err)
	}

	if cfg.Driver == DriverSQLite || cfg.Driver == "" {
		// SQLite allows a single writer; one connection serializes transactions
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	s := &GormStore{db: db}
	if err := s.Migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewGormStore wraps an existing connection without migrating.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate creates or updates every catalog table.
func (s *GormStore) Migrate() error {
	if err := s.db.AutoMigrate(
		&models.Package{},
		&models.Repository{},
		&models.Version{},
		&models.Product{},
		&models.Target{},
		&models.Build{},
		&models.CustomCollection{},
		&models.CustomCollectionPackage{},
	); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func (s *GormStore) PackageURLs(ctx context.Context) ([]string, error) {
	var urls []string
	if err := s.db.WithContext(ctx).Model(&models.Package{}).Order("url").Pluck("url", &urls).Error; err != nil {
		return nil, fmt.Errorf("list package urls: %w", err)
	}
	return urls, nil
}

func (s *GormStore) AddPackages(ctx context.Context, urls []string) error {
	if len(urls) == 0 {
		return nil
	}
	pkgs := make([]models.Package, 0, len(urls))
	for _, u := range urls {
		pkgs = append(pkgs, models.NewPackage(u))
	}
	if err := s.db.WithContext(ctx).CreateInBatches(pkgs, batchSize).Error; err != nil {
		return fmt.Errorf("add packages: %w", err)
	}
	return nil
}

func (s *GormStore) DeletePackages(ctx context.Context, urls []string) error {
	if len(urls) == 0 {
		return nil
	}
	pkgs, err := s.PackagesByURL(ctx, urls)
	if err != nil {
		return err
	}
	if len(pkgs) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(pkgs))
	for i, p := range pkgs {
		ids[i] = p.ID
	}

	db := s.db.WithContext(ctx)
	for _, chunk := range chunks(ids) {
		var versionIDs []uuid.UUID
		if err := db.Model(&models.Version{}).Where("package_id IN ?", chunk).Pluck("id", &versionIDs).Error; err != nil {
			return fmt.Errorf("list versions: %w", err)
		}
		for _, vchunk := range chunks(versionIDs) {
			for _, dep := range []any{&models.Build{}, &models.Product{}, &models.Target{}} {
				if err := db.Where("version_id IN ?", vchunk).Delete(dep).Error; err != nil {
					return fmt.Errorf("delete version dependents: %w", err)
				}
			}
		}
		if err := db.Where("package_id IN ?", chunk).Delete(&models.Version{}).Error; err != nil {
			return fmt.Errorf("delete versions: %w", err)
		}
		if err := db.Where("package_id IN ?", chunk).Delete(&models.Repository{}).Error; err != nil {
			return fmt.Errorf("delete repositories: %w", err)
		}
		if err := db.Where("package_id IN ?", chunk).Delete(&models.CustomCollectionPackage{}).Error; err != nil {
			return fmt.Errorf("delete collection memberships: %w", err)
		}
		if err := db.Where("id IN ?", chunk).Delete(&models.Package{}).Error; err != nil {
			return fmt.Errorf("delete packages: %w", err)
		}
	}
	return nil
}

func (s *GormStore) PackagesByURL(ctx context.Context, urls []string) ([]models.Package, error) {
	keys := urlKeys(urls)
	var out []models.Package
	for _, chunk := range chunks(keys) {
		var batch []models.Package
		if err := s.db.WithContext(ctx).Where("LOWER(url) IN ?", chunk).Find(&batch).Error; err != nil {
			return nil, fmt.Errorf("find packages: %w", err)
		}
		out = append(out, batch...)
	}
	return out, nil
}

func (s *GormStore) UpsertCustomCollection(ctx context.Context, c *models.CustomCollection) error {
	db := s.db.WithContext(ctx)
	var existing models.CustomCollection
	err := db.Where("name = ?", c.Name).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := db.Create(c).Error; err != nil {
			return fmt.Errorf("create custom collection %q: %w", c.Name, err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("find custom collection %q: %w", c.Name, err)
	}

	c.ID = existing.ID
	c.CreatedAt = existing.CreatedAt
	if err := db.Model(&existing).Select("url", "description", "badge").Updates(models.CustomCollection{
		URL:         c.URL,
		Description: c.Description,
		Badge:       c.Badge,
	}).Error; err != nil {
		return fmt.Errorf("update custom collection %q: %w", c.Name, err)
	}
	return nil
}

func (s *GormStore) CustomCollectionByName(ctx context.Context, name string) (*models.CustomCollection, error) {
	var c models.CustomCollection
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("custom collection %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find custom collection %q: %w", name, err)
	}
	return &c, nil
}

func (s *GormStore) CollectionMembers(ctx context.Context, collectionID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.db.WithContext(ctx).Model(&models.CustomCollectionPackage{}).
		Where("custom_collection_id = ?", collectionID).
		Order("position").
		Pluck("package_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list collection members: %w", err)
	}
	return ids, nil
}

func (s *GormStore) ReplaceMembership(ctx context.Context, collectionID uuid.UUID, packageIDs []uuid.UUID) error {
	current, err := s.CollectionMembers(ctx, collectionID)
	if err != nil {
		return err
	}
	desired := make(map[uuid.UUID]int, len(packageIDs))
	for i, id := range packageIDs {
		if _, dup := desired[id]; !dup {
			desired[id] = i
		}
	}
	currentPos := make(map[uuid.UUID]int, len(current))
	for i, id := range current {
		currentPos[id] = i
	}

	db := s.db.WithContext(ctx)

	var detach []uuid.UUID
	for _, id := range current {
		if _, keep := desired[id]; !keep {
			detach = append(detach, id)
		}
	}
	for _, chunk := range chunks(detach) {
		if err := db.Where("custom_collection_id = ? AND package_id IN ?", collectionID, chunk).
			Delete(&models.CustomCollectionPackage{}).Error; err != nil {
			return fmt.Errorf("detach members: %w", err)
		}
	}

	var attach []models.CustomCollectionPackage
	for id, pos := range desired {
		old, exists := currentPos[id]
		switch {
		case !exists:
			attach = append(attach, models.CustomCollectionPackage{CustomCollectionID: collectionID, PackageID: id, Position: pos})
		case old != pos:
			if err := db.Model(&models.CustomCollectionPackage{}).
				Where("custom_collection_id = ? AND package_id = ?", collectionID, id).
				Update("position", pos).Error; err != nil {
				return fmt.Errorf("reorder member: %w", err)
			}
		}
	}
	if len(attach) > 0 {
		if err := db.CreateInBatches(attach, batchSize).Error; err != nil {
			return fmt.Errorf("attach members: %w", err)
		}
	}
	return nil
}

func (s *GormStore) QueryVersionResults(ctx context.Context, filter Filter) ([]models.Package, error) {
	q := s.db.WithContext(ctx).Model(&models.Package{}).
		Preload("Repository").
		Preload("Versions", func(db *gorm.DB) *gorm.DB { return db.Order("commit_date DESC") }).
		Preload("Versions.Products", func(db *gorm.DB) *gorm.DB { return db.Order("name") }).
		Preload("Versions.Targets", func(db *gorm.DB) *gorm.DB { return db.Order("name") }).
		Preload("Versions.Builds")

	switch filter.Kind {
	case FilterURLs:
		keys := urlKeys(filter.URLs)
		if len(keys) == 0 {
			return nil, nil
		}
		q = q.Where("LOWER(packages.url) IN ?", keys).Order("packages.url")
	case FilterAuthor:
		q = q.Joins("JOIN repositories ON repositories.package_id = packages.id").
			Where("LOWER(repositories.owner) = ?", strings.ToLower(filter.Author)).
			Order("packages.url")
	case FilterCustomCollection:
		q = q.Joins("JOIN custom_collection_packages ON custom_collection_packages.package_id = packages.id").
			Joins("JOIN custom_collections ON custom_collections.id = custom_collection_packages.custom_collection_id").
			Where("custom_collections.name = ?", filter.Collection).
			Order("custom_collection_packages.position")
	default:
		return nil, fmt.Errorf("unsupported filter %s", filter)
	}

	var pkgs []models.Package
	if err := q.Find(&pkgs).Error; err != nil {
		return nil, fmt.Errorf("query version results for %s: %w", filter, err)
	}
	return pkgs, nil
}

func (s *GormStore) Import(ctx context.Context, pkgs []models.Package) error {
	if len(pkgs) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Create(&pkgs).Error; err != nil {
		return fmt.Errorf("import packages: %w", err)
	}
	return nil
}

// urlKeys lowercases urls for LOWER(url) matching, with and without a
// trailing slash so either stored spelling matches.
func urlKeys(urls []string) []string {
	seen := make(map[string]bool, len(urls)*2)
	keys := make([]string, 0, len(urls)*2)
	for _, u := range urls {
		k := string(identity.Normalize(u))
		for _, v := range []string{k, k + "/"} {
			if !seen[v] {
				seen[v] = true
				keys = append(keys, v)
			}
		}
	}
	return keys
}

func chunks[T any](items []T) [][]T {
	var out [][]T
	for len(items) > batchSize {
		out = append(out, items[:batchSize])
		items = items[batchSize:]
	}
	if len(items) > 0 {
		out = append(out, items)
	}
	return out
}
