// Package migration applies the catalog schema. Development environments use
// GORM AutoMigrate against the model structs; deployments run the versioned
// SQL migrations with golang-migrate.
package migration

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"gorm.io/gorm"

	"mizan/internal/infrastructure/persistence/models"
	"mizan/internal/shared/logger"
)

// AutoMigrateModels lists every model the catalog schema consists of.
func AutoMigrateModels() []interface{} {
	return []interface{}{
		&models.SubscriptionTierModel{},
		&models.SubscriptionFeatureModel{},
		&models.UserSubscriptionModel{},
	}
}

// AutoMigrate applies the schema with GORM AutoMigrate.
func AutoMigrate(db *gorm.DB, log logger.Interface) error {
	log.Infow("running auto-migration", "models", len(AutoMigrateModels()))
	if err := db.AutoMigrate(AutoMigrateModels()...); err != nil {
		return fmt.Errorf("auto-migration failed: %w", err)
	}
	return nil
}

func newMigrator(db *gorm.DB, scriptsPath string) (*migrate.Migrate, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	driver, err := migratemysql.WithInstance(sqlDB, &migratemysql.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate driver: %w", err)
	}

	absPath, err := filepath.Abs(scriptsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve scripts path: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+absPath, "mysql", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	return m, nil
}

// RunVersioned applies the versioned SQL migrations from scriptsPath against
// the given GORM connection. Only the mysql driver supports versioned
// migrations; sqlite deployments should use AutoMigrate.
func RunVersioned(db *gorm.DB, scriptsPath string, log logger.Interface) error {
	m, err := newMigrator(db, scriptsPath)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Infow("database schema is up to date")
			return nil
		}
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	log.Infow("database migration completed", "version", version, "dirty", dirty)

	return nil
}

// StepDown rolls back the given number of versioned migrations.
func StepDown(db *gorm.DB, scriptsPath string, steps int, log logger.Interface) error {
	m, err := newMigrator(db, scriptsPath)
	if err != nil {
		return err
	}

	if err := m.Steps(-steps); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Infow("no migrations to roll back")
			return nil
		}
		return fmt.Errorf("rollback failed: %w", err)
	}

	log.Infow("rollback completed", "steps", steps)
	return nil
}

// Version reports the current schema version and whether it is dirty.
func Version(db *gorm.DB, scriptsPath string) (uint, bool, error) {
	m, err := newMigrator(db, scriptsPath)
	if err != nil {
		return 0, false, err
	}

	version, dirty, err := m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to read migration version: %w", err)
	}
	return version, dirty, nil
}
