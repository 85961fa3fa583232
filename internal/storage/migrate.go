package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// withMigrator opens a dedicated connection for golang-migrate, which closes
// the database it is handed.
func withMigrator(dbPath string, fn func(m *migrate.Migrate) error) error {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open migration database: %w", err)
	}
	defer conn.Close()

	driver, err := sqlite.WithInstance(conn, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("sqlite migration driver: %w", err)
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("embedded migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("migrator: %w", err)
	}
	defer m.Close()
	return fn(m)
}

// RunMigrations brings the record schema up to date and returns the
// resulting schema version.
func RunMigrations(dbPath string) (uint, error) {
	var version uint
	err := withMigrator(dbPath, func(m *migrate.Migrate) error {
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("apply migrations: %w", err)
		}
		v, dirty, err := m.Version()
		if err != nil {
			return fmt.Errorf("read schema version: %w", err)
		}
		if dirty {
			return fmt.Errorf("schema version %d is dirty", v)
		}
		version = v
		return nil
	})
	return version, err
}
