// Package migrations holds the audit database schema.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/volkan-m/ssh-mcp-server/internal/log"
)

//go:embed sql/*.sql
var schemaFiles embed.FS

// Schema applies the embedded audit schema to a database.
type Schema struct {
	db     *sql.DB
	logger log.Logger
}

// NewSchema returns a schema handler for the database.
func NewSchema(db *sql.DB, logger log.Logger) (*Schema, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if logger == nil {
		logger = log.Noop
	}

	return &Schema{db: db, logger: logger.WithValues(log.Kv{"svc": "sqlite.Schema"})}, nil
}

// Up migrates the schema to the latest version and returns it.
func (s *Schema) Up(ctx context.Context) (uint, error) {
	return s.apply(ctx, func(m *migrate.Migrate) error { return m.Up() })
}

// Down reverts every schema version.
func (s *Schema) Down(ctx context.Context) error {
	_, err := s.apply(ctx, func(m *migrate.Migrate) error { return m.Down() })
	return err
}

func (s *Schema) apply(ctx context.Context, step func(m *migrate.Migrate) error) (uint, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	src, err := iofs.New(schemaFiles, "sql")
	if err != nil {
		return 0, fmt.Errorf("could not load schema files: %w", err)
	}
	defer func() {
		if err := src.Close(); err != nil {
			s.logger.Warningf("Could not close schema files: %s", err)
		}
	}()

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return 0, fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return 0, fmt.Errorf("could not create migration: %w", err)
	}

	if err := step(m); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("could not migrate schema: %w", err)
	}

	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("could not read schema version: %w", err)
	case dirty:
		return version, fmt.Errorf("schema version %d is dirty", version)
	}

	s.logger.Debugf("Audit schema at version %d", version)
	return version, nil
}
