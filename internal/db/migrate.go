package db

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// EnsureSchema applies pending schema migrations and, for a database created
// by Open, inserts the demo data. It runs at most once per DB; concurrent
// callers wait for the first run and share its result.
//
// Tables are created with IF NOT EXISTS, so a store created by an earlier
// deployment is adopted as-is. Its structure is never verified or repaired.
func (db *DB) EnsureSchema(ctx context.Context) error {
	db.schemaOnce.Do(func() {
		db.schemaErr = db.provision(ctx)
	})
	return db.schemaErr
}

// SchemaVersion returns the latest applied migration version.
func (db *DB) SchemaVersion(ctx context.Context) (int64, error) {
	provider, err := db.provider()
	if err != nil {
		return 0, err
	}
	version, err := provider.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}

func (db *DB) provision(ctx context.Context) error {
	provider, err := db.provider()
	if err != nil {
		return err
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	for _, r := range results {
		db.log.WithFields(logrus.Fields{
			"version":  r.Source.Version,
			"duration": r.Duration,
		}).Info("applied migration")
	}

	if db.fresh && db.seed {
		if err := db.seedDemoData(ctx); err != nil {
			return err
		}
		db.log.WithField("path", db.path).Info("seeded demo data")
	}

	return nil
}

func (db *DB) provider() (*goose.Provider, error) {
	fsys, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db.DB.DB, fsys)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration provider: %w", err)
	}
	return provider, nil
}
