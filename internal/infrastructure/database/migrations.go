package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/imf-phoenix/gadgetd/internal/infrastructure/config"
)

var (
	sourcesMu sync.RWMutex
	sources   = map[string]fs.FS{}
)

var dialects = map[string]goose.Dialect{
	config.DriverSQLite:   goose.DialectSQLite3,
	config.DriverPostgres: goose.DialectPostgres,
}

// RegisterMigrations installs the schema files for a driver, replacing any
// earlier registration. Files sit at the root of fsys, one goose-annotated
// NNNNN_name.sql per version. A nil fsys unregisters the driver.
func RegisterMigrations(driver string, fsys fs.FS) {
	sourcesMu.Lock()
	defer sourcesMu.Unlock()
	if fsys == nil {
		delete(sources, driver)
		return
	}
	sources[driver] = fsys
}

func registeredMigrations(driver string) fs.FS {
	sourcesMu.RLock()
	defer sourcesMu.RUnlock()
	return sources[driver]
}

// MigrationState is one schema version as seen by the database.
type MigrationState struct {
	Version   int64
	Name      string
	Applied   bool
	AppliedAt time.Time
}

// migrator builds a goose provider for the connection's driver.
func (db *DB) migrator() (*goose.Provider, error) {
	dialect, ok := dialects[db.driver]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, db.driver)
	}
	fsys := registeredMigrations(db.driver)
	if fsys == nil {
		return nil, ErrNoMigrations
	}

	p, err := goose.NewProvider(dialect, db.DB, fsys)
	if errors.Is(err, goose.ErrNoMigrations) {
		return nil, ErrNoMigrations
	}
	if err != nil {
		return nil, fmt.Errorf("preparing migrations: %w", err)
	}
	return p, nil
}

// Migrate applies every pending version in order. Each version runs in its
// own transaction, so a failure at version N leaves 1..N-1 committed and a
// re-run resumes at N.
func (db *DB) Migrate(ctx context.Context) error {
	p, err := db.migrator()
	if err != nil {
		return err
	}
	if _, err := p.Up(ctx); err != nil {
		return fmt.Errorf("migrating %s schema: %w", db.driver, err)
	}
	return nil
}

// MigrateDown rolls back the newest applied version. With nothing applied
// it does nothing.
func (db *DB) MigrateDown(ctx context.Context) error {
	p, err := db.migrator()
	if err != nil {
		return err
	}
	if _, err := p.Down(ctx); err != nil && !errors.Is(err, goose.ErrNoNextVersion) {
		return fmt.Errorf("rolling back %s schema: %w", db.driver, err)
	}
	return nil
}

// MigrationStatus lists every known version, oldest first.
func (db *DB) MigrationStatus(ctx context.Context) ([]MigrationState, error) {
	p, err := db.migrator()
	if err != nil {
		return nil, err
	}
	statuses, err := p.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading %s schema status: %w", db.driver, err)
	}

	out := make([]MigrationState, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, MigrationState{
			Version:   s.Source.Version,
			Name:      migrationName(s.Source.Path),
			Applied:   s.State == goose.StateApplied,
			AppliedAt: s.AppliedAt,
		})
	}
	return out, nil
}

// migrationName turns "00002_create_gadgets.sql" into "create_gadgets".
func migrationName(file string) string {
	base := strings.TrimSuffix(path.Base(file), path.Ext(file))
	if _, name, ok := strings.Cut(base, "_"); ok {
		return name
	}
	return base
}
