package database

import (
	"context"
	"errors"
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/imf-phoenix/gadgetd/internal/infrastructure/config"
)

var testMigrations = fstest.MapFS{
	"00001_create_test_gadgets.sql": &fstest.MapFile{Data: []byte(`-- +goose Up
CREATE TABLE test_gadgets (id TEXT PRIMARY KEY, name TEXT NOT NULL);

-- +goose Down
DROP TABLE test_gadgets;
`)},
	"00002_add_test_gadgets_status.sql": &fstest.MapFile{Data: []byte(`-- +goose Up
ALTER TABLE test_gadgets ADD COLUMN status TEXT NOT NULL DEFAULT 'Available';

-- +goose Down
ALTER TABLE test_gadgets DROP COLUMN status;
`)},
}

// withMigrations registers fsys for driver until the test ends.
func withMigrations(t *testing.T, driver string, fsys fs.FS) {
	t.Helper()
	prev := registeredMigrations(driver)
	t.Cleanup(func() { RegisterMigrations(driver, prev) })
	RegisterMigrations(driver, fsys)
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name,
	).Scan(&n)
	if err != nil {
		t.Fatalf("sqlite_master query: %v", err)
	}
	return n == 1
}

func appliedCount(t *testing.T, db *DB) int {
	t.Helper()
	states, err := db.MigrationStatus(context.Background())
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	n := 0
	for _, s := range states {
		if s.Applied {
			n++
		}
	}
	return n
}

func TestMigrate(t *testing.T) {
	withMigrations(t, config.DriverSQLite, testMigrations)
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // test cleanup

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if !tableExists(t, db, "test_gadgets") {
		t.Fatal("test_gadgets not created")
	}

	states, err := db.MigrationStatus(ctx)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(states) != 2 {
		t.Fatalf("MigrationStatus() = %d versions, want 2", len(states))
	}
	want := []MigrationState{
		{Version: 1, Name: "create_test_gadgets", Applied: true},
		{Version: 2, Name: "add_test_gadgets_status", Applied: true},
	}
	for i, s := range states {
		if s.Version != want[i].Version || s.Name != want[i].Name || s.Applied != want[i].Applied {
			t.Errorf("state[%d] = %+v, want %+v", i, s, want[i])
		}
		if s.AppliedAt.IsZero() {
			t.Errorf("state[%d].AppliedAt is zero", i)
		}
	}

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
}

func TestMigrateDown(t *testing.T) {
	withMigrations(t, config.DriverSQLite, testMigrations)
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // test cleanup

	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	if err := db.MigrateDown(ctx); err != nil {
		t.Fatalf("first MigrateDown() error = %v", err)
	}
	if got := appliedCount(t, db); got != 1 {
		t.Errorf("applied after one rollback = %d, want 1", got)
	}

	if err := db.MigrateDown(ctx); err != nil {
		t.Fatalf("second MigrateDown() error = %v", err)
	}
	if tableExists(t, db, "test_gadgets") {
		t.Error("test_gadgets should have been dropped")
	}
	if got := appliedCount(t, db); got != 0 {
		t.Errorf("applied after full rollback = %d, want 0", got)
	}

	if err := db.MigrateDown(ctx); err != nil {
		t.Errorf("MigrateDown() with nothing applied error = %v", err)
	}
}

func TestMigrate_NoMigrations(t *testing.T) {
	withMigrations(t, config.DriverSQLite, nil)
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // test cleanup

	if err := db.Migrate(context.Background()); !errors.Is(err, ErrNoMigrations) {
		t.Errorf("Migrate() error = %v, want ErrNoMigrations", err)
	}
	if err := db.MigrateDown(context.Background()); !errors.Is(err, ErrNoMigrations) {
		t.Errorf("MigrateDown() error = %v, want ErrNoMigrations", err)
	}
}

func TestMigrate_EmptySource(t *testing.T) {
	withMigrations(t, config.DriverSQLite, fstest.MapFS{})
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // test cleanup

	if err := db.Migrate(context.Background()); !errors.Is(err, ErrNoMigrations) {
		t.Errorf("Migrate() error = %v, want ErrNoMigrations", err)
	}
}

func TestMigrate_FailureKeepsEarlierVersions(t *testing.T) {
	broken := fstest.MapFS{
		"00001_create_test_gadgets.sql": testMigrations["00001_create_test_gadgets.sql"],
		"00002_broken.sql": &fstest.MapFile{Data: []byte(`-- +goose Up
CREATE TABLE oops (;
`)},
	}
	withMigrations(t, config.DriverSQLite, broken)
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // test cleanup

	err := db.Migrate(context.Background())
	if err == nil {
		t.Fatal("Migrate() should fail on broken SQL")
	}
	if !strings.Contains(err.Error(), "migrating sqlite schema") {
		t.Errorf("Migrate() error = %v, want driver context", err)
	}

	states, err := db.MigrationStatus(context.Background())
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(states) != 2 || !states[0].Applied || states[1].Applied {
		t.Errorf("states = %+v, want version 1 applied and version 2 pending", states)
	}
}

func TestMigrate_UnknownDriver(t *testing.T) {
	db := Wrap(nil, "oracle")
	if err := db.Migrate(context.Background()); !errors.Is(err, ErrUnsupportedDriver) {
		t.Errorf("Migrate() error = %v, want ErrUnsupportedDriver", err)
	}
}

func TestMigratePostgres(t *testing.T) {
	sqlDB, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer sqlDB.Close()
	db := Wrap(sqlDB, config.DriverPostgres)

	t.Run("no source registered", func(t *testing.T) {
		withMigrations(t, config.DriverPostgres, nil)
		if err := db.Migrate(context.Background()); !errors.Is(err, ErrNoMigrations) {
			t.Fatalf("Migrate() error = %v, want ErrNoMigrations", err)
		}
	})

	t.Run("wraps driver failure", func(t *testing.T) {
		withMigrations(t, config.DriverPostgres, testMigrations)
		err := db.Migrate(context.Background())
		if err == nil {
			t.Fatal("Migrate() should fail when the server rejects every query")
		}
		if !strings.Contains(err.Error(), "migrating postgres schema") {
			t.Errorf("Migrate() error = %v, want driver context", err)
		}
	})
}

func TestMigrationName(t *testing.T) {
	tests := map[string]string{
		"00001_create_users.sql":            "create_users",
		"postgres/00002_create_gadgets.sql": "create_gadgets",
		"00003.sql":                         "00003",
	}
	for file, want := range tests {
		if got := migrationName(file); got != want {
			t.Errorf("migrationName(%q) = %q, want %q", file, got, want)
		}
	}
}
