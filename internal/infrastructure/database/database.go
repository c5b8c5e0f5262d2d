package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	_ "github.com/mattn/go-sqlite3"    // registers "sqlite3"

	"github.com/imf-phoenix/gadgetd/internal/infrastructure/config"
)

const (
	dirMode  = 0o750
	fileMode = 0o600

	pingTimeout = 5 * time.Second
)

// pool holds the connection pool limits for one driver.
type pool struct {
	maxOpen, maxIdle int
	lifetime         time.Duration
	idleTime         time.Duration
}

var pools = map[string]pool{
	// SQLite allows a single writer; one connection avoids SQLITE_BUSY
	// between our own goroutines.
	config.DriverSQLite:   {maxOpen: 1, maxIdle: 1, lifetime: time.Hour, idleTime: 30 * time.Minute},
	config.DriverPostgres: {maxOpen: 10, maxIdle: 5, lifetime: time.Hour, idleTime: 30 * time.Minute},
}

// DB is a *sql.DB that knows which driver it talks to.
type DB struct {
	*sql.DB
	driver string
	path   string
}

// Open connects with the configured driver and pings before returning.
// An empty driver means sqlite.
//
// For sqlite the parent directory is created, WAL mode and foreign keys
// are switched on and the file is restricted to 0600.
func Open(cfg config.DatabaseConfig) (*DB, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = config.DriverSQLite
	}

	var (
		sqlName, dsn string
		err          error
	)
	switch driver {
	case config.DriverSQLite:
		sqlName = "sqlite3"
		dsn, err = sqliteDSN(cfg)
	case config.DriverPostgres:
		sqlName, dsn = "pgx", cfg.DSN
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	sqlDB, err := sql.Open(sqlName, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", driver, err)
	}
	p := pools[driver]
	sqlDB.SetMaxOpenConns(p.maxOpen)
	sqlDB.SetMaxIdleConns(p.maxIdle)
	sqlDB.SetConnMaxLifetime(p.lifetime)
	sqlDB.SetConnMaxIdleTime(p.idleTime)

	db := &DB{DB: sqlDB, driver: driver}
	if driver == config.DriverSQLite {
		db.path = cfg.Path
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("verifying %s connection: %w", driver, err)
	}

	if db.path != "" && db.path != ":memory:" {
		_ = os.Chmod(db.path, fileMode) //nolint:errcheck // created lazily on first write
	}
	return db, nil
}

// sqliteDSN prepares the file's directory and builds a mattn/go-sqlite3
// connection string.
func sqliteDSN(cfg config.DatabaseConfig) (string, error) {
	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), dirMode); err != nil {
			return "", fmt.Errorf("creating database directory: %w", err)
		}
	}

	q := url.Values{}
	q.Set("_busy_timeout", strconv.Itoa(cfg.BusyTimeout*1000))
	q.Set("_foreign_keys", "on")
	if cfg.WALMode {
		q.Set("_journal_mode", "WAL")
		q.Set("_synchronous", "NORMAL")
	}
	return "file:" + cfg.Path + "?" + q.Encode(), nil
}

// Wrap adopts an open connection. driver selects the dialect for
// migrations.
func Wrap(sqlDB *sql.DB, driver string) *DB {
	return &DB{DB: sqlDB, driver: driver}
}

// Close is safe on a DB whose connection was never opened.
func (db *DB) Close() error {
	if db.DB == nil {
		return nil
	}
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// Driver returns config.DriverSQLite or config.DriverPostgres.
func (db *DB) Driver() string { return db.driver }

// Path is the SQLite file, empty for Postgres.
func (db *DB) Path() string { return db.path }

// HealthCheck runs a trivial query.
func (db *DB) HealthCheck(ctx context.Context) error {
	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("database health check: %w", err)
	}
	return nil
}

// BeginTx starts a transaction; callers defer Rollback and finish with
// Commit.
func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	tx, err := db.DB.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	return tx, nil
}

// DBTX is what the repositories need from a connection. *sql.DB and
// *sql.Tx both satisfy it.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
