package database

import "errors"

var (
	// ErrUnsupportedDriver is returned by Open for an unknown driver name.
	ErrUnsupportedDriver = errors.New("database: unsupported driver")

	// ErrNoMigrations means no schema files are registered for the
	// connection's driver.
	ErrNoMigrations = errors.New("database: no migrations registered")
)
