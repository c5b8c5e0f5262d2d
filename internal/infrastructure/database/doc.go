// Package database provides the SQL connection for gadgetd's stores.
//
// Two drivers are supported:
//   - sqlite (mattn/go-sqlite3): single-writer pool, WAL mode, busy timeout,
//     foreign keys on, file mode 0600.
//   - postgres (jackc/pgx stdlib): pooled connections.
//
// Schema changes are goose-annotated SQL files registered per driver with
// RegisterMigrations (the migrations package does this on import) and
// applied by Migrate.
//
// All queries in the repositories are parameterised.
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
