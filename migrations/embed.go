// Package migrations embeds gadgetd's schema. Importing it registers the
// files with the database package.
//
// sqlite/ and postgres/ hold one goose-annotated file per version; both
// directories move in lockstep so a version number means the same schema
// on either driver.
package migrations

import (
	"embed"
	"io/fs"

	"github.com/imf-phoenix/gadgetd/internal/infrastructure/config"
	"github.com/imf-phoenix/gadgetd/internal/infrastructure/database"
)

//go:embed sqlite/*.sql postgres/*.sql
var files embed.FS

func init() {
	for driver, dir := range map[string]string{
		config.DriverSQLite:   "sqlite",
		config.DriverPostgres: "postgres",
	} {
		sub, err := fs.Sub(files, dir)
		if err != nil {
			panic("migrations: " + dir + " missing from embed: " + err.Error())
		}
		database.RegisterMigrations(driver, sub)
	}
}
