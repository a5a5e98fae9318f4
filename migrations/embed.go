// Package migrations embeds the bridge's SQL schema into the binary.
//
// Importing it for side effects registers the files with the database
// package before Migrate runs.
package migrations

import (
	"embed"

	"github.com/nerrad567/gray-logic-iobridge/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
