// Package migrations embeds the runtime's SQL schema into the binary.
package migrations

import (
	"embed"

	"github.com/onap/policy-clamp-acm/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.RegisterMigrations(migrationsFS, ".")
}
