// Package db embeds the SQL schema migrations.
package db

import (
	"embed"
	"io/fs"
)

// MigrationsFS contains all SQL migration files embedded at compile time.
//
//go:embed migrations/*.sql
var MigrationsFS embed.FS

// Migrations returns the migration files rooted at their directory, the
// layout the iofs source expects.
func Migrations() (fs.FS, error) {
	return fs.Sub(MigrationsFS, "migrations")
}
