// Package migrations embeds the goose schema migrations, one directory per
// SQL dialect.
package migrations

import "embed"

//go:embed postgres/*.sql sqlite/*.sql
var Migrations embed.FS

// Dir returns the directory inside Migrations holding the scripts for the
// goose dialect name ("postgres" or "sqlite3").
func Dir(gooseDialect string) string {
	if gooseDialect == "sqlite3" {
		return "sqlite"
	}
	return "postgres"
}
