package postgres

import "embed"

//go:embed migrations/*.sql
var migrationsFS embed.FS

// GetMigrationsFS returns the embedded PostgreSQL migrations.
func GetMigrationsFS() embed.FS {
	return migrationsFS
}
