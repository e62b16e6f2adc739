package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"

	"github.com/counterline/poscore/pkg/config"
)

//go:embed migrations
var migrationsFS embed.FS

// Dir returns the embedded migration directory for the configured driver.
func Dir(driver string) string {
	return "migrations/" + driver
}

// FS exposes the embedded migrations, mainly for the migrate CLI.
func FS() fs.FS {
	return migrationsFS
}

// Run executes a goose command against the local store using the embedded
// migration set for the configured driver.
func Run(ctx context.Context, db *sql.DB, driver string, command string, args ...string) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}

	dialect := driver
	if dialect == config.DBDriverSQLite {
		dialect = "sqlite3"
	}
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	goose.SetBaseFS(migrationsFS)
	defer goose.SetBaseFS(nil)

	if err := goose.RunContext(ctx, command, db, Dir(driver), args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}
