// ABOUTME: Schema upgrades for the local state database.
// ABOUTME: Versions are tracked in sqlite's user_version pragma.

package client

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"path"
	"slices"
	"strconv"
	"strings"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migration is one numbered schema step, loaded from migrations/NNN_name.sql
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// parseMigrationName splits "003_add_session.sql" into 3 and "add_session"
func parseMigrationName(file string) (int, string, bool) {
	base, ok := strings.CutSuffix(file, ".sql")
	if !ok {
		return 0, "", false
	}
	num, name, ok := strings.Cut(base, "_")
	if !ok || name == "" {
		return 0, "", false
	}
	version, err := strconv.Atoi(num)
	if err != nil || version <= 0 {
		return 0, "", false
	}
	return version, name, true
}

func loadMigrations(fsys fs.FS) ([]Migration, error) {
	files, err := fs.Glob(fsys, "migrations/*.sql")
	if err != nil {
		return nil, err
	}

	var out []Migration
	seen := make(map[int]string)
	for _, file := range files {
		version, name, ok := parseMigrationName(path.Base(file))
		if !ok {
			continue
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("migrations %s and %s share version %d", prev, name, version)
		}
		seen[version] = name

		body, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}
		out = append(out, Migration{Version: version, Name: name, SQL: string(body)})
	}

	slices.SortFunc(out, func(a, b Migration) int { return a.Version - b.Version })
	return out, nil
}

func schemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var v int
	err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v)
	return v, err
}

// migrate brings db up to the newest embedded migration. Each step and its
// version bump commit together, so a failed step leaves the previous version.
func migrate(ctx context.Context, db *sql.DB, logger *log.Logger) error {
	return migrateFrom(ctx, db, migrationFiles, logger)
}

func migrateFrom(ctx context.Context, db *sql.DB, fsys fs.FS, logger *log.Logger) error {
	steps, err := loadMigrations(fsys)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	current, err := schemaVersion(ctx, db)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for _, m := range steps {
		if m.Version <= current {
			continue
		}
		if logger != nil {
			logger.Printf("State: migrating schema to %d (%s)", m.Version, m.Name)
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d %s: %w", m.Version, m.Name, err)
		}
		// PRAGMA does not accept bound parameters
		if _, err := tx.ExecContext(ctx, "PRAGMA user_version = "+strconv.Itoa(m.Version)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d: set version: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d: commit: %w", m.Version, err)
		}
		current = m.Version
	}
	return nil
}
