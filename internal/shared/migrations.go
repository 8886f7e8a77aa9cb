package shared

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"
)

//go:embed sql
var migrationFiles embed.FS

const migrationTable = "schema_migrations"

// Migration represents a database migration with up and down SQL.
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// Label renders the migration as "0001_auth".
func (m Migration) Label() string {
	return fmt.Sprintf("%04d_%s", m.Version, m.Name)
}

// MigrationState pairs a known migration with its ledger entry.
type MigrationState struct {
	Migration Migration
	Applied   bool
	AppliedAt time.Time
}

// Label is the label of the underlying migration.
func (s MigrationState) Label() string { return s.Migration.Label() }

// MigrationsFS returns the embedded migration tree for dialect.
func MigrationsFS(dialect Dialect) (fs.FS, error) {
	sub, err := fs.Sub(migrationFiles, path.Join("sql", dialect.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s migrations: %w", dialect.Name, err)
	}
	return sub, nil
}

// LoadMigrations reads all migration files for dialect and returns them sorted by version.
func LoadMigrations(dialect Dialect) ([]Migration, error) {
	fsys, err := MigrationsFS(dialect)
	if err != nil {
		return nil, err
	}
	return loadMigrations(fsys)
}

// loadMigrations reads "NNNN_name_up.sql" / "NNNN_name_down.sql" pairs from the root of fsys.
func loadMigrations(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migration directory: %w", err)
	}

	migrationMap := make(map[int]*Migration)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if !strings.HasSuffix(name, ".sql") {
			continue
		}

		// "0001_auth_up.sql" -> version 1, name "auth"
		parts := strings.SplitN(name, "_", 2)
		if len(parts) < 2 {
			continue
		}

		version, err := strconv.Atoi(parts[0])
		if err != nil {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", name, err)
		}

		if migrationMap[version] == nil {
			migrationMap[version] = &Migration{Version: version}
		}

		switch {
		case strings.HasSuffix(name, "_up.sql"):
			migrationMap[version].Up = string(content)
			migrationMap[version].Name = strings.TrimSuffix(parts[1], "_up.sql")
		case strings.HasSuffix(name, "_down.sql"):
			migrationMap[version].Down = string(content)
		}
	}

	var migrations []Migration
	for _, migration := range migrationMap {
		if migration.Up == "" || migration.Down == "" {
			return nil, fmt.Errorf("%w: version %d", ErrIncompleteSchema, migration.Version)
		}
		migrations = append(migrations, *migration)
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

// RunMigrations executes all pending migrations on the database and returns the ones it applied.
// Creates a schema_migrations table to track applied migrations.
func RunMigrations(ctx context.Context, db *sql.DB, dialect Dialect) ([]Migration, error) {
	migrations, err := LoadMigrations(dialect)
	if err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}
	return applyAll(ctx, db, dialect, migrations)
}

func applyAll(ctx context.Context, db *sql.DB, dialect Dialect, migrations []Migration) ([]Migration, error) {
	if err := createMigrationsTable(ctx, db); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	var applied []Migration
	for _, migration := range migrations {
		var count int
		err := db.QueryRowContext(ctx,
			dialect.Rebind("SELECT COUNT(*) FROM "+migrationTable+" WHERE version = ?"), migration.Version,
		).Scan(&count)
		if err != nil {
			return applied, fmt.Errorf("failed to check migration status: %w", err)
		}

		if count > 0 {
			continue
		}
		recorded, err := applyMigration(ctx, db, dialect, migration)
		if err != nil {
			return applied, fmt.Errorf("failed to apply migration %s: %w", migration.Label(), err)
		}
		if recorded {
			applied = append(applied, migration)
		}
	}

	return applied, nil
}

// RollbackMigration rolls back the most recent migration and returns it.
func RollbackMigration(ctx context.Context, db *sql.DB, dialect Dialect) (*Migration, error) {
	migrations, err := LoadMigrations(dialect)
	if err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}

	if err := createMigrationsTable(ctx, db); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+migrationTable).Scan(&count); err != nil {
		return nil, fmt.Errorf("failed to check migrations: %w", err)
	}
	if count == 0 {
		return nil, ErrNoMigrations
	}

	currentVersion, err := getCurrentVersion(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("failed to get current version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version == currentVersion {
			if err := rollbackMigration(ctx, db, dialect, migration); err != nil {
				return nil, fmt.Errorf("failed to rollback migration %s: %w", migration.Label(), err)
			}
			return &migration, nil
		}
	}

	return nil, fmt.Errorf("migration version %d not found", currentVersion)
}

// MigrationStatus lists every known migration with whether the ledger records it.
//
// A missing ledger table reports every migration as unapplied.
func MigrationStatus(ctx context.Context, db *sql.DB, dialect Dialect) ([]MigrationState, error) {
	migrations, err := LoadMigrations(dialect)
	if err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}

	exists, err := TableExists(ctx, db, dialect, migrationTable)
	if err != nil {
		return nil, err
	}

	appliedAt := make(map[int]time.Time)
	if exists {
		rows, err := db.QueryContext(ctx, "SELECT version, applied_at FROM "+migrationTable)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration ledger: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				version int
				at      sql.NullTime
			)
			if err := rows.Scan(&version, &at); err != nil {
				return nil, fmt.Errorf("failed to scan migration ledger: %w", err)
			}
			appliedAt[version] = at.Time
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to read migration ledger: %w", err)
		}
	}

	states := make([]MigrationState, 0, len(migrations))
	for _, m := range migrations {
		at, ok := appliedAt[m.Version]
		states = append(states, MigrationState{Migration: m, Applied: ok, AppliedAt: at})
	}
	return states, nil
}

// TableExists reports whether the named table is present.
func TableExists(ctx context.Context, db *sql.DB, dialect Dialect, table string) (bool, error) {
	var count int
	if err := db.QueryRowContext(ctx, dialect.TableExistsQuery(), table).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check table %s: %w", table, err)
	}
	return count > 0, nil
}

// createMigrationsTable creates the schema_migrations table if it doesn't exist.
func createMigrationsTable(ctx context.Context, db *sql.DB) error {
	query := `
		CREATE TABLE IF NOT EXISTS ` + migrationTable + ` (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`
	_, err := db.ExecContext(ctx, query)
	return err
}

// getCurrentVersion returns the current migration version.
func getCurrentVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version int
	err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM "+migrationTable).Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}

// applyMigration executes a migration's up SQL and records it.
//
// The up SQL is idempotent DDL, so a concurrent runner may apply the same version. The ledger insert
// ignores a row that is already present and recorded reports false in that case.
func applyMigration(ctx context.Context, db *sql.DB, dialect Dialect, migration Migration) (recorded bool, err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	if err := execStatements(ctx, tx, migration.Up); err != nil {
		return false, err
	}

	res, err := tx.ExecContext(ctx,
		dialect.Rebind("INSERT INTO "+migrationTable+" (version, name) VALUES (?, ?) ON CONFLICT (version) DO NOTHING"),
		migration.Version, migration.Name,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return n > 0, nil
}

// rollbackMigration executes a migration's down SQL and removes the record.
func rollbackMigration(ctx context.Context, db *sql.DB, dialect Dialect, migration Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := execStatements(ctx, tx, migration.Down); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		dialect.Rebind("DELETE FROM "+migrationTable+" WHERE version = ?"), migration.Version,
	); err != nil {
		return err
	}

	return tx.Commit()
}

// execStatements runs each ";"-separated statement of script inside tx.
func execStatements(ctx context.Context, tx *sql.Tx, script string) error {
	for _, stmt := range strings.Split(script, ";") {
		stmt = strings.TrimSpace(removeComments(stmt))
		if stmt == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute statement: %w\nStatement: %s", err, stmt)
		}
	}
	return nil
}

// removeComments removes SQL comments from a statement.
func removeComments(sql string) string {
	lines := strings.Split(sql, "\n")
	var result []string
	for _, line := range lines {
		if idx := strings.Index(line, "--"); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line != "" {
			result = append(result, line)
		}
	}
	return strings.Join(result, "\n")
}
