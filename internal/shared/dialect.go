package shared

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect captures the SQL differences between the supported database drivers.
type Dialect struct {
	Name   string // migration directory and display name
	Driver string // database/sql driver name
}

var (
	SQLite   = Dialect{Name: "sqlite", Driver: "sqlite3"}
	Postgres = Dialect{Name: "postgres", Driver: "pgx"}
)

// DialectFor resolves a driver name (or alias) to its [Dialect].
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite3", "sqlite":
		return SQLite, nil
	case "pgx", "postgres", "postgresql":
		return Postgres, nil
	default:
		return Dialect{}, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
}

// Rebind rewrites "?" placeholders to the dialect's positional form.
//
// Question marks inside single-quoted literals are left alone.
func (d Dialect) Rebind(query string) string {
	if d.Driver != Postgres.Driver {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	quoted := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			quoted = !quoted
			b.WriteByte(c)
		case c == '?' && !quoted:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// QuoteIdent quotes an identifier for use in generated statements.
func (d Dialect) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// VersionQuery returns the statement reporting the server version.
func (d Dialect) VersionQuery() string {
	if d.Driver == Postgres.Driver {
		return "SELECT version()"
	}
	return "SELECT 'SQLite ' || sqlite_version()"
}

// TablesQuery lists user tables ordered by name.
func (d Dialect) TablesQuery() string {
	if d.Driver == Postgres.Driver {
		return `SELECT table_name FROM information_schema.tables
			WHERE table_schema = 'public' ORDER BY table_name`
	}
	return `SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`
}

// TableExistsQuery checks for a single table; it takes the table name as its only argument.
func (d Dialect) TableExistsQuery() string {
	if d.Driver == Postgres.Driver {
		return `SELECT COUNT(*) FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = $1`
	}
	return `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`
}
