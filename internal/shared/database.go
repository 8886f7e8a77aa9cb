package shared

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// NewDatabase opens a connection to the database identified by driver and dsn.
// The SQLite dsn can be ":memory:" for an in-memory database.
// Returns an open database connection or an error if connection fails.
func NewDatabase(driverName, dsn string) (*sql.DB, error) {
	dialect, err := DialectFor(driverName)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(dialect.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every pooled connection to ":memory:" would see its own empty database.
	if dialect == SQLite && strings.Contains(dsn, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// ConfigureDatabase sets connection pool settings for the database.
// Recommended for production use to limit connections and improve performance.
func ConfigureDatabase(db *sql.DB, maxOpenConns, maxIdleConns int) {
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}
	if maxIdleConns > 0 {
		db.SetMaxIdleConns(maxIdleConns)
	}
}

// Database is a reopenable handle around [sql.DB].
//
// Collaborators call [Database.DB] per operation so a [Database.Reopen] between retries is picked up.
type Database struct {
	mu           sync.Mutex
	dialect      Dialect
	dsn          string
	db           *sql.DB
	closed       bool
	maxOpenConns int
	maxIdleConns int
}

// OpenDatabase opens a [Database] for the configured driver and dsn.
func OpenDatabase(cfg DatabaseConfig) (*Database, error) {
	dialect, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}

	d := &Database{
		dialect:      dialect,
		dsn:          cfg.DSN,
		maxOpenConns: cfg.MaxOpenConns,
		maxIdleConns: cfg.MaxIdleConns,
	}
	if err := d.open(); err != nil {
		return nil, err
	}
	return d, nil
}

// DialDatabase is [OpenDatabase] without the initial ping. Connection failures surface on first use,
// where a retry policy can reopen the handle.
func DialDatabase(cfg DatabaseConfig) (*Database, error) {
	dialect, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(dialect.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	d := &Database{
		dialect:      dialect,
		dsn:          cfg.DSN,
		db:           db,
		maxOpenConns: cfg.MaxOpenConns,
		maxIdleConns: cfg.MaxIdleConns,
	}
	ConfigureDatabase(db, d.poolSize(), d.maxIdleConns)
	return d, nil
}

// WrapDatabase adopts an already open [sql.DB]. Reopen is not supported on wrapped handles.
func WrapDatabase(db *sql.DB, dialect Dialect) *Database {
	return &Database{db: db, dialect: dialect}
}

func (d *Database) open() error {
	db, err := NewDatabase(d.dialect.Driver, d.dsn)
	if err != nil {
		return err
	}
	ConfigureDatabase(db, d.poolSize(), d.maxIdleConns)
	d.db = db
	d.closed = false
	return nil
}

func (d *Database) poolSize() int {
	if d.dialect == SQLite && strings.Contains(d.dsn, ":memory:") {
		return 1
	}
	return d.maxOpenConns
}

// DB returns the current connection pool.
func (d *Database) DB() *sql.DB {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.db
}

// Dialect reports the SQL dialect of the handle.
func (d *Database) Dialect() Dialect {
	return d.dialect
}

// Reopen closes the current pool and opens a fresh one, discarding connections left in a broken state.
//
// When opening fails the closed pool stays in place, so callers get "database is closed" errors instead of a nil pool.
func (d *Database) Reopen(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.dsn == "" {
		return fmt.Errorf("%w: handle was not opened from a dsn", ErrConnection)
	}
	if d.db != nil && !d.closed {
		_ = d.db.Close()
		d.closed = true
	}
	if err := d.open(); err != nil {
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}
	return nil
}

// Close releases the connection pool.
func (d *Database) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.db == nil || d.closed {
		return nil
	}
	d.closed = true
	return d.db.Close()
}

// IsConnectionError reports whether err is a connection-class failure worth retrying after a reopen.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, ErrConnection) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "server closed the connection") ||
		strings.Contains(strings.ToLower(msg), "connection")
}

// IsAlreadyExistsError reports whether err indicates the schema object is already present.
func IsAlreadyExistsError(err error) bool {
	if err == nil {
		return false
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "already exists") || strings.Contains(value, "duplicate column name")
}
