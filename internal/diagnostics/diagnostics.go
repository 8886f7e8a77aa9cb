package diagnostics

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/crmctl/internal/repositories"
	"github.com/desertthunder/crmctl/internal/shared"
)

const (
	// LedgerTable is the table recording applied migrations.
	LedgerTable = "schema_migrations"
	// UserTable holds accounts, including the superuser.
	UserTable = "auth_user"
	// TableListLimit is how many table names the text report lists before summarizing.
	TableListLimit = 20
	// PendingListLimit caps the unapplied migration names kept in a report.
	PendingListLimit = 15
	versionWidth     = 80
)

// CriticalTables must exist for the web application to start.
var CriticalTables = []string{
	"settings_massmailsettings",
	"settings_reminders",
	LedgerTable,
	UserTable,
}

// Report is the outcome of one inspection. Error fields are empty when the check succeeded.
type Report struct {
	CheckedAt  time.Time        `json:"checked_at"`
	Driver     string           `json:"driver"`
	Connection ConnectionCheck  `json:"connection"`
	Ledger     *LedgerCheck     `json:"ledger,omitempty"`
	Tables     *TablesCheck     `json:"tables,omitempty"`
	Critical   []TableStatus    `json:"critical,omitempty"`
	Migrations *MigrationsCheck `json:"migrations,omitempty"`
	Superusers *SuperusersCheck `json:"superusers,omitempty"`
}

type ConnectionCheck struct {
	OK      bool   `json:"ok"`
	Version string `json:"version,omitempty"`
	Error   string `json:"error,omitempty"`
}

type LedgerCheck struct {
	Exists  bool   `json:"exists"`
	Applied int    `json:"applied"`
	Error   string `json:"error,omitempty"`
}

type TablesCheck struct {
	Names []string `json:"names"`
	Error string   `json:"error,omitempty"`
}

type TableStatus struct {
	Name   string `json:"name"`
	Exists bool   `json:"exists"`
	Error  string `json:"error,omitempty"`
}

type MigrationsCheck struct {
	Applied   int      `json:"applied"`
	Unapplied int      `json:"unapplied"`
	Pending   []string `json:"pending,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// SuperusersCheck counts accounts with the superuser flag. It is set only when auth_user exists.
type SuperusersCheck struct {
	Count int    `json:"count"`
	Error string `json:"error,omitempty"`
}

// Healthy reports whether every check passed and nothing is pending.
func (r *Report) Healthy() bool {
	if !r.Connection.OK || r.Ledger == nil || !r.Ledger.Exists || r.Ledger.Error != "" {
		return false
	}
	if r.Tables == nil || r.Tables.Error != "" {
		return false
	}
	for _, t := range r.Critical {
		if !t.Exists {
			return false
		}
	}
	return r.Migrations != nil && r.Migrations.Error == "" && r.Migrations.Unapplied == 0
}

// MissingCritical lists the critical tables that were not found.
func (r *Report) MissingCritical() []string {
	var missing []string
	for _, t := range r.Critical {
		if !t.Exists {
			missing = append(missing, t.Name)
		}
	}
	return missing
}

// Inspector runs the database checks.
type Inspector struct {
	db       *sql.DB
	dialect  shared.Dialect
	critical []string
	logger   *log.Logger
}

// NewInspector creates an inspector for db. A nil logger discards.
func NewInspector(db *sql.DB, dialect shared.Dialect, logger *log.Logger) *Inspector {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Inspector{db: db, dialect: dialect, critical: CriticalTables, logger: logger}
}

// WithCritical overrides the critical table list.
func (i *Inspector) WithCritical(tables []string) *Inspector {
	i.critical = append([]string(nil), tables...)
	return i
}

// Inspect runs every check and returns the report.
//
// A failed connection returns the partial report with an error wrapping [shared.ErrConnection].
func (i *Inspector) Inspect(ctx context.Context) (*Report, error) {
	report := &Report{CheckedAt: time.Now().UTC(), Driver: i.dialect.Driver}

	version, err := i.connection(ctx)
	if err != nil {
		report.Connection.Error = err.Error()
		i.logger.Error("connection check failed", "error", err)
		return report, fmt.Errorf("%w: %w", shared.ErrConnection, err)
	}
	report.Connection = ConnectionCheck{OK: true, Version: truncate(version, versionWidth)}

	report.Ledger = i.ledger(ctx)
	report.Tables = i.tables(ctx)
	report.Critical = i.criticalTables(ctx)
	report.Migrations = i.migrations(ctx)
	report.Superusers = i.superusers(ctx)

	i.logger.Debug("inspection finished", "healthy", report.Healthy())
	return report, nil
}

// Probe is the readiness check: the database answers and the migration ledger exists.
func (i *Inspector) Probe(ctx context.Context) error {
	if err := i.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", shared.ErrConnection, err)
	}
	exists, err := shared.TableExists(ctx, i.db, i.dialect, LedgerTable)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s table is missing", shared.ErrIncompleteSchema, LedgerTable)
	}
	return nil
}

func (i *Inspector) connection(ctx context.Context) (string, error) {
	if err := i.db.PingContext(ctx); err != nil {
		return "", err
	}
	var version string
	if err := i.db.QueryRowContext(ctx, i.dialect.VersionQuery()).Scan(&version); err != nil {
		return "", fmt.Errorf("failed to read server version: %w", err)
	}
	return version, nil
}

func (i *Inspector) ledger(ctx context.Context) *LedgerCheck {
	check := &LedgerCheck{}
	exists, err := shared.TableExists(ctx, i.db, i.dialect, LedgerTable)
	if err != nil {
		check.Error = err.Error()
		return check
	}
	check.Exists = exists
	if !exists {
		return check
	}
	if err := i.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+LedgerTable).Scan(&check.Applied); err != nil {
		check.Error = fmt.Sprintf("failed to count migrations: %v", err)
	}
	return check
}

func (i *Inspector) tables(ctx context.Context) *TablesCheck {
	check := &TablesCheck{Names: []string{}}
	rows, err := i.db.QueryContext(ctx, i.dialect.TablesQuery())
	if err != nil {
		check.Error = fmt.Sprintf("failed to list tables: %v", err)
		return check
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			check.Error = fmt.Sprintf("failed to scan table name: %v", err)
			return check
		}
		check.Names = append(check.Names, name)
	}
	if err := rows.Err(); err != nil {
		check.Error = fmt.Sprintf("failed to list tables: %v", err)
	}
	return check
}

func (i *Inspector) superusers(ctx context.Context) *SuperusersCheck {
	exists, err := shared.TableExists(ctx, i.db, i.dialect, UserTable)
	if err != nil || !exists {
		return nil
	}
	check := &SuperusersCheck{}
	users := repositories.NewUserRepository(shared.WrapDatabase(i.db, i.dialect))
	if check.Count, err = users.CountSuperusers(ctx); err != nil {
		check.Error = err.Error()
	}
	return check
}

func (i *Inspector) criticalTables(ctx context.Context) []TableStatus {
	statuses := make([]TableStatus, 0, len(i.critical))
	for _, name := range i.critical {
		status := TableStatus{Name: name}
		exists, err := shared.TableExists(ctx, i.db, i.dialect, name)
		if err != nil {
			status.Error = err.Error()
		}
		status.Exists = exists
		statuses = append(statuses, status)
	}
	return statuses
}

func (i *Inspector) migrations(ctx context.Context) *MigrationsCheck {
	check := &MigrationsCheck{}
	states, err := shared.MigrationStatus(ctx, i.db, i.dialect)
	if err != nil {
		check.Error = err.Error()
		return check
	}
	for _, s := range states {
		if s.Applied {
			check.Applied++
			continue
		}
		check.Unapplied++
		if len(check.Pending) < PendingListLimit {
			check.Pending = append(check.Pending, s.Label())
		}
	}
	return check
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
