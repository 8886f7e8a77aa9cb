package repositories

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/desertthunder/crmctl/internal/models"
	"github.com/desertthunder/crmctl/internal/shared"
)

// RecordRepository writes fixture rows into arbitrary bootstrap tables.
type RecordRepository struct {
	db *shared.Database
}

// NewRecordRepository creates a new [RecordRepository] with the given database handle
func NewRecordRepository(db *shared.Database) *RecordRepository {
	return &RecordRepository{db: db}
}

// UpsertAll writes records in a single transaction: all rows land or none do.
func (r *RecordRepository) UpsertAll(ctx context.Context, records []models.Record) error {
	tx, err := r.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, rec := range records {
		query, args, err := upsertStatement(r.db.Dialect(), rec)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to upsert %s pk=%d: %w", rec.Table, rec.PK, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit records: %w", err)
	}
	return nil
}

// upsertStatement builds "INSERT ... ON CONFLICT (id) DO UPDATE" for rec with columns in sorted order.
func upsertStatement(dialect shared.Dialect, rec models.Record) (string, []any, error) {
	if !validIdent(rec.Table) {
		return "", nil, fmt.Errorf("%w: table %q", shared.ErrInvalidFixture, rec.Table)
	}

	columns := make([]string, 0, len(rec.Fields))
	for name := range rec.Fields {
		if !validIdent(name) {
			return "", nil, fmt.Errorf("%w: column %q in %s", shared.ErrInvalidFixture, name, rec.Table)
		}
		if name == "id" {
			continue
		}
		columns = append(columns, name)
	}
	sort.Strings(columns)

	quoted := make([]string, 0, len(columns)+1)
	quoted = append(quoted, dialect.QuoteIdent("id"))
	args := make([]any, 0, len(columns)+1)
	args = append(args, rec.PK)
	for _, c := range columns {
		quoted = append(quoted, dialect.QuoteIdent(c))
		args = append(args, rec.Fields[c])
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(quoted)), ", ")

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) ",
		dialect.QuoteIdent(rec.Table), strings.Join(quoted, ", "), placeholders, dialect.QuoteIdent("id"))

	if len(columns) == 0 {
		b.WriteString("DO NOTHING")
	} else {
		sets := make([]string, len(columns))
		for i, c := range quoted[1:] {
			sets[i] = c + " = excluded." + c
		}
		b.WriteString("DO UPDATE SET " + strings.Join(sets, ", "))
	}

	return dialect.Rebind(b.String()), args, nil
}
