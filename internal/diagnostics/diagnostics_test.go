package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/desertthunder/crmctl/internal/repositories"
	"github.com/desertthunder/crmctl/internal/shared"
)

func openMemory(t *testing.T) *shared.Database {
	t.Helper()
	db, err := shared.OpenDatabase(shared.DatabaseConfig{Driver: "sqlite3", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestInspect(t *testing.T) {
	ctx := context.Background()

	t.Run("empty database", func(t *testing.T) {
		db := openMemory(t)
		report, err := NewInspector(db.DB(), db.Dialect(), nil).Inspect(ctx)
		if err != nil {
			t.Fatalf("Inspect() error: %v", err)
		}

		if !report.Connection.OK || report.Connection.Version == "" {
			t.Errorf("expected connection with version, got %+v", report.Connection)
		}
		if report.Ledger.Exists {
			t.Error("ledger should be missing")
		}
		if len(report.Tables.Names) != 0 {
			t.Errorf("expected no tables, got %v", report.Tables.Names)
		}
		if got := report.MissingCritical(); len(got) != len(CriticalTables) {
			t.Errorf("expected all critical tables missing, got %v", got)
		}
		if report.Migrations.Applied != 0 || report.Migrations.Unapplied != 5 {
			t.Errorf("unexpected migration counts %+v", report.Migrations)
		}
		if report.Migrations.Pending[0] != "0001_auth" {
			t.Errorf("expected first pending 0001_auth, got %v", report.Migrations.Pending)
		}
		if report.Healthy() {
			t.Error("empty database should not be healthy")
		}
		if report.Superusers != nil {
			t.Errorf("superusers are not counted without auth_user, got %+v", report.Superusers)
		}
	})

	t.Run("migrated database", func(t *testing.T) {
		db := openMemory(t)
		if _, err := shared.RunMigrations(ctx, db.DB(), db.Dialect()); err != nil {
			t.Fatal(err)
		}

		report, err := NewInspector(db.DB(), db.Dialect(), nil).Inspect(ctx)
		if err != nil {
			t.Fatalf("Inspect() error: %v", err)
		}
		if !report.Ledger.Exists || report.Ledger.Applied != 5 {
			t.Errorf("unexpected ledger %+v", report.Ledger)
		}
		// 18 domain tables plus the ledger
		if len(report.Tables.Names) != 19 {
			t.Errorf("expected 19 tables, got %d: %v", len(report.Tables.Names), report.Tables.Names)
		}
		if report.Tables.Names[0] != "auth_group" {
			t.Errorf("tables should be sorted, first is %s", report.Tables.Names[0])
		}
		if missing := report.MissingCritical(); len(missing) != 0 {
			t.Errorf("expected no missing tables, got %v", missing)
		}
		if report.Migrations.Unapplied != 0 || len(report.Migrations.Pending) != 0 {
			t.Errorf("expected nothing pending, got %+v", report.Migrations)
		}
		if !report.Healthy() {
			t.Errorf("migrated database should be healthy: %+v", report)
		}
		if report.Superusers == nil || report.Superusers.Count != 0 {
			t.Errorf("expected zero superusers, got %+v", report.Superusers)
		}

		if _, err := repositories.NewUserRepository(db).CreateSuperuser(ctx, "IamSUPER", "super@example.com", "hash"); err != nil {
			t.Fatal(err)
		}
		report, err = NewInspector(db.DB(), db.Dialect(), nil).Inspect(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if report.Superusers == nil || report.Superusers.Count != 1 {
			t.Errorf("expected one superuser, got %+v", report.Superusers)
		}
	})

	t.Run("custom critical list", func(t *testing.T) {
		db := openMemory(t)
		report, err := NewInspector(db.DB(), db.Dialect(), nil).WithCritical([]string{"django_session"}).Inspect(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(report.Critical) != 1 || report.Critical[0].Name != "django_session" || report.Critical[0].Exists {
			t.Errorf("unexpected critical statuses %+v", report.Critical)
		}
	})

	t.Run("closed connection", func(t *testing.T) {
		db := openMemory(t)
		raw := db.DB()
		raw.Close()

		report, err := NewInspector(raw, db.Dialect(), nil).Inspect(ctx)
		if !errors.Is(err, shared.ErrConnection) {
			t.Fatalf("expected ErrConnection, got %v", err)
		}
		if report.Connection.OK || report.Connection.Error == "" {
			t.Errorf("expected connection failure recorded, got %+v", report.Connection)
		}
		if report.Ledger != nil || report.Tables != nil {
			t.Error("later checks must not run after a connection failure")
		}
	})
}

func TestProbe(t *testing.T) {
	ctx := context.Background()
	db := openMemory(t)
	inspector := NewInspector(db.DB(), db.Dialect(), nil)

	if err := inspector.Probe(ctx); !errors.Is(err, shared.ErrIncompleteSchema) {
		t.Errorf("expected ErrIncompleteSchema before migrating, got %v", err)
	}

	if _, err := shared.RunMigrations(ctx, db.DB(), db.Dialect()); err != nil {
		t.Fatal(err)
	}
	if err := inspector.Probe(ctx); err != nil {
		t.Errorf("Probe() after migrating: %v", err)
	}
}

func TestTruncate(t *testing.T) {
	tc := []struct {
		in   string
		n    int
		want string
	}{
		{in: "short", n: 10, want: "short"},
		{in: "PostgreSQL 16.2 on x86_64", n: 10, want: "PostgreSQL"},
		{in: "ééé", n: 2, want: "éé"},
	}
	for _, tt := range tc {
		t.Run(fmt.Sprintf("%s/%d", tt.in, tt.n), func(t *testing.T) {
			if got := truncate(tt.in, tt.n); got != tt.want {
				t.Errorf("truncate() = %q, want %q", got, tt.want)
			}
		})
	}
}
