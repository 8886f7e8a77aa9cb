package formatter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/crmctl/internal/bootstrap"
	"github.com/desertthunder/crmctl/internal/diagnostics"
	"github.com/desertthunder/crmctl/internal/shared"
	th "github.com/desertthunder/crmctl/internal/testing"
)

func sampleDiagnostics(tables int) *diagnostics.Report {
	names := make([]string, 0, tables)
	for i := 0; i < tables; i++ {
		names = append(names, fmt.Sprintf("table_%02d", i))
	}
	return &diagnostics.Report{
		CheckedAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Driver:     "pgx",
		Connection: diagnostics.ConnectionCheck{OK: true, Version: "PostgreSQL 16.2"},
		Ledger:     &diagnostics.LedgerCheck{Exists: true, Applied: 3},
		Tables:     &diagnostics.TablesCheck{Names: names},
		Critical: []diagnostics.TableStatus{
			{Name: "auth_user", Exists: true},
			{Name: "settings_reminders"},
			{Name: "settings_massmailsettings", Error: "permission denied"},
		},
		Migrations: &diagnostics.MigrationsCheck{Applied: 3, Unapplied: 2, Pending: []string{"0004_tasks", "0005_settings"}},
	}
}

func TestParseFormat(t *testing.T) {
	tc := []struct {
		in   string
		want Format
	}{
		{in: "", want: FormatText},
		{in: "TEXT", want: FormatText},
		{in: "md", want: FormatMarkdown},
		{in: "markdown", want: FormatMarkdown},
		{in: " json ", want: FormatJSON},
	}
	for _, tt := range tc {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if err != nil || got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
			}
		})
	}

	if _, err := ParseFormat("csv"); !errors.Is(err, shared.ErrInvalidFlag) {
		t.Errorf("expected ErrInvalidFlag, got %v", err)
	}
}

func TestDiagnostics(t *testing.T) {
	t.Run("DiagnosticsToText", func(t *testing.T) {
		data, err := DiagnosticsToText(sampleDiagnostics(25))
		if err != nil {
			t.Fatalf("DiagnosticsToText failed: %v", err)
		}
		output := string(data)

		for _, want := range []string{
			"DATABASE STATE CHECK",
			"1. Testing database connection...",
			"✅ Database connection successful!",
			"Server version: PostgreSQL 16.2...",
			"✅ Migrations table exists (3 migrations recorded)",
			"Found 25 tables:",
			"     - table_19\n",
			"     ... and 5 more",
			"   auth_user: ✅ EXISTS",
			"   settings_reminders: ❌ MISSING",
			"   settings_massmailsettings: ❌ ERROR - permission denied",
			"Applied migrations: 3",
			"Unapplied migrations: 2",
			"[ ] 0004_tasks",
			"SUMMARY",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("text report missing %q", want)
			}
		}
		if strings.Contains(output, "table_20") {
			t.Error("only the first 20 tables should be listed")
		}
	})

	t.Run("connection failure stops after step one", func(t *testing.T) {
		report := &diagnostics.Report{Connection: diagnostics.ConnectionCheck{Error: "dial tcp: connection refused"}}
		data, err := DiagnosticsToText(report)
		if err != nil {
			t.Fatal(err)
		}
		output := string(data)
		if !strings.Contains(output, "❌ Connection failed: dial tcp: connection refused") {
			t.Errorf("missing failure line:\n%s", output)
		}
		if strings.Contains(output, "2. Checking migrations table") {
			t.Error("later steps should not render")
		}
	})

	t.Run("empty database", func(t *testing.T) {
		report := sampleDiagnostics(0)
		report.Ledger.Exists = false
		data, _ := DiagnosticsToText(report)
		output := string(data)
		if !strings.Contains(output, "No tables found") || !strings.Contains(output, "does NOT exist") {
			t.Errorf("expected empty-database lines:\n%s", output)
		}
	})

	t.Run("superusers section", func(t *testing.T) {
		for _, tc := range []struct {
			name  string
			check *diagnostics.SuperusersCheck
			text  string
			md    string
		}{
			{"present", &diagnostics.SuperusersCheck{Count: 1}, "✅ Superusers: 1", "## Superusers\n\n**Count**: 1"},
			{"none", &diagnostics.SuperusersCheck{}, "No superuser yet → Run: crmctl createsuperuser --noinput", "## Superusers\n\n**Count**: 0"},
			{"error", &diagnostics.SuperusersCheck{Error: "no such column"}, "❌ Error counting superusers: no such column", "no such column"},
		} {
			t.Run(tc.name, func(t *testing.T) {
				report := sampleDiagnostics(3)
				report.Superusers = tc.check
				text, _ := DiagnosticsToText(report)
				if !strings.Contains(string(text), "6. Checking superusers...") || !strings.Contains(string(text), tc.text) {
					t.Errorf("text report missing %q:\n%s", tc.text, text)
				}
				md, _ := DiagnosticsToMarkdown(report)
				if !strings.Contains(string(md), tc.md) {
					t.Errorf("markdown report missing %q:\n%s", tc.md, md)
				}
			})
		}

		text, _ := DiagnosticsToText(sampleDiagnostics(3))
		if strings.Contains(string(text), "Checking superusers") {
			t.Error("superusers section should be omitted when the check did not run")
		}
	})

	t.Run("DiagnosticsToMarkdown", func(t *testing.T) {
		data, err := DiagnosticsToMarkdown(sampleDiagnostics(3))
		if err != nil {
			t.Fatalf("DiagnosticsToMarkdown failed: %v", err)
		}
		output := string(data)
		for _, want := range []string{
			"# Database State Check",
			"**Driver**: pgx",
			"**Healthy**: no",
			"Connected to `PostgreSQL 16.2`",
			"**Count**: 3",
			"| auth_user | EXISTS |",
			"| settings_reminders | MISSING |",
			"- [ ] 0005_settings",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("markdown report missing %q", want)
			}
		}
	})

	t.Run("DiagnosticsToJSON", func(t *testing.T) {
		data, err := DiagnosticsToJSON(sampleDiagnostics(2))
		if err != nil {
			t.Fatalf("DiagnosticsToJSON failed: %v", err)
		}
		var decoded map[string]any
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		migrations := decoded["migrations"].(map[string]any)
		if migrations["unapplied"].(float64) != 2 {
			t.Errorf("unexpected migrations %v", migrations)
		}
		if decoded["driver"] != "pgx" {
			t.Errorf("unexpected driver %v", decoded["driver"])
		}
	})

	t.Run("RenderDiagnostics dispatch", func(t *testing.T) {
		report := sampleDiagnostics(1)
		for f, marker := range map[Format]string{
			FormatText:     "DATABASE STATE CHECK",
			FormatMarkdown: "# Database State Check",
			FormatJSON:     `"checked_at"`,
		} {
			data, err := RenderDiagnostics(report, f)
			if err != nil || !strings.Contains(string(data), marker) {
				t.Errorf("RenderDiagnostics(%s) missing %q (err=%v)", f, marker, err)
			}
		}
	})

	t.Run("live database", func(t *testing.T) {
		db := th.MigratedDatabase(t)
		report, err := diagnostics.NewInspector(db.DB(), db.Dialect(), nil).Inspect(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		data, _ := DiagnosticsToText(report)
		if !strings.Contains(string(data), "Unapplied migrations: 0") {
			t.Errorf("expected fully migrated report:\n%s", data)
		}
	})
}

func TestMigrationList(t *testing.T) {
	states := []shared.MigrationState{
		{Migration: shared.Migration{Version: 1, Name: "auth"}, Applied: true},
		{Migration: shared.Migration{Version: 2, Name: "common"}},
	}
	got := string(MigrationList(states))
	want := " [X] 0001_auth\n [ ] 0002_common\n"
	if got != want {
		t.Errorf("MigrationList() = %q, want %q", got, want)
	}
}

func sampleRun() *bootstrap.Report {
	return &bootstrap.Report{
		RunID:     "run-1",
		StartedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Phases: []bootstrap.PhaseResult{
			{Phase: bootstrap.Migrate, Status: bootstrap.StatusOK, Attempts: 2, Elapsed: 2 * time.Second},
			{Phase: bootstrap.Fixtures, Status: bootstrap.StatusOK, Attempts: 1, Detail: "1 loaded, 1 skipped"},
			{Phase: bootstrap.Superuser, Status: bootstrap.StatusOK, Attempts: 1},
		},
		Fixtures: []bootstrap.FixtureResult{
			{Name: "country.json", Status: bootstrap.StatusOK, Attempts: 1, Records: 4},
			{Name: "currency.json", Status: bootstrap.StatusSkipped, Attempts: 2, Err: errors.New("bad | row")},
		},
		Credentials: &bootstrap.Credentials{Username: "IamSUPER", Password: "topsecret", Generated: true},
	}
}

func TestBootstrap(t *testing.T) {
	t.Run("BootstrapToJSON never includes the password", func(t *testing.T) {
		data, err := BootstrapToJSON(sampleRun())
		if err != nil {
			t.Fatalf("BootstrapToJSON failed: %v", err)
		}
		if strings.Contains(string(data), "topsecret") {
			t.Error("summary must not contain the password")
		}

		var summary RunSummary
		if err := json.Unmarshal(data, &summary); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if summary.Superuser != "IamSUPER" || summary.Failed {
			t.Errorf("unexpected summary %+v", summary)
		}
		if len(summary.Phases) != 3 || summary.Phases[0].Seconds != 2 {
			t.Errorf("unexpected phases %+v", summary.Phases)
		}
		if summary.Fixtures[1].Error != "bad | row" {
			t.Errorf("unexpected fixture error %q", summary.Fixtures[1].Error)
		}
	})

	t.Run("BootstrapToMarkdown", func(t *testing.T) {
		data, err := BootstrapToMarkdown(sampleRun())
		if err != nil {
			t.Fatalf("BootstrapToMarkdown failed: %v", err)
		}
		output := string(data)
		for _, want := range []string{
			"**Run**: run-1",
			"| migrate | ok | 2 |",
			"| fixtures | ok | 1 | 1 loaded, 1 skipped |",
			"| currency.json | skipped | 0 |",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("markdown missing %q:\n%s", want, output)
			}
		}
	})

	t.Run("WriteReport", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "run.json")
		data, _ := RenderBootstrap(sampleRun(), FormatJSON)
		if err := WriteReport(path, data); err != nil {
			t.Fatalf("WriteReport failed: %v", err)
		}
		th.AssertFileExists(t, path)
		if !strings.Contains(th.MustReadFile(t, path), `"run_id": "run-1"`) {
			t.Error("written report missing run id")
		}

		if err := WriteReport("", data); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})
}
