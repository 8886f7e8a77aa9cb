// package formatter renders diagnostics and bootstrap reports in text, Markdown and JSON
package formatter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/desertthunder/crmctl/internal/bootstrap"
	"github.com/desertthunder/crmctl/internal/diagnostics"
	"github.com/desertthunder/crmctl/internal/shared"
)

// Format names an output format.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

const ruleWidth = 60

// Formats lists the accepted format names.
var Formats = []Format{FormatText, FormatMarkdown, FormatJSON}

// ParseFormat accepts "text", "markdown"/"md" and "json", case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: format %q (want text, markdown or json)", shared.ErrInvalidFlag, s)
	}
}

// RenderDiagnostics renders report in format f.
func RenderDiagnostics(report *diagnostics.Report, f Format) ([]byte, error) {
	switch f {
	case FormatMarkdown:
		return DiagnosticsToMarkdown(report)
	case FormatJSON:
		return DiagnosticsToJSON(report)
	default:
		return DiagnosticsToText(report)
	}
}

// DiagnosticsToText renders the numbered console report followed by the summary hints.
func DiagnosticsToText(report *diagnostics.Report) ([]byte, error) {
	var buf bytes.Buffer
	rule := strings.Repeat("=", ruleWidth)

	buf.WriteString(rule + "\nDATABASE STATE CHECK\n" + rule + "\n")

	buf.WriteString("\n1. Testing database connection...\n")
	if !report.Connection.OK {
		buf.WriteString(fmt.Sprintf("   ❌ Connection failed: %s\n", report.Connection.Error))
		return buf.Bytes(), nil
	}
	buf.WriteString("   ✅ Database connection successful!\n")
	buf.WriteString(fmt.Sprintf("   Server version: %s...\n", report.Connection.Version))

	buf.WriteString("\n2. Checking migrations table...\n")
	if l := report.Ledger; l != nil {
		switch {
		case l.Error != "":
			buf.WriteString(fmt.Sprintf("   ❌ Error checking migrations: %s\n", l.Error))
		case l.Exists:
			buf.WriteString(fmt.Sprintf("   ✅ Migrations table exists (%d migrations recorded)\n", l.Applied))
		default:
			buf.WriteString("   ❌ Migrations table does NOT exist - migrations haven't run!\n")
		}
	}

	buf.WriteString("\n3. Listing all tables in database...\n")
	if tables := report.Tables; tables != nil {
		switch {
		case tables.Error != "":
			buf.WriteString(fmt.Sprintf("   ❌ Error listing tables: %s\n", tables.Error))
		case len(tables.Names) == 0:
			buf.WriteString("   ❌ No tables found - migrations haven't run!\n")
		default:
			buf.WriteString(fmt.Sprintf("   Found %d tables:\n", len(tables.Names)))
			shown, more := head(tables.Names, diagnostics.TableListLimit)
			for _, name := range shown {
				buf.WriteString(fmt.Sprintf("     - %s\n", name))
			}
			if more > 0 {
				buf.WriteString(fmt.Sprintf("     ... and %d more\n", more))
			}
		}
	}

	buf.WriteString("\n4. Checking critical tables...\n")
	for _, t := range report.Critical {
		buf.WriteString(fmt.Sprintf("   %s: %s\n", t.Name, tableStatus(t)))
	}

	buf.WriteString("\n5. Checking migration status...\n")
	if m := report.Migrations; m != nil {
		if m.Error != "" {
			buf.WriteString(fmt.Sprintf("   ❌ Error checking migration status: %s\n", m.Error))
		} else {
			buf.WriteString(fmt.Sprintf("   Applied migrations: %d\n", m.Applied))
			buf.WriteString(fmt.Sprintf("   Unapplied migrations: %d\n", m.Unapplied))
			if m.Unapplied > 0 {
				buf.WriteString("   ⚠️  Some migrations haven't been applied!\n")
				buf.WriteString("\n   First few unapplied migrations:\n")
				for _, name := range m.Pending {
					buf.WriteString(fmt.Sprintf("     [ ] %s\n", name))
				}
			}
		}
	}

	if su := report.Superusers; su != nil {
		buf.WriteString("\n6. Checking superusers...\n")
		switch {
		case su.Error != "":
			buf.WriteString(fmt.Sprintf("   ❌ Error counting superusers: %s\n", su.Error))
		case su.Count == 0:
			buf.WriteString("   ⚠️  No superuser yet → Run: crmctl createsuperuser --noinput\n")
		default:
			buf.WriteString(fmt.Sprintf("   ✅ Superusers: %d\n", su.Count))
		}
	}

	buf.WriteString("\n" + rule + "\nSUMMARY\n" + rule + "\n")
	buf.WriteString("\nIf you see:\n")
	buf.WriteString("  - ❌ No tables found → Run: crmctl migrate\n")
	buf.WriteString("  - ❌ Migrations table missing → Run: crmctl migrate\n")
	buf.WriteString("  - ✅ Tables exist → Database is set up correctly\n")
	buf.WriteString("\n" + rule + "\n")

	return buf.Bytes(), nil
}

// DiagnosticsToMarkdown renders the report as a Markdown document with one section per check.
func DiagnosticsToMarkdown(report *diagnostics.Report) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Database State Check\n\n")
	buf.WriteString(fmt.Sprintf("**Driver**: %s\n", report.Driver))
	buf.WriteString(fmt.Sprintf("**Checked**: %s\n", report.CheckedAt.Format(time.RFC3339)))
	buf.WriteString(fmt.Sprintf("**Healthy**: %s\n\n", yesNo(report.Healthy())))

	buf.WriteString("## Connection\n\n")
	if !report.Connection.OK {
		buf.WriteString(fmt.Sprintf("Connection failed: `%s`\n", report.Connection.Error))
		return buf.Bytes(), nil
	}
	buf.WriteString(fmt.Sprintf("Connected to `%s`\n\n", report.Connection.Version))

	buf.WriteString("## Migration Ledger\n\n")
	if l := report.Ledger; l != nil {
		switch {
		case l.Error != "":
			buf.WriteString(fmt.Sprintf("Error: `%s`\n\n", l.Error))
		case l.Exists:
			buf.WriteString(fmt.Sprintf("`%s` exists with %d migrations recorded\n\n", diagnostics.LedgerTable, l.Applied))
		default:
			buf.WriteString(fmt.Sprintf("`%s` is missing\n\n", diagnostics.LedgerTable))
		}
	}

	buf.WriteString("## Tables\n\n")
	if tables := report.Tables; tables != nil {
		if tables.Error != "" {
			buf.WriteString(fmt.Sprintf("Error: `%s`\n\n", tables.Error))
		} else {
			buf.WriteString(fmt.Sprintf("**Count**: %d\n\n", len(tables.Names)))
			shown, more := head(tables.Names, diagnostics.TableListLimit)
			for _, name := range shown {
				buf.WriteString(fmt.Sprintf("- `%s`\n", name))
			}
			if more > 0 {
				buf.WriteString(fmt.Sprintf("- ... and %d more\n", more))
			}
			buf.WriteString("\n")
		}
	}

	buf.WriteString("## Critical Tables\n\n")
	buf.WriteString("| Table | Status |\n|---|---|\n")
	for _, t := range report.Critical {
		buf.WriteString(fmt.Sprintf("| %s | %s |\n", t.Name, strings.TrimSpace(strings.TrimLeft(tableStatus(t), "✅❌"))))
	}
	buf.WriteString("\n")

	buf.WriteString("## Migrations\n\n")
	if m := report.Migrations; m != nil {
		if m.Error != "" {
			buf.WriteString(fmt.Sprintf("Error: `%s`\n", m.Error))
		} else {
			buf.WriteString(fmt.Sprintf("**Applied**: %d\n**Unapplied**: %d\n", m.Applied, m.Unapplied))
			if len(m.Pending) > 0 {
				buf.WriteString("\n")
				for _, name := range m.Pending {
					buf.WriteString(fmt.Sprintf("- [ ] %s\n", name))
				}
			}
		}
	}

	if su := report.Superusers; su != nil {
		buf.WriteString("\n## Superusers\n\n")
		if su.Error != "" {
			buf.WriteString(fmt.Sprintf("Error: `%s`\n", su.Error))
		} else {
			buf.WriteString(fmt.Sprintf("**Count**: %d\n", su.Count))
		}
	}

	return buf.Bytes(), nil
}

// DiagnosticsToJSON renders the report as indented JSON.
func DiagnosticsToJSON(report *diagnostics.Report) ([]byte, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return append(data, '\n'), nil
}

// MigrationList renders one "[X] label" or "[ ] label" line per migration.
func MigrationList(states []shared.MigrationState) []byte {
	var buf bytes.Buffer
	for _, s := range states {
		mark := " "
		if s.Applied {
			mark = "X"
		}
		buf.WriteString(fmt.Sprintf(" [%s] %s\n", mark, s.Label()))
	}
	return buf.Bytes()
}

// RunSummary is the serializable form of a bootstrap run. Passwords are never included.
type RunSummary struct {
	RunID     string           `json:"run_id"`
	StartedAt time.Time        `json:"started_at"`
	Failed    bool             `json:"failed"`
	Phases    []PhaseSummary   `json:"phases"`
	Fixtures  []FixtureSummary `json:"fixtures,omitempty"`
	Superuser string           `json:"superuser,omitempty"`
}

type PhaseSummary struct {
	Phase    string  `json:"phase"`
	Status   string  `json:"status"`
	Attempts int     `json:"attempts"`
	Seconds  float64 `json:"seconds"`
	Detail   string  `json:"detail,omitempty"`
	Error    string  `json:"error,omitempty"`
}

type FixtureSummary struct {
	Name     string `json:"name"`
	Status   string `json:"status"`
	Attempts int    `json:"attempts"`
	Records  int    `json:"records"`
	Error    string `json:"error,omitempty"`
}

// Summarize converts a bootstrap report to its serializable form.
func Summarize(report *bootstrap.Report) RunSummary {
	summary := RunSummary{
		RunID:     report.RunID,
		StartedAt: report.StartedAt,
		Failed:    report.Failed(),
		Phases:    make([]PhaseSummary, 0, len(report.Phases)),
	}
	for _, p := range report.Phases {
		summary.Phases = append(summary.Phases, PhaseSummary{
			Phase:    p.Phase.String(),
			Status:   string(p.Status),
			Attempts: p.Attempts,
			Seconds:  p.Elapsed.Seconds(),
			Detail:   p.Detail,
			Error:    errString(p.Err),
		})
	}
	for _, f := range report.Fixtures {
		summary.Fixtures = append(summary.Fixtures, FixtureSummary{
			Name:     f.Name,
			Status:   string(f.Status),
			Attempts: f.Attempts,
			Records:  f.Records,
			Error:    errString(f.Err),
		})
	}
	if report.Credentials != nil {
		summary.Superuser = report.Credentials.Username
	}
	return summary
}

// BootstrapToJSON renders the run summary as indented JSON.
func BootstrapToJSON(report *bootstrap.Report) ([]byte, error) {
	data, err := json.MarshalIndent(Summarize(report), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal run summary: %w", err)
	}
	return append(data, '\n'), nil
}

// BootstrapToMarkdown renders the run summary as a Markdown table per section.
func BootstrapToMarkdown(report *bootstrap.Report) ([]byte, error) {
	var buf bytes.Buffer
	s := Summarize(report)

	buf.WriteString("# Setup Run\n\n")
	buf.WriteString(fmt.Sprintf("**Run**: %s\n", s.RunID))
	buf.WriteString(fmt.Sprintf("**Started**: %s\n", s.StartedAt.Format(time.RFC3339)))
	buf.WriteString(fmt.Sprintf("**Failed**: %s\n\n", yesNo(s.Failed)))

	buf.WriteString("## Phases\n\n| Phase | Status | Attempts | Detail |\n|---|---|---|---|\n")
	for _, p := range s.Phases {
		detail := p.Detail
		if p.Error != "" {
			detail = p.Error
		}
		buf.WriteString(fmt.Sprintf("| %s | %s | %d | %s |\n", p.Phase, p.Status, p.Attempts, escapeCell(detail)))
	}

	if len(s.Fixtures) > 0 {
		buf.WriteString("\n## Fixtures\n\n| Fixture | Status | Records |\n|---|---|---|\n")
		for _, f := range s.Fixtures {
			buf.WriteString(fmt.Sprintf("| %s | %s | %d |\n", f.Name, f.Status, f.Records))
		}
	}
	return buf.Bytes(), nil
}

// RenderBootstrap renders a run report in format f. Text falls back to Markdown.
func RenderBootstrap(report *bootstrap.Report, f Format) ([]byte, error) {
	if f == FormatJSON {
		return BootstrapToJSON(report)
	}
	return BootstrapToMarkdown(report)
}

// WriteReport writes rendered data to path, creating or truncating it.
func WriteReport(path string, data []byte) error {
	if path == "" {
		return fmt.Errorf("%w: report path", shared.ErrMissingArgument)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func tableStatus(t diagnostics.TableStatus) string {
	switch {
	case t.Error != "":
		return "❌ ERROR - " + t.Error
	case t.Exists:
		return "✅ EXISTS"
	default:
		return "❌ MISSING"
	}
}

func head(names []string, n int) ([]string, int) {
	if len(names) <= n {
		return names, 0
	}
	return names[:n], len(names) - n
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func escapeCell(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "|", `\|`), "\n", " ")
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
