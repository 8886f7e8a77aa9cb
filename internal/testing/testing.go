// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/desertthunder/crmctl/internal/shared"
)

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MemoryDatabase opens an in-memory SQLite [shared.Database] closed at test cleanup.
func MemoryDatabase(t *testing.T) *shared.Database {
	t.Helper()
	db, err := shared.OpenDatabase(shared.DatabaseConfig{Driver: "sqlite3", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// MigratedDatabase is [MemoryDatabase] with every migration applied.
func MigratedDatabase(t *testing.T) *shared.Database {
	t.Helper()
	db := MemoryDatabase(t)
	if _, err := shared.RunMigrations(context.Background(), db.DB(), db.Dialect()); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}

// WriteConfig writes a TOML config pointing at dsn into dir and returns its path.
func WriteConfig(t *testing.T, dir, dsn string, extra string) string {
	t.Helper()
	path := filepath.Join(dir, "config.toml")
	content := "[database]\ndriver = \"sqlite3\"\ndsn = \"" + dsn + "\"\n" + extra
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config %s: %v", path, err)
	}
	return path
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
