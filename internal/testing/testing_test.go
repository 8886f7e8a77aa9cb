package testing

import (
	"context"
	"testing"

	"github.com/desertthunder/crmctl/internal/shared"
)

func TestWriters(t *testing.T) {
	t.Run("FWriter", func(t *testing.T) {
		if _, err := (&FWriter{}).Write([]byte("x")); err == nil {
			t.Error("FWriter should fail")
		}
	})

}

func TestDatabaseHelpers(t *testing.T) {
	db := MigratedDatabase(t)
	exists, err := shared.TableExists(context.Background(), db.DB(), db.Dialect(), "auth_user")
	if err != nil || !exists {
		t.Errorf("expected auth_user after migrating: exists=%v err=%v", exists, err)
	}
}

func TestWriteConfig(t *testing.T) {
	dir := t.TempDir()
	path := WriteConfig(t, dir, ":memory:", "[superuser]\nusername = \"ops\"\n")
	AssertFileExists(t, path)

	cfg, err := shared.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.Database.DSN != ":memory:" || cfg.Superuser.Username != "ops" {
		t.Errorf("unexpected config %+v", cfg)
	}
}
