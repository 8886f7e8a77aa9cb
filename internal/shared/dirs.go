package shared

import (
	"fmt"
	"os"
	"path/filepath"
)

// RuntimeDirs returns the directories the web process writes to: the media lock directory and the static root.
func RuntimeDirs(paths PathsConfig) []string {
	base := paths.BaseDir
	if base == "" {
		base = "."
	}
	return []string{
		filepath.Join(base, paths.MediaRoot, "locks"),
		filepath.Join(base, paths.StaticRoot),
	}
}

// EnsureRuntimeDirs creates every runtime directory, including parents. Existing directories are left untouched.
func EnsureRuntimeDirs(paths PathsConfig) error {
	for _, dir := range RuntimeDirs(paths) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}
