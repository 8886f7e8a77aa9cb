package fixtures

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/desertthunder/crmctl/internal/shared"
)

//go:embed data/*.json
var bundled embed.FS

// DefaultOrder lists fixtures in load order. Later fixtures may reference rows from earlier ones,
// but each is loaded independently.
var DefaultOrder = []string{
	"country.json",
	"currency.json",
	"groups.json",
	"resolution.json",
	"department.json",
	"deal_stage.json",
	"projectstage.json",
	"taskstage.json",
	"client_type.json",
	"closing_reason.json",
	"industry.json",
	"lead_source.json",
	"publicemaildomain.json",
	"help_en.json",
	"sites.json",
	"reminders.json",
	"massmailsettings.json",
}

// Catalog resolves fixture names to their content.
type Catalog struct {
	layers []fs.FS
	order  []string
}

// NewCatalog returns a catalog over the bundled fixtures. When dir is not empty its files shadow the bundled ones.
func NewCatalog(dir string) (*Catalog, error) {
	embedded, err := fs.Sub(bundled, "data")
	if err != nil {
		return nil, fmt.Errorf("failed to open bundled fixtures: %w", err)
	}

	layers := []fs.FS{embedded}
	if dir != "" {
		info, err := os.Stat(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to open fixtures dir: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%w: fixtures dir %s is not a directory", shared.ErrInvalidConfig, dir)
		}
		layers = append([]fs.FS{os.DirFS(dir)}, layers...)
	}

	return NewCatalogFS(layers...), nil
}

// NewCatalogFS builds a catalog from filesystems searched in order, using [DefaultOrder].
func NewCatalogFS(layers ...fs.FS) *Catalog {
	return &Catalog{layers: layers, order: DefaultOrder}
}

// WithOrder returns a copy of the catalog that reports names in the given order.
func (c *Catalog) WithOrder(names []string) *Catalog {
	return &Catalog{layers: c.layers, order: append([]string(nil), names...)}
}

// Names returns the load order.
func (c *Catalog) Names() []string {
	return append([]string(nil), c.order...)
}

// Read returns the raw content of the named fixture. A name without extension gets ".json".
func (c *Catalog) Read(name string) ([]byte, error) {
	name = Normalize(name)
	if !fs.ValidPath(name) || strings.Contains(name, "/") {
		return nil, fmt.Errorf("%w: %q", shared.ErrFixtureNotFound, name)
	}

	for _, layer := range c.layers {
		data, err := fs.ReadFile(layer, name)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read fixture %s: %w", name, err)
		}
	}
	return nil, fmt.Errorf("%w: %s", shared.ErrFixtureNotFound, name)
}

// Normalize appends ".json" to names given without an extension.
func Normalize(name string) string {
	name = strings.TrimSpace(name)
	if path.Ext(name) == "" {
		return name + ".json"
	}
	return name
}
