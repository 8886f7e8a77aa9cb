package fixtures

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/crmctl/internal/models"
)

// RecordWriter persists a batch of records atomically.
type RecordWriter interface {
	UpsertAll(ctx context.Context, records []models.Record) error
}

// Loader reads fixtures from a [Catalog] and writes them through a [RecordWriter].
type Loader struct {
	catalog *Catalog
	writer  RecordWriter
	logger  *log.Logger
}

// NewLoader creates a loader. A nil logger discards debug output.
func NewLoader(catalog *Catalog, writer RecordWriter, logger *log.Logger) *Loader {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Loader{catalog: catalog, writer: writer, logger: logger}
}

// Catalog returns the catalog the loader reads from.
func (l *Loader) Catalog() *Catalog {
	return l.catalog
}

// Load reads, parses and upserts one fixture, returning the number of records written.
func (l *Loader) Load(ctx context.Context, name string) (int, error) {
	data, err := l.catalog.Read(name)
	if err != nil {
		return 0, err
	}

	records, err := Parse(Normalize(name), data)
	if err != nil {
		return 0, err
	}

	if err := l.writer.UpsertAll(ctx, records); err != nil {
		return 0, fmt.Errorf("failed to load %s: %w", Normalize(name), err)
	}

	l.logger.Debug("fixture loaded", "fixture", Normalize(name), "records", len(records))
	return len(records), nil
}
