package fixtures

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/desertthunder/crmctl/internal/models"
	"github.com/desertthunder/crmctl/internal/shared"
)

// tableOverrides maps model labels whose table does not follow "app_model".
var tableOverrides = map[string]string{
	"sites.site":               "django_site",
	"contenttypes.contenttype": "django_content_type",
	"sessions.session":         "django_session",
	"admin.logentry":           "django_admin_log",
}

type rawRecord struct {
	Model  string         `json:"model"`
	PK     json.Number    `json:"pk"`
	Fields map[string]any `json:"fields"`
}

// TableFor returns the table a model label ("app.model") is stored in.
func TableFor(label string) (string, error) {
	label = strings.ToLower(strings.TrimSpace(label))
	if table, ok := tableOverrides[label]; ok {
		return table, nil
	}

	app, model, ok := strings.Cut(label, ".")
	if !ok || app == "" || model == "" || strings.Contains(model, ".") {
		return "", fmt.Errorf("%w: model label %q", shared.ErrInvalidFixture, label)
	}
	return app + "_" + model, nil
}

// Parse decodes a fixture document into records.
//
// Numbers decode to int64 when integral and float64 otherwise. Empty list fields are dropped;
// non-empty lists and nested objects are rejected since they have no single column to land in.
func Parse(name string, data []byte) ([]models.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw []rawRecord
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", shared.ErrInvalidFixture, name, err)
	}

	records := make([]models.Record, 0, len(raw))
	for i, r := range raw {
		table, err := TableFor(r.Model)
		if err != nil {
			return nil, fmt.Errorf("%s record %d: %w", name, i, err)
		}

		pk, err := r.PK.Int64()
		if err != nil {
			return nil, fmt.Errorf("%w: %s record %d: pk %q", shared.ErrInvalidFixture, name, i, r.PK)
		}

		fields := make(map[string]any, len(r.Fields))
		for key, value := range r.Fields {
			converted, keep, err := convertValue(value)
			if err != nil {
				return nil, fmt.Errorf("%w: %s record %d field %s: %v", shared.ErrInvalidFixture, name, i, key, err)
			}
			if keep {
				fields[key] = converted
			}
		}

		records = append(records, models.Record{Table: table, PK: pk, Fields: fields})
	}
	return records, nil
}

func convertValue(value any) (any, bool, error) {
	switch v := value.(type) {
	case nil, string, bool:
		return v, true, nil
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, true, nil
		}
		f, err := v.Float64()
		if err != nil {
			return nil, false, err
		}
		return f, true, nil
	case []any:
		if len(v) == 0 {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("list values are not supported")
	default:
		return nil, false, fmt.Errorf("unsupported value of type %T", value)
	}
}
