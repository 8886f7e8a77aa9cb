// Package fixtures loads the seed bundles that make a migrated CRM database usable.
//
// A fixture is a JSON array of records in the web backend's dump format:
//
//	[{"model": "crm.country", "pk": 1, "fields": {"name": "Ukraine"}}]
//
// The model label "app.model" addresses table "app_model" unless an override is registered in [TableFor].
// Records are upserted on id, so loading a fixture twice leaves the same rows behind.
//
// [DefaultOrder] is the fixed load order used by bootstrap. Bundled copies of every fixture are embedded;
// a directory configured at runtime takes precedence file by file.
package fixtures
