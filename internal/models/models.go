// package models defines the records the bootstrap tooling persists
package models

// Record is one fixture row addressed by table and primary key.
type Record struct {
	Table  string
	PK     int64
	Fields map[string]any
}
