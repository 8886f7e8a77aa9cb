// Package repositories implements persistence for the rows bootstrap writes.
//
// Key Implementations:
//   - [UserRepository] : auth_user persistence with username lookups and the superuser uniqueness rule
//   - [RecordRepository] : idempotent upserts of fixture rows keyed on id
//
// Repositories hold a [shared.Database] and fetch the pool per call, so a reopen between retries is picked up.
// Queries are written with "?" placeholders and rebound for the active dialect.
package repositories
