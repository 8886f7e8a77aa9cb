// Package diagnostics inspects the state of the CRM database.
//
// [Inspector.Inspect] runs five sequential checks: connection and server version, migration ledger,
// table listing, critical tables and migration status. Only a failed connection stops the run; the
// other checks record their own errors in the [Report] and the next check continues.
package diagnostics
