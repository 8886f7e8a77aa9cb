// Package bootstrap brings an empty CRM database to a usable state.
//
// # Pipeline
//
// [Orchestrator.Run] executes three phases in order on one goroutine:
//
//  1. [Migrate] : apply pending schema migrations. Connection-class errors are retried
//     (3 attempts, linear 2s backoff, connection reopened before each retry). Any other error
//     is fatal and the run ends with exit status 1. "already exists" counts as success.
//  2. [Fixtures] : load every fixture in order. Each gets 2 tries with a 1s wait and a reopen
//     on connection errors. A fixture that still fails is reported as skipped and the next one runs.
//  3. [Superuser] : create the administrative account from the configured [Credentials],
//     generating a password when none is configured. Failure, usually an existing username, is
//     reported and ignored. Credentials are printed once, only after a successful create.
//
// Testing mode skips phases 1 and 3. Retry behavior lives in [RetryPolicy] and [Retry] so each
// phase is a plain attempt function wrapped by a policy.
//
// # Standalone runner
//
// [MigrationRunner] performs only the migration step by spawning a child command with a wall-clock
// bound per attempt. Its stderr is classified by [Classify]: "already exists" ends the run successfully,
// connection and timeout markers are retried with (i+1)*5s backoff, anything else exits with the child's status.
package bootstrap
