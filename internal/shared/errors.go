package shared

import (
	"errors"
	"fmt"
)

var (
	// Configuration errors
	ErrInvalidConfig     = fmt.Errorf("invalid configuration")
	ErrUnsupportedDriver = fmt.Errorf("unsupported database driver")

	// Database errors
	ErrConnection       = fmt.Errorf("database connection failed")
	ErrMigrationFailed  = fmt.Errorf("migration failed")
	ErrNoMigrations     = fmt.Errorf("no migrations to rollback")
	ErrIncompleteSchema = fmt.Errorf("incomplete migration")

	// Seeding errors
	ErrFixtureNotFound   = fmt.Errorf("fixture not found")
	ErrInvalidFixture    = fmt.Errorf("invalid fixture")
	ErrUserExists        = fmt.Errorf("user already exists")
	ErrInvalidCredential = fmt.Errorf("invalid superuser credentials")

	// Input validation errors
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)

// ExitError carries a process exit status alongside the cause.
//
// It satisfies urfave/cli's ExitCoder so the status propagates to [os.Exit].
type ExitError struct {
	Code int
	Err  error
}

// NewExitError wraps err with the given exit code.
func NewExitError(code int, err error) *ExitError {
	return &ExitError{Code: code, Err: err}
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode returns the process exit status.
func (e *ExitError) ExitCode() int { return e.Code }

// ErrorChain flattens a wrapped error into one message per cause, outermost first.
//
// Joined errors contribute each branch in order.
func ErrorChain(err error) []string {
	var chain []string
	for err != nil {
		chain = append(chain, err.Error())
		if joined, ok := err.(interface{ Unwrap() []error }); ok {
			for _, e := range joined.Unwrap() {
				chain = append(chain, ErrorChain(e)...)
			}
			return chain
		}
		err = errors.Unwrap(err)
	}
	return chain
}
