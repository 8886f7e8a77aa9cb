package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/crmctl/internal/process"
	"github.com/desertthunder/crmctl/internal/shared"
	"github.com/desertthunder/crmctl/internal/ui"
)

// SettingsModuleEnv names the variable the child migration command reads its settings from.
const SettingsModuleEnv = "DJANGO_SETTINGS_MODULE"

// Outcome classifies a failed child migration attempt.
type Outcome int

const (
	OutcomeFatal  Outcome = iota // exit with the child's status
	OutcomeRetry                 // transient: connection or timeout
	OutcomeExists                // schema already in place: success
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRetry:
		return "retry"
	case OutcomeExists:
		return "exists"
	default:
		return "fatal"
	}
}

// Classify maps a failed attempt's stderr to an [Outcome]. "already exists" wins over connection markers.
func Classify(stderr string, timedOut bool) Outcome {
	lower := strings.ToLower(stderr)
	switch {
	case strings.Contains(lower, "already exists"):
		return OutcomeExists
	case timedOut,
		strings.Contains(lower, "connection"),
		strings.Contains(lower, "timeout"),
		strings.Contains(lower, "operationalerror"):
		return OutcomeRetry
	default:
		return OutcomeFatal
	}
}

// StandaloneOptions configure [MigrationRunner].
type StandaloneOptions struct {
	Command        []string      // argv of the child migration command
	Timeout        time.Duration // wall-clock bound per attempt
	Attempts       int
	BackoffStep    time.Duration // wait (i+1)*BackoffStep after attempt i
	SettingsModule string        // exported to the child when the parent has none
	Sleep          Sleeper
}

// StandaloneOptionsFrom builds runner options from configuration. An empty command runs self with "migrate --noinput".
func StandaloneOptionsFrom(cfg shared.RunnerConfig, self string) StandaloneOptions {
	command := cfg.Command
	if len(command) == 0 {
		command = []string{self, "migrate", "--noinput"}
	}
	return StandaloneOptions{
		Command:        command,
		Timeout:        cfg.Timeout.Duration,
		Attempts:       cfg.Attempts,
		BackoffStep:    cfg.BackoffStep.Duration,
		SettingsModule: cfg.SettingsModule,
	}
}

// MigrationRunner drives the migration command as a child process with its own retry rules.
type MigrationRunner struct {
	runner process.Runner
	opts   StandaloneOptions
	stdout *ui.Console
	stderr io.Writer
	logger *log.Logger
}

// NewMigrationRunner creates a runner. Nil writers default to the process's stdout and stderr.
func NewMigrationRunner(runner process.Runner, opts StandaloneOptions, stdout *ui.Console, stderr io.Writer, logger *log.Logger) *MigrationRunner {
	if stdout == nil {
		stdout = ui.NewConsole(nil)
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if opts.Sleep == nil {
		opts.Sleep = Sleep
	}
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}
	return &MigrationRunner{runner: runner, opts: opts, stdout: stdout, stderr: stderr, logger: logger}
}

// Run executes the child until it succeeds or a terminal outcome is reached.
// It returns nil for success (including "already exists") and a [shared.ExitError] carrying the child's status otherwise.
func (m *MigrationRunner) Run(ctx context.Context) error {
	if len(m.opts.Command) == 0 {
		return fmt.Errorf("%w: migration command is empty", shared.ErrInvalidConfig)
	}

	cmd := process.Command{
		Name:    m.opts.Command[0],
		Args:    m.opts.Command[1:],
		Timeout: m.opts.Timeout,
	}
	if m.opts.SettingsModule != "" {
		cmd.Env = process.SetDefaultEnv(nil, SettingsModuleEnv, m.opts.SettingsModule)
	}

	m.stdout.Banner("RUNNING MIGRATIONS")

	var (
		res process.Result
		err error
	)
	for attempt := 0; attempt < m.opts.Attempts; attempt++ {
		m.stdout.Println("")
		m.stdout.Println(fmt.Sprintf("Migration attempt %d/%d", attempt+1, m.opts.Attempts))

		res, err = m.runner.Run(ctx, cmd)
		m.logger.Debug("migration attempt", "attempt", attempt+1, "exit", res.ExitCode, "elapsed", res.Elapsed, "timed_out", res.TimedOut)
		if err == nil {
			m.stdout.Println("")
			m.stdout.Banner("MIGRATIONS COMPLETED SUCCESSFULLY")
			m.stdout.Printf("%s", res.Stdout)
			return nil
		}
		if ctx.Err() != nil {
			return shared.NewExitError(1, ctx.Err())
		}

		stderr := string(res.Stderr)
		if res.TimedOut && stderr == "" {
			stderr = err.Error()
		}

		switch Classify(stderr, res.TimedOut) {
		case OutcomeExists:
			m.stdout.Println("Some tables already exist (this is okay)")
			return nil
		case OutcomeRetry:
			if attempt < m.opts.Attempts-1 {
				wait := time.Duration(attempt+1) * m.opts.BackoffStep
				fmt.Fprintf(m.stderr, "Database connection error (attempt %d/%d). Retrying in %d seconds...\n",
					attempt+1, m.opts.Attempts, int(wait.Seconds()))
				fmt.Fprintln(m.stderr, stderr)
				if serr := m.opts.Sleep(ctx, wait); serr != nil {
					return shared.NewExitError(1, serr)
				}
				continue
			}
			fmt.Fprintln(m.stderr, "FATAL: Database connection failed after multiple attempts")
			fmt.Fprintln(m.stderr, stderr)
			return shared.NewExitError(exitCode(res), fmt.Errorf("%w: %w", shared.ErrConnection, err))
		default:
			fmt.Fprintln(m.stderr, stderr)
			return shared.NewExitError(exitCode(res), fmt.Errorf("%w: %w", shared.ErrMigrationFailed, err))
		}
	}

	fmt.Fprintln(m.stderr, "FATAL: Migrations failed after all retry attempts")
	return shared.NewExitError(1, fmt.Errorf("%w: %w", shared.ErrMigrationFailed, err))
}

func exitCode(res process.Result) int {
	if res.ExitCode == 0 {
		return 1
	}
	return res.ExitCode
}
