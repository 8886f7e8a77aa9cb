package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/crmctl/internal/bootstrap"
	"github.com/desertthunder/crmctl/internal/process"
	"github.com/desertthunder/crmctl/internal/shared"
	"github.com/desertthunder/crmctl/internal/telemetry"
	"github.com/desertthunder/crmctl/internal/ui"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	logger     *log.Logger
	output     io.Writer
	errOutput  io.Writer
	process    process.Runner
	sleep      bootstrap.Sleeper
	generate   func() (string, error)
	executable string
}

// RunnerOpts contains configuration options for creating a Runner.
//
// A preset Config skips file and environment loading, which tests rely on.
type RunnerOpts struct {
	Config     *shared.Config
	Logger     *log.Logger
	Output     io.Writer
	ErrOutput  io.Writer
	Process    process.Runner
	Sleep      bootstrap.Sleeper
	Generate   func() (string, error)
	Executable string
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.ErrOutput == nil {
		opts.ErrOutput = os.Stderr
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(opts.ErrOutput)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Process == nil {
		opts.Process = process.ExecRunner{}
	}
	if opts.Sleep == nil {
		opts.Sleep = bootstrap.Sleep
	}
	if opts.Executable == "" {
		if exe, err := os.Executable(); err == nil {
			opts.Executable = exe
		} else {
			opts.Executable = os.Args[0]
		}
	}

	return &Runner{
		config:     opts.Config,
		logger:     opts.Logger,
		output:     opts.Output,
		errOutput:  opts.ErrOutput,
		process:    opts.Process,
		sleep:      opts.Sleep,
		generate:   opts.Generate,
		executable: opts.Executable,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupDataCommand, migrateCommand, showMigrationsCommand, loadDataCommand, createSuperuserCommand,
		runMigrationsCommand, checkCommand, serveCommand, initCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// loadConfig resolves configuration for cmd: the preset config, or the --config file plus environment.
// It also applies the log level: CRM_LOG_LEVEL / [log] level wins over --verbosity.
func (r *Runner) loadConfig(cmd *cli.Command) (*shared.Config, error) {
	config := r.config
	if config == nil {
		loaded, err := shared.Load(cmd.String("config"))
		if err != nil {
			return nil, err
		}
		config = loaded
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	v := r.verbosity(cmd)
	if v < 0 || v > 3 {
		return nil, fmt.Errorf("%w: verbosity %d (want 0-3)", shared.ErrInvalidFlag, v)
	}

	level := shared.VerbosityLevel(v)
	if ll, ok := shared.ParseLogLevel(config.Log.Level); ok && !cmd.IsSet("verbosity") {
		level = ll
	}
	shared.SetLogLevel(r.logger, level)
	return config, nil
}

func (r *Runner) verbosity(cmd *cli.Command) int {
	return int(cmd.Int("verbosity"))
}

// dial opens the configured database without requiring it to be up yet.
func (r *Runner) dial(config *shared.Config) (*shared.Database, error) {
	db, err := shared.DialDatabase(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	r.logger.Debug("database handle ready", "driver", db.Dialect().Driver)
	return db, nil
}

// open opens the configured database and fails fast when it is unreachable.
func (r *Runner) open(config *shared.Config) (*shared.Database, error) {
	db, err := shared.OpenDatabase(config.Database)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrConnection, err)
	}
	return db, nil
}

// tracing starts trace export when configured. The returned func flushes spans.
func (r *Runner) tracing(ctx context.Context, config *shared.Config) func() {
	shutdown, err := telemetry.Setup(ctx, config.Telemetry)
	if err != nil {
		r.logger.Warn("tracing disabled", "error", err)
		return func() {}
	}
	return func() {
		if err := shutdown(context.Background()); err != nil {
			r.logger.Warn("failed to flush traces", "error", err)
		}
	}
}

func (r *Runner) console() *ui.Console {
	return ui.NewConsole(r.output)
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
