package bootstrap

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/desertthunder/crmctl/internal/fixtures"
	"github.com/desertthunder/crmctl/internal/shared"
	"github.com/desertthunder/crmctl/internal/ui"
)

const tracerName = "github.com/desertthunder/crmctl/internal/bootstrap"

// Deps are the collaborators a run drives.
type Deps struct {
	DB        Reopener
	Migrator  Migrator
	Loader    FixtureLoader
	Superuser SuperuserCreator
	Console   *ui.Console
	Logger    *log.Logger
}

// Options configure a run.
type Options struct {
	Testing      bool // skip migration and superuser phases
	SkipFixtures bool
	Verbosity    int
	Migrate      RetryPolicy
	Fixture      RetryPolicy
	Fixtures     []string
	Superuser    shared.SuperuserConfig
	Generate     func() (string, error) // password generator; nil uses passwords.Generate
	Sleep        Sleeper
}

// OptionsFrom builds run options from configuration.
func OptionsFrom(cfg *shared.Config) Options {
	return Options{
		Testing:      cfg.Bootstrap.Testing,
		SkipFixtures: cfg.Bootstrap.SkipFixtures,
		Verbosity:    1,
		Migrate:      PolicyFrom(cfg.Bootstrap.Migrate),
		Fixture:      FixturePolicyFrom(cfg.Bootstrap.Fixture),
		Fixtures:     fixtures.DefaultOrder,
		Superuser:    cfg.Superuser,
	}
}

type noReopen struct{}

func (noReopen) Reopen(context.Context) error { return nil }

// Orchestrator runs migrate, fixtures and superuser in order.
type Orchestrator struct {
	deps   Deps
	opts   Options
	tracer trace.Tracer
}

type step struct {
	phase Phase
	run   func(ctx context.Context, report *Report) PhaseResult
	fatal bool
}

// New creates an orchestrator. A nil console writes to stdout and a nil logger discards.
func New(deps Deps, opts Options) *Orchestrator {
	if deps.Console == nil {
		deps.Console = ui.NewConsole(nil)
	}
	if deps.Logger == nil {
		deps.Logger = log.New(io.Discard)
	}
	if deps.DB == nil {
		deps.DB = noReopen{}
	}
	if opts.Sleep == nil {
		opts.Sleep = Sleep
	}
	if opts.Fixtures == nil {
		opts.Fixtures = fixtures.DefaultOrder
	}
	return &Orchestrator{deps: deps, opts: opts, tracer: otel.Tracer(tracerName)}
}

// Run executes the pipeline. Only a migration failure is returned as an error; it carries exit status 1.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	report := &Report{RunID: shared.GenerateID(), StartedAt: time.Now()}
	logger := o.deps.Logger.With("run", report.RunID)

	ctx, span := o.tracer.Start(ctx, "bootstrap.run", trace.WithAttributes(attribute.String("run.id", report.RunID)))
	defer span.End()

	o.deps.Console.Success("Starting setupdata...")

	steps := []step{
		{phase: Migrate, run: o.migrate, fatal: true},
		{phase: Fixtures, run: o.loadFixtures},
		{phase: Superuser, run: o.createSuperuser},
	}

	for _, s := range steps {
		pctx, pspan := o.tracer.Start(ctx, "bootstrap."+s.phase.String())
		start := time.Now()
		res := s.run(pctx, report)
		res.Phase = s.phase
		res.Elapsed = time.Since(start)
		report.Phases = append(report.Phases, res)

		pspan.SetAttributes(attribute.String("status", string(res.Status)), attribute.Int("attempts", res.Attempts))
		if res.Err != nil {
			pspan.RecordError(res.Err)
			if res.Status == StatusError {
				pspan.SetStatus(codes.Error, res.Err.Error())
			}
		}
		pspan.End()

		logger.Info("phase finished", "phase", s.phase, "status", res.Status, "attempts", res.Attempts, "elapsed", res.Elapsed)

		if s.fatal && res.Status == StatusError {
			span.SetStatus(codes.Error, "bootstrap failed")
			return report, shared.NewExitError(1, fmt.Errorf("%w: %w", shared.ErrMigrationFailed, res.Err))
		}
	}

	o.deps.Console.Println("")
	o.deps.Console.Done("Setup complete!")
	return report, nil
}

func (o *Orchestrator) migrate(ctx context.Context, _ *Report) PhaseResult {
	if o.opts.Testing {
		o.deps.Console.Hint("Skipping migrations (testing)")
		return PhaseResult{Status: StatusSkipped, Detail: "testing"}
	}

	c := o.deps.Console
	c.Step("Step 1/3: Running migrations...")

	var applied []string
	attempts, err := Retry(ctx, o.opts.Migrate, RetryHooks{
		Notify: func(attempt, limit int, wait time.Duration, err error) {
			c.Step("  Connection error (attempt %d/%d). Retrying in %d seconds...", attempt+1, limit, int(wait.Seconds()))
			o.deps.Logger.Warn("migration attempt failed", "attempt", attempt+1, "error", err)
		},
		Sleep: o.opts.Sleep,
		Reset: o.deps.DB.Reopen,
	}, func(ctx context.Context, attempt int) error {
		var err error
		applied, err = o.deps.Migrator.Migrate(ctx)
		return err
	})

	switch {
	case err == nil:
		for _, label := range applied {
			o.deps.Logger.Debug("migration applied", "migration", label)
		}
		if len(applied) == 0 {
			c.Hint("  No migrations to apply.")
		}
		c.Success("Migrations completed")
		return PhaseResult{Status: StatusOK, Attempts: attempts}
	case shared.IsAlreadyExistsError(err):
		c.Warning("Some tables already exist (this is okay)")
		c.Success("Migrations completed")
		return PhaseResult{Status: StatusOK, Attempts: attempts, Detail: "already exists", Err: err}
	default:
		c.Failure("Migration error: %v", err)
		o.trace(err)
		return PhaseResult{Status: StatusError, Attempts: attempts, Err: err}
	}
}

func (o *Orchestrator) loadFixtures(ctx context.Context, report *Report) PhaseResult {
	c := o.deps.Console
	if o.opts.SkipFixtures {
		c.Step("Skipping fixtures (--skip-fixtures)")
		return PhaseResult{Status: StatusSkipped, Detail: "--skip-fixtures"}
	}

	c.Step("Step 2/3: Loading fixtures...")
	total := len(o.opts.Fixtures)
	for i, name := range o.opts.Fixtures {
		c.Printf("  Loading %d/%d: %s...", i+1, total, name)

		fctx, span := o.tracer.Start(ctx, "bootstrap.fixture", trace.WithAttributes(attribute.String("fixture", name)))
		var records int
		attempts, err := Retry(fctx, o.opts.Fixture, RetryHooks{
			Sleep: o.opts.Sleep,
			Reset: o.deps.DB.Reopen,
		}, func(ctx context.Context, _ int) error {
			var err error
			records, err = o.deps.Loader.Load(ctx, name)
			return err
		})
		span.SetAttributes(attribute.Int("attempts", attempts))

		res := FixtureResult{Name: name, Attempts: attempts, Records: records}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.InlineFail(err)
			o.trace(err)
			c.Step("  (skipped)")
			o.deps.Logger.Warn("fixture skipped", "fixture", name, "attempts", attempts, "error", err)
			res.Status, res.Err = StatusSkipped, err
		} else {
			c.InlineOK()
			res.Status = StatusOK
		}
		span.End()
		report.Fixtures = append(report.Fixtures, res)

		if ctx.Err() != nil {
			break
		}
	}

	c.Success("Fixtures loading completed")
	loaded, skipped := report.FixtureCounts()
	return PhaseResult{Status: StatusOK, Attempts: 1, Detail: fmt.Sprintf("%d loaded, %d skipped", loaded, skipped)}
}

func (o *Orchestrator) createSuperuser(ctx context.Context, report *Report) PhaseResult {
	if o.opts.Testing {
		o.deps.Console.Hint("Skipping superuser (testing)")
		return PhaseResult{Status: StatusSkipped, Detail: "testing"}
	}

	c := o.deps.Console
	c.Step("Step 3/3: Creating superuser...")

	creds, err := ResolveCredentials(o.opts.Superuser, o.opts.Generate)
	if err == nil {
		err = o.deps.Superuser.CreateSuperuser(ctx, creds)
	}
	if err != nil {
		c.Failure("Superuser creation error: %v", err)
		o.trace(err)
		o.deps.Logger.Warn("superuser not created", "error", err)
		return PhaseResult{Status: StatusError, Attempts: 1, Err: err}
	}

	c.Success("Superuser created")
	c.Println("")
	c.Success("SUPERUSER Credentials:")
	c.Println(" USERNAME: " + creds.Username)
	c.Println(" PASSWORD: " + creds.DisplayPassword())
	c.Println(" EMAIL: " + creds.Email)
	report.Credentials = &creds
	return PhaseResult{Status: StatusOK, Attempts: 1}
}

// trace prints the wrapped error chain when verbosity is 2 or more.
func (o *Orchestrator) trace(err error) {
	if o.opts.Verbosity < 2 {
		return
	}
	chain := shared.ErrorChain(err)
	for _, link := range chain[1:] {
		o.deps.Console.Hint("    caused by: %s", link)
	}
}
