package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/crmctl/internal/bootstrap"
	"github.com/desertthunder/crmctl/internal/formatter"
	"github.com/desertthunder/crmctl/internal/shared"
)

// Migrate applies pending migrations once. Errors go to stderr so a parent run-migrations can classify them.
func (r *Runner) Migrate(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	db, err := r.open(config)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := r.writePlain("Operations to perform:\n  Apply all migrations\nRunning migrations:\n"); err != nil {
		return err
	}
	applied, runErr := shared.RunMigrations(ctx, db.DB(), db.Dialect())
	for _, m := range applied {
		if err := r.writePlain("  Applying %s... OK\n", m.Label()); err != nil && runErr == nil {
			return err
		}
	}
	if runErr != nil {
		return fmt.Errorf("%w: %w", shared.ErrMigrationFailed, runErr)
	}
	if len(applied) == 0 {
		return r.writePlain("  No migrations to apply.\n")
	}
	return nil
}

// Rollback reverts the most recent migration.
func (r *Runner) Rollback(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	db, err := r.open(config)
	if err != nil {
		return err
	}
	defer db.Close()

	m, err := shared.RollbackMigration(ctx, db.DB(), db.Dialect())
	if errors.Is(err, shared.ErrNoMigrations) {
		return r.writePlain("No migrations to roll back.\n")
	}
	if err != nil {
		return err
	}
	return r.writePlain("  Unapplying %s... OK\n", m.Label())
}

// ShowMigrations lists every known migration with an [X] when applied.
func (r *Runner) ShowMigrations(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	db, err := r.open(config)
	if err != nil {
		return err
	}
	defer db.Close()

	states, err := shared.MigrationStatus(ctx, db.DB(), db.Dialect())
	if err != nil {
		return err
	}
	return r.writePlain("crm\n%s", formatter.MigrationList(states))
}

// RunMigrations runs "migrate --noinput" as a child process under the runner's timeout and retry rules.
func (r *Runner) RunMigrations(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := bootstrap.StandaloneOptionsFrom(config.Runner, r.executable)
	if len(config.Runner.Command) == 0 {
		opts.Command = []string{r.executable, "--config", cmd.String("config"), "migrate", "--noinput"}
	}
	opts.Sleep = r.sleep

	runner := bootstrap.NewMigrationRunner(r.process, opts, r.console(), r.errOutput, r.logger)
	return runner.Run(ctx)
}
