package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/crmctl/internal/bootstrap"
	"github.com/desertthunder/crmctl/internal/fixtures"
	"github.com/desertthunder/crmctl/internal/formatter"
	"github.com/desertthunder/crmctl/internal/passwords"
	"github.com/desertthunder/crmctl/internal/repositories"
	"github.com/desertthunder/crmctl/internal/shared"
)

// SetupData runs the bootstrap pipeline. Only an unrecoverable migration failure exits non-zero.
func (r *Runner) SetupData(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Bool("skip-fixtures") {
		config.Bootstrap.SkipFixtures = true
	}
	if dir := cmd.String("fixtures-dir"); dir != "" {
		config.Bootstrap.FixturesDir = dir
	}

	flush := r.tracing(ctx, config)
	defer flush()

	catalog, err := fixtures.NewCatalog(config.Bootstrap.FixturesDir)
	if err != nil {
		return err
	}

	db, err := r.dial(config)
	if err != nil {
		return err
	}
	defer db.Close()

	opts := bootstrap.OptionsFrom(config)
	opts.Verbosity = r.verbosity(cmd)
	opts.Fixtures = catalog.Names()
	opts.Sleep = r.sleep
	opts.Generate = r.generate

	orchestrator := bootstrap.New(bootstrap.Deps{
		DB:        db,
		Migrator:  bootstrap.NewSchemaMigrator(db),
		Loader:    fixtures.NewLoader(catalog, repositories.NewRecordRepository(db), r.logger),
		Superuser: bootstrap.NewAccountCreator(repositories.NewUserRepository(db), passwords.NewHasher()),
		Console:   r.console(),
		Logger:    r.logger,
	}, opts)

	report, runErr := orchestrator.Run(ctx)
	if path := cmd.String("report"); path != "" && report != nil {
		if err := r.writeRunReport(report, path, cmd.String("report-format")); err != nil {
			r.logger.Warn("run report not written", "path", path, "error", err)
		}
	}
	return runErr
}

func (r *Runner) writeRunReport(report *bootstrap.Report, path, format string) error {
	f, err := formatter.ParseFormat(format)
	if err != nil {
		return err
	}
	data, err := formatter.RenderBootstrap(report, f)
	if err != nil {
		return err
	}
	return formatter.WriteReport(path, data)
}

// Init writes the config template to the --config path.
func (r *Runner) Init(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	if err := shared.CreateConfigFile(configPath); err != nil {
		return err
	}
	r.logger.Info("config file created", "path", configPath)
	return r.writePlain("✓ Wrote %s\n", configPath)
}

// superuserCredentials resolves credentials from config with command-line overrides.
func (r *Runner) superuserCredentials(cmd *cli.Command, config *shared.Config) (bootstrap.Credentials, error) {
	su := config.Superuser
	if v := cmd.String("username"); v != "" {
		su.Username = v
	}
	if v := cmd.String("email"); v != "" {
		su.Email = v
	}
	creds, err := bootstrap.ResolveCredentials(su, r.generate)
	if err != nil {
		return bootstrap.Credentials{}, fmt.Errorf("failed to resolve credentials: %w", err)
	}
	return creds, nil
}
