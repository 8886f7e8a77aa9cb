// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// setupDataCommand runs the full bootstrap: migrations, fixtures and superuser.
func setupDataCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setupdata",
		Usage: "Migrate the database, load fixtures and create the superuser",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "skip-fixtures",
				Usage: "Skip loading fixtures",
			},
			&cli.StringFlag{
				Name:  "fixtures-dir",
				Usage: "Directory with fixture files overriding the bundled ones",
			},
			&cli.StringFlag{
				Name:  "report",
				Usage: "Write a run summary to this file",
			},
			&cli.StringFlag{
				Name:  "report-format",
				Usage: "Run summary format (markdown or json)",
				Value: "json",
			},
		},
		Action: r.SetupData,
	}
}

// migrateCommand applies or rolls back schema migrations in-process.
func migrateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply pending migrations",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "noinput",
				Usage: "Never prompt (always the case; accepted for compatibility)",
			},
		},
		Action: r.Migrate,
		Commands: []*cli.Command{
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent migration",
				Action: r.Rollback,
			},
		},
	}
}

func showMigrationsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "showmigrations",
		Usage:  "List migrations and whether each is applied",
		Action: r.ShowMigrations,
	}
}

func loadDataCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "loaddata",
		Usage:     "Load the named fixtures",
		ArgsUsage: "<fixture>...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "fixtures-dir",
				Usage: "Directory with fixture files overriding the bundled ones",
			},
		},
		Action: r.LoadData,
	}
}

func createSuperuserCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "createsuperuser",
		Usage: "Create the administrative account from config and environment",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "noinput",
				Usage: "Never prompt (always the case; accepted for compatibility)",
			},
			&cli.StringFlag{
				Name:  "username",
				Usage: "Username (default from DJANGO_SUPERUSER_USERNAME or config)",
			},
			&cli.StringFlag{
				Name:  "email",
				Usage: "Email (default from DJANGO_SUPERUSER_EMAIL or config)",
			},
		},
		Action: r.CreateSuperuser,
	}
}

// runMigrationsCommand drives "migrate" as a child process with timeout and retry.
func runMigrationsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "run-migrations",
		Usage:  "Run migrations in a child process, retrying connection errors",
		Action: r.RunMigrations,
	}
}

func checkCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "Report the database state",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format (text, markdown or json)",
				Value:   "text",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the report to a file instead of stdout",
			},
		},
		Action: r.Check,
	}
}

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Prepare runtime directories and serve health probes and static files",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Listen host (default from config)",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Listen port (default from config or PORT)",
				Value: -1,
			},
		},
		Action: r.Serve,
	}
}

// initCommand writes a config file from the embedded template.
func initCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "init",
		Usage:  "Write config.toml from the bundled template",
		Action: r.Init,
	}
}
