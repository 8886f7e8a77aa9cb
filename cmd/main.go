package main

import (
	"context"
	"errors"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
)

func main() {
	runner := NewRunner(RunnerOpts{})
	app := newApp(runner)

	if err := app.Run(context.Background(), os.Args); err != nil {
		os.Exit(exitStatus(runner.logger, err))
	}
}

func newApp(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "crmctl",
		Usage:   "Bootstrap and inspect the CRM database",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
				Sources: cli.EnvVars("CRM_CONFIG"),
			},
			&cli.IntFlag{
				Name:  "verbosity",
				Usage: "Output detail: 0 quiet, 1 normal, 2 error chains, 3 debug",
				Value: 1,
			},
		},
		Commands: r.register(),
		// exit codes are mapped in main so tests can run the app in-process
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
	}
}

// exitStatus logs err and returns the process exit code it carries, 1 by default.
func exitStatus(logger *log.Logger, err error) int {
	var coder cli.ExitCoder
	if errors.As(err, &coder) {
		if coder.ExitCode() != 0 {
			logger.Error("command failed", "error", err)
		}
		return coder.ExitCode()
	}
	logger.Error("command failed", "error", err)
	return 1
}
