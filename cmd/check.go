package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/crmctl/internal/diagnostics"
	"github.com/desertthunder/crmctl/internal/formatter"
	"github.com/desertthunder/crmctl/internal/shared"
)

// Check prints the database state report. A failed connection still prints the report, then exits 1.
func (r *Runner) Check(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	db, err := r.dial(config)
	if err != nil {
		return err
	}
	defer db.Close()

	report, inspectErr := diagnostics.NewInspector(db.DB(), db.Dialect(), r.logger).Inspect(ctx)

	data, err := formatter.RenderDiagnostics(report, format)
	if err != nil {
		return err
	}
	if path := cmd.String("output"); path != "" {
		if err := formatter.WriteReport(path, data); err != nil {
			return err
		}
		r.logger.Info("report written", "path", path)
	} else if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if inspectErr != nil {
		return shared.NewExitError(1, inspectErr)
	}
	return nil
}
