package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/crmctl/internal/fixtures"
	"github.com/desertthunder/crmctl/internal/repositories"
	"github.com/desertthunder/crmctl/internal/shared"
)

// LoadData upserts the named fixtures in argument order and stops at the first failure.
func (r *Runner) LoadData(ctx context.Context, cmd *cli.Command) error {
	names := cmd.Args().Slice()
	if len(names) == 0 {
		return fmt.Errorf("%w: at least one fixture name", shared.ErrMissingArgument)
	}

	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	dir := config.Bootstrap.FixturesDir
	if v := cmd.String("fixtures-dir"); v != "" {
		dir = v
	}

	catalog, err := fixtures.NewCatalog(dir)
	if err != nil {
		return err
	}

	db, err := r.open(config)
	if err != nil {
		return err
	}
	defer db.Close()

	loader := fixtures.NewLoader(catalog, repositories.NewRecordRepository(db), r.logger)
	total := 0
	for _, name := range names {
		n, err := loader.Load(ctx, name)
		if err != nil {
			return err
		}
		total += n
	}
	return r.writePlain("Installed %d object(s) from %d fixture(s)\n", total, len(names))
}
