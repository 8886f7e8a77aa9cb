package main

import (
	"context"
	"errors"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/crmctl/internal/bootstrap"
	"github.com/desertthunder/crmctl/internal/passwords"
	"github.com/desertthunder/crmctl/internal/repositories"
	"github.com/desertthunder/crmctl/internal/shared"
)

// CreateSuperuser creates the administrative account non-interactively.
//
// Unlike the setupdata phase an existing username is an error here.
func (r *Runner) CreateSuperuser(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	creds, err := r.superuserCredentials(cmd, config)
	if err != nil {
		return err
	}

	db, err := r.open(config)
	if err != nil {
		return err
	}
	defer db.Close()

	users := repositories.NewUserRepository(db)
	creator := bootstrap.NewAccountCreator(users, passwords.NewHasher())
	c := r.console()
	if err := creator.CreateSuperuser(ctx, creds); err != nil {
		if errors.Is(err, shared.ErrUserExists) {
			if existing, lookupErr := users.GetByUsername(ctx, creds.Username); lookupErr == nil {
				c.Failure("User %s already exists (superuser: %v, email: %s)",
					existing.Username(), existing.IsSuperuser(), existing.Email())
			}
		}
		return err
	}

	c.Success("Superuser created successfully.")
	c.Println(" USERNAME: " + creds.Username)
	c.Println(" PASSWORD: " + creds.DisplayPassword())
	c.Println(" EMAIL: " + creds.Email)
	return nil
}
