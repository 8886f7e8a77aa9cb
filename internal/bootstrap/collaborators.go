package bootstrap

import (
	"context"
	"fmt"

	"github.com/desertthunder/crmctl/internal/passwords"
	"github.com/desertthunder/crmctl/internal/repositories"
	"github.com/desertthunder/crmctl/internal/shared"
)

// Reopener discards and re-establishes the database connection.
type Reopener interface {
	Reopen(ctx context.Context) error
}

// Migrator applies pending schema migrations and returns the labels it applied.
type Migrator interface {
	Migrate(ctx context.Context) ([]string, error)
}

// FixtureLoader loads one named fixture and returns the number of records written.
type FixtureLoader interface {
	Load(ctx context.Context, name string) (int, error)
}

// SuperuserCreator creates the administrative account.
type SuperuserCreator interface {
	CreateSuperuser(ctx context.Context, creds Credentials) error
}

// SchemaMigrator runs the embedded migrations against a [shared.Database].
type SchemaMigrator struct {
	db *shared.Database
}

func NewSchemaMigrator(db *shared.Database) *SchemaMigrator {
	return &SchemaMigrator{db: db}
}

// Migrate applies pending migrations. An unreachable database is reported as [shared.ErrConnection].
func (m *SchemaMigrator) Migrate(ctx context.Context) ([]string, error) {
	db := m.db.DB()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrConnection, err)
	}
	applied, err := shared.RunMigrations(ctx, db, m.db.Dialect())
	labels := make([]string, 0, len(applied))
	for _, a := range applied {
		labels = append(labels, a.Label())
	}
	return labels, err
}

// AccountCreator hashes the password and stores the superuser in auth_user.
type AccountCreator struct {
	users  *repositories.UserRepository
	hasher *passwords.Hasher
}

func NewAccountCreator(users *repositories.UserRepository, hasher *passwords.Hasher) *AccountCreator {
	if hasher == nil {
		hasher = passwords.NewHasher()
	}
	return &AccountCreator{users: users, hasher: hasher}
}

func (a *AccountCreator) CreateSuperuser(ctx context.Context, creds Credentials) error {
	exists, err := a.users.Exists(ctx, creds.Username)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", shared.ErrUserExists, creds.Username)
	}

	hash, err := a.hasher.Hash(creds.Password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	_, err = a.users.CreateSuperuser(ctx, creds.Username, creds.Email, hash)
	return err
}
