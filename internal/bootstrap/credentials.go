package bootstrap

import (
	"fmt"
	"strings"

	"github.com/desertthunder/crmctl/internal/passwords"
	"github.com/desertthunder/crmctl/internal/shared"
)

const (
	DefaultUsername = "IamSUPER"
	DefaultEmail    = "super@example.com"
)

// Credentials is the superuser record handed to the creation step.
type Credentials struct {
	Username  string
	Email     string
	Password  string
	Generated bool // Password was produced by this run rather than configured
}

// DisplayPassword is the plaintext for generated passwords and "(provided)" otherwise.
func (c Credentials) DisplayPassword() string {
	if c.Generated {
		return c.Password
	}
	return "(provided)"
}

// ResolveCredentials fills blanks in cfg with the defaults and a generated password.
// A nil generate uses [passwords.Generate].
func ResolveCredentials(cfg shared.SuperuserConfig, generate func() (string, error)) (Credentials, error) {
	creds := Credentials{
		Username: strings.TrimSpace(cfg.Username),
		Email:    strings.TrimSpace(cfg.Email),
		Password: cfg.Password,
	}
	if creds.Username == "" {
		creds.Username = DefaultUsername
	}
	if creds.Email == "" {
		creds.Email = DefaultEmail
	}
	if creds.Password == "" {
		if generate == nil {
			generate = passwords.Generate
		}
		pw, err := generate()
		if err != nil {
			return Credentials{}, fmt.Errorf("failed to generate password: %w", err)
		}
		creds.Password = pw
		creds.Generated = true
	}
	return creds, nil
}
