package models

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/desertthunder/crmctl/internal/shared"
)

// User is a row of auth_user.
type User struct {
	id          int64
	username    string
	email       string
	password    string // encoded hash, never plaintext
	firstName   string
	lastName    string
	isSuperuser bool
	isStaff     bool
	isActive    bool
	dateJoined  time.Time
	lastLogin   *time.Time
}

// NewUser creates an active, unprivileged user with the given encoded password hash.
func NewUser(username, email, passwordHash string) *User {
	return &User{
		username:   username,
		email:      email,
		password:   passwordHash,
		isActive:   true,
		dateJoined: time.Now().UTC(),
	}
}

// NewSuperuser creates a user with staff and superuser flags set.
func NewSuperuser(username, email, passwordHash string) *User {
	u := NewUser(username, email, passwordHash)
	u.isSuperuser = true
	u.isStaff = true
	return u
}

func (u *User) ID() int64            { return u.id }
func (u *User) CreatedAt() time.Time { return u.dateJoined }
func (u *User) Username() string     { return u.username }
func (u *User) Email() string        { return u.email }
func (u *User) PasswordHash() string { return u.password }
func (u *User) FirstName() string    { return u.firstName }
func (u *User) LastName() string     { return u.lastName }
func (u *User) IsSuperuser() bool    { return u.isSuperuser }
func (u *User) IsStaff() bool        { return u.isStaff }
func (u *User) IsActive() bool       { return u.isActive }
func (u *User) LastLogin() *time.Time {
	return u.lastLogin
}

func (u *User) SetID(id int64)              { u.id = id }
func (u *User) SetEmail(email string)       { u.email = email }
func (u *User) SetPasswordHash(hash string) { u.password = hash }
func (u *User) SetName(first, last string)  { u.firstName, u.lastName = first, last }
func (u *User) SetFlags(superuser, staff, active bool) {
	u.isSuperuser, u.isStaff, u.isActive = superuser, staff, active
}
func (u *User) SetDateJoined(t time.Time) { u.dateJoined = t }
func (u *User) SetLastLogin(t *time.Time) { u.lastLogin = t }

// Validate checks username, email and password hash.
func (u *User) Validate() error {
	if strings.TrimSpace(u.username) == "" {
		return fmt.Errorf("%w: username is required", shared.ErrInvalidCredential)
	}
	if len(u.username) > 150 {
		return fmt.Errorf("%w: username longer than 150 characters", shared.ErrInvalidCredential)
	}
	if u.email != "" {
		if _, err := mail.ParseAddress(u.email); err != nil {
			return fmt.Errorf("%w: email %q: %v", shared.ErrInvalidCredential, u.email, err)
		}
	}
	if u.password == "" {
		return fmt.Errorf("%w: password hash is required", shared.ErrInvalidCredential)
	}
	return nil
}
