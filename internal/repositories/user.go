package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/crmctl/internal/models"
	"github.com/desertthunder/crmctl/internal/shared"
)

const userColumns = `id, username, email, password, first_name, last_name,
	is_superuser, is_staff, is_active, date_joined, last_login`

// UserRepository implements [models.Repository] for auth_user [models.User] persistence.
type UserRepository struct {
	db *shared.Database
}

// NewUserRepository creates a new [UserRepository] with the given database handle
func NewUserRepository(db *shared.Database) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) rebind(query string) string {
	return r.db.Dialect().Rebind(query)
}

// Create inserts user and sets its ID. A taken username yields [shared.ErrUserExists].
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	exists, err := r.Exists(ctx, user.Username())
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", shared.ErrUserExists, user.Username())
	}

	query := r.rebind(`
		INSERT INTO auth_user (
			username, email, password, first_name, last_name,
			is_superuser, is_staff, is_active, date_joined, last_login
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`)

	var id int64
	err = r.db.DB().QueryRowContext(ctx, query,
		user.Username(),
		user.Email(),
		user.PasswordHash(),
		user.FirstName(),
		user.LastName(),
		user.IsSuperuser(),
		user.IsStaff(),
		user.IsActive(),
		user.CreatedAt(),
		nullTime(user.LastLogin()),
	).Scan(&id)
	if IsUniqueViolation(err) {
		return fmt.Errorf("%w: %s", shared.ErrUserExists, user.Username())
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	user.SetID(id)
	return nil
}

// CreateSuperuser inserts a staff superuser. passwordHash must already be encoded.
func (r *UserRepository) CreateSuperuser(ctx context.Context, username, email, passwordHash string) (*models.User, error) {
	user := models.NewSuperuser(username, email, passwordHash)
	if err := r.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// GetByUsername retrieves a user by username
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	row := r.db.DB().QueryRowContext(ctx, r.rebind("SELECT "+userColumns+" FROM auth_user WHERE username = ?"), username)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user not found: %s", username)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return user, nil
}

// Exists reports whether username is taken.
func (r *UserRepository) Exists(ctx context.Context, username string) (bool, error) {
	var count int
	err := r.db.DB().QueryRowContext(ctx,
		r.rebind("SELECT COUNT(*) FROM auth_user WHERE username = ?"), username,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check user: %w", err)
	}
	return count > 0, nil
}

// CountSuperusers returns the number of users with the superuser flag.
func (r *UserRepository) CountSuperusers(ctx context.Context) (int, error) {
	var count int
	err := r.db.DB().QueryRowContext(ctx,
		r.rebind("SELECT COUNT(*) FROM auth_user WHERE is_superuser = ?"), true,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count superusers: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		id          int64
		username    string
		email       string
		password    string
		firstName   string
		lastName    string
		isSuperuser bool
		isStaff     bool
		isActive    bool
		dateJoined  time.Time
		lastLogin   sql.NullTime
	)

	err := row.Scan(&id, &username, &email, &password, &firstName, &lastName,
		&isSuperuser, &isStaff, &isActive, &dateJoined, &lastLogin)
	if err != nil {
		return nil, err
	}

	user := models.NewUser(username, email, password)
	user.SetID(id)
	user.SetName(firstName, lastName)
	user.SetFlags(isSuperuser, isStaff, isActive)
	user.SetDateJoined(dateJoined)
	if lastLogin.Valid {
		user.SetLastLogin(&lastLogin.Time)
	}
	return user, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
