package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Common errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailAlreadyExists = errors.New("email already exists")
	// ErrTokenMismatch is returned by conditional updates whose stored token
	// no longer matches the one presented.
	ErrTokenMismatch = errors.New("stored token does not match")
	// ErrAccountLocked is returned when a login success races with a lockout.
	ErrAccountLocked = errors.New("account is locked")
)

// ProfileUpdate carries the optional profile fields a user may change.
type ProfileUpdate struct {
	Name   *string
	Avatar *string
	Bio    *string
}

// UserRepository defines the interface for user data access
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByRefreshTokenHash(ctx context.Context, hash string) (*User, error)
	GetByResetTokenHash(ctx context.Context, hash string) (*User, error)
	List(ctx context.Context) ([]User, error)
	EmailExists(ctx context.Context, email string) (bool, error)

	SetVerificationToken(ctx context.Context, id int64, tokenHash string) error
	MarkVerified(ctx context.Context, id int64, tokenHash string) error

	RecordLoginFailure(ctx context.Context, id int64, now time.Time, maxAttempts int, lockUntil time.Time) (*LoginFailure, error)
	RecordLoginSuccess(ctx context.Context, id int64, now time.Time, refreshHash string, refreshExpiresAt time.Time) error
	ClearRefreshToken(ctx context.Context, id int64, expectedHash string) error

	SetResetToken(ctx context.Context, id int64, tokenHash string, expiresAt time.Time) error
	ResetPassword(ctx context.Context, id int64, resetHash, passwordHash string, changedAt time.Time) error

	UpdateProfile(ctx context.Context, id int64, upd ProfileUpdate) (*User, error)
}

// userRepository implements UserRepository using PostgreSQL
type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository instance
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const userColumns = `
	id, name, email, password_hash, is_verified, email_verification_token_hash,
	failed_login_attempts, locked_until, refresh_token_hash, refresh_token_expires_at,
	reset_password_token_hash, reset_password_expires_at, password_changed_at,
	avatar, bio, recipe_ids, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	u := &User{}
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.IsVerified, &u.EmailVerificationTokenHash,
		&u.FailedLoginAttempts, &u.LockedUntil, &u.RefreshTokenHash, &u.RefreshTokenExpiresAt,
		&u.ResetPasswordTokenHash, &u.ResetPasswordExpiresAt, &u.PasswordChangedAt,
		&u.Avatar, &u.Bio, &u.RecipeIDs, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && (constraint == "" || pgErr.ConstraintName == constraint)
	}
	return strings.Contains(err.Error(), constraint)
}

// Create inserts a new unverified user. ID and server-side defaults are written back into user.
func (r *userRepository) Create(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (name, email, password_hash, email_verification_token_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING id, is_verified, avatar, bio, recipe_ids, created_at, updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		user.Name,
		strings.ToLower(user.Email),
		user.PasswordHash,
		user.EmailVerificationTokenHash,
	).Scan(&user.ID, &user.IsVerified, &user.Avatar, &user.Bio, &user.RecipeIDs, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "idx_users_email") {
			return ErrEmailAlreadyExists
		}
		return err
	}

	user.Email = strings.ToLower(user.Email)
	return nil
}

// GetByID retrieves a user by their ID
func (r *userRepository) GetByID(ctx context.Context, id int64) (*User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetByEmail retrieves a user by their email address (case-insensitive)
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email))
}

// GetByRefreshTokenHash retrieves the user currently holding the given refresh token.
func (r *userRepository) GetByRefreshTokenHash(ctx context.Context, hash string) (*User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE refresh_token_hash = $1`, hash))
}

// GetByResetTokenHash retrieves the user whose pending reset token has the given hash.
func (r *userRepository) GetByResetTokenHash(ctx context.Context, hash string) (*User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE reset_password_token_hash = $1`, hash))
}

// List returns all users ordered by creation.
func (r *userRepository) List(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// EmailExists checks if an email is already registered (case-insensitive)
func (r *userRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE LOWER(email) = LOWER($1))`, email).Scan(&exists)
	return exists, err
}

func (r *userRepository) exec(ctx context.Context, notFound error, query string, args ...any) error {
	result, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return notFound
	}
	return nil
}

// SetVerificationToken replaces the pending verification token of an unverified user.
func (r *userRepository) SetVerificationToken(ctx context.Context, id int64, tokenHash string) error {
	return r.exec(ctx, ErrUserNotFound, `
		UPDATE users SET email_verification_token_hash = $2, updated_at = NOW()
		WHERE id = $1
	`, id, tokenHash)
}

// MarkVerified consumes the verification token. It fails with ErrTokenMismatch
// when the user is already verified or holds a different token.
func (r *userRepository) MarkVerified(ctx context.Context, id int64, tokenHash string) error {
	return r.exec(ctx, ErrTokenMismatch, `
		UPDATE users
		SET is_verified = TRUE, email_verification_token_hash = NULL, updated_at = NOW()
		WHERE id = $1 AND is_verified = FALSE AND email_verification_token_hash = $2
	`, id, tokenHash)
}

// RecordLoginFailure increments the failure counter in a single statement and
// locks the account until lockUntil once maxAttempts is reached. A failure after
// an elapsed lock starts a fresh count.
func (r *userRepository) RecordLoginFailure(ctx context.Context, id int64, now time.Time, maxAttempts int, lockUntil time.Time) (*LoginFailure, error) {
	query := `
		WITH cur AS (
			SELECT id,
				CASE WHEN locked_until IS NOT NULL AND locked_until <= $2
					THEN 1 ELSE failed_login_attempts + 1 END AS attempts,
				CASE WHEN locked_until IS NOT NULL AND locked_until <= $2
					THEN NULL ELSE locked_until END AS locked_until
			FROM users WHERE id = $1
			FOR UPDATE
		)
		UPDATE users u SET
			failed_login_attempts = cur.attempts,
			locked_until = CASE WHEN cur.attempts >= $3 THEN $4 ELSE cur.locked_until END,
			updated_at = NOW()
		FROM cur
		WHERE u.id = cur.id
		RETURNING u.failed_login_attempts, u.locked_until
	`

	f := &LoginFailure{}
	err := r.pool.QueryRow(ctx, query, id, now, maxAttempts, lockUntil).Scan(&f.Attempts, &f.LockedUntil)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return f, nil
}

// RecordLoginSuccess resets the lockout state and stores the new refresh token,
// replacing any previous session. It refuses with ErrAccountLocked if a
// concurrent failure locked the account first.
func (r *userRepository) RecordLoginSuccess(ctx context.Context, id int64, now time.Time, refreshHash string, refreshExpiresAt time.Time) error {
	return r.exec(ctx, ErrAccountLocked, `
		UPDATE users SET
			failed_login_attempts = 0,
			locked_until = NULL,
			refresh_token_hash = $3,
			refresh_token_expires_at = $4,
			updated_at = NOW()
		WHERE id = $1 AND (locked_until IS NULL OR locked_until <= $2)
	`, id, now, refreshHash, refreshExpiresAt)
}

// ClearRefreshToken removes the stored refresh token. When expectedHash is
// non-empty the token is only cleared if it is still the stored one.
func (r *userRepository) ClearRefreshToken(ctx context.Context, id int64, expectedHash string) error {
	if expectedHash == "" {
		return r.exec(ctx, ErrUserNotFound, `
			UPDATE users SET refresh_token_hash = NULL, refresh_token_expires_at = NULL, updated_at = NOW()
			WHERE id = $1
		`, id)
	}
	return r.exec(ctx, ErrTokenMismatch, `
		UPDATE users SET refresh_token_hash = NULL, refresh_token_expires_at = NULL, updated_at = NOW()
		WHERE id = $1 AND refresh_token_hash = $2
	`, id, expectedHash)
}

// SetResetToken stores a pending password reset token, replacing any previous one.
func (r *userRepository) SetResetToken(ctx context.Context, id int64, tokenHash string, expiresAt time.Time) error {
	return r.exec(ctx, ErrUserNotFound, `
		UPDATE users SET reset_password_token_hash = $2, reset_password_expires_at = $3, updated_at = NOW()
		WHERE id = $1
	`, id, tokenHash, expiresAt)
}

// ResetPassword stores the new password hash and consumes the reset token,
// ending the current session. It fails with ErrTokenMismatch if the reset
// token was consumed or replaced concurrently.
func (r *userRepository) ResetPassword(ctx context.Context, id int64, resetHash, passwordHash string, changedAt time.Time) error {
	return r.exec(ctx, ErrTokenMismatch, `
		UPDATE users SET
			password_hash = $3,
			password_changed_at = $4,
			refresh_token_hash = NULL,
			refresh_token_expires_at = NULL,
			reset_password_token_hash = NULL,
			reset_password_expires_at = NULL,
			updated_at = NOW()
		WHERE id = $1 AND reset_password_token_hash = $2
	`, id, resetHash, passwordHash, changedAt)
}

// UpdateProfile applies the non-nil fields of upd and returns the updated user.
func (r *userRepository) UpdateProfile(ctx context.Context, id int64, upd ProfileUpdate) (*User, error) {
	query := `
		UPDATE users SET
			name = COALESCE($2, name),
			avatar = COALESCE($3, avatar),
			bio = COALESCE($4, bio),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns

	return scanUser(r.pool.QueryRow(ctx, query, id, upd.Name, upd.Avatar, upd.Bio))
}
