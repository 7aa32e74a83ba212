package repository

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/lib/pq"
)

// User represents a user account in the database
type User struct {
	ID                         int64      `db:"id"`
	Name                       string     `db:"name"`
	Email                      string     `db:"email"`
	PasswordHash               string     `db:"password_hash"`
	IsVerified                 bool       `db:"is_verified"`
	EmailVerificationTokenHash *string    `db:"email_verification_token_hash"`
	FailedLoginAttempts        int        `db:"failed_login_attempts"`
	LockedUntil                *time.Time `db:"locked_until"`
	RefreshTokenHash           *string    `db:"refresh_token_hash"`
	RefreshTokenExpiresAt      *time.Time `db:"refresh_token_expires_at"`
	ResetPasswordTokenHash     *string    `db:"reset_password_token_hash"`
	ResetPasswordExpiresAt     *time.Time `db:"reset_password_expires_at"`
	PasswordChangedAt          *time.Time `db:"password_changed_at"`
	Avatar                     string     `db:"avatar"`
	Bio                        string     `db:"bio"`
	RecipeIDs                  []int64    `db:"recipe_ids"`
	CreatedAt                  time.Time  `db:"created_at"`
	UpdatedAt                  time.Time  `db:"updated_at"`
}

// IsLocked reports whether the account is locked at now.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}

// LoginFailure is the lockout state after a failed password check.
type LoginFailure struct {
	Attempts    int
	LockedUntil *time.Time
}

// RevokedToken is an access token that must no longer be honored.
type RevokedToken struct {
	ID        int64     `db:"id"`
	TokenHash string    `db:"token_hash"`
	UserID    *int64    `db:"user_id"`
	RevokedAt time.Time `db:"revoked_at"`
	ExpiresAt time.Time `db:"expires_at"`
}

// Recipe represents a published recipe in the database
type Recipe struct {
	ID           int64          `db:"id"`
	Title        string         `db:"title"`
	Description  string         `db:"description"`
	Ingredients  pq.StringArray `db:"ingredients"`
	Instructions Steps          `db:"instructions"`
	PrepTime     int            `db:"prep_time"`
	Difficulty   string         `db:"difficulty"`
	SuitableFor  pq.StringArray `db:"suitable_for"`
	ImageURL     string         `db:"image_url"`
	CreatorID    int64          `db:"creator_id"`
	Popularity   int            `db:"popularity"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

// Step is one instruction of a recipe, optionally illustrated with media.
type Step struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	MediaURL    string `json:"mediaUrl,omitempty"`
	MediaType   string `json:"mediaType,omitempty"`
}

// Steps is stored as a JSONB array.
type Steps []Step

// Value implements driver.Valuer.
func (s Steps) Value() (driver.Value, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner.
func (s *Steps) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*s = Steps{}
		return nil
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return errors.New("unsupported type for Steps")
	}
}

// RecipeVote is a single user's vote on a recipe.
type RecipeVote struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	RecipeID  int64     `db:"recipe_id"`
	Value     int       `db:"value"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// RecipeSort is the ordering applied to recipe listings.
type RecipeSort string

const (
	SortNewest     RecipeSort = "newest"
	SortPopularity RecipeSort = "popularity"
	SortPrepTime   RecipeSort = "prepTime"
)

// NoLimit as RecipeFilter.Limit returns every matching recipe.
const NoLimit = -1

// RecipeFilter narrows a recipe listing. Zero values mean "no filter".
type RecipeFilter struct {
	SuitableFor []string
	Search      string
	CreatorID   int64
	Sort        RecipeSort
	Limit       int
}

// VoteResult is the outcome of casting a vote.
type VoteResult struct {
	RecipeID   int64
	Popularity int
	// UserVote is the caller's vote after the operation: 1, -1 or 0 when removed.
	UserVote int
	// Previous is the caller's vote before the operation, 0 if none.
	Previous int
}
