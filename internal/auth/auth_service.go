package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	appctx "github.com/welldanyogia/recetas/backend/internal/context"
	"github.com/welldanyogia/recetas/backend/internal/metrics"
	"github.com/welldanyogia/recetas/backend/internal/repository"
)

// Default lockout policy
const (
	DefaultMaxLoginAttempts = 3
	DefaultLockoutWindow    = time.Minute
)

// Mailer delivers account emails. Implementations must not retain the token.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, to, token string) error
	SendPasswordResetEmail(ctx context.Context, to, token string) error
}

// Revoker adds access tokens to the revocation list.
type Revoker interface {
	Revoke(ctx context.Context, token string, userID int64, expiresAt time.Time) error
}

// RegisterRequest represents the registration request payload
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest represents the login request payload
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest represents the token refresh request payload
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// EmailRequest carries a single email address (resend verification, forgot password)
type EmailRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest represents the reset password payload
type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

// UserResponse is the public projection of a user
type UserResponse struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	IsVerified bool      `json:"isVerified"`
	Avatar     string    `json:"avatar"`
	Bio        string    `json:"bio"`
	RecipeIDs  []int64   `json:"recipeIds"`
	CreatedAt  time.Time `json:"createdAt"`
}

// NewUserResponse projects a stored user to its public form
func NewUserResponse(u *repository.User) UserResponse {
	ids := u.RecipeIDs
	if ids == nil {
		ids = []int64{}
	}
	return UserResponse{
		ID:         u.ID,
		Name:       u.Name,
		Email:      u.Email,
		IsVerified: u.IsVerified,
		Avatar:     u.Avatar,
		Bio:        u.Bio,
		RecipeIDs:  ids,
		CreatedAt:  u.CreatedAt,
	}
}

// LoginResponse represents a successful login
type LoginResponse struct {
	Message      string       `json:"message"`
	User         UserResponse `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	ExpiresIn    int64        `json:"expiresIn"`
}

// RefreshResponse carries a renewed access token
type RefreshResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`
}

// AuthServiceConfig wires the collaborators of AuthService
type AuthServiceConfig struct {
	UserRepo          repository.UserRepository
	TokenService      *TokenService
	PasswordValidator *PasswordValidator
	Revoker           Revoker
	Mailer            Mailer
	MaxLoginAttempts  int
	LockoutWindow     time.Duration
	Logger            *slog.Logger
	// Now overrides the clock; defaults to time.Now.
	Now func() time.Time
}

// AuthService handles the account lifecycle: registration, email
// verification, login with lockout, token refresh, logout and password reset.
type AuthService struct {
	userRepo          repository.UserRepository
	tokenService      *TokenService
	passwordValidator *PasswordValidator
	revoker           Revoker
	mailer            Mailer
	maxAttempts       int
	lockoutWindow     time.Duration
	logger            *slog.Logger
	now               func() time.Time
}

// NewAuthService creates a new AuthService instance
func NewAuthService(cfg AuthServiceConfig) *AuthService {
	s := &AuthService{
		userRepo:          cfg.UserRepo,
		tokenService:      cfg.TokenService,
		passwordValidator: cfg.PasswordValidator,
		revoker:           cfg.Revoker,
		mailer:            cfg.Mailer,
		maxAttempts:       cfg.MaxLoginAttempts,
		lockoutWindow:     cfg.LockoutWindow,
		logger:            cfg.Logger,
		now:               cfg.Now,
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = DefaultMaxLoginAttempts
	}
	if s.lockoutWindow <= 0 {
		s.lockoutWindow = DefaultLockoutWindow
	}
	if s.passwordValidator == nil {
		s.passwordValidator = NewPasswordValidator(DefaultBcryptCost)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isValidEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// Register creates an unverified account and sends its verification email.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*UserResponse, error) {
	name := strings.TrimSpace(req.Name)
	email := normalizeEmail(req.Email)

	if name == "" || email == "" || req.Password == "" {
		return nil, newError(ErrValidation, msgAllFieldsRequired)
	}
	if !isValidEmail(email) {
		return nil, newError(ErrValidation, msgInvalidEmail)
	}

	exists, err := s.userRepo.EmailExists(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return nil, newError(ErrConflict, msgEmailInUse)
	}

	if !s.passwordValidator.IsStrong(req.Password) {
		return nil, newError(ErrWeakPassword, msgWeakPassword)
	}

	hash, err := s.passwordValidator.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	verify, err := s.tokenService.IssueVerificationToken(email)
	if err != nil {
		return nil, fmt.Errorf("failed to issue verification token: %w", err)
	}
	verifyHash := HashToken(verify.Token)

	user := &repository.User{
		Name:                       name,
		Email:                      email,
		PasswordHash:               hash,
		EmailVerificationTokenHash: &verifyHash,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailAlreadyExists) {
			return nil, newError(ErrConflict, msgEmailInUse)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if err := s.mailer.SendVerificationEmail(ctx, email, verify.Token); err != nil {
		return nil, fmt.Errorf("failed to send verification email: %w", err)
	}

	s.logger.Info("user registered", "user_id", user.ID)
	resp := NewUserResponse(user)
	return &resp, nil
}

// VerifyEmail consumes a verification token. Expired tokens are reported
// separately so the client can offer to resend.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		return newError(ErrInvalidToken, msgVerifyTokenInvalid)
	}

	claims, err := s.tokenService.ValidateVerificationToken(token)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return newError(ErrExpiredToken, msgVerifyTokenExpired)
		}
		return newError(ErrInvalidToken, msgVerifyTokenInvalid)
	}

	user, err := s.userRepo.GetByEmail(ctx, claims.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return newError(ErrInvalidToken, msgVerifyTokenInvalid)
		}
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user.IsVerified {
		return newError(ErrInvalidToken, msgVerifyTokenInvalid)
	}

	if err := s.userRepo.MarkVerified(ctx, user.ID, HashToken(token)); err != nil {
		if errors.Is(err, repository.ErrTokenMismatch) {
			return newError(ErrInvalidToken, msgVerifyTokenInvalid)
		}
		return fmt.Errorf("failed to mark user verified: %w", err)
	}

	s.logger.Info("email verified", "user_id", user.ID)
	return nil
}

// ResendVerification issues a fresh verification token, invalidating the
// previous link, and emails it.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return newError(ErrValidation, msgAllFieldsRequired)
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return newError(ErrNotFound, msgUserNotFound)
		}
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user.IsVerified {
		return newError(ErrAlreadyVerified, msgAlreadyVerified)
	}

	verify, err := s.tokenService.IssueVerificationToken(user.Email)
	if err != nil {
		return fmt.Errorf("failed to issue verification token: %w", err)
	}
	if err := s.userRepo.SetVerificationToken(ctx, user.ID, HashToken(verify.Token)); err != nil {
		return fmt.Errorf("failed to store verification token: %w", err)
	}

	if err := s.mailer.SendVerificationEmail(ctx, user.Email, verify.Token); err != nil {
		return fmt.Errorf("failed to send verification email: %w", err)
	}
	return nil
}

func lockedError(format string, until time.Time) *Error {
	e := newError(ErrLocked, fmt.Sprintf(format, until.Local().Format(lockTimeLayout)))
	e.LockedUntil = &until
	return e
}

// Login authenticates a verified user, enforcing the lockout policy, and
// starts a new session that replaces any previous one.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, newError(ErrValidation, msgAllFieldsRequired)
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			metrics.RecordLogin("unknown_user")
			return nil, newError(ErrNotFound, msgUserNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !user.IsVerified {
		metrics.RecordLogin("unverified")
		return nil, newError(ErrUnverified, msgUnverified)
	}

	now := s.now()
	if user.IsLocked(now) {
		metrics.RecordLogin("locked")
		return nil, lockedError(msgLockedFmt, *user.LockedUntil)
	}

	if !s.passwordValidator.VerifyPassword(req.Password, user.PasswordHash) {
		return nil, s.recordFailure(ctx, user, now)
	}

	access, err := s.tokenService.IssueAccessToken(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}
	refresh, err := s.tokenService.IssueRefreshToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue refresh token: %w", err)
	}

	if err := s.userRepo.RecordLoginSuccess(ctx, user.ID, now, HashToken(refresh.Token), refresh.ExpiresAt); err != nil {
		if errors.Is(err, repository.ErrAccountLocked) {
			// a concurrent failed attempt locked the account first
			if fresh, gerr := s.userRepo.GetByID(ctx, user.ID); gerr == nil && fresh.LockedUntil != nil {
				return nil, lockedError(msgLockedFmt, *fresh.LockedUntil)
			}
			return nil, lockedError(msgLockedFmt, now.Add(s.lockoutWindow))
		}
		return nil, fmt.Errorf("failed to record login: %w", err)
	}

	metrics.RecordLogin("success")
	s.logger.Info("user logged in", "user_id", user.ID)

	user.FailedLoginAttempts = 0
	user.LockedUntil = nil
	return &LoginResponse{
		Message:      "Inicio de sesión exitoso",
		User:         NewUserResponse(user),
		AccessToken:  access.Token,
		RefreshToken: refresh.Token,
		ExpiresIn:    int64(s.tokenService.AccessTokenExpiry().Seconds()),
	}, nil
}

func (s *AuthService) recordFailure(ctx context.Context, user *repository.User, now time.Time) error {
	failure, err := s.userRepo.RecordLoginFailure(ctx, user.ID, now, s.maxAttempts, now.Add(s.lockoutWindow))
	if err != nil {
		return fmt.Errorf("failed to record login failure: %w", err)
	}

	if failure.LockedUntil != nil && now.Before(*failure.LockedUntil) {
		metrics.RecordLogin("locked")
		metrics.LockoutsTotal.Inc()
		s.logger.Warn("account locked after failed logins", "user_id", user.ID, "attempts", failure.Attempts)
		return lockedError(msgLockedNowFmt, *failure.LockedUntil)
	}

	remaining := s.maxAttempts - failure.Attempts
	if remaining < 0 {
		remaining = 0
	}
	metrics.RecordLogin("invalid_password")
	e := newError(ErrInvalidPassword, fmt.Sprintf(msgInvalidPasswordFmt, remaining))
	e.RemainingAttempts = &remaining
	return e
}

// RefreshAccessToken exchanges the user's current refresh token for a new
// access token. The refresh token itself is not rotated.
func (s *AuthService) RefreshAccessToken(ctx context.Context, refreshToken string) (*RefreshResponse, error) {
	if refreshToken == "" {
		return nil, newError(ErrValidation, msgRefreshMissing)
	}

	hash := HashToken(refreshToken)
	user, err := s.userRepo.GetByRefreshTokenHash(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, newError(ErrInvalidToken, msgRefreshInvalid)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if user.RefreshTokenExpiresAt != nil && s.now().After(*user.RefreshTokenExpiresAt) {
		err := s.userRepo.ClearRefreshToken(ctx, user.ID, hash)
		if err != nil && !errors.Is(err, repository.ErrTokenMismatch) {
			return nil, fmt.Errorf("failed to clear expired refresh token: %w", err)
		}
		return nil, newError(ErrExpiredToken, msgRefreshExpired)
	}

	access, err := s.tokenService.IssueAccessToken(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}

	return &RefreshResponse{
		AccessToken: access.Token,
		ExpiresIn:   int64(s.tokenService.AccessTokenExpiry().Seconds()),
	}, nil
}

// Logout revokes the presented access token and ends the user's session.
func (s *AuthService) Logout(ctx context.Context, principal *appctx.Principal) error {
	if principal == nil || principal.UserID == 0 {
		return newError(ErrUnauthorized, msgUnauthorized)
	}

	if err := s.userRepo.ClearRefreshToken(ctx, principal.UserID, ""); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return newError(ErrNotFound, msgUserNotFound)
		}
		return fmt.Errorf("failed to clear refresh token: %w", err)
	}

	if err := s.revoker.Revoke(ctx, principal.Token, principal.UserID, principal.ExpiresAt); err != nil {
		return fmt.Errorf("failed to revoke access token: %w", err)
	}
	metrics.TokensRevokedTotal.WithLabelValues("logout").Inc()

	s.logger.Info("user logged out", "user_id", principal.UserID)
	return nil
}

// ForgotPassword stores a short-lived reset token and emails it.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return newError(ErrValidation, msgAllFieldsRequired)
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return newError(ErrNotFound, msgUserNotFound)
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	reset, err := s.tokenService.IssueResetToken(user.ID)
	if err != nil {
		return fmt.Errorf("failed to issue reset token: %w", err)
	}
	if err := s.userRepo.SetResetToken(ctx, user.ID, HashToken(reset.Token), reset.ExpiresAt); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	if err := s.mailer.SendPasswordResetEmail(ctx, user.Email, reset.Token); err != nil {
		return fmt.Errorf("failed to send reset email: %w", err)
	}

	s.logger.Info("password reset requested", "user_id", user.ID)
	return nil
}

// ResetPassword sets a new password using the stored reset token. The token
// must be the exact one last issued to the user. On success the session ends
// and the presented access token, if any, is revoked.
func (s *AuthService) ResetPassword(ctx context.Context, req ResetPasswordRequest, principal *appctx.Principal) error {
	if req.Token == "" || req.NewPassword == "" {
		return newError(ErrMissingFields, msgResetMissingFields)
	}

	resetHash := HashToken(req.Token)
	user, err := s.userRepo.GetByResetTokenHash(ctx, resetHash)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return newError(ErrInvalidToken, msgResetTokenInvalid)
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	now := s.now()
	if user.ResetPasswordExpiresAt == nil || now.After(*user.ResetPasswordExpiresAt) {
		return newError(ErrExpiredToken, msgResetTokenExpired)
	}

	if s.passwordValidator.VerifyPassword(req.NewPassword, user.PasswordHash) {
		return newError(ErrSamePassword, msgSamePassword)
	}

	if !s.passwordValidator.IsStrong(req.NewPassword) {
		return newError(ErrWeakPassword, msgWeakPassword)
	}

	hash, err := s.passwordValidator.HashPassword(req.NewPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.userRepo.ResetPassword(ctx, user.ID, resetHash, hash, now); err != nil {
		if errors.Is(err, repository.ErrTokenMismatch) {
			return newError(ErrInvalidToken, msgResetTokenInvalid)
		}
		return fmt.Errorf("failed to reset password: %w", err)
	}

	if principal != nil && principal.Token != "" {
		if err := s.revoker.Revoke(ctx, principal.Token, principal.UserID, principal.ExpiresAt); err != nil {
			return fmt.Errorf("failed to revoke access token: %w", err)
		}
		metrics.TokensRevokedTotal.WithLabelValues("password_reset").Inc()
	}

	s.logger.Info("password reset", "user_id", user.ID)
	return nil
}
