package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType represents the type of JWT token
type TokenType string

const (
	AccessTokenType       TokenType = "access"
	RefreshTokenType      TokenType = "refresh"
	VerificationTokenType TokenType = "verify"
	ResetTokenType        TokenType = "reset"
)

// Token validation errors
var (
	ErrTokenInvalid = errors.New("token is invalid")
	ErrTokenExpired = errors.New("token has expired")
)

// Claims represents the JWT claims structure
type Claims struct {
	Email string    `json:"email,omitempty"`
	Type  TokenType `json:"type"`
	jwt.RegisteredClaims
}

// UserID returns the numeric user id carried in the Subject claim.
func (c *Claims) UserID() (int64, error) {
	return strconv.ParseInt(c.Subject, 10, 64)
}

// TokenService handles JWT token generation and validation
type TokenService struct {
	accessSecret       []byte
	refreshSecret      []byte
	accessTokenExpiry  time.Duration
	refreshTokenExpiry time.Duration
	verifyTokenExpiry  time.Duration
	resetTokenExpiry   time.Duration
	issuer             string
	now                func() time.Time
}

// TokenServiceConfig holds configuration for TokenService
type TokenServiceConfig struct {
	AccessSecret       string
	RefreshSecret      string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	VerifyTokenExpiry  time.Duration
	ResetTokenExpiry   time.Duration
	Issuer             string
	// Now overrides the clock; defaults to time.Now.
	Now func() time.Time
}

// NewTokenService creates a new TokenService instance
func NewTokenService(cfg TokenServiceConfig) *TokenService {
	s := &TokenService{
		accessSecret:       []byte(cfg.AccessSecret),
		refreshSecret:      []byte(cfg.RefreshSecret),
		accessTokenExpiry:  cfg.AccessTokenExpiry,
		refreshTokenExpiry: cfg.RefreshTokenExpiry,
		verifyTokenExpiry:  cfg.VerifyTokenExpiry,
		resetTokenExpiry:   cfg.ResetTokenExpiry,
		issuer:             cfg.Issuer,
		now:                cfg.Now,
	}
	if s.accessTokenExpiry == 0 {
		s.accessTokenExpiry = time.Minute
	}
	if s.refreshTokenExpiry == 0 {
		s.refreshTokenExpiry = 7 * 24 * time.Hour
	}
	if s.verifyTokenExpiry == 0 {
		s.verifyTokenExpiry = time.Hour
	}
	if s.resetTokenExpiry == 0 {
		s.resetTokenExpiry = 5 * time.Minute
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// IssuedToken is a signed token together with its expiry.
type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
}

func (s *TokenService) sign(secret []byte, typ TokenType, subject, email string, ttl time.Duration) (*IssuedToken, error) {
	now := s.now()
	expiresAt := now.Add(ttl)

	claims := Claims{
		Email: email,
		Type:  typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.New().String(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return nil, err
	}
	return &IssuedToken{Token: signed, ExpiresAt: expiresAt}, nil
}

func subject(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

// IssueAccessToken mints a short-lived access token signed with the access secret.
func (s *TokenService) IssueAccessToken(userID int64, email string) (*IssuedToken, error) {
	return s.sign(s.accessSecret, AccessTokenType, subject(userID), email, s.accessTokenExpiry)
}

// IssueRefreshToken mints a long-lived refresh token signed with the refresh secret.
func (s *TokenService) IssueRefreshToken(userID int64) (*IssuedToken, error) {
	return s.sign(s.refreshSecret, RefreshTokenType, subject(userID), "", s.refreshTokenExpiry)
}

// IssueVerificationToken mints an email verification token bound to email.
func (s *TokenService) IssueVerificationToken(email string) (*IssuedToken, error) {
	return s.sign(s.accessSecret, VerificationTokenType, "", email, s.verifyTokenExpiry)
}

// IssueResetToken mints a password reset token for userID.
func (s *TokenService) IssueResetToken(userID int64) (*IssuedToken, error) {
	return s.sign(s.accessSecret, ResetTokenType, subject(userID), "", s.resetTokenExpiry)
}

// ValidateAccessToken validates an access token and returns the claims
func (s *TokenService) ValidateAccessToken(tokenString string) (*Claims, error) {
	return s.validateToken(tokenString, s.accessSecret, AccessTokenType)
}

// ValidateRefreshToken validates a refresh token and returns the claims
func (s *TokenService) ValidateRefreshToken(tokenString string) (*Claims, error) {
	return s.validateToken(tokenString, s.refreshSecret, RefreshTokenType)
}

// ValidateVerificationToken validates an email verification token
func (s *TokenService) ValidateVerificationToken(tokenString string) (*Claims, error) {
	return s.validateToken(tokenString, s.accessSecret, VerificationTokenType)
}

// validateToken returns ErrTokenExpired when the token is authentic but past
// its expiry and ErrTokenInvalid for every other failure.
func (s *TokenService) validateToken(tokenString string, secret []byte, expectedType TokenType) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Type != expectedType {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

// HashToken returns the SHA-256 hex digest under which tokens are stored.
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// AccessTokenExpiry returns the access token lifetime
func (s *TokenService) AccessTokenExpiry() time.Duration {
	return s.accessTokenExpiry
}
