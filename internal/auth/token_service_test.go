package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func newTestTokenService(now func() time.Time) *TokenService {
	return NewTokenService(TokenServiceConfig{
		AccessSecret:       "test-access-secret-key-32-chars!",
		RefreshSecret:      "test-refresh-secret-key-32-char!",
		AccessTokenExpiry:  time.Minute,
		RefreshTokenExpiry: 7 * 24 * time.Hour,
		Issuer:             "recetas-test",
		Now:                now,
	})
}

// Feature: user-accounts, Property 5: Access tokens round-trip their subject
// *For any* user id and email, the issued access token validates to the same
// user id and email and expires one minute after issue.
func TestProperty5_AccessTokenRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		userID := rapid.Int64Range(1, 1<<40).Draw(t, "userID")
		email := rapid.StringMatching(`[a-z]{3,10}@[a-z]{3,8}\.com`).Draw(t, "email")
		now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		svc := newTestTokenService(func() time.Time { return now })

		issued, err := svc.IssueAccessToken(userID, email)
		if err != nil {
			t.Fatalf("issue: %v", err)
		}
		if !issued.ExpiresAt.Equal(now.Add(time.Minute)) {
			t.Fatalf("unexpected expiry %v", issued.ExpiresAt)
		}

		claims, err := svc.ValidateAccessToken(issued.Token)
		if err != nil {
			t.Fatalf("validate: %v", err)
		}
		got, err := claims.UserID()
		if err != nil || got != userID {
			t.Fatalf("expected user %d, got %d (%v)", userID, got, err)
		}
		if claims.Email != email {
			t.Fatalf("expected email %q, got %q", email, claims.Email)
		}
		if claims.ExpiresAt.Sub(claims.IssuedAt.Time) != time.Minute {
			t.Fatalf("unexpected lifetime %v", claims.ExpiresAt.Sub(claims.IssuedAt.Time))
		}
	})
}

// Feature: user-accounts, Property 6: Tokens are only valid for their own purpose
// *For any* issued token, validating it as a different token type fails.
func TestProperty6_TokenTypesAreNotInterchangeable(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		svc := newTestTokenService(nil)
		userID := rapid.Int64Range(1, 1000).Draw(t, "userID")

		access, _ := svc.IssueAccessToken(userID, "ana@example.com")
		refresh, _ := svc.IssueRefreshToken(userID)
		verify, _ := svc.IssueVerificationToken("ana@example.com")
		reset, _ := svc.IssueResetToken(userID)

		if _, err := svc.ValidateRefreshToken(access.Token); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("access accepted as refresh: %v", err)
		}
		if _, err := svc.ValidateAccessToken(refresh.Token); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("refresh accepted as access: %v", err)
		}
		for _, tok := range []string{verify.Token, reset.Token} {
			if _, err := svc.ValidateAccessToken(tok); !errors.Is(err, ErrTokenInvalid) {
				t.Fatalf("non-access token accepted as access: %v", err)
			}
		}
		if _, err := svc.ValidateVerificationToken(reset.Token); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("reset accepted as verification: %v", err)
		}
	})
}

func TestTokenService_Expiry(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestTokenService(func() time.Time { return now })

	issued, err := svc.IssueAccessToken(1, "ana@example.com")
	require.NoError(t, err)

	now = now.Add(time.Minute + time.Second)
	_, err = svc.ValidateAccessToken(issued.Token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenService_Tampered(t *testing.T) {
	svc := newTestTokenService(nil)
	issued, err := svc.IssueAccessToken(1, "ana@example.com")
	require.NoError(t, err)

	parts := strings.Split(issued.Token, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))
	_, err = svc.ValidateAccessToken(tampered)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	other := NewTokenService(TokenServiceConfig{AccessSecret: "another-secret", RefreshSecret: "x"})
	_, err = other.ValidateAccessToken(issued.Token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenService_RejectsNoneAlgorithm(t *testing.T) {
	svc := newTestTokenService(nil)
	claims := Claims{
		Type: AccessTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(unsigned)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenService_UniqueTokens(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestTokenService(func() time.Time { return now })

	a, err := svc.IssueVerificationToken("ana@example.com")
	require.NoError(t, err)
	b, err := svc.IssueVerificationToken("ana@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, a.Token, b.Token, "tokens issued in the same second must differ")
}

func TestTokenService_Defaults(t *testing.T) {
	svc := NewTokenService(TokenServiceConfig{AccessSecret: "a", RefreshSecret: "r"})
	assert.Equal(t, time.Minute, svc.AccessTokenExpiry())
}

func TestHashToken(t *testing.T) {
	h := HashToken("abc")
	assert.Len(t, h, 64)
	assert.Equal(t, h, HashToken("abc"))
	assert.NotEqual(t, h, HashToken("abd"))
}
