package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/welldanyogia/recetas/backend/internal/api"
	"github.com/welldanyogia/recetas/backend/internal/auth"
	appctx "github.com/welldanyogia/recetas/backend/internal/context"
)

// RevocationChecker reports whether an access token has been revoked.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// AuthMiddleware handles JWT authentication for protected routes
type AuthMiddleware struct {
	tokenService *auth.TokenService
	revocations  RevocationChecker
	logger       *slog.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware instance
func NewAuthMiddleware(tokenService *auth.TokenService, revocations RevocationChecker, log *slog.Logger) *AuthMiddleware {
	if log == nil {
		log = slog.Default()
	}
	return &AuthMiddleware{
		tokenService: tokenService,
		revocations:  revocations,
		logger:       log,
	}
}

const (
	msgMissingToken   = "Acceso denegado. No hay token."
	msgMalformedToken = "Formato de autorización inválido."
	msgRevokedToken   = "El token ha sido revocado. Inicie sesión de nuevo."
	msgInvalidToken   = "Token inválido."
	msgExpiredToken   = "Token expirado."
)

// Authenticate validates the bearer token. Checks run in order: header
// present and well formed, not revoked, signature and expiry.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			api.WriteError(w, http.StatusUnauthorized, auth.CodeUnauthorized, msgMissingToken)
			return
		}
		m.authenticate(w, r, next, authHeader)
	})
}

// Optional authenticates the request only when an Authorization header is
// present; requests without one pass through anonymously.
func (m *AuthMiddleware) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			next.ServeHTTP(w, r)
			return
		}
		m.authenticate(w, r, next, authHeader)
	})
}

func (m *AuthMiddleware) authenticate(w http.ResponseWriter, r *http.Request, next http.Handler, authHeader string) {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		api.WriteError(w, http.StatusUnauthorized, auth.CodeUnauthorized, msgMalformedToken)
		return
	}
	tokenString := strings.TrimSpace(parts[1])

	if m.revocations != nil {
		revoked, err := m.revocations.IsRevoked(r.Context(), tokenString)
		if err != nil {
			m.logger.Error("revocation check failed", "error", err)
			api.WriteInternalError(w)
			return
		}
		if revoked {
			api.WriteError(w, http.StatusUnauthorized, auth.CodeTokenRevoked, msgRevokedToken)
			return
		}
	}

	claims, err := m.tokenService.ValidateAccessToken(tokenString)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			api.WriteError(w, http.StatusUnauthorized, auth.CodeExpiredToken, msgExpiredToken)
			return
		}
		api.WriteError(w, http.StatusUnauthorized, auth.CodeInvalidToken, msgInvalidToken)
		return
	}

	userID, err := claims.UserID()
	if err != nil || userID <= 0 {
		api.WriteError(w, http.StatusUnauthorized, auth.CodeInvalidToken, msgInvalidToken)
		return
	}

	principal := appctx.Principal{
		UserID: userID,
		Email:  claims.Email,
		Token:  tokenString,
	}
	if claims.ExpiresAt != nil {
		principal.ExpiresAt = claims.ExpiresAt.Time
	}

	next.ServeHTTP(w, r.WithContext(appctx.WithPrincipal(r.Context(), principal)))
}

// ExtractUserID extracts the user ID from the request context
func ExtractUserID(ctx context.Context) (int64, bool) {
	return appctx.ExtractUserID(ctx)
}
