package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/welldanyogia/recetas/backend/internal/api"
	appctx "github.com/welldanyogia/recetas/backend/internal/context"
	"github.com/welldanyogia/recetas/backend/internal/logger"
)

const msgInvalidBody = "Cuerpo de la solicitud inválido"

// AuthHandler handles HTTP requests for authentication endpoints
type AuthHandler struct {
	authService *AuthService
	logger      *slog.Logger
}

// NewAuthHandler creates a new AuthHandler instance
func NewAuthHandler(authService *AuthService, log *slog.Logger) *AuthHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AuthHandler{
		authService: authService,
		logger:      log,
	}
}

// HTTPStatus maps an error kind to its HTTP status. Unknown errors are 500.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrMissingFields),
		errors.Is(err, ErrWeakPassword),
		errors.Is(err, ErrSamePassword),
		errors.Is(err, ErrAlreadyVerified),
		errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrExpiredToken):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnverified),
		errors.Is(err, ErrLocked),
		errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrInvalidPassword),
		errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrTokenRevoked):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes err with the given status. Non-flow errors are logged
// and answered with an opaque 500.
func WriteError(w http.ResponseWriter, r *http.Request, log *slog.Logger, status int, err error) {
	var flowErr *Error
	if !errors.As(err, &flowErr) || status == http.StatusInternalServerError {
		logger.WithCorrelationID(r.Context(), log).Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		api.WriteInternalError(w)
		return
	}

	api.WriteErrorResponse(w, api.ErrorResponse{
		Status:            status,
		Code:              Code(err),
		Message:           flowErr.Message,
		LockedUntil:       flowErr.LockedUntil,
		RemainingAttempts: flowErr.RemainingAttempts,
		Details:           flowErr.Details,
	})
}

func (h *AuthHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	WriteError(w, r, h.logger, HTTPStatus(err), err)
}

func (h *AuthHandler) badBody(w http.ResponseWriter) {
	api.WriteError(w, http.StatusBadRequest, api.CodeInvalidBody, msgInvalidBody)
}

// Register handles user registration
// POST /users/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		h.badBody(w)
		return
	}

	user, err := h.authService.Register(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	api.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Usuario registrado. Revisa tu correo para verificar la cuenta.",
		"user":    user,
	})
}

// VerifyEmail handles GET and POST /users/verify-email?token=
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" && r.Method == http.MethodPost {
		var body struct {
			Token string `json:"token"`
		}
		if err := api.DecodeJSON(r, &body); err == nil {
			token = body.Token
		}
	}

	if err := h.authService.VerifyEmail(r.Context(), token); err != nil {
		h.fail(w, r, err)
		return
	}

	api.WriteMessage(w, http.StatusOK, "Correo verificado con éxito.")
}

// ResendVerification handles POST /users/resend-verification-email
func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		h.badBody(w)
		return
	}

	if err := h.authService.ResendVerification(r.Context(), req.Email); err != nil {
		h.fail(w, r, err)
		return
	}

	api.WriteMessage(w, http.StatusOK, "Correo de verificación reenviado.")
}

// Login handles user authentication
// POST /users/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		h.badBody(w)
		return
	}

	resp, err := h.authService.Login(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	api.WriteJSON(w, http.StatusOK, resp)
}

// Refresh handles token refresh. Invalid and expired refresh tokens are
// answered with 403 so clients can tell them apart from an expired access token.
// POST /users/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		h.badBody(w)
		return
	}

	resp, err := h.authService.RefreshAccessToken(r.Context(), req.RefreshToken)
	if err != nil {
		status := HTTPStatus(err)
		if errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrExpiredToken) {
			status = http.StatusForbidden
		}
		WriteError(w, r, h.logger, status, err)
		return
	}

	api.WriteJSON(w, http.StatusOK, resp)
}

// Logout handles user logout
// POST /users/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var principal *appctx.Principal
	if p, ok := appctx.ExtractPrincipal(r.Context()); ok {
		principal = &p
	}

	if err := h.authService.Logout(r.Context(), principal); err != nil {
		h.fail(w, r, err)
		return
	}

	api.WriteMessage(w, http.StatusOK, "Sesión cerrada exitosamente.")
}

// ForgotPassword handles POST /users/forgot-password
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		h.badBody(w)
		return
	}

	if err := h.authService.ForgotPassword(r.Context(), req.Email); err != nil {
		h.fail(w, r, err)
		return
	}

	api.WriteMessage(w, http.StatusOK, "Correo enviado con instrucciones para restablecer la contraseña.")
}

// ResetPassword handles POST /users/reset-password
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		h.badBody(w)
		return
	}

	var principal *appctx.Principal
	if p, ok := appctx.ExtractPrincipal(r.Context()); ok {
		principal = &p
	}

	if err := h.authService.ResetPassword(r.Context(), req, principal); err != nil {
		h.fail(w, r, err)
		return
	}

	api.WriteMessage(w, http.StatusOK, "Contraseña actualizada correctamente.")
}
