package auth

import (
	"errors"
	"fmt"
	"time"
)

// Error kinds. Every failure returned by AuthService is an *Error whose Kind
// is one of these, so callers can branch with errors.Is.
var (
	ErrValidation      = errors.New("validation error")
	ErrMissingFields   = errors.New("missing fields")
	ErrConflict        = errors.New("conflict")
	ErrNotFound        = errors.New("not found")
	ErrUnverified      = errors.New("email not verified")
	ErrAlreadyVerified = errors.New("email already verified")
	ErrLocked          = errors.New("account locked")
	ErrInvalidPassword = errors.New("invalid password")
	ErrInvalidToken    = errors.New("invalid token")
	ErrExpiredToken    = errors.New("expired token")
	ErrTokenRevoked    = errors.New("token revoked")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrWeakPassword    = errors.New("weak password")
	ErrSamePassword    = errors.New("same password")
	ErrForbidden       = errors.New("forbidden")
)

// Error codes returned to clients
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeMissingFields   = "MISSING_FIELDS"
	CodeEmailExists     = "EMAIL_EXISTS"
	CodeUserNotFound    = "USER_NOT_FOUND"
	CodeUnverified      = "EMAIL_NOT_VERIFIED"
	CodeAlreadyVerified = "EMAIL_ALREADY_VERIFIED"
	CodeAccountLocked   = "ACCOUNT_LOCKED"
	CodeInvalidPassword = "INVALID_PASSWORD"
	CodeInvalidToken    = "TOKEN_INVALID"
	CodeExpiredToken    = "TOKEN_EXPIRED"
	CodeTokenRevoked    = "TOKEN_REVOKED"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeWeakPassword    = "WEAK_PASSWORD"
	CodeSamePassword    = "SAME_PASSWORD"
	CodeForbidden       = "FORBIDDEN"
)

// Error is a flow-level failure with a user-facing message.
type Error struct {
	Kind    error
	Message string
	// LockedUntil is set for ErrLocked.
	LockedUntil *time.Time
	// RemainingAttempts is set for ErrInvalidPassword.
	RemainingAttempts *int
	// Details lists failed checks per field for validation errors.
	Details map[string][]string
	// Code overrides the client code derived from Kind.
	Code string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Code returns the client error code for err's kind.
func Code(err error) string {
	var flowErr *Error
	if errors.As(err, &flowErr) && flowErr.Code != "" {
		return flowErr.Code
	}
	for _, c := range errorCodes {
		if errors.Is(err, c.kind) {
			return c.code
		}
	}
	return ""
}

var errorCodes = []struct {
	kind error
	code string
}{
	{ErrValidation, CodeValidationError},
	{ErrMissingFields, CodeMissingFields},
	{ErrConflict, CodeEmailExists},
	{ErrNotFound, CodeUserNotFound},
	{ErrUnverified, CodeUnverified},
	{ErrAlreadyVerified, CodeAlreadyVerified},
	{ErrLocked, CodeAccountLocked},
	{ErrInvalidPassword, CodeInvalidPassword},
	{ErrInvalidToken, CodeInvalidToken},
	{ErrExpiredToken, CodeExpiredToken},
	{ErrTokenRevoked, CodeTokenRevoked},
	{ErrUnauthorized, CodeUnauthorized},
	{ErrWeakPassword, CodeWeakPassword},
	{ErrSamePassword, CodeSamePassword},
	{ErrForbidden, CodeForbidden},
}

// User-facing messages
const (
	msgAllFieldsRequired  = "Todos los campos son obligatorios"
	msgInvalidEmail       = "El email no es válido"
	msgEmailInUse         = "El email ya está en uso"
	msgWeakPassword       = "La contraseña debe tener al menos 5 caracteres y contener letras y números."
	msgUserNotFound       = "Usuario no encontrado."
	msgUnverified         = "Debes verificar tu correo antes de iniciar sesión"
	msgAlreadyVerified    = "El correo ya ha sido verificado."
	msgVerifyTokenInvalid = "Token inválido o ya utilizado."
	msgVerifyTokenExpired = "El token de verificación ha expirado."
	msgLockedFmt          = "Cuenta bloqueada. Inténtelo después de las %s"
	msgLockedNowFmt       = "Cuenta bloqueada por demasiados intentos fallidos. Inténtelo después de las %s"
	msgInvalidPasswordFmt = "Contraseña incorrecta. Intentos restantes: %d"
	msgRefreshMissing     = "No se proporcionó un Refresh Token."
	msgRefreshInvalid     = "Refresh Token inválido."
	msgRefreshExpired     = "El Refresh Token ha expirado. Inicie sesión de nuevo."
	msgUnauthorized       = "No autorizado."
	msgResetMissingFields = "Debes introducir el token y una nueva contraseña."
	msgResetTokenInvalid  = "Token inválido o ya utilizado."
	msgResetTokenExpired  = "El token ha expirado. Solicita uno nuevo."
	msgSamePassword       = "La nueva contraseña no puede ser igual a la anterior."
	lockTimeLayout        = "15:04:05"
)
