// Package api holds the JSON response helpers shared by every HTTP handler.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// Error codes shared across services.
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeInvalidBody     = "INVALID_BODY"
	CodeNotFound        = "NOT_FOUND"
	CodeForbidden       = "FORBIDDEN"
	CodeRateLimited     = "RATE_LIMITED"
	CodeTooLarge        = "PAYLOAD_TOO_LARGE"
	CodeInternalError   = "INTERNAL_ERROR"
)

// MsgInternal is the opaque message returned for unexpected failures.
const MsgInternal = "Error interno del servidor"

// ErrorResponse is the body of every error response. Status mirrors the HTTP status line.
type ErrorResponse struct {
	Status            int                 `json:"status"`
	Message           string              `json:"message"`
	Code              string              `json:"code,omitempty"`
	LockedUntil       *time.Time          `json:"lockedUntil,omitempty"`
	RemainingAttempts *int                `json:"remainingAttempts,omitempty"`
	Details           map[string][]string `json:"details,omitempty"`
}

// MessageResponse is the body of operations that only report an outcome.
type MessageResponse struct {
	Message string `json:"message"`
}

// WriteJSON writes data as JSON with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// WriteMessage writes {"message": msg}.
func WriteMessage(w http.ResponseWriter, statusCode int, msg string) {
	WriteJSON(w, statusCode, MessageResponse{Message: msg})
}

// WriteError writes an ErrorResponse with the given status, code and message.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	WriteErrorResponse(w, ErrorResponse{Status: statusCode, Code: code, Message: message})
}

// WriteErrorResponse writes resp using resp.Status as the HTTP status.
func WriteErrorResponse(w http.ResponseWriter, resp ErrorResponse) {
	WriteJSON(w, resp.Status, resp)
}

// WriteInternalError writes the opaque 500 response.
func WriteInternalError(w http.ResponseWriter) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, MsgInternal)
}

// ErrEmptyBody is returned by DecodeJSON when the request has no body.
var ErrEmptyBody = errors.New("request body is empty")

// DecodeJSON decodes the request body into dst.
func DecodeJSON(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return ErrEmptyBody
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return ErrEmptyBody
	}
	return err
}

// ClientIP returns the originating client address, preferring proxy headers.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
