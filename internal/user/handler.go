package user

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/welldanyogia/recetas/backend/internal/api"
	"github.com/welldanyogia/recetas/backend/internal/auth"
	appctx "github.com/welldanyogia/recetas/backend/internal/context"
)

const (
	msgInvalidID   = "ID de usuario inválido."
	msgInvalidBody = "Cuerpo de la solicitud inválido"
)

// Handler handles HTTP requests for profile endpoints
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler creates a new profile handler
func NewHandler(service *Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{service: service, logger: log}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	auth.WriteError(w, r, h.logger, auth.HTTPStatus(err), err)
}

func userID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// List handles GET /users
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, users)
}

// Me handles GET /users/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	principal, ok := appctx.ExtractPrincipal(r.Context())
	if !ok {
		api.WriteError(w, http.StatusUnauthorized, auth.CodeUnauthorized, "No autorizado.")
		return
	}
	u, err := h.service.Get(r.Context(), principal.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, u)
}

// Get handles GET /users/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(r)
	if !ok {
		api.WriteError(w, http.StatusBadRequest, api.CodeValidationError, msgInvalidID)
		return
	}
	u, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, u)
}

// GetName handles GET /users/{id}/name
func (h *Handler) GetName(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(r)
	if !ok {
		api.WriteError(w, http.StatusBadRequest, api.CodeValidationError, msgInvalidID)
		return
	}
	resp, err := h.service.GetName(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, resp)
}

// Update handles PUT /users/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	principal, ok := appctx.ExtractPrincipal(r.Context())
	if !ok {
		api.WriteError(w, http.StatusUnauthorized, auth.CodeUnauthorized, "No autorizado.")
		return
	}
	id, ok := userID(r)
	if !ok {
		api.WriteError(w, http.StatusBadRequest, api.CodeValidationError, msgInvalidID)
		return
	}

	var req UpdateProfileRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.CodeInvalidBody, msgInvalidBody)
		return
	}

	u, err := h.service.Update(r.Context(), principal.UserID, id, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, u)
}
