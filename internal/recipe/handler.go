package recipe

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/welldanyogia/recetas/backend/internal/api"
	"github.com/welldanyogia/recetas/backend/internal/auth"
	appctx "github.com/welldanyogia/recetas/backend/internal/context"
	"github.com/welldanyogia/recetas/backend/internal/repository"
)

const (
	msgInvalidID     = "ID de receta inválido."
	msgInvalidBody   = "Cuerpo de la solicitud inválido"
	msgTooLarge      = "La solicitud supera el tamaño máximo permitido."
	msgTooManyImages = "Solo se permite una imagen principal."
	msgInvalidSort   = "Orden no válido. Use popularity, prepTime o newest."
	msgInvalidLimit  = "El límite debe ser un número entre 1 y 100."
	msgCreated       = "Receta creada con éxito"
	msgDeleted       = "Receta eliminada con éxito"
	msgUnauthorized  = "No autorizado."

	// DefaultMaxBodyBytes caps create and update requests.
	DefaultMaxBodyBytes int64 = 50 << 20

	// multipart parts beyond this are spooled to disk
	multipartMemory = 8 << 20
	maxListLimit    = 100
)

var errTooManyImages = errors.New("more than one image file")

// Handler handles HTTP requests for recipe endpoints
type Handler struct {
	service  *Service
	logger   *slog.Logger
	maxBytes int64
}

// NewHandler creates a new recipe handler. maxBytes <= 0 selects DefaultMaxBodyBytes.
func NewHandler(service *Service, maxBytes int64, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	return &Handler{service: service, logger: log, maxBytes: maxBytes}
}

// CreateResponse is the body of a successful create.
type CreateResponse struct {
	Message string   `json:"message"`
	Recipe  Response `json:"recipe"`
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	auth.WriteError(w, r, h.logger, auth.HTTPStatus(err), err)
}

func (h *Handler) badBody(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		api.WriteError(w, http.StatusRequestEntityTooLarge, api.CodeTooLarge, msgTooLarge)
	case errors.Is(err, errTooManyImages):
		api.WriteError(w, http.StatusBadRequest, api.CodeValidationError, msgTooManyImages)
	default:
		api.WriteError(w, http.StatusBadRequest, api.CodeInvalidBody, msgInvalidBody)
	}
}

func principalID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := appctx.ExtractUserID(r.Context())
	if !ok {
		api.WriteError(w, http.StatusUnauthorized, auth.CodeUnauthorized, msgUnauthorized)
	}
	return id, ok
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		api.WriteError(w, http.StatusBadRequest, api.CodeValidationError, msgInvalidID)
	}
	return id, ok
}

// decodeBody reads either a multipart form with a JSON "data" field and
// file parts, or a plain JSON body, into dst.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, dst any) (Uploads, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return Uploads{}, api.DecodeJSON(r, dst)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return Uploads{}, err
	}
	if data := r.FormValue("data"); data != "" {
		if err := json.Unmarshal([]byte(data), dst); err != nil {
			return Uploads{}, err
		}
	} else {
		return Uploads{}, api.ErrEmptyBody
	}

	var up Uploads
	files := r.MultipartForm.File
	switch images := files["imageFile"]; len(images) {
	case 0:
	case 1:
		up.Image = images[0]
	default:
		return Uploads{}, errTooManyImages
	}
	up.StepFiles = files["stepFiles"]
	return up, nil
}

func cleanupForm(r *http.Request) {
	if r.MultipartForm != nil {
		r.MultipartForm.RemoveAll()
	}
}

// List handles GET /recetas
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := ListParams{
		SuitableFor: q["suitableFor"],
		Search:      q.Get("search"),
	}

	switch sort := repository.RecipeSort(q.Get("sort")); sort {
	case "", repository.SortNewest, repository.SortPopularity, repository.SortPrepTime:
		params.Sort = sort
	default:
		api.WriteError(w, http.StatusBadRequest, api.CodeValidationError, msgInvalidSort)
		return
	}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > maxListLimit {
			api.WriteError(w, http.StatusBadRequest, api.CodeValidationError, msgInvalidLimit)
			return
		}
		params.Limit = limit
	}

	recipes, err := h.service.List(r.Context(), params)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, recipes)
}

// ListByCreator handles GET /recetas/creator/{id}
func (h *Handler) ListByCreator(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		api.WriteError(w, http.StatusBadRequest, api.CodeValidationError, "ID de usuario inválido.")
		return
	}
	recipes, err := h.service.ListByCreator(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, recipes)
}

// Get handles GET /recetas/{id}. Authenticated callers also get their vote.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	viewer, _ := appctx.ExtractUserID(r.Context())

	recipe, err := h.service.Get(r.Context(), id, viewer)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, recipe)
}

// Create handles POST /recetas
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := principalID(w, r)
	if !ok {
		return
	}
	defer cleanupForm(r)

	var in RecipeInput
	up, err := h.decodeBody(w, r, &in)
	if err != nil {
		h.badBody(w, err)
		return
	}

	recipe, err := h.service.Create(r.Context(), userID, in, up)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, CreateResponse{Message: msgCreated, Recipe: *recipe})
}

// Update handles PUT /recetas/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := principalID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	defer cleanupForm(r)

	var req UpdateRecipeRequest
	up, err := h.decodeBody(w, r, &req)
	if err != nil {
		h.badBody(w, err)
		return
	}

	recipe, err := h.service.Update(r.Context(), userID, id, req, up)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, recipe)
}

// Delete handles DELETE /recetas/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := principalID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), userID, id); err != nil {
		h.fail(w, r, err)
		return
	}
	api.WriteMessage(w, http.StatusOK, msgDeleted)
}

// Vote handles POST /recetas/{id}/vote
func (h *Handler) Vote(w http.ResponseWriter, r *http.Request) {
	userID, ok := principalID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req VoteRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		h.badBody(w, err)
		return
	}

	resp, err := h.service.Vote(r.Context(), userID, id, req.Value)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, resp)
}
