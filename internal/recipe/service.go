package recipe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/welldanyogia/recetas/backend/internal/auth"
	"github.com/welldanyogia/recetas/backend/internal/metrics"
	"github.com/welldanyogia/recetas/backend/internal/repository"
	"github.com/welldanyogia/recetas/backend/internal/sanitizer"
	"github.com/welldanyogia/recetas/backend/internal/storage"
)

const (
	msgRecipeNotFound   = "Receta no encontrada."
	msgNotCreator       = "Solo el creador puede modificar esta receta."
	msgInvalidVote      = "El voto debe ser 1 o -1."
	msgUnsupportedMedia = "Tipo de archivo no permitido."
	msgTooManyStepFiles = "Hay más archivos de pasos que pasos con medios."
	msgCreatorNotFound  = "Usuario creador no encontrado."
	msgForeignMedia     = "El archivo multimedia no pertenece a esta receta."

	codeRecipeNotFound = "RECIPE_NOT_FOUND"
)

// Uploads are the files sent with a multipart create or update.
type Uploads struct {
	Image     *multipart.FileHeader
	StepFiles []*multipart.FileHeader
}

// Service implements recipe operations
type Service struct {
	repo      repository.RecipeRepositoryInterface
	media     storage.MediaStore
	sanitizer *sanitizer.TextSanitizer
	logger    *slog.Logger
}

// NewService creates a new recipe service
func NewService(repo repository.RecipeRepositoryInterface, media storage.MediaStore, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		repo:      repo,
		media:     media,
		sanitizer: sanitizer.NewTextSanitizer(),
		logger:    log,
	}
}

func flowError(kind error, msg string) *auth.Error {
	return &auth.Error{Kind: kind, Message: msg}
}

func notFound() *auth.Error {
	return &auth.Error{Kind: auth.ErrNotFound, Message: msgRecipeNotFound, Code: codeRecipeNotFound}
}

func (s *Service) clean(in *RecipeInput) {
	in.Title = s.sanitizer.Clean(in.Title)
	in.Description = s.sanitizer.Clean(in.Description)
	s.sanitizer.CleanAll(in.Ingredients)
	s.sanitizer.CleanAll(in.SuitableFor)
	for i := range in.Instructions {
		step := &in.Instructions[i]
		step.Title = s.sanitizer.Clean(step.Title)
		step.Description = s.sanitizer.Clean(step.Description)
		step.MediaType = strings.TrimSpace(step.MediaType)
		step.MediaURL = strings.TrimSpace(step.MediaURL)
	}
	in.ImageURL = strings.TrimSpace(in.ImageURL)
}

// checkMedia rejects store-issued URLs in in that are not among held.
// Uploaded media can only enter a recipe through its own uploads.
func (s *Service) checkMedia(in RecipeInput, held []string) error {
	owned := make(map[string]bool, len(held))
	for _, u := range held {
		owned[u] = true
	}
	for _, u := range in.mediaURLs() {
		if s.media.Owns(u) && !owned[u] {
			return flowError(auth.ErrValidation, msgForeignMedia)
		}
	}
	return nil
}

// store saves uploads and points in at them. It returns the URLs it stored
// so the caller can remove them if the write fails.
func (s *Service) store(ctx context.Context, in *RecipeInput, up Uploads) ([]string, error) {
	var slots []int
	for i, step := range in.Instructions {
		if step.MediaType != "" && step.MediaURL == "" {
			slots = append(slots, i)
		}
	}
	if len(up.StepFiles) > len(slots) {
		return nil, flowError(auth.ErrValidation, msgTooManyStepFiles)
	}

	var stored []string
	fail := func(err error) ([]string, error) {
		s.discard(ctx, stored)
		if errors.Is(err, storage.ErrUnsupportedMedia) {
			return nil, flowError(auth.ErrValidation, msgUnsupportedMedia)
		}
		return nil, err
	}

	if up.Image != nil {
		url, _, err := storage.SaveUpload(ctx, s.media, up.Image, storage.KindImage)
		if err != nil {
			return fail(err)
		}
		stored = append(stored, url)
		in.ImageURL = url
	}

	for i, fh := range up.StepFiles {
		step := &in.Instructions[slots[i]]
		url, _, err := storage.SaveUpload(ctx, s.media, fh, storage.MediaKind(step.MediaType))
		if err != nil {
			return fail(err)
		}
		stored = append(stored, url)
		step.MediaURL = url
	}

	return stored, nil
}

// discard deletes media best effort.
func (s *Service) discard(ctx context.Context, urls []string) {
	if len(urls) == 0 {
		return
	}
	if err := s.media.Delete(ctx, urls...); err != nil {
		s.logger.Warn("failed to delete recipe media", "error", err, "count", len(urls))
	}
}

// Create validates in, stores uploads and inserts the recipe for creatorID.
func (s *Service) Create(ctx context.Context, creatorID int64, in RecipeInput, up Uploads) (*Response, error) {
	s.clean(&in)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if err := s.checkMedia(in, nil); err != nil {
		return nil, err
	}

	stored, err := s.store(ctx, &in, up)
	if err != nil {
		return nil, err
	}

	rec := &repository.Recipe{
		Title:        in.Title,
		Description:  in.Description,
		Ingredients:  in.Ingredients,
		Instructions: in.steps(),
		PrepTime:     in.PrepTime,
		Difficulty:   string(in.Difficulty),
		SuitableFor:  nonNil(in.SuitableFor),
		ImageURL:     in.ImageURL,
		CreatorID:    creatorID,
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		s.discard(ctx, stored)
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, flowError(auth.ErrNotFound, msgCreatorNotFound)
		}
		return nil, fmt.Errorf("failed to create recipe: %w", err)
	}

	s.logger.Info("recipe created", "recipe_id", rec.ID, "creator_id", creatorID)
	resp := NewResponse(rec)
	return &resp, nil
}

func (s *Service) load(ctx context.Context, id int64) (*repository.Recipe, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrRecipeNotFound) {
			return nil, notFound()
		}
		return nil, fmt.Errorf("failed to get recipe: %w", err)
	}
	return rec, nil
}

// Get returns a recipe. When viewerID is non-zero the viewer's vote is included.
func (s *Service) Get(ctx context.Context, id, viewerID int64) (*Response, error) {
	rec, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := NewResponse(rec)

	if viewerID != 0 {
		vote, err := s.repo.GetUserVote(ctx, viewerID, id)
		if err != nil {
			return nil, fmt.Errorf("failed to get vote: %w", err)
		}
		resp.UserVote = &vote
	}
	return &resp, nil
}

// List returns recipes matching p. The search term is Unicode-normalised
// so composed and decomposed accents match alike.
func (s *Service) List(ctx context.Context, p ListParams) ([]Response, error) {
	filter := repository.RecipeFilter{
		Search: norm.NFC.String(strings.TrimSpace(p.Search)),
		Sort:   p.Sort,
		Limit:  p.Limit,
	}
	for _, tag := range p.SuitableFor {
		if tag = strings.TrimSpace(tag); tag != "" {
			filter.SuitableFor = append(filter.SuitableFor, tag)
		}
	}
	return s.list(ctx, filter)
}

// ListByCreator returns the recipes published by creatorID, newest first.
func (s *Service) ListByCreator(ctx context.Context, creatorID int64) ([]Response, error) {
	return s.list(ctx, repository.RecipeFilter{CreatorID: creatorID, Limit: repository.NoLimit})
}

func (s *Service) list(ctx context.Context, filter repository.RecipeFilter) ([]Response, error) {
	recs, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipes: %w", err)
	}
	out := make([]Response, 0, len(recs))
	for i := range recs {
		out = append(out, NewResponse(&recs[i]))
	}
	return out, nil
}

// Update applies req to recipe id on behalf of callerID, who must be its
// creator. Media no longer referenced afterwards is deleted.
func (s *Service) Update(ctx context.Context, callerID, id int64, req UpdateRecipeRequest, up Uploads) (*Response, error) {
	rec, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.CreatorID != callerID {
		return nil, flowError(auth.ErrForbidden, msgNotCreator)
	}

	before := inputFromRecipe(rec)
	in := inputFromRecipe(rec)
	req.apply(&in)
	s.clean(&in)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if err := s.checkMedia(in, before.mediaURLs()); err != nil {
		return nil, err
	}

	stored, err := s.store(ctx, &in, up)
	if err != nil {
		return nil, err
	}

	rec.Title = in.Title
	rec.Description = in.Description
	rec.Ingredients = in.Ingredients
	rec.Instructions = in.steps()
	rec.PrepTime = in.PrepTime
	rec.Difficulty = string(in.Difficulty)
	rec.SuitableFor = nonNil(in.SuitableFor)
	rec.ImageURL = in.ImageURL

	if err := s.repo.Update(ctx, rec); err != nil {
		s.discard(ctx, stored)
		if errors.Is(err, repository.ErrRecipeNotFound) {
			return nil, notFound()
		}
		return nil, fmt.Errorf("failed to update recipe: %w", err)
	}

	s.discard(ctx, unreferenced(before.mediaURLs(), in.mediaURLs()))

	resp := NewResponse(rec)
	return &resp, nil
}

// unreferenced returns the entries of old missing from current.
func unreferenced(old, current []string) []string {
	keep := make(map[string]bool, len(current))
	for _, u := range current {
		keep[u] = true
	}
	var gone []string
	for _, u := range old {
		if !keep[u] {
			gone = append(gone, u)
		}
	}
	return gone
}

// Delete removes recipe id on behalf of its creator, then its media.
func (s *Service) Delete(ctx context.Context, callerID, id int64) error {
	rec, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if rec.CreatorID != callerID {
		return flowError(auth.ErrForbidden, msgNotCreator)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrRecipeNotFound) {
			return notFound()
		}
		return fmt.Errorf("failed to delete recipe: %w", err)
	}

	s.discard(ctx, inputFromRecipe(rec).mediaURLs())
	s.logger.Info("recipe deleted", "recipe_id", id, "creator_id", callerID)
	return nil
}

// Vote casts userID's vote on recipe id. Repeating a vote withdraws it.
func (s *Service) Vote(ctx context.Context, userID, id int64, value int) (*VoteResponse, error) {
	if value != 1 && value != -1 {
		return nil, flowError(auth.ErrValidation, msgInvalidVote)
	}

	res, err := s.repo.Vote(ctx, userID, id, value)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrRecipeNotFound):
			return nil, notFound()
		case errors.Is(err, repository.ErrInvalidVote):
			return nil, flowError(auth.ErrValidation, msgInvalidVote)
		}
		return nil, fmt.Errorf("failed to vote: %w", err)
	}

	metrics.RecipeVotesTotal.WithLabelValues(voteAction(res)).Inc()
	return &VoteResponse{
		RecipeID:   res.RecipeID,
		Popularity: res.Popularity,
		UserVote:   res.UserVote,
	}, nil
}

func voteAction(res *repository.VoteResult) string {
	switch {
	case res.UserVote == 0:
		return "removed"
	case res.Previous == 0:
		return "added"
	default:
		return "changed"
	}
}
