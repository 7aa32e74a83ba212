// Package recipe implements recipe publishing, browsing and voting.
package recipe

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/welldanyogia/recetas/backend/internal/repository"
)

// Difficulty is a rating from "1" to "5". JSON numbers are accepted too.
type Difficulty string

// UnmarshalJSON accepts "3" or 3.
func (d *Difficulty) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*d = Difficulty(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*d = Difficulty(n.String())
	return nil
}

// StepInput is one instruction as submitted by a client.
type StepInput struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description" validate:"required"`
	MediaURL    string `json:"mediaUrl,omitempty"`
	MediaType   string `json:"mediaType,omitempty" validate:"omitempty,oneof=image video"`
}

// RecipeInput is a complete recipe as submitted on create.
type RecipeInput struct {
	Title        string      `json:"title" validate:"required,max=200"`
	Description  string      `json:"description" validate:"required,max=5000"`
	Ingredients  []string    `json:"ingredients" validate:"required,min=1,dive,required"`
	Instructions []StepInput `json:"instructions" validate:"required,min=1,dive"`
	PrepTime     int         `json:"prepTime" validate:"required,min=1"`
	Difficulty   Difficulty  `json:"difficulty" validate:"required,oneof=1 2 3 4 5"`
	SuitableFor  []string    `json:"suitableFor" validate:"dive,required"`
	ImageURL     string      `json:"imageUrl"`
}

// UpdateRecipeRequest carries the fields to change. Nil fields are kept.
type UpdateRecipeRequest struct {
	Title        *string     `json:"title"`
	Description  *string     `json:"description"`
	Ingredients  []string    `json:"ingredients"`
	Instructions []StepInput `json:"instructions"`
	PrepTime     *int        `json:"prepTime"`
	Difficulty   *Difficulty `json:"difficulty"`
	SuitableFor  []string    `json:"suitableFor"`
	ImageURL     *string     `json:"imageUrl"`
}

// VoteRequest is the body of POST /recetas/{id}/vote
type VoteRequest struct {
	Value int `json:"value"`
}

// VoteResponse reports the recipe's popularity after a vote.
type VoteResponse struct {
	RecipeID   int64 `json:"recipeId"`
	Popularity int   `json:"popularity"`
	UserVote   int   `json:"userVote"`
}

// ListParams are the query options of a recipe listing.
type ListParams struct {
	SuitableFor []string
	Search      string
	Sort        repository.RecipeSort
	Limit       int
}

// Response is the public representation of a recipe
type Response struct {
	ID           int64             `json:"id"`
	Title        string            `json:"title"`
	Description  string            `json:"description"`
	Ingredients  []string          `json:"ingredients"`
	Instructions []repository.Step `json:"instructions"`
	PrepTime     int               `json:"prepTime"`
	Difficulty   string            `json:"difficulty"`
	SuitableFor  []string          `json:"suitableFor"`
	ImageURL     string            `json:"imageUrl"`
	CreatorID    int64             `json:"creatorId"`
	Popularity   int               `json:"popularity"`
	// UserVote is the caller's vote, present only for authenticated reads.
	UserVote  *int      `json:"userVote,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// NewResponse projects a stored recipe
func NewResponse(r *repository.Recipe) Response {
	return Response{
		ID:           r.ID,
		Title:        r.Title,
		Description:  r.Description,
		Ingredients:  nonNil([]string(r.Ingredients)),
		Instructions: nonNil([]repository.Step(r.Instructions)),
		PrepTime:     r.PrepTime,
		Difficulty:   r.Difficulty,
		SuitableFor:  nonNil([]string(r.SuitableFor)),
		ImageURL:     r.ImageURL,
		CreatorID:    r.CreatorID,
		Popularity:   r.Popularity,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// inputFromRecipe is the editable state of a stored recipe.
func inputFromRecipe(r *repository.Recipe) RecipeInput {
	steps := make([]StepInput, len(r.Instructions))
	for i, s := range r.Instructions {
		steps[i] = StepInput{Title: s.Title, Description: s.Description, MediaURL: s.MediaURL, MediaType: s.MediaType}
	}
	return RecipeInput{
		Title:        r.Title,
		Description:  r.Description,
		Ingredients:  append([]string(nil), r.Ingredients...),
		Instructions: steps,
		PrepTime:     r.PrepTime,
		Difficulty:   Difficulty(r.Difficulty),
		SuitableFor:  append([]string(nil), r.SuitableFor...),
		ImageURL:     r.ImageURL,
	}
}

// apply overlays the present fields of req onto in.
func (req UpdateRecipeRequest) apply(in *RecipeInput) {
	if req.Title != nil {
		in.Title = *req.Title
	}
	if req.Description != nil {
		in.Description = *req.Description
	}
	if req.Ingredients != nil {
		in.Ingredients = req.Ingredients
	}
	if req.Instructions != nil {
		in.Instructions = req.Instructions
	}
	if req.PrepTime != nil {
		in.PrepTime = *req.PrepTime
	}
	if req.Difficulty != nil {
		in.Difficulty = *req.Difficulty
	}
	if req.SuitableFor != nil {
		in.SuitableFor = req.SuitableFor
	}
	if req.ImageURL != nil {
		in.ImageURL = *req.ImageURL
	}
}

func (in RecipeInput) steps() repository.Steps {
	steps := make(repository.Steps, len(in.Instructions))
	for i, s := range in.Instructions {
		steps[i] = repository.Step{Title: s.Title, Description: s.Description, MediaURL: s.MediaURL, MediaType: s.MediaType}
	}
	return steps
}

// mediaURLs lists every media URL referenced by in.
func (in RecipeInput) mediaURLs() []string {
	var urls []string
	if in.ImageURL != "" {
		urls = append(urls, in.ImageURL)
	}
	for _, s := range in.Instructions {
		if s.MediaURL != "" {
			urls = append(urls, s.MediaURL)
		}
	}
	return urls
}

func parseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	return id, err == nil && id > 0
}
