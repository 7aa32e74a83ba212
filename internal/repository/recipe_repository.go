package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Recipe repository errors
var (
	ErrRecipeNotFound = errors.New("recipe not found")
	ErrInvalidVote    = errors.New("vote value must be 1 or -1")
)

const (
	defaultRecipeLimit = 50
	maxRecipeLimit     = 100
)

// RecipeRepositoryInterface defines the interface for recipe repository operations
type RecipeRepositoryInterface interface {
	Create(ctx context.Context, recipe *Recipe) error
	GetByID(ctx context.Context, id int64) (*Recipe, error)
	List(ctx context.Context, filter RecipeFilter) ([]Recipe, error)
	Update(ctx context.Context, recipe *Recipe) error
	Delete(ctx context.Context, id int64) error
	Vote(ctx context.Context, userID, recipeID int64, value int) (*VoteResult, error)
	GetUserVote(ctx context.Context, userID, recipeID int64) (int, error)
}

// RecipeRepo implements RecipeRepositoryInterface using PostgreSQL
type RecipeRepo struct {
	db *sqlx.DB
}

// NewRecipeRepo creates a new RecipeRepo instance
func NewRecipeRepo(db *sqlx.DB) *RecipeRepo {
	return &RecipeRepo{db: db}
}

const recipeColumns = `id, title, description, ingredients, instructions, prep_time, difficulty,
	suitable_for, image_url, creator_id, popularity, created_at, updated_at`

// Create inserts the recipe and appends its id to the creator's recipe list
// in the same transaction.
func (r *RecipeRepo) Create(ctx context.Context, recipe *Recipe) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO recipes (title, description, ingredients, instructions, prep_time,
			difficulty, suitable_for, image_url, creator_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, popularity, created_at, updated_at
	`
	err = tx.QueryRowxContext(ctx, query,
		recipe.Title,
		recipe.Description,
		pq.Array([]string(recipe.Ingredients)),
		recipe.Instructions,
		recipe.PrepTime,
		recipe.Difficulty,
		pq.Array([]string(recipe.SuitableFor)),
		recipe.ImageURL,
		recipe.CreatorID,
	).Scan(&recipe.ID, &recipe.Popularity, &recipe.CreatedAt, &recipe.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create recipe: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE users SET recipe_ids = array_append(recipe_ids, $1), updated_at = NOW() WHERE id = $2`,
		recipe.ID, recipe.CreatorID,
	)
	if err != nil {
		return fmt.Errorf("failed to link recipe to creator: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetByID retrieves a single recipe
func (r *RecipeRepo) GetByID(ctx context.Context, id int64) (*Recipe, error) {
	var recipe Recipe
	err := r.db.GetContext(ctx, &recipe, `SELECT `+recipeColumns+` FROM recipes WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecipeNotFound
		}
		return nil, fmt.Errorf("failed to get recipe: %w", err)
	}
	return &recipe, nil
}

// escapeLike escapes LIKE wildcards in user input.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// List retrieves recipes matching filter. Suitability tags are OR'd together
// and AND'd with the free-text search over title and ingredients.
func (r *RecipeRepo) List(ctx context.Context, filter RecipeFilter) ([]Recipe, error) {
	query := `SELECT ` + recipeColumns + ` FROM recipes WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter.CreatorID != 0 {
		query += fmt.Sprintf(" AND creator_id = $%d", argIdx)
		args = append(args, filter.CreatorID)
		argIdx++
	}

	if len(filter.SuitableFor) > 0 {
		query += fmt.Sprintf(" AND suitable_for && $%d::text[]", argIdx)
		args = append(args, pq.Array(filter.SuitableFor))
		argIdx++
	}

	if filter.Search != "" {
		query += fmt.Sprintf(` AND (
			LOWER(title) LIKE $%d OR
			EXISTS (SELECT 1 FROM unnest(ingredients) AS ing WHERE LOWER(ing) LIKE $%d)
		)`, argIdx, argIdx)
		args = append(args, "%"+escapeLike(strings.ToLower(filter.Search))+"%")
		argIdx++
	}

	switch filter.Sort {
	case SortPopularity:
		query += " ORDER BY popularity DESC, created_at DESC"
	case SortPrepTime:
		query += " ORDER BY prep_time ASC, created_at DESC"
	default:
		query += " ORDER BY created_at DESC, id DESC"
	}

	if filter.Limit != NoLimit {
		limit := filter.Limit
		if limit < 1 {
			limit = defaultRecipeLimit
		}
		if limit > maxRecipeLimit {
			limit = maxRecipeLimit
		}
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, limit)
	}

	recipes := []Recipe{}
	if err := r.db.SelectContext(ctx, &recipes, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list recipes: %w", err)
	}
	return recipes, nil
}

// Update overwrites the editable fields of an existing recipe
func (r *RecipeRepo) Update(ctx context.Context, recipe *Recipe) error {
	query := `
		UPDATE recipes SET
			title = $2,
			description = $3,
			ingredients = $4,
			instructions = $5,
			prep_time = $6,
			difficulty = $7,
			suitable_for = $8,
			image_url = $9,
			updated_at = NOW()
		WHERE id = $1
		RETURNING popularity, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		recipe.ID,
		recipe.Title,
		recipe.Description,
		pq.Array([]string(recipe.Ingredients)),
		recipe.Instructions,
		recipe.PrepTime,
		recipe.Difficulty,
		pq.Array([]string(recipe.SuitableFor)),
		recipe.ImageURL,
	).Scan(&recipe.Popularity, &recipe.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrRecipeNotFound
		}
		return fmt.Errorf("failed to update recipe: %w", err)
	}
	return nil
}

// Delete removes the recipe, its votes (by cascade) and its entry in the
// creator's recipe list.
func (r *RecipeRepo) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var creatorID int64
	err = tx.QueryRowxContext(ctx, `DELETE FROM recipes WHERE id = $1 RETURNING creator_id`, id).Scan(&creatorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrRecipeNotFound
		}
		return fmt.Errorf("failed to delete recipe: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET recipe_ids = array_remove(recipe_ids, $1), updated_at = NOW() WHERE id = $2`,
		id, creatorID,
	); err != nil {
		return fmt.Errorf("failed to unlink recipe from creator: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Vote casts value for (userID, recipeID) and recomputes the recipe's
// popularity. Casting the same value twice removes the vote; casting the
// opposite value flips it. The recipe row is locked for the duration so
// concurrent votes on the same recipe serialize.
func (r *RecipeRepo) Vote(ctx context.Context, userID, recipeID int64, value int) (*VoteResult, error) {
	if value != 1 && value != -1 {
		return nil, ErrInvalidVote
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var lockedID int64
	if err := tx.GetContext(ctx, &lockedID, `SELECT id FROM recipes WHERE id = $1 FOR UPDATE`, recipeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecipeNotFound
		}
		return nil, fmt.Errorf("failed to lock recipe: %w", err)
	}

	result := &VoteResult{RecipeID: recipeID}

	var current int
	err = tx.GetContext(ctx, &current,
		`SELECT value FROM recipe_votes WHERE user_id = $1 AND recipe_id = $2`, userID, recipeID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx,
			`INSERT INTO recipe_votes (user_id, recipe_id, value) VALUES ($1, $2, $3)`,
			userID, recipeID, value)
		result.UserVote = value
	case err != nil:
		return nil, fmt.Errorf("failed to read vote: %w", err)
	case current == value:
		result.Previous = current
		_, err = tx.ExecContext(ctx,
			`DELETE FROM recipe_votes WHERE user_id = $1 AND recipe_id = $2`, userID, recipeID)
		result.UserVote = 0
	default:
		result.Previous = current
		_, err = tx.ExecContext(ctx,
			`UPDATE recipe_votes SET value = $3, updated_at = NOW() WHERE user_id = $1 AND recipe_id = $2`,
			userID, recipeID, value)
		result.UserVote = value
	}
	if err != nil {
		return nil, fmt.Errorf("failed to write vote: %w", err)
	}

	err = tx.GetContext(ctx, &result.Popularity, `
		UPDATE recipes
		SET popularity = (SELECT COALESCE(SUM(value), 0) FROM recipe_votes WHERE recipe_id = $1)
		WHERE id = $1
		RETURNING popularity
	`, recipeID)
	if err != nil {
		return nil, fmt.Errorf("failed to recompute popularity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return result, nil
}

// GetUserVote returns the user's current vote on a recipe, or 0.
func (r *RecipeRepo) GetUserVote(ctx context.Context, userID, recipeID int64) (int, error) {
	var value int
	err := r.db.GetContext(ctx, &value,
		`SELECT value FROM recipe_votes WHERE user_id = $1 AND recipe_id = $2`, userID, recipeID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get vote: %w", err)
	}
	return value, nil
}
