package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RevokedTokenRepository persists the access-token denylist.
type RevokedTokenRepository interface {
	// Revoke records tokenHash as revoked until expiresAt. Revoking the same token twice is a no-op.
	Revoke(ctx context.Context, tokenHash string, userID int64, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenHash string) (bool, error)
	// PurgeExpired deletes entries whose token would have expired by now anyway.
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

type revokedTokenRepository struct {
	pool *pgxpool.Pool
}

// NewRevokedTokenRepository creates a new RevokedTokenRepository instance
func NewRevokedTokenRepository(pool *pgxpool.Pool) RevokedTokenRepository {
	return &revokedTokenRepository{pool: pool}
}

func (r *revokedTokenRepository) Revoke(ctx context.Context, tokenHash string, userID int64, expiresAt time.Time) error {
	query := `
		INSERT INTO revoked_tokens (token_hash, user_id, expires_at)
		VALUES ($1, NULLIF($2::BIGINT, 0), $3)
		ON CONFLICT (token_hash) DO NOTHING
	`
	if _, err := r.pool.Exec(ctx, query, tokenHash, userID, expiresAt); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

func (r *revokedTokenRepository) IsRevoked(ctx context.Context, tokenHash string) (bool, error) {
	var revoked bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM revoked_tokens WHERE token_hash = $1)`, tokenHash,
	).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("failed to check revocation: %w", err)
	}
	return revoked, nil
}

func (r *revokedTokenRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM revoked_tokens WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to purge revoked tokens: %w", err)
	}
	return result.RowsAffected(), nil
}
