// Package revocation holds the access-token denylist shared by both services.
// Postgres is the source of truth; Redis, when configured, answers positive
// lookups without a database round trip.
package revocation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/welldanyogia/recetas/backend/internal/auth"
	"github.com/welldanyogia/recetas/backend/internal/metrics"
	"github.com/welldanyogia/recetas/backend/internal/repository"
)

const keyPrefix = "recetas:revoked:"

// List stores revoked access tokens by their SHA-256 hash.
type List struct {
	repo   repository.RevokedTokenRepository
	cache  *redis.Client
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a List.
type Option func(*List)

// WithRedis enables the Redis cache.
func WithRedis(client *redis.Client) Option {
	return func(l *List) { l.cache = client }
}

// WithLogger sets the logger used for cache failures.
func WithLogger(log *slog.Logger) Option {
	return func(l *List) { l.logger = log }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *List) { l.now = now }
}

// NewList creates a revocation list backed by repo.
func NewList(repo repository.RevokedTokenRepository, opts ...Option) *List {
	l := &List{
		repo:   repo,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func cacheKey(hash string) string {
	return keyPrefix + hash
}

// Revoke adds token to the list until expiresAt. Repeating it is harmless.
func (l *List) Revoke(ctx context.Context, token string, userID int64, expiresAt time.Time) error {
	hash := auth.HashToken(token)
	if err := l.repo.Revoke(ctx, hash, userID, expiresAt); err != nil {
		return err
	}

	if l.cache != nil {
		ttl := expiresAt.Sub(l.now())
		if ttl > 0 {
			if err := l.cache.Set(ctx, cacheKey(hash), "1", ttl).Err(); err != nil {
				l.logger.Warn("failed to cache revoked token", "error", err)
			}
		}
	}
	return nil
}

// IsRevoked reports whether token is on the list. A Redis failure falls back
// to Postgres; a Postgres failure is returned.
func (l *List) IsRevoked(ctx context.Context, token string) (bool, error) {
	hash := auth.HashToken(token)

	if l.cache != nil {
		start := time.Now()
		err := l.cache.Get(ctx, cacheKey(hash)).Err()
		metrics.ObserveRevocationCheck("redis", time.Since(start))
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, redis.Nil):
		default:
			l.logger.Warn("revocation cache lookup failed", "error", err)
		}
	}

	start := time.Now()
	revoked, err := l.repo.IsRevoked(ctx, hash)
	metrics.ObserveRevocationCheck("postgres", time.Since(start))
	return revoked, err
}

// Purge deletes entries whose tokens have expired and returns how many went.
func (l *List) Purge(ctx context.Context) (int64, error) {
	return l.repo.PurgeExpired(ctx, l.now())
}
