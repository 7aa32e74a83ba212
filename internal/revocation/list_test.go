package revocation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/welldanyogia/recetas/backend/internal/auth"
)

// mockRevokedTokenRepo is an in-memory RevokedTokenRepository
type mockRevokedTokenRepo struct {
	mu        sync.Mutex
	entries   map[string]time.Time
	failCheck error
}

func newMockRevokedTokenRepo() *mockRevokedTokenRepo {
	return &mockRevokedTokenRepo{entries: make(map[string]time.Time)}
}

func (m *mockRevokedTokenRepo) Revoke(_ context.Context, tokenHash string, _ int64, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[tokenHash]; !ok {
		m.entries[tokenHash] = expiresAt
	}
	return nil
}

func (m *mockRevokedTokenRepo) IsRevoked(_ context.Context, tokenHash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCheck != nil {
		return false, m.failCheck
	}
	_, ok := m.entries[tokenHash]
	return ok, nil
}

func (m *mockRevokedTokenRepo) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, exp := range m.entries {
		if exp.Before(now) {
			delete(m.entries, k)
			n++
		}
	}
	return n, nil
}

// Feature: token-revocation, Property 1: Revoked tokens are reported revoked
// *For any* set of tokens, exactly the revoked ones are reported as revoked,
// and revoking twice changes nothing.
func TestProperty1_RevokedTokensReported(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		repo := newMockRevokedTokenRepo()
		list := NewList(repo)
		ctx := context.Background()

		tokens := rapid.SliceOfNDistinct(rapid.StringMatching(`[A-Za-z0-9]{20,40}`), 1, 10, rapid.ID[string]).Draw(t, "tokens")
		revoked := make(map[string]bool)
		for _, tok := range tokens {
			if rapid.Bool().Draw(t, "revoke") {
				require.NoError(t, list.Revoke(ctx, tok, 1, time.Now().Add(time.Minute)))
				require.NoError(t, list.Revoke(ctx, tok, 1, time.Now().Add(time.Minute)))
				revoked[tok] = true
			}
		}

		for _, tok := range tokens {
			got, err := list.IsRevoked(ctx, tok)
			require.NoError(t, err)
			if got != revoked[tok] {
				t.Fatalf("token %q: expected revoked=%v, got %v", tok, revoked[tok], got)
			}
		}
		if len(repo.entries) != len(revoked) {
			t.Fatalf("expected %d entries, got %d", len(revoked), len(repo.entries))
		}
	})
}

func TestList_StoresHashNotToken(t *testing.T) {
	repo := newMockRevokedTokenRepo()
	list := NewList(repo)

	require.NoError(t, list.Revoke(context.Background(), "raw-token", 3, time.Now().Add(time.Minute)))

	_, rawStored := repo.entries["raw-token"]
	assert.False(t, rawStored)
	_, hashStored := repo.entries[auth.HashToken("raw-token")]
	assert.True(t, hashStored)
}

func TestList_Purge(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	repo := newMockRevokedTokenRepo()
	list := NewList(repo, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	require.NoError(t, list.Revoke(ctx, "old", 1, now.Add(-time.Second)))
	require.NoError(t, list.Revoke(ctx, "fresh", 1, now.Add(time.Minute)))

	n, err := list.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	revoked, err := list.IsRevoked(ctx, "fresh")
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestList_RepositoryErrorPropagates(t *testing.T) {
	repo := newMockRevokedTokenRepo()
	repo.failCheck = errors.New("connection reset")
	list := NewList(repo)

	_, err := list.IsRevoked(context.Background(), "tok")
	assert.Error(t, err)
}

func TestList_UnreachableRedisFallsBackToPostgres(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	repo := newMockRevokedTokenRepo()
	list := NewList(repo, WithRedis(client))
	ctx := context.Background()

	require.NoError(t, list.Revoke(ctx, "tok", 1, time.Now().Add(time.Minute)))

	revoked, err := list.IsRevoked(ctx, "tok")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = list.IsRevoked(ctx, "other")
	require.NoError(t, err)
	assert.False(t, revoked)
}
