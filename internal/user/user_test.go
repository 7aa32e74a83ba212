package user

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/welldanyogia/recetas/backend/internal/api"
	"github.com/welldanyogia/recetas/backend/internal/auth"
	appctx "github.com/welldanyogia/recetas/backend/internal/context"
	"github.com/welldanyogia/recetas/backend/internal/repository"
)

// mockUserRepo implements the profile subset of repository.UserRepository.
// Calling any other method panics.
type mockUserRepo struct {
	repository.UserRepository
	mu    sync.Mutex
	users map[int64]*repository.User
}

func newMockUserRepo(users ...*repository.User) *mockUserRepo {
	m := &mockUserRepo{users: make(map[int64]*repository.User)}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *mockUserRepo) GetByID(_ context.Context, id int64) (*repository.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserRepo) List(_ context.Context) ([]repository.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []repository.User{}
	for id := int64(1); id <= int64(len(m.users)); id++ {
		if u, ok := m.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (m *mockUserRepo) UpdateProfile(_ context.Context, id int64, upd repository.ProfileUpdate) (*repository.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	if upd.Name != nil {
		u.Name = *upd.Name
	}
	if upd.Avatar != nil {
		u.Avatar = *upd.Avatar
	}
	if upd.Bio != nil {
		u.Bio = *upd.Bio
	}
	cp := *u
	return &cp, nil
}

func testUsers() []*repository.User {
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	return []*repository.User{
		{ID: 1, Name: "Ana", Email: "ana@example.com", IsVerified: true, Avatar: "avatar1", CreatedAt: created},
		{ID: 2, Name: "Luis", Email: "luis@example.com", Avatar: "avatar2", RecipeIDs: []int64{7}, CreatedAt: created},
	}
}

func strPtr(s string) *string { return &s }

// Feature: user-profiles, Property 1: Only the owner can edit a profile
// *For any* caller and target ids that differ, Update fails with Forbidden
// and leaves the profile unchanged.
func TestProperty1_OnlyOwnerCanEdit(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		caller := rapid.Int64Range(1, 2).Draw(t, "caller")
		target := 3 - caller

		repo := newMockUserRepo(testUsers()...)
		svc := NewService(repo, nil)
		before, _ := repo.GetByID(context.Background(), target)

		_, err := svc.Update(context.Background(), caller, target, UpdateProfileRequest{Name: strPtr("Otro")})
		if !errors.Is(err, auth.ErrForbidden) {
			t.Fatalf("expected Forbidden, got %v", err)
		}
		after, _ := repo.GetByID(context.Background(), target)
		if after.Name != before.Name {
			t.Fatalf("profile changed: %q -> %q", before.Name, after.Name)
		}
	})
}

// Feature: user-profiles, Property 2: Avatar must be one of avatar1..avatar9
func TestProperty2_AvatarValidation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		avatar := rapid.OneOf(
			rapid.StringMatching(`avatar[1-9]`),
			rapid.StringMatching(`avatar(0|[1-9][0-9]|)`),
			rapid.StringMatching(`[a-z]{1,10}`),
		).Draw(t, "avatar")

		svc := NewService(newMockUserRepo(testUsers()...), nil)
		_, err := svc.Update(context.Background(), 1, 1, UpdateProfileRequest{Avatar: &avatar})

		valid := len(avatar) == 7 && strings.HasPrefix(avatar, "avatar") && avatar[6] >= '1' && avatar[6] <= '9'
		if valid && err != nil {
			t.Fatalf("avatar %q should be accepted: %v", avatar, err)
		}
		if !valid && !errors.Is(err, auth.ErrValidation) {
			t.Fatalf("avatar %q should be rejected, got %v", avatar, err)
		}
	})
}

func TestUpdate_BioLength(t *testing.T) {
	svc := NewService(newMockUserRepo(testUsers()...), nil)

	ok := strings.Repeat("ñ", MaxBioLength)
	u, err := svc.Update(context.Background(), 1, 1, UpdateProfileRequest{Bio: &ok})
	require.NoError(t, err)
	assert.Equal(t, ok, u.Bio)

	tooLong := strings.Repeat("a", MaxBioLength+1)
	_, err = svc.Update(context.Background(), 1, 1, UpdateProfileRequest{Bio: &tooLong})
	assert.ErrorIs(t, err, auth.ErrValidation)
}

func TestUpdate_SanitizesAndRejectsEmptyName(t *testing.T) {
	svc := NewService(newMockUserRepo(testUsers()...), nil)

	u, err := svc.Update(context.Background(), 1, 1, UpdateProfileRequest{
		Name: strPtr("<b>Ana María</b>"),
		Bio:  strPtr("Me gusta <script>x()</script>cocinar"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Ana María", u.Name)
	assert.Equal(t, "Me gusta cocinar", u.Bio)

	_, err = svc.Update(context.Background(), 1, 1, UpdateProfileRequest{Name: strPtr("   ")})
	assert.ErrorIs(t, err, auth.ErrValidation)

	_, err = svc.Update(context.Background(), 1, 1, UpdateProfileRequest{})
	assert.ErrorIs(t, err, auth.ErrValidation)
}

func TestGet_NotFound(t *testing.T) {
	svc := NewService(newMockUserRepo(), nil)
	_, err := svc.Get(context.Background(), 99)
	assert.ErrorIs(t, err, auth.ErrNotFound)
}

// passAs authenticates every request as userID.
func passAs(userID int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := appctx.WithPrincipal(r.Context(), appctx.Principal{UserID: userID})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func newTestRouter(callerID int64) chi.Router {
	r := chi.NewRouter()
	h := NewHandler(NewService(newMockUserRepo(testUsers()...), nil), nil)
	r.Route("/users", func(r chi.Router) {
		RegisterRoutes(r, h, passAs(callerID))
	})
	return r
}

func TestHandler_List(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(1).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var users []auth.UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &users))
	require.Len(t, users, 2)
	assert.Equal(t, []int64{}, users[0].RecipeIDs)
	assert.Equal(t, []int64{7}, users[1].RecipeIDs)
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestHandler_MeAndName(t *testing.T) {
	router := newTestRouter(2)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/me", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"Luis"`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/1/name", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":1,"name":"Ana"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/42", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_Update(t *testing.T) {
	router := newTestRouter(1)

	body := bytes.NewBufferString(`{"avatar":"avatar5","bio":"Hola"}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/users/1", body))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"avatar":"avatar5"`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/users/2", bytes.NewBufferString(`{"name":"X"}`)))
	require.Equal(t, http.StatusForbidden, rec.Code)
	var errBody api.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errBody))
	assert.Equal(t, auth.CodeForbidden, errBody.Code)
	assert.Equal(t, http.StatusForbidden, errBody.Status)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/users/1", bytes.NewBufferString(`{bad`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
