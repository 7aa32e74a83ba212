// Package user serves public profiles and self-service profile edits.
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/welldanyogia/recetas/backend/internal/auth"
	"github.com/welldanyogia/recetas/backend/internal/repository"
	"github.com/welldanyogia/recetas/backend/internal/sanitizer"
)

// MaxBioLength is the longest bio accepted, in characters.
const MaxBioLength = 500

var avatarPattern = regexp.MustCompile(`^avatar[1-9]$`)

const (
	msgUserNotFound  = "Usuario no encontrado."
	msgForbidden     = "No puedes modificar el perfil de otro usuario."
	msgEmptyName     = "El nombre no puede estar vacío."
	msgInvalidAvatar = "Avatar inválido. Usa uno de avatar1 a avatar9."
	msgBioTooLong    = "La biografía no puede superar los 500 caracteres."
	msgNoChanges     = "No se proporcionaron cambios."
)

// UpdateProfileRequest carries the optional fields of a profile edit.
type UpdateProfileRequest struct {
	Name   *string `json:"name"`
	Avatar *string `json:"avatar"`
	Bio    *string `json:"bio"`
}

// NameResponse is the minimal public view of a user.
type NameResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Service reads and edits user profiles
type Service struct {
	repo      repository.UserRepository
	sanitizer *sanitizer.TextSanitizer
	logger    *slog.Logger
}

// NewService creates a new profile service
func NewService(repo repository.UserRepository, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		repo:      repo,
		sanitizer: sanitizer.NewTextSanitizer(),
		logger:    log,
	}
}

func flowError(kind error, msg string) *auth.Error {
	return &auth.Error{Kind: kind, Message: msg}
}

// List returns every user's public profile.
func (s *Service) List(ctx context.Context) ([]auth.UserResponse, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	out := make([]auth.UserResponse, 0, len(users))
	for i := range users {
		out = append(out, auth.NewUserResponse(&users[i]))
	}
	return out, nil
}

// Get returns the public profile of id.
func (s *Service) Get(ctx context.Context, id int64) (*auth.UserResponse, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, flowError(auth.ErrNotFound, msgUserNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	resp := auth.NewUserResponse(u)
	return &resp, nil
}

// GetName returns only the id and name of a user.
func (s *Service) GetName(ctx context.Context, id int64) (*NameResponse, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &NameResponse{ID: u.ID, Name: u.Name}, nil
}

// Update edits the profile of id on behalf of callerID. Only the owner may
// edit a profile.
func (s *Service) Update(ctx context.Context, callerID, id int64, req UpdateProfileRequest) (*auth.UserResponse, error) {
	if callerID != id {
		return nil, flowError(auth.ErrForbidden, msgForbidden)
	}

	upd, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	u, err := s.repo.UpdateProfile(ctx, id, upd)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, flowError(auth.ErrNotFound, msgUserNotFound)
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	s.logger.Info("profile updated", "user_id", id)
	resp := auth.NewUserResponse(u)
	return &resp, nil
}

func (s *Service) validate(req UpdateProfileRequest) (repository.ProfileUpdate, error) {
	var upd repository.ProfileUpdate

	if req.Name == nil && req.Avatar == nil && req.Bio == nil {
		return upd, flowError(auth.ErrValidation, msgNoChanges)
	}

	if req.Name != nil {
		name := s.sanitizer.Clean(*req.Name)
		if name == "" {
			return upd, flowError(auth.ErrValidation, msgEmptyName)
		}
		upd.Name = &name
	}

	if req.Avatar != nil {
		avatar := strings.TrimSpace(*req.Avatar)
		if !avatarPattern.MatchString(avatar) {
			return upd, flowError(auth.ErrValidation, msgInvalidAvatar)
		}
		upd.Avatar = &avatar
	}

	if req.Bio != nil {
		bio := s.sanitizer.Clean(*req.Bio)
		if utf8.RuneCountInString(bio) > MaxBioLength {
			return upd, flowError(auth.ErrValidation, msgBioTooLong)
		}
		upd.Bio = &bio
	}

	return upd, nil
}
