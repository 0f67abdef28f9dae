package user

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/radif/profilepic/internal/avatar"
)

// Store is the persistence the service depends on; *Repository implements it.
type Store interface {
	GetByID(ctx context.Context, id string) (*User, error)
	SetAvatarURL(ctx context.Context, id, url string) (*User, string, error)
}

// Avatars stores normalized profile pictures; *avatar.Uploader implements it.
type Avatars interface {
	UploadReader(ctx context.Context, r io.Reader) (string, error)
	Delete(ctx context.Context, url string) error
}

// Service contains business logic for user profiles.
type Service struct {
	repo    Store
	avatars Avatars
}

// NewService creates a new user Service.
func NewService(repo Store, avatars Avatars) *Service {
	return &Service{repo: repo, avatars: avatars}
}

// GetByID returns a user by their UUID.
func (s *Service) GetByID(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// UpdateAvatar runs the upload pipeline on r and points the user's profile at
// the resulting URL. The previous picture is removed when it lives in the
// managed bucket.
func (s *Service) UpdateAvatar(ctx context.Context, userID string, r io.Reader) (*User, error) {
	if _, err := s.repo.GetByID(ctx, userID); err != nil {
		return nil, err
	}

	url, err := s.avatars.UploadReader(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("upload avatar: %w", err)
	}

	u, previous, err := s.repo.SetAvatarURL(ctx, userID, url)
	if err != nil {
		if delErr := s.avatars.Delete(ctx, url); delErr != nil {
			log.Error().Err(delErr).Str("url", url).Msg("user: remove orphaned avatar")
		}
		return nil, fmt.Errorf("save avatar url: %w", err)
	}

	if previous != "" && previous != url {
		err := s.avatars.Delete(ctx, previous)
		if err != nil && !errors.Is(err, avatar.ErrForeignObject) {
			log.Warn().Err(err).Str("url", previous).Str("user_id", userID).Msg("user: remove previous avatar")
		}
	}

	return u, nil
}

// IsNotFound returns true when the error indicates a user was not found.
func (s *Service) IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
