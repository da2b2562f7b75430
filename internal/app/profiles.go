package app

import (
	"context"

	"cybersensei-service/internal/domain"
)

// ProfileService handles the lazy profile row created at registration.
type ProfileService struct {
	profiles ProfileStore
}

func NewProfileService(profiles ProfileStore) *ProfileService {
	return &ProfileService{profiles: profiles}
}

// Ensure inserts the profile row if absent. Idempotent: a repeated
// registration call leaves the existing row untouched.
func (s *ProfileService) Ensure(ctx context.Context, userID, username string) error {
	return s.profiles.Ensure(ctx, domain.Profile{ID: userID, Username: username})
}

// Get returns the learner's profile.
func (s *ProfileService) Get(ctx context.Context, userID string) (domain.Profile, error) {
	return s.profiles.GetProfile(ctx, userID)
}
