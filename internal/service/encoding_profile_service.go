package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jmylchreest/transcodarr/internal/models"
	"github.com/jmylchreest/transcodarr/internal/repository"
)

// ErrProfileNotFound is returned when a profile lookup finds no row.
var ErrProfileNotFound = errors.New("encoding profile not found")

// ProfileService provides business logic for encoding profiles on top of
// repository.ProfileRepository, turning its nil-on-miss contract into the
// usual not-found error and adding the clone/default conveniences the API
// and CLI layers want without duplicating repository logic.
type ProfileService struct {
	repo   repository.ProfileRepository
	logger *slog.Logger
}

// NewProfileService creates a new profile service.
func NewProfileService(repo repository.ProfileRepository) *ProfileService {
	return &ProfileService{
		repo:   repo,
		logger: slog.Default(),
	}
}

// WithLogger sets the logger for the service.
func (s *ProfileService) WithLogger(logger *slog.Logger) *ProfileService {
	s.logger = logger
	return s
}

// Create creates a new encoding profile.
func (s *ProfileService) Create(ctx context.Context, profile *models.Profile) error {
	return s.repo.Create(ctx, profile)
}

// GetByID retrieves an encoding profile by ID.
func (s *ProfileService) GetByID(ctx context.Context, id models.ULID) (*models.Profile, error) {
	profile, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, ErrProfileNotFound
	}
	return profile, nil
}

// GetByName retrieves an encoding profile by name.
func (s *ProfileService) GetByName(ctx context.Context, name string) (*models.Profile, error) {
	profile, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, ErrProfileNotFound
	}
	return profile, nil
}

// GetAll retrieves all encoding profiles.
func (s *ProfileService) GetAll(ctx context.Context) ([]*models.Profile, error) {
	return s.repo.GetAll(ctx)
}

// GetDefault retrieves the default encoding profile.
func (s *ProfileService) GetDefault(ctx context.Context) (*models.Profile, error) {
	profile, err := s.repo.GetDefault(ctx)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, ErrProfileNotFound
	}
	return profile, nil
}

// Update updates an existing encoding profile.
func (s *ProfileService) Update(ctx context.Context, profile *models.Profile) error {
	existing, err := s.repo.GetByID(ctx, profile.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrProfileNotFound
	}
	return s.repo.Update(ctx, profile)
}

// Delete deletes an encoding profile by ID. The repository itself refuses
// the delete with models.ErrProfileInUse when the profile is still
// referenced by an active queue item, scan root, or folder watch.
func (s *ProfileService) Delete(ctx context.Context, id models.ULID) error {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrProfileNotFound
	}
	return s.repo.Delete(ctx, id)
}

// Count returns the total number of encoding profiles.
func (s *ProfileService) Count(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx)
}

// SetDefault sets a profile as the default, atomically unsetting the
// previous one.
func (s *ProfileService) SetDefault(ctx context.Context, id models.ULID) error {
	profile, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if profile == nil {
		return ErrProfileNotFound
	}
	return s.repo.SetDefault(ctx, id)
}

// Clone creates a copy of an existing profile under a new name. The clone
// is never itself the default, regardless of the source profile.
func (s *ProfileService) Clone(ctx context.Context, id models.ULID, newName string) (*models.Profile, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrProfileNotFound
	}

	clone := *existing
	clone.BaseModel = models.BaseModel{}
	clone.Name = newName
	clone.IsDefault = false

	if err := s.repo.Create(ctx, &clone); err != nil {
		return nil, err
	}
	return &clone, nil
}
