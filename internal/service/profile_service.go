package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// ProfileService manages profiles and the technician directory.
type ProfileService struct {
	repos      repository.Repositories
	tx         repository.TxManager
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        Clock
}

// ProfileDependencies bundles collaborators for the profile service.
type ProfileDependencies struct {
	Repos      repository.Repositories
	Tx         repository.TxManager
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Clock      Clock
}

// ProfileInput describes a profile. ID may carry the identity provider's subject.
type ProfileInput struct {
	ID       string
	Username string
	Email    string
	FullName string
	IsAdmin  bool
}

// TechnicianProfileInput is the technician-editable part of a directory entry.
type TechnicianProfileInput struct {
	Bio             string
	Specialties     []string
	ExperienceYears int
}

// TechnicianDirectoryFilter narrows the directory.
type TechnicianDirectoryFilter struct {
	AvailableOnly bool
	Specialty     *string
	SearchTerm    *string
	Limit         int
	Offset        int
}

// TechnicianDetail is a directory entry with its latest reviews.
type TechnicianDetail struct {
	Technician *domain.Technician
	Reviews    []domain.Review
}

const technicianReviewLimit = 10

// NewProfileService constructs the service.
func NewProfileService(deps ProfileDependencies) *ProfileService {
	return &ProfileService{
		repos:      deps.Repos,
		tx:         deps.Tx,
		dispatcher: deps.Dispatcher,
		logger:     loggerOrNop(deps.Logger),
		now:        clockOrDefault(deps.Clock),
	}
}

// CreateProfile registers a profile.
func (s *ProfileService) CreateProfile(ctx context.Context, input ProfileInput) (*domain.Profile, error) {
	profile := &domain.Profile{
		ID:       strings.TrimSpace(input.ID),
		Username: strings.TrimSpace(input.Username),
		Email:    strings.ToLower(strings.TrimSpace(input.Email)),
		FullName: strings.TrimSpace(input.FullName),
		IsAdmin:  input.IsAdmin,
	}
	if err := validateProfile(profile); err != nil {
		return nil, err
	}
	err := s.repos.Profiles.Create(ctx, profile)
	if errors.Is(err, repository.ErrConflict) {
		return nil, apperrors.NewConflict("username or email already registered", map[string]any{"username": profile.Username})
	}
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("profile created", zap.String("user_id", profile.ID), zap.String("username", profile.Username))
	return profile, nil
}

// GetProfile returns a profile by id.
func (s *ProfileService) GetProfile(ctx context.Context, id string) (*domain.Profile, error) {
	profile, err := s.repos.Profiles.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "profile", id)
	}
	return profile, nil
}

// UpdateProfile edits the caller's own profile.
func (s *ProfileService) UpdateProfile(ctx context.Context, identity domain.Identity, input ProfileInput) (*domain.Profile, error) {
	if err := requireIdentity(identity); err != nil {
		return nil, err
	}
	profile, err := s.GetProfile(ctx, identity.ActorID)
	if err != nil {
		return nil, err
	}
	if v := strings.TrimSpace(input.Username); v != "" {
		profile.Username = v
	}
	if v := strings.TrimSpace(input.Email); v != "" {
		profile.Email = strings.ToLower(v)
	}
	if v := strings.TrimSpace(input.FullName); v != "" {
		profile.FullName = v
	}
	if err := validateProfile(profile); err != nil {
		return nil, err
	}
	err = s.repos.Profiles.Update(ctx, profile)
	if errors.Is(err, repository.ErrConflict) {
		return nil, apperrors.NewConflict("username or email already registered", map[string]any{"username": profile.Username})
	}
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return profile, nil
}

func validateProfile(profile *domain.Profile) error {
	details := map[string]any{}
	if profile.Username == "" {
		details["username"] = "required"
	}
	if _, err := mail.ParseAddress(profile.Email); err != nil {
		details["email"] = "invalid email address"
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid profile", details)
	}
	return nil
}

// SetTechnicianFlag toggles the technician role. Enabling it creates the
// technician record in the same transaction; disabling it hides the
// technician from the directory and keeps the record for history.
func (s *ProfileService) SetTechnicianFlag(ctx context.Context, identity domain.Identity, userID string, enabled bool) (*domain.Profile, error) {
	if !identity.IsAdmin() {
		return nil, apperrors.NewUnauthorized("only administrators may change roles")
	}
	var profile *domain.Profile
	err := s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Profiles.SetTechnicianFlag(ctx, userID, enabled); err != nil {
			return err
		}
		if enabled {
			if err := repos.Technicians.Ensure(ctx, userID); err != nil {
				return err
			}
		} else if err := repos.Technicians.SetAvailability(ctx, userID, false); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		var err error
		profile, err = repos.Profiles.GetByID(ctx, userID)
		return err
	})
	if err != nil {
		return nil, lookupError(err, "profile", userID)
	}

	s.logger.Info("technician flag changed", zap.String("user_id", userID), zap.Bool("enabled", enabled))
	if enabled {
		publishEvent(ctx, s.dispatcher, s.now, events.Event{
			Type:        events.EventTechnicianEnabled,
			Actor:       events.ActorFrom(identity),
			RecipientID: strPtr(userID),
			Payload:     events.TechnicianEnabledPayload{UserID: userID},
		})
	}
	return profile, nil
}

// Directory lists technicians, available ones first.
func (s *ProfileService) Directory(ctx context.Context, filter TechnicianDirectoryFilter) ([]domain.Technician, error) {
	techs, err := s.repos.Technicians.List(ctx, repository.TechnicianFilter{
		AvailableOnly: filter.AvailableOnly,
		Specialty:     filter.Specialty,
		SearchTerm:    filter.SearchTerm,
		Limit:         filter.Limit,
		Offset:        filter.Offset,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return techs, nil
}

// Technician returns a directory entry with its most recent reviews.
func (s *ProfileService) Technician(ctx context.Context, userID string) (*TechnicianDetail, error) {
	tech, err := s.repos.Technicians.GetByUserID(ctx, userID)
	if err != nil {
		return nil, lookupError(err, "technician", userID)
	}
	reviews, err := s.repos.Reviews.ListByTechnician(ctx, userID, technicianReviewLimit, 0)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &TechnicianDetail{Technician: tech, Reviews: reviews}, nil
}

// SetAvailability lets a technician appear as (un)available.
func (s *ProfileService) SetAvailability(ctx context.Context, identity domain.Identity, available bool) (*domain.Technician, error) {
	if err := requireIdentity(identity); err != nil {
		return nil, err
	}
	if _, err := s.ownTechnician(ctx, identity); err != nil {
		return nil, err
	}
	if err := s.repos.Technicians.SetAvailability(ctx, identity.ActorID, available); err != nil {
		return nil, apperrors.MapError(err)
	}
	return s.ownTechnician(ctx, identity)
}

// UpdateTechnicianProfile edits the caller's directory entry.
func (s *ProfileService) UpdateTechnicianProfile(ctx context.Context, identity domain.Identity, input TechnicianProfileInput) (*domain.Technician, error) {
	if err := requireIdentity(identity); err != nil {
		return nil, err
	}
	if input.ExperienceYears < 0 {
		return nil, apperrors.NewValidationError("experience must not be negative", map[string]any{"experience_years": input.ExperienceYears})
	}
	tech, err := s.ownTechnician(ctx, identity)
	if err != nil {
		return nil, err
	}
	tech.Bio = strings.TrimSpace(input.Bio)
	tech.Specialties = normalizeSpecialties(input.Specialties)
	tech.ExperienceYears = input.ExperienceYears
	if err := s.repos.Technicians.Update(ctx, tech); err != nil {
		return nil, apperrors.MapError(err)
	}
	return s.ownTechnician(ctx, identity)
}

func (s *ProfileService) ownTechnician(ctx context.Context, identity domain.Identity) (*domain.Technician, error) {
	tech, err := s.repos.Technicians.GetByUserID(ctx, identity.ActorID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewUnauthorized("technician role required")
	}
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tech, nil
}

func normalizeSpecialties(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
