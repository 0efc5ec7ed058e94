package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
)

type profileRepo struct{ s *Store }

func (r *profileRepo) Create(_ context.Context, profile *domain.Profile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, taken := r.s.profiles[profile.ID]; taken {
		return fmt.Errorf("%w: profiles_pkey", repository.ErrConflict)
	}
	for _, other := range r.s.profiles {
		if other.Username == profile.Username || other.Email == profile.Email {
			return fmt.Errorf("%w: profiles_username_key", repository.ErrConflict)
		}
	}
	now := r.s.now()
	if profile.ID == "" {
		profile.ID = newID()
	}
	profile.CreatedAt = now
	profile.UpdatedAt = now
	r.s.profiles[profile.ID] = *profile
	return nil
}

func (r *profileRepo) Update(_ context.Context, profile *domain.Profile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.profiles[profile.ID]
	if !ok {
		return repository.ErrNotFound
	}
	for id, other := range r.s.profiles {
		if id != profile.ID && (other.Username == profile.Username || other.Email == profile.Email) {
			return fmt.Errorf("%w: profiles_username_key", repository.ErrConflict)
		}
	}
	current.Username = profile.Username
	current.Email = profile.Email
	current.FullName = profile.FullName
	current.UpdatedAt = r.s.now()
	r.s.profiles[profile.ID] = current
	*profile = current
	return nil
}

func (r *profileRepo) GetByID(_ context.Context, id string) (*domain.Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	profile, ok := r.s.profiles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &profile, nil
}

func (r *profileRepo) GetByUsername(_ context.Context, username string) (*domain.Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, profile := range r.s.profiles {
		if profile.Username == username {
			return &profile, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *profileRepo) SetTechnicianFlag(_ context.Context, id string, isTechnician bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	profile, ok := r.s.profiles[id]
	if !ok {
		return repository.ErrNotFound
	}
	profile.IsTechnician = isTechnician
	profile.UpdatedAt = r.s.now()
	r.s.profiles[id] = profile
	return nil
}

type technicianRepo struct{ s *Store }

func (r *technicianRepo) Ensure(_ context.Context, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.technicians[userID]; ok {
		return nil
	}
	now := r.s.now()
	r.s.technicians[userID] = domain.Technician{UserID: userID, IsAvailable: true, CreatedAt: now, UpdatedAt: now}
	return nil
}

// withProfile joins the directory fields; callers hold the lock.
func (r *technicianRepo) withProfile(tech domain.Technician) (domain.Technician, bool) {
	profile, ok := r.s.profiles[tech.UserID]
	if !ok || !profile.IsTechnician {
		return tech, false
	}
	tech.Username = profile.Username
	tech.FullName = profile.FullName
	tech.Specialties = slices.Clone(tech.Specialties)
	return tech, true
}

func (r *technicianRepo) GetByUserID(_ context.Context, userID string) (*domain.Technician, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	tech, ok := r.s.technicians[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	tech, ok = r.withProfile(tech)
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &tech, nil
}

func (r *technicianRepo) Update(_ context.Context, tech *domain.Technician) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.technicians[tech.UserID]
	if !ok {
		return repository.ErrNotFound
	}
	current.Bio = tech.Bio
	current.Specialties = slices.Clone(tech.Specialties)
	current.ExperienceYears = tech.ExperienceYears
	current.IsAvailable = tech.IsAvailable
	current.UpdatedAt = r.s.now()
	r.s.technicians[tech.UserID] = current
	return nil
}

func (r *technicianRepo) List(_ context.Context, filter repository.TechnicianFilter) ([]domain.Technician, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Technician
	for _, tech := range r.s.technicians {
		tech, ok := r.withProfile(tech)
		if !ok {
			continue
		}
		if filter.AvailableOnly && !tech.IsAvailable {
			continue
		}
		if filter.Specialty != nil && strings.TrimSpace(*filter.Specialty) != "" &&
			!slices.Contains(tech.Specialties, strings.ToLower(strings.TrimSpace(*filter.Specialty))) {
			continue
		}
		if filter.SearchTerm != nil {
			term := strings.ToLower(strings.TrimSpace(*filter.SearchTerm))
			haystack := strings.ToLower(tech.FullName + " " + tech.Username + " " + tech.Bio)
			if term != "" && !strings.Contains(haystack, term) {
				continue
			}
		}
		out = append(out, tech)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsAvailable != out[j].IsAvailable {
			return out[i].IsAvailable
		}
		if out[i].AverageRating != out[j].AverageRating {
			return out[i].AverageRating > out[j].AverageRating
		}
		return out[i].Username < out[j].Username
	})
	return page(out, filter.Limit, filter.Offset), nil
}

func (r *technicianRepo) update(userID string, fn func(*domain.Technician)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	tech, ok := r.s.technicians[userID]
	if !ok {
		return repository.ErrNotFound
	}
	fn(&tech)
	tech.UpdatedAt = r.s.now()
	r.s.technicians[userID] = tech
	return nil
}

func (r *technicianRepo) SetAvailability(_ context.Context, userID string, available bool) error {
	return r.update(userID, func(t *domain.Technician) { t.IsAvailable = available })
}

func (r *technicianRepo) RecordRating(_ context.Context, userID string, rating int) error {
	return r.update(userID, func(t *domain.Technician) { t.ApplyRating(rating) })
}

func (r *technicianRepo) IncrementCompleted(_ context.Context, userID string) error {
	return r.update(userID, func(t *domain.Technician) { t.CompletedTickets++ })
}
