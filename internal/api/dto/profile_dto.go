package dto

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// CreateProfileRequest registers a profile. ID may carry the identity
// provider's subject.
type CreateProfileRequest struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	IsAdmin  bool   `json:"is_admin"`
}

// UpdateProfileRequest edits the caller's profile.
type UpdateProfileRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

// TechnicianFlagRequest toggles the technician role.
type TechnicianFlagRequest struct {
	Enabled bool `json:"enabled"`
}

// AvailabilityRequest toggles a technician's availability.
type AvailabilityRequest struct {
	Available bool `json:"available"`
}

// TechnicianProfileRequest edits a technician's directory entry.
type TechnicianProfileRequest struct {
	Bio             string   `json:"bio"`
	Specialties     []string `json:"specialties"`
	ExperienceYears int      `json:"experience_years"`
}

// ProfileResponse represents a profile.
type ProfileResponse struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	IsTechnician bool      `json:"is_technician"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
}

// TechnicianResponse is a directory entry.
type TechnicianResponse struct {
	UserID           string   `json:"user_id"`
	Username         string   `json:"username"`
	FullName         string   `json:"full_name"`
	Bio              string   `json:"bio"`
	Specialties      []string `json:"specialties"`
	IsAvailable      bool     `json:"is_available"`
	AverageRating    float64  `json:"average_rating"`
	ReviewCount      int      `json:"review_count"`
	CompletedTickets int      `json:"completed_tickets"`
	ExperienceYears  int      `json:"experience_years"`
}

// TechnicianDetailResponse adds the latest reviews to a directory entry.
type TechnicianDetailResponse struct {
	TechnicianResponse
	Reviews []ReviewResponse `json:"reviews"`
}

// NewProfileResponse maps a profile.
func NewProfileResponse(p *domain.Profile) ProfileResponse {
	return ProfileResponse{
		ID:           p.ID,
		Username:     p.Username,
		Email:        p.Email,
		FullName:     p.FullName,
		IsTechnician: p.IsTechnician,
		IsAdmin:      p.IsAdmin,
		CreatedAt:    p.CreatedAt,
	}
}

// NewTechnicianResponse maps a directory entry.
func NewTechnicianResponse(t *domain.Technician) TechnicianResponse {
	specialties := t.Specialties
	if specialties == nil {
		specialties = []string{}
	}
	return TechnicianResponse{
		UserID:           t.UserID,
		Username:         t.Username,
		FullName:         t.FullName,
		Bio:              t.Bio,
		Specialties:      specialties,
		IsAvailable:      t.IsAvailable,
		AverageRating:    t.AverageRating,
		ReviewCount:      t.ReviewCount,
		CompletedTickets: t.CompletedTickets,
		ExperienceYears:  t.ExperienceYears,
	}
}
