package domain

import "time"

// Profile is the user account as seen by the helpdesk.
type Profile struct {
	ID           string
	Username     string
	Email        string
	FullName     string
	IsTechnician bool
	IsAdmin      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Technician holds technician-specific data, keyed by the profile id.
// Username and FullName are filled by directory queries.
type Technician struct {
	UserID           string
	Username         string
	FullName         string
	Bio              string
	Specialties      []string
	IsAvailable      bool
	AverageRating    float64
	ReviewCount      int
	CompletedTickets int
	ExperienceYears  int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ApplyRating folds a new rating into the running average.
func (t *Technician) ApplyRating(rating int) {
	total := t.AverageRating*float64(t.ReviewCount) + float64(rating)
	t.ReviewCount++
	t.AverageRating = total / float64(t.ReviewCount)
}
