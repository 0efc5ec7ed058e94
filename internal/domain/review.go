package domain

import "time"

// Review is the owner's rating of a resolved ticket.
type Review struct {
	ID           string
	TicketID     string
	TechnicianID string
	UserID       string
	Rating       int
	Comment      string
	CreatedAt    time.Time
}
