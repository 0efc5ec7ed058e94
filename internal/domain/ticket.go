package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusAssigned   TicketStatus = "assigned"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusCancelled  TicketStatus = "cancelled"
)

// Valid reports whether s is a known ticket status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusAssigned, TicketStatusInProgress, TicketStatusResolved, TicketStatusCancelled:
		return true
	}
	return false
}

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "low"
	TicketPriorityMedium   TicketPriority = "medium"
	TicketPriorityHigh     TicketPriority = "high"
	TicketPriorityCritical TicketPriority = "critical"
)

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityCritical:
		return true
	}
	return false
}

// TicketCategory classifies the reported problem.
type TicketCategory string

const (
	TicketCategoryHardware TicketCategory = "hardware"
	TicketCategorySoftware TicketCategory = "software"
	TicketCategoryNetwork  TicketCategory = "network"
	TicketCategoryOther    TicketCategory = "other"
)

// Valid reports whether c is a known category.
func (c TicketCategory) Valid() bool {
	switch c {
	case TicketCategoryHardware, TicketCategorySoftware, TicketCategoryNetwork, TicketCategoryOther:
		return true
	}
	return false
}

// Ticket is a user-filed support issue.
type Ticket struct {
	ID           string
	OwnerID      string
	TechnicianID *string
	Category     TicketCategory
	Priority     TicketPriority
	Status       TicketStatus
	Title        string
	Description  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ResolvedAt   *time.Time
}

// BoundTo reports whether the ticket is bound to the given technician.
func (t *Ticket) BoundTo(technicianID string) bool {
	return t.TechnicianID != nil && *t.TechnicianID == technicianID
}
