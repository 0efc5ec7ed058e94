package domain

// Role differentiates what an identity may do.
type Role string

const (
	RoleUser       Role = "USER"
	RoleTechnician Role = "TECHNICIAN"
	RoleAdmin      Role = "ADMIN"
)

// Identity is the authenticated actor passed explicitly to every operation.
type Identity struct {
	ActorID string
	Role    Role
}

// IsTechnician reports whether the identity acts as a technician.
func (i Identity) IsTechnician() bool {
	return i.Role == RoleTechnician
}

// IsAdmin reports whether the identity may administer the FAQ catalogue.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}
