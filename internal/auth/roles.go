package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/domain"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// RequireIdentity ensures a caller is authenticated.
func RequireIdentity() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := IdentityFromContext(c); !ok {
			return apperrors.NewUnauthenticated("authentication required")
		}
		return c.Next()
	}
}

// RequireRole ensures the caller acts with one of the allowed roles.
func RequireRole(allowed ...domain.Role) fiber.Handler {
	allowedSet := make(map[domain.Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		identity, ok := IdentityFromContext(c)
		if !ok {
			return apperrors.NewUnauthenticated("authentication required")
		}
		if _, exists := allowedSet[identity.Role]; !exists {
			return apperrors.NewUnauthorized("insufficient role")
		}
		return c.Next()
	}
}

// RequireTechnician ensures the caller acts as a technician.
func RequireTechnician() fiber.Handler {
	return RequireRole(domain.RoleTechnician)
}

// RequireAdmin ensures the caller is an administrator.
func RequireAdmin() fiber.Handler {
	return RequireRole(domain.RoleAdmin)
}
