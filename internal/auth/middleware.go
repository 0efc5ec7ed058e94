package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

const identityKey = "auth_identity"

// AuthMiddleware validates bearer tokens and resolves the caller's identity.
type AuthMiddleware struct {
	tokens   *TokenManager
	profiles repository.ProfileRepository
}

// NewAuthMiddleware constructs middleware. When profiles is nil the token is
// trusted without a profile lookup.
func NewAuthMiddleware(tokens *TokenManager, profiles repository.ProfileRepository) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, profiles: profiles}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthenticated("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthenticated("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(strings.TrimSpace(parts[1]))
	if err != nil {
		return apperrors.NewUnauthenticated("invalid token")
	}
	identity := claims.Identity()

	if m.profiles != nil {
		profile, err := m.profiles.GetByID(c.UserContext(), identity.ActorID)
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewUnauthenticated("profile not found")
		}
		if err != nil {
			return apperrors.MapError(err)
		}
		// A revoked flag downgrades the token instead of rejecting it.
		if identity.Role == domain.RoleTechnician && !profile.IsTechnician {
			identity.Role = domain.RoleUser
		}
		if identity.Role == domain.RoleAdmin && !profile.IsAdmin {
			identity.Role = domain.RoleUser
		}
	}

	c.Locals(identityKey, identity)
	return c.Next()
}

// IdentityFromContext retrieves the authenticated actor.
func IdentityFromContext(c *fiber.Ctx) (domain.Identity, bool) {
	identity, ok := c.Locals(identityKey).(domain.Identity)
	return identity, ok && identity.ActorID != ""
}

// SetIdentity stores identity on the request. Tests use it to bypass tokens.
func SetIdentity(c *fiber.Ctx, identity domain.Identity) {
	c.Locals(identityKey, identity)
}
