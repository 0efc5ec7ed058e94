package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository/memory"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

func TestIssueAndParseToken(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	token, expiresAt, err := tm.IssueToken(domain.Identity{ActorID: "u-1", Role: domain.RoleTechnician})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), expiresAt, time.Minute)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, domain.Identity{ActorID: "u-1", Role: domain.RoleTechnician}, claims.Identity())

	_, err = NewTokenManager("other", 5).ParseToken(token)
	assert.Error(t, err)

	_, _, err = tm.IssueToken(domain.Identity{ActorID: "u-1", Role: "ROOT"})
	assert.Error(t, err)
}

func TestParseTokenRejectsExpiredAndForeignAlgorithms(t *testing.T) {
	tm := NewTokenManager("secret", 1)
	tm.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _, err := tm.IssueToken(domain.Identity{ActorID: "u-1", Role: domain.RoleUser})
	require.NoError(t, err)
	tm.now = time.Now
	_, err = tm.ParseToken(expired)
	assert.Error(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{Role: domain.RoleAdmin, RegisteredClaims: jwt.RegisteredClaims{Subject: "u-1"}})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = tm.ParseToken(unsigned)
	assert.Error(t, err)
}

func newTestApp(mw *AuthMiddleware, guards ...fiber.Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			domainErr := apperrors.ToDomainError(err)
			return c.Status(domainErr.HTTPStatus).SendString(domainErr.Code)
		},
	})
	handlers := append([]fiber.Handler{mw.Handle}, guards...)
	handlers = append(handlers, func(c *fiber.Ctx) error {
		identity, _ := IdentityFromContext(c)
		return c.SendString(identity.ActorID + ":" + string(identity.Role))
	})
	app.Get("/me", handlers...)
	return app
}

func get(t *testing.T, app *fiber.App, token string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	buf := make([]byte, 256)
	n, _ := resp.Body.Read(buf)
	return resp.StatusCode, string(buf[:n])
}

func TestMiddlewareResolvesIdentity(t *testing.T) {
	store := memory.NewStore()
	repos := store.Repositories()
	ctx := context.Background()
	profile := &domain.Profile{Username: "tariq", Email: "tariq@fixit.local", IsTechnician: true}
	require.NoError(t, repos.Profiles.Create(ctx, profile))

	tm := NewTokenManager("secret", 5)
	app := newTestApp(NewAuthMiddleware(tm, repos.Profiles), RequireTechnician())

	status, _ := get(t, app, "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = get(t, app, "garbage")
	assert.Equal(t, http.StatusUnauthorized, status)

	token, _, err := tm.IssueToken(domain.Identity{ActorID: profile.ID, Role: domain.RoleTechnician})
	require.NoError(t, err)
	status, body := get(t, app, token)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, profile.ID+":TECHNICIAN", body)

	// Revoking the flag downgrades the token, so the technician guard refuses it.
	require.NoError(t, repos.Profiles.SetTechnicianFlag(ctx, profile.ID, false))
	status, body = get(t, app, token)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, apperrors.CodeUnauthorized, body)

	ghost, _, err := tm.IssueToken(domain.Identity{ActorID: "ghost", Role: domain.RoleUser})
	require.NoError(t, err)
	status, _ = get(t, app, ghost)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestRequireAdmin(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	app := newTestApp(NewAuthMiddleware(tm, nil), RequireAdmin())

	user, _, err := tm.IssueToken(domain.Identity{ActorID: "u-1", Role: domain.RoleUser})
	require.NoError(t, err)
	status, _ := get(t, app, user)
	assert.Equal(t, http.StatusForbidden, status)

	admin, _, err := tm.IssueToken(domain.Identity{ActorID: "a-1", Role: domain.RoleAdmin})
	require.NoError(t, err)
	status, _ = get(t, app, admin)
	assert.Equal(t, http.StatusOK, status)
}
