package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/faqseed"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/repository/memory"
	"github.com/spec-kit/helpdesk/internal/service"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type testServer struct {
	app     *fiber.App
	tokens  *auth.TokenManager
	profile *service.ProfileService

	owner domain.Identity
	tech  domain.Identity
	admin domain.Identity
}

func newTestServer(t *testing.T, deps map[string]handlers.Pinger) *testServer {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	repos := store.Repositories()
	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()

	faq := service.NewFAQService(service.FAQDependencies{Repos: repos, Tx: store})
	seed, err := faqseed.Default()
	require.NoError(t, err)
	_, err = faq.Import(ctx, seed)
	require.NoError(t, err)

	chat := service.NewChatService(service.ChatDependencies{Repos: repos, Tx: store, Dispatcher: dispatcher, Corpus: faq, Metrics: metrics})
	tickets := service.NewTicketService(service.TicketDependencies{Repos: repos, Tx: store, Dispatcher: dispatcher, Metrics: metrics})
	assistance := service.NewAssistanceService(service.AssistanceDependencies{Repos: repos, Tx: store, Chat: chat, Dispatcher: dispatcher, Metrics: metrics})
	profiles := service.NewProfileService(service.ProfileDependencies{Repos: repos, Tx: store, Dispatcher: dispatcher})

	s := &testServer{tokens: auth.NewTokenManager("test-secret", 15), profile: profiles}
	s.admin = s.createProfile(t, "admin", domain.RoleAdmin)
	s.owner = s.createProfile(t, "olivia", domain.RoleUser)
	s.tech = s.createProfile(t, "tariq", domain.RoleTechnician)
	_, err = profiles.SetTechnicianFlag(ctx, s.admin, s.tech.ActorID, true)
	require.NoError(t, err)

	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), metrics, 0)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("helpdesk", "test", deps),
		Tickets:        handlers.NewTicketsHandler(tickets),
		Assistance:     handlers.NewAssistanceHandler(assistance),
		Chat:           handlers.NewChatHandler(chat),
		FAQ:            handlers.NewFAQHandler(faq),
		Profiles:       handlers.NewProfilesHandler(profiles),
		AuthMiddleware: auth.NewAuthMiddleware(s.tokens, repos.Profiles),
		Metrics:        metrics,
	})
	s.app = app
	return s
}

func (s *testServer) createProfile(t *testing.T, username string, role domain.Role) domain.Identity {
	t.Helper()
	p, err := s.profile.CreateProfile(context.Background(), service.ProfileInput{
		Username: username,
		Email:    username + "@fixit.local",
		FullName: username,
		IsAdmin:  role == domain.RoleAdmin,
	})
	require.NoError(t, err)
	return domain.Identity{ActorID: p.ID, Role: role}
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (s *testServer) do(t *testing.T, method, path string, identity *domain.Identity, body any) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(raw))
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if identity != nil {
		token, _, err := s.tokens.IssueToken(*identity)
		require.NoError(t, err)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env
}

func TestAssistanceFlowOverHTTP(t *testing.T) {
	s := newTestServer(t, nil)

	status, env := s.do(t, fiber.MethodPost, "/api/v1/assistance", &s.owner, map[string]any{
		"technician_id": s.tech.ActorID,
		"title":         "Printer jammed",
		"category":      "hardware",
		"priority":      "high",
	})
	require.Equal(t, fiber.StatusCreated, status)
	var created struct {
		Request struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"request"`
		Ticket struct {
			ID string `json:"id"`
		} `json:"ticket"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "pending", created.Request.Status)

	status, env = s.do(t, fiber.MethodPost, "/api/v1/assistance/"+created.Request.ID+"/accept", &s.owner, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)

	status, env = s.do(t, fiber.MethodPost, "/api/v1/assistance/"+created.Request.ID+"/accept", &s.tech, nil)
	require.Equal(t, fiber.StatusOK, status)
	var accepted struct {
		Ticket struct {
			TechnicianID *string `json:"technician_id"`
		} `json:"ticket"`
		Session *struct {
			ID string `json:"id"`
		} `json:"session"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &accepted))
	require.NotNil(t, accepted.Session)

	status, _ = s.do(t, fiber.MethodPost, "/api/v1/assistance/"+created.Request.ID+"/accept", &s.tech, nil)
	assert.Equal(t, fiber.StatusConflict, status)

	status, _ = s.do(t, fiber.MethodPost, "/api/v1/chat/sessions/"+accepted.Session.ID+"/messages", &s.owner, map[string]string{"content": "hi there"})
	assert.Equal(t, fiber.StatusCreated, status)

	status, env = s.do(t, fiber.MethodGet, "/api/v1/chat/unread", &s.tech, nil)
	require.Equal(t, fiber.StatusOK, status)
	var unread struct {
		Unread int `json:"unread"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &unread))
	assert.Equal(t, 1, unread.Unread)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t, nil)

	status, env := s.do(t, fiber.MethodGet, "/api/v1/tickets", nil, nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UNAUTHENTICATED", env.Error.Code)

	status, _ = s.do(t, fiber.MethodPost, "/api/v1/admin/faq/items", &s.owner, map[string]string{"question": "x"})
	assert.Equal(t, fiber.StatusForbidden, status)

	status, env = s.do(t, fiber.MethodGet, "/nowhere", nil, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "HTTP_404", env.Error.Code)
}

func TestBotSessionRepliesOverHTTP(t *testing.T) {
	s := newTestServer(t, nil)

	status, env := s.do(t, fiber.MethodPost, "/api/v1/chat/bot", &s.owner, nil)
	require.Equal(t, fiber.StatusOK, status)
	var session struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &session))

	status, env = s.do(t, fiber.MethodPost, "/api/v1/chat/sessions/"+session.ID+"/messages", &s.owner, map[string]string{"content": "I forgot my password"})
	require.Equal(t, fiber.StatusCreated, status)
	var appended struct {
		BotReply *struct {
			Type string `json:"type"`
		} `json:"bot_reply"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &appended))
	require.NotNil(t, appended.BotReply)
	assert.Equal(t, string(domain.MessageBotToUser), appended.BotReply.Type)
}

func TestPublicFAQSearch(t *testing.T) {
	s := newTestServer(t, nil)

	status, env := s.do(t, fiber.MethodGet, "/faq/search?q=forgot+password", nil, nil)
	require.Equal(t, fiber.StatusOK, status)
	var matches []struct {
		Item struct {
			Question string `json:"question"`
		} `json:"item"`
		Score int `json:"score"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &matches))
	require.NotEmpty(t, matches)
	assert.Contains(t, strings.ToLower(matches[0].Item.Question), "password")
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, map[string]handlers.Pinger{
		"postgres": stubPinger{},
		"redis":    stubPinger{err: errors.New("connection refused")},
	})

	status, _ := s.do(t, fiber.MethodGet, "/health/live", nil, nil)
	assert.Equal(t, fiber.StatusOK, status)

	status, env := s.do(t, fiber.MethodGet, "/health/ready", nil, nil)
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "DEPENDENCY_UNAVAILABLE", env.Error.Code)

	req := httptest.NewRequest(fiber.MethodGet, "/metrics", nil)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "helpdesk_http_requests_total")
}
