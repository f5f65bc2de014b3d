package http_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apihttp "github.com/artisansflow/portal/internal/api/http"
	"github.com/artisansflow/portal/internal/api/http/handlers"
	"github.com/artisansflow/portal/internal/domain"
	"github.com/artisansflow/portal/internal/guard"
	"github.com/artisansflow/portal/internal/identity"
	"github.com/artisansflow/portal/internal/identity/identitytest"
	"github.com/artisansflow/portal/internal/observability"
	"github.com/artisansflow/portal/internal/repository/repositorytest"
	"github.com/artisansflow/portal/internal/service"
	"github.com/artisansflow/portal/internal/session"
	"github.com/artisansflow/portal/internal/shell"
)

type okPinger struct{ err error }

func (p okPinger) Ping(_ context.Context) error { return p.err }

type portal struct {
	app      *fiber.App
	verifier *identity.TokenVerifier
	backend  *identitytest.Backend
	profiles *repositorytest.Profiles
	metrics  *observability.Metrics
}

var (
	jane = identity.User{ID: "u1", Email: "jane@example.com", Metadata: map[string]any{"role": "PRO"}}
	ali  = identity.User{ID: "u2", Email: "ali@example.com", Metadata: map[string]any{"role": "BASIC"}}
	root = identity.User{ID: "u9", Email: "root@example.com", Metadata: map[string]any{"role": "PRO"}}
)

func newPortal(t *testing.T, authPerMinute int) *portal {
	t.Helper()
	logger := zap.NewNop()
	backend := identitytest.NewBackend()
	backend.AddUser(jane.ID, jane.Email, "secret1", jane.Metadata)
	backend.AddUser(ali.ID, ali.Email, "secret1", ali.Metadata)
	backend.AddUser(root.ID, root.Email, "secret1", root.Metadata)

	p := &portal{
		verifier: identity.NewTokenVerifier("portal-secret", time.Hour),
		backend:  backend,
		profiles: repositorytest.NewProfiles(
			domain.Profile{ID: jane.ID, Role: domain.RolePro},
			domain.Profile{ID: ali.ID, Role: domain.RoleBasic},
			domain.Profile{ID: root.ID, Role: domain.RoleAdmin},
		),
		metrics: observability.NewMetrics(),
	}
	cache := repositorytest.NewRoleCache()
	activity := repositorytest.NewActivity()
	routes := guard.DefaultRouteTable()

	registry := shell.NewRegistry(backend, p.profiles, cache, logger)
	t.Cleanup(registry.Close)

	accounts := service.NewAccountService(service.AccountDependencies{
		Backend:    backend,
		Profiles:   p.profiles,
		Activity:   activity,
		Routes:     routes,
		RenderWait: 2 * time.Second,
		Logger:     logger,
	})

	p.app = apihttp.NewApp("portal")
	apihttp.RegisterMiddlewares(p.app, logger, p.metrics, 5*time.Second)
	apihttp.RegisterRoutes(p.app, apihttp.RouteConfig{
		Health:   handlers.NewHealthHandler("portal", "test", okPinger{}, okPinger{}),
		Metrics:  handlers.NewMetricsHandler(p.metrics),
		Auth:     handlers.NewAuthHandler(accounts, routes, handlers.SessionCookies{Access: "sb-access-token", Refresh: "sb-refresh-token"}),
		Pages:    handlers.NewPagesHandler(),
		Settings: handlers.NewSettingsHandler(accounts),
		Admin:    handlers.NewAdminHandler(service.NewAdminService(p.profiles, activity, logger)),
		Session:  identity.SessionMiddleware(p.verifier, "sb-access-token", "sb-refresh-token"),
		Shell:    shell.Middleware(registry, shell.CookieOptions{Name: "af_ctx", TTL: time.Hour}),
		Edge:     guard.EdgeGate(routes, session.NewCachedRoles(cache, logger), p.metrics, logger),
		Render:   guard.NewRenderGate(routes, 2*time.Second, p.metrics, logger),
		AuthLimiter: apihttp.NewRateLimiter(authPerMinute, authPerMinute),
	})
	return p
}

func (p *portal) request(method, path string, user *identity.User, body string) (*http.Response, error) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != nil {
		token, _, err := p.verifier.Issue(*user)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return p.app.Test(req, 5000)
}

func (p *portal) do(t *testing.T, method, path string, user *identity.User, body string) *http.Response {
	t.Helper()
	resp, err := p.request(method, path, user, body)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestAnonymousVisitorIsSentToSignIn(t *testing.T) {
	p := newPortal(t, 100)

	resp := p.do(t, http.MethodGet, "/dashboard/clients", nil, "")

	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.Equal(t, "/auth/sign-in?redirectTo=/dashboard/clients", resp.Header.Get("Location"))
}

func TestSignInReturnsDestinationAndCookies(t *testing.T) {
	p := newPortal(t, 100)

	resp := p.do(t, http.MethodPost, "/auth/sign-in?redirectTo=/dashboard/stats", nil,
		`{"email":"jane@example.com","password":"secret1"}`)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := decode(t, resp)["data"].(map[string]any)
	assert.Equal(t, "/dashboard/stats", data["location"])
	assert.Equal(t, "PRO", data["role"])

	names := map[string]bool{}
	for _, cookie := range resp.Cookies() {
		names[cookie.Name] = true
	}
	assert.True(t, names["sb-access-token"])
	assert.True(t, names["sb-refresh-token"])
	assert.True(t, names["af_ctx"])
}

func TestSignInRejectsBadCredentialsWithErrorEnvelope(t *testing.T) {
	p := newPortal(t, 100)

	resp := p.do(t, http.MethodPost, "/auth/sign-in", nil, `{"email":"jane@example.com","password":"wrong"}`)

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	errBody := decode(t, resp)["error"].(map[string]any)
	assert.Equal(t, "UNAUTHORIZED", errBody["code"])
	assert.Equal(t, int64(1), p.metrics.Snapshot().Errors["/auth/sign-in|POST|UNAUTHORIZED"])
}

func TestSignInIsRateLimited(t *testing.T) {
	p := newPortal(t, 1)
	payload := `{"email":"jane@example.com","password":"wrong"}`

	first := p.do(t, http.MethodPost, "/auth/sign-in", nil, payload)
	second := p.do(t, http.MethodPost, "/auth/sign-in", nil, payload)

	assert.Equal(t, http.StatusUnauthorized, first.StatusCode)
	require.Equal(t, http.StatusTooManyRequests, second.StatusCode)
	assert.Equal(t, "RATE_LIMITED", decode(t, second)["error"].(map[string]any)["code"])
}

func TestSignedInVisitorLeavesAuthPages(t *testing.T) {
	p := newPortal(t, 100)

	resp := p.do(t, http.MethodGet, "/auth/sign-in", &jane, "")

	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.Equal(t, "/dashboard", resp.Header.Get("Location"))
}

func TestDashboardRendersViewerForRole(t *testing.T) {
	p := newPortal(t, 100)

	resp := p.do(t, http.MethodGet, "/dashboard/stats", &jane, "")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	viewer := decode(t, resp)["data"].(map[string]any)["viewer"].(map[string]any)
	assert.Equal(t, "PRO", viewer["role"])
	assert.Equal(t, "Pro", viewer["role_label"])
	assert.EqualValues(t, 15, viewer["feature_limit"])

	var hrefs []string
	for _, link := range viewer["navigation"].([]any) {
		hrefs = append(hrefs, link.(map[string]any)["href"].(string))
	}
	assert.Equal(t, []string{"/dashboard", "/dashboard/clients", "/dashboard/stats"}, hrefs)
}

func TestFeatureDeniedAtTheEdge(t *testing.T) {
	p := newPortal(t, 100)

	resp := p.do(t, http.MethodGet, "/dashboard/stats", &ali, "")

	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.Equal(t, "/dashboard", resp.Header.Get("Location"))
	assert.Equal(t, int64(1), p.metrics.Snapshot().Decisions["edge|redirect|feature_denied"])
}

func TestFeatureGateIgnoresPathCase(t *testing.T) {
	p := newPortal(t, 100)

	for _, path := range []string{"/dashboard/settings", "/dashboard/Settings", "/Dashboard/Settings", "/DASHBOARD/SETTINGS/"} {
		t.Run(path, func(t *testing.T) {
			resp := p.do(t, http.MethodGet, path, &ali, "")
			assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
			assert.Equal(t, "/dashboard", resp.Header.Get("Location"))
		})
	}

	resp := p.do(t, http.MethodPost, "/dashboard/Settings", &ali, `{"full_name":"Ali"}`)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/dashboard", resp.Header.Get("Location"))
}

func TestStoredRoleGatesTheAdminPanel(t *testing.T) {
	p := newPortal(t, 100)
	// root's token claims PRO; the profile makes them ADMIN. The edge
	// falls back to the token, so the admin panel is reached once the
	// resolved role is cached.
	warm := p.do(t, http.MethodGet, "/dashboard", &root, "")
	require.Equal(t, http.StatusOK, warm.StatusCode)
	assert.Eventually(t, func() bool {
		resp, err := p.request(http.MethodGet, "/admin", &root, "")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	resp := p.do(t, http.MethodPost, "/admin/users/u2/role", &root, `{"role":"ultimate"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ULTIMATE", decode(t, resp)["data"].(map[string]any)["role"])
	row, _ := p.profiles.Row("u2")
	assert.Equal(t, domain.RoleUltimate, row.Role)
}

func TestSignOutClearsCookies(t *testing.T) {
	p := newPortal(t, 100)

	resp := p.do(t, http.MethodPost, "/session/sign-out", &jane, "{}")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/auth/sign-in", decode(t, resp)["data"].(map[string]any)["location"])
	cleared := 0
	for _, cookie := range resp.Cookies() {
		if strings.HasPrefix(cookie.Name, "sb-") && cookie.Value == "" {
			cleared++
		}
	}
	assert.Equal(t, 2, cleared)
}

func TestHealthAndMetricsStayOpen(t *testing.T) {
	p := newPortal(t, 100)

	live := p.do(t, http.MethodGet, "/health/live", nil, "")
	assert.Equal(t, http.StatusOK, live.StatusCode)
	assert.Empty(t, live.Header.Get("Set-Cookie"))

	metrics := p.do(t, http.MethodGet, "/internal/metrics", nil, "")
	assert.Equal(t, http.StatusOK, metrics.StatusCode)
}
