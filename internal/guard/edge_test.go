package guard_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artisansflow/portal/internal/domain"
	"github.com/artisansflow/portal/internal/guard"
	"github.com/artisansflow/portal/internal/identity"
	"github.com/artisansflow/portal/internal/repository/repositorytest"
	"github.com/artisansflow/portal/internal/session"
)

type decisions struct {
	mu  sync.Mutex
	out []guard.Decision
}

func (d *decisions) RecordDecision(_ string, decision guard.Decision) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.out = append(d.out, decision)
}

func edgeApp(t *testing.T, cache *repositorytest.RoleCache, recorder guard.DecisionRecorder) (*fiber.App, *identity.TokenVerifier) {
	t.Helper()
	verifier := identity.NewTokenVerifier("edge-secret", time.Hour)
	app := fiber.New()
	app.Use(identity.SessionMiddleware(verifier, "sb-access-token", "sb-refresh-token"))
	app.Use(guard.EdgeGate(guard.DefaultRouteTable(), session.NewCachedRoles(cache, nil), recorder, nil))
	handler := func(c *fiber.Ctx) error { return c.SendString("page") }
	for _, path := range []string{"/", "/auth/sign-in", "/dashboard", "/dashboard/stats", "/dashboard/clients", "/admin"} {
		app.Get(path, handler)
	}
	app.Post("/auth/sign-in", handler)
	return app, verifier
}

func request(t *testing.T, app *fiber.App, method, path, token string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: "sb-access-token", Value: token})
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func mint(t *testing.T, verifier *identity.TokenVerifier, id, role string) string {
	t.Helper()
	token, _, err := verifier.Issue(identity.User{ID: id, Metadata: map[string]any{"role": role}})
	require.NoError(t, err)
	return token
}

func TestEdgeGateRedirectsAnonymousVisitor(t *testing.T) {
	recorder := &decisions{}
	app, _ := edgeApp(t, repositorytest.NewRoleCache(), recorder)

	resp := request(t, app, http.MethodGet, "/dashboard/clients", "")

	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.Equal(t, "/auth/sign-in?redirectTo=/dashboard/clients", resp.Header.Get("Location"))
	require.Len(t, recorder.out, 1)
	assert.Equal(t, guard.ReasonUnauthenticated, recorder.out[0].Reason)
}

func TestEdgeGateSkipsOpenPaths(t *testing.T) {
	recorder := &decisions{}
	app, _ := edgeApp(t, repositorytest.NewRoleCache(), recorder)

	resp := request(t, app, http.MethodGet, "/", "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, recorder.out)
}

func TestEdgeGateUsesMetadataRoleWithoutCache(t *testing.T) {
	app, verifier := edgeApp(t, repositorytest.NewRoleCache(), nil)
	token := mint(t, verifier, "u1", "basic")

	stats := request(t, app, http.MethodGet, "/dashboard/stats", token)
	assert.Equal(t, http.StatusTemporaryRedirect, stats.StatusCode)
	assert.Equal(t, "/dashboard", stats.Header.Get("Location"))

	clients := request(t, app, http.MethodGet, "/dashboard/clients", token)
	assert.Equal(t, http.StatusOK, clients.StatusCode)
}

func TestEdgeGatePrefersCachedRole(t *testing.T) {
	cache := repositorytest.NewRoleCache()
	require.NoError(t, cache.Put(context.Background(), "u1", domain.RoleAdmin))
	app, verifier := edgeApp(t, cache, nil)
	token := mint(t, verifier, "u1", "PRO")

	admin := request(t, app, http.MethodGet, "/admin", token)
	assert.Equal(t, http.StatusOK, admin.StatusCode)

	signIn := request(t, app, http.MethodGet, "/auth/sign-in", token)
	assert.Equal(t, http.StatusTemporaryRedirect, signIn.StatusCode)
	assert.Equal(t, "/admin", signIn.Header.Get("Location"))
}

func TestEdgeGateTurnsPostsIntoSeeOther(t *testing.T) {
	app, verifier := edgeApp(t, repositorytest.NewRoleCache(), nil)
	token := mint(t, verifier, "u1", "PRO")

	resp := request(t, app, http.MethodPost, "/auth/sign-in", token)

	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/dashboard", resp.Header.Get("Location"))
}
