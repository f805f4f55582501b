package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synergyos/synergyos/internal/observability"
	"github.com/synergyos/synergyos/internal/platform/docstore"
	"github.com/synergyos/synergyos/internal/shared"
)

type stubSessions map[string]string

func (s stubSessions) Resolve(_ context.Context, id string) (string, error) {
	if userID, ok := s[id]; ok {
		return userID, nil
	}
	return "", fmt.Errorf("%w: unknown session", shared.ErrUnauthenticated)
}

func newTestServices(t *testing.T, sessions stubSessions) *Services {
	t.Helper()
	cfg := &Config{
		AppEnv:             "test",
		SessionCookie:      "synergy_session",
		RateLimitPerMinute: 1000,
		FeatureFlags:       map[string]bool{"policies": true},
	}
	return NewServices(Deps{
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config:   cfg,
		Docs:     docstore.NewMemory(),
		Sessions: sessions,
		Metrics:  observability.NewMetrics(),
	})
}

func serve(h http.Handler, method, path, sess, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if sess != "" {
		req.Header.Set("X-Session-ID", sess)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestLegacyTeamsRedirect(t *testing.T) {
	h := newTestServices(t, stubSessions{}).Handler(nil)

	cases := []struct {
		path     string
		location string
	}{
		{"/org/teams/42?org=xyz", "/org/circles/42?org=xyz"},
		{"/org/teams/42", "/org/circles/42"},
		{"/org/teams", "/org/circles"},
		{"/org/teams?org=a&tab=b", "/org/circles?org=a&tab=b"},
		{"/org/teams/a%2Fb", "/org/circles/a%2Fb"},
		{"/org/teams/a%20b?x=1", "/org/circles/a%20b?x=1"},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			rec := serve(h, http.MethodGet, tc.path, "", "")
			assert.Equal(t, http.StatusFound, rec.Code)
			assert.Equal(t, tc.location, rec.Header().Get("Location"))
		})
	}
}

func TestHealthzCarriesSecureHeaders(t *testing.T) {
	h := newTestServices(t, stubSessions{}).Handler(nil)

	rec := serve(h, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestMetricsEndpointReportsDecisions(t *testing.T) {
	svc := newTestServices(t, stubSessions{"s-1": "user-1"})
	h := svc.Handler(nil)

	rec := serve(h, http.MethodGet, "/api/permissions/check?action=circle.view", "s-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(h, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `synergy_authz_decisions_total{action="circle.view",outcome="denied"} 1`)
}

func TestRouterEndToEnd(t *testing.T) {
	svc := newTestServices(t, stubSessions{"s-admin": "admin", "s-member": "member"})
	ctx := t.Context()
	_, err := svc.Roles.SeedRoles(ctx)
	require.NoError(t, err)
	admin, err := svc.Roles.FindRole(ctx, "", "Admin")
	require.NoError(t, err)
	member, err := svc.Roles.FindRole(ctx, "", "Member")
	require.NoError(t, err)
	_, err = svc.Roles.GrantRole(ctx, "admin", admin.ID, "")
	require.NoError(t, err)
	_, err = svc.Roles.GrantRole(ctx, "member", member.ID, "")
	require.NoError(t, err)
	h := svc.Handler(nil)

	assert.Equal(t, http.StatusUnauthorized, serve(h, http.MethodGet, "/api/me/roles", "", "").Code)

	rec := serve(h, http.MethodPost, "/api/circles", "s-admin", `{"workspaceId":"ws","name":"Ops"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		ID      string `json:"_id"`
		Version int    `json:"version"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, 1, created.Version)

	assert.Equal(t, http.StatusForbidden,
		serve(h, http.MethodPost, "/api/circles", "s-member", `{"workspaceId":"ws","name":"Side"}`).Code)
	assert.Equal(t, http.StatusOK,
		serve(h, http.MethodGet, "/api/circles/"+created.ID+"/history", "s-member", "").Code)

	rec = serve(h, http.MethodGet, "/api/flashcards/stats", "s-member", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"total":0,"due":0}`, rec.Body.String())

	rec = serve(h, http.MethodGet, "/api/policies", "s-member", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"policies":[]}`, rec.Body.String())
	assert.Equal(t, http.StatusUnauthorized, serve(h, http.MethodGet, "/api/policies", "bogus", "").Code)
}

func TestRateLimitReturnsProblem(t *testing.T) {
	svc := newTestServices(t, stubSessions{})
	svc.deps.Config.RateLimitPerMinute = 2
	h := svc.Handler(nil)

	for range 2 {
		require.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/healthz", "", "").Code)
	}
	rec := serve(h, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}
