package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	analyticsentity "github.com/ovaphlow/pitchfork/service-orangelink-go/internal/analytics/entity"
	authentity "github.com/ovaphlow/pitchfork/service-orangelink-go/internal/auth/entity"
	linkentity "github.com/ovaphlow/pitchfork/service-orangelink-go/internal/link/entity"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/internal/user"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/config"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/database/dbtest"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type client struct {
	t *testing.T
	h http.Handler
}

func (c client) call(method, path, token string, body any) (int, envelope) {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "192.0.2.1:40000"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	c.h.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(c.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec.Code, env
}

func testConfig() *config.Config {
	return &config.Config{
		Port:   "0",
		AppEnv: "test",
		JWT: config.JWT{
			AccessSecret:  "access-secret-for-tests",
			RefreshSecret: "refresh-secret-for-tests",
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			Issuer:        "orangelink",
			Audience:      "orangelink-app",
		},
		CORSOrigins: []string{"http://localhost:5173"},
		RateLimit:   config.RateLimit{Window: 15 * time.Minute, Max: 100},
	}
}

func newApp(t *testing.T) (*App, client) {
	t.Helper()
	store := dbtest.Open(t)
	a, err := New(testConfig(), store, user.BcryptHasher{Cost: bcrypt.MinCost}, zap.NewNop().Sugar())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	require.NoError(t, a.Migrate(context.Background()))
	return a, client{t: t, h: a.Handler()}
}

func TestLinkInBioFlow(t *testing.T) {
	_, c := newApp(t)

	code, env := c.call(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "bob@x.com", "username": "bob", "password": "Passw0rd!",
	})
	require.Equal(t, http.StatusCreated, code, env.Message)

	code, env = c.call(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "bob@x.com", "password": "Passw0rd!",
	})
	require.Equal(t, http.StatusOK, code, env.Message)
	var login authentity.AuthResult
	require.NoError(t, json.Unmarshal(env.Data, &login))
	require.NotNil(t, login.Tokens)
	access := login.Tokens.AccessToken

	code, env = c.call(http.MethodPost, "/api/links", access, map[string]string{"title": "Site", "url": "https://x.com"})
	require.Equal(t, http.StatusCreated, code, env.Message)
	var created linkentity.Link
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, 0, created.SortOrder)
	assert.Equal(t, int64(0), created.ClickCount)

	for i := 0; i < 3; i++ {
		code, _ = c.call(http.MethodPost, "/api/public/click/"+created.ID, "", nil)
		require.Equal(t, http.StatusNoContent, code)
	}
	code, _ = c.call(http.MethodPost, "/api/public/click/unknown", "", nil)
	assert.Equal(t, http.StatusNoContent, code)

	code, env = c.call(http.MethodGet, "/api/public/bob", "", nil)
	require.Equal(t, http.StatusOK, code)

	code, env = c.call(http.MethodGet, "/api/analytics/summary", access, nil)
	require.Equal(t, http.StatusOK, code)
	var sum analyticsentity.Summary
	require.NoError(t, json.Unmarshal(env.Data, &sum))
	assert.Equal(t, int64(3), sum.TotalClicks)
	assert.Equal(t, int64(1), sum.TotalViews)
	assert.Equal(t, int64(3), sum.ClicksThisWeek)
	assert.Equal(t, 300.0, sum.CTR)
	assert.Equal(t, []analyticsentity.TopLink{{ID: created.ID, Title: "Site", Clicks: 3}}, sum.TopLinks)

	code, env = c.call(http.MethodGet, "/api/public/bob/links", "", nil)
	require.Equal(t, http.StatusOK, code)
	var public []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &public))
	require.Len(t, public, 1)
	assert.NotContains(t, public[0], "click_count")
}

func TestRefreshRotationOverHTTP(t *testing.T) {
	_, c := newApp(t)

	code, env := c.call(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "bob@x.com", "username": "bob", "password": "Passw0rd!",
	})
	require.Equal(t, http.StatusCreated, code)
	var reg authentity.AuthResult
	require.NoError(t, json.Unmarshal(env.Data, &reg))
	old := reg.Tokens.RefreshToken

	code, env = c.call(http.MethodPost, "/api/auth/refresh", "", map[string]string{"refreshToken": old})
	require.Equal(t, http.StatusOK, code, env.Message)
	var pair authentity.TokenPair
	require.NoError(t, json.Unmarshal(env.Data, &pair))
	assert.NotEqual(t, old, pair.RefreshToken)
	assert.Equal(t, int64(900), pair.ExpiresIn)

	code, _ = c.call(http.MethodPost, "/api/auth/refresh", "", map[string]string{"refreshToken": old})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, env = c.call(http.MethodGet, "/api/auth/me", pair.AccessToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"sub":"`+reg.User.ID+`","username":"bob","email":"bob@x.com"}`, string(env.Data))

	code, _ = c.call(http.MethodPost, "/api/auth/logout", pair.AccessToken, map[string]string{"refreshToken": pair.RefreshToken})
	assert.Equal(t, http.StatusNoContent, code)
	code, _ = c.call(http.MethodPost, "/api/auth/refresh", "", map[string]string{"refreshToken": pair.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestDeactivateHidesProfile(t *testing.T) {
	_, c := newApp(t)
	code, env := c.call(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "bob@x.com", "username": "bob", "password": "Passw0rd!",
	})
	require.Equal(t, http.StatusCreated, code)
	var reg authentity.AuthResult
	require.NoError(t, json.Unmarshal(env.Data, &reg))

	code, _ = c.call(http.MethodDelete, "/api/profile/me", reg.Tokens.AccessToken, nil)
	require.Equal(t, http.StatusNoContent, code)

	code, _ = c.call(http.MethodGet, "/api/public/bob", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = c.call(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "bob@x.com", "password": "Passw0rd!"})
	assert.Equal(t, http.StatusUnauthorized, code)
	code, _ = c.call(http.MethodPost, "/api/auth/refresh", "", map[string]string{"refreshToken": reg.Tokens.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	_, c := newApp(t)
	for _, r := range []struct{ method, path string }{
		{http.MethodGet, "/api/links"},
		{http.MethodPatch, "/api/links/reorder"},
		{http.MethodGet, "/api/analytics/summary"},
		{http.MethodPost, "/api/assist/bio"},
		{http.MethodGet, "/api/profile/me"},
	} {
		code, env := c.call(r.method, r.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, code, r.path)
		assert.False(t, env.Success)
	}
	code, _ := c.call(http.MethodGet, "/api/links", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestHealth(t *testing.T) {
	a, c := newApp(t)

	rec := httptest.NewRecorder()
	c.h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	require.NoError(t, a.Store.Close())
	rec = httptest.NewRecorder()
	c.h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"degraded"}`, rec.Body.String())
}

func TestAssistDisabledWithoutKey(t *testing.T) {
	_, c := newApp(t)
	code, env := c.call(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "bob@x.com", "username": "bob", "password": "Passw0rd!",
	})
	require.Equal(t, http.StatusCreated, code)
	var reg authentity.AuthResult
	require.NoError(t, json.Unmarshal(env.Data, &reg))

	code, env = c.call(http.MethodPost, "/api/assist/bio", reg.Tokens.AccessToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"applied":false,"value":""}`, string(env.Data))
}
