package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/luckygrid/platform/internal/auth"
	"github.com/luckygrid/platform/internal/domain"
	"github.com/luckygrid/platform/internal/guard"
	"github.com/luckygrid/platform/internal/infra"
	"github.com/luckygrid/platform/internal/live"
	"github.com/luckygrid/platform/internal/provider"
	"github.com/luckygrid/platform/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-at-least-32-characters-long"

type fixedRNG struct{ n int }

func (f fixedRNG) RandomInt(_ context.Context, min, max int) (int, error) {
	return min + (f.n-min)%(max-min+1), nil
}

type testEnv struct {
	t        *testing.T
	mem      *store.Memory
	verifier *auth.Verifier
	server   *httptest.Server
}

func newTestEnv(t *testing.T, limiter *guard.RateLimiter) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if limiter == nil {
		limiter = guard.NewRateLimiter(1000, 1000)
	}
	mem := store.NewMemory()
	verifier := auth.NewVerifier(testSecret, "authenticated")

	r, err := NewRouter(RouterDeps{
		Store:       mem,
		Verifier:    verifier,
		Admins:      auth.NewEmailAllowlist([]string{"admin@example.com"}),
		RNG:         fixedRNG{n: 3},
		Prizes:      domain.DefaultPrizeConfig(),
		Paystack:    provider.NewPaystackProvider("sk_test"),
		Feed:        live.NewFeed(infra.NewWSHub(nil, logger)),
		RateLimiter: limiter,
		CORSOrigins: []string{"*"},
		Retry:       infra.NoRetry(),
		Logger:      logger,
	})
	require.NoError(t, err)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testEnv{t: t, mem: mem, verifier: verifier, server: srv}
}

func (e *testEnv) token(userID uuid.UUID, email string) string {
	tok, err := e.verifier.Sign(auth.Identity{UserID: userID, Email: email}, time.Hour)
	require.NoError(e.t, err)
	return tok
}

func (e *testEnv) do(method, path, token string, body any) (int, map[string]any) {
	e.t.Helper()
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(e.t, err)
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.server.URL+path, rdr)
	require.NoError(e.t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(e.t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(e.t, err)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(e.t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func TestRouter_GridLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)
	admin := env.token(uuid.New(), "admin@example.com")
	playerID := uuid.New()
	player := env.token(playerID, "pat@example.com")

	status, _ := env.do(http.MethodGet, "/api/lucky-grid/active", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body := env.do(http.MethodPost, "/api/lucky-grid/create", player, map[string]int{"range": 20})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", body["code"])

	status, body = env.do(http.MethodPost, "/api/lucky-grid/create", admin, map[string]int{"range": 21})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_INPUT", body["code"])

	status, _ = env.do(http.MethodPost, "/api/lucky-grid/create", admin, map[string]int{"range": 20})
	require.Equal(t, http.StatusCreated, status)

	status, body = env.do(http.MethodPost, "/api/lucky-grid/pick", player, map[string]any{"numbers": []int{5}})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "PROFILE_UNAVAILABLE", body["code"])

	status, _ = env.do(http.MethodPost, "/api/profile", player, nil)
	require.Equal(t, http.StatusOK, status)

	status, body = env.do(http.MethodPost, "/api/admin/give-tokens", admin, map[string]any{"userId": playerID, "tokenAmount": 3})
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 3, body["newBalance"])

	status, body = env.do(http.MethodPost, "/api/lucky-grid/pick", player, map[string]any{"numbers": []int{5, 5, 9}})
	require.Equal(t, http.StatusCreated, status)
	assert.EqualValues(t, 2, body["costCharged"])
	assert.EqualValues(t, 1, body["balance"])
	assert.Len(t, body["picks"], 2)

	status, body = env.do(http.MethodPost, "/api/lucky-grid/pick", player, map[string]any{"numbers": []int{21}})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "OUT_OF_RANGE", body["code"])

	status, body = env.do(http.MethodGet, "/api/lucky-grid/active", player, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["picks"], 2)

	status, body = env.do(http.MethodPost, "/api/lucky-grid/reveal", admin, map[string]any{"manualNumber": 30})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_OVERRIDE", body["code"])

	status, body = env.do(http.MethodPost, "/api/lucky-grid/reveal", admin, map[string]any{"manualNumber": "9"})
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 9, body["winningNumber"])
	winner := body["winnerPick"].(map[string]any)
	assert.Equal(t, playerID.String(), winner["user_id"])

	status, body = env.do(http.MethodPost, "/api/lucky-grid/reveal", admin, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "NO_GAME_TO_REVEAL", body["code"])

	status, body = env.do(http.MethodGet, "/api/lucky-grid/last-revealed", player, nil)
	require.Equal(t, http.StatusOK, status)
	assert.NotNil(t, body["winner"])

	status, body = env.do(http.MethodGet, "/api/dashboard", player, nil)
	require.Equal(t, http.StatusOK, status)
	profile := body["profile"].(map[string]any)
	assert.EqualValues(t, 1, profile["total_wins"])
}

func TestRouter_CardPull(t *testing.T) {
	env := newTestEnv(t, nil)
	userID := uuid.New()
	env.mem.PutProfile(domain.Profile{ID: userID, Email: "pat@example.com", TokenBalance: 1})
	tok := env.token(userID, "pat@example.com")

	status, body := env.do(http.MethodPost, "/api/start-session", tok, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, domain.InitialAttempts, body["attempts"])
	sessionID := body["sessionId"].(string)

	status, body = env.do(http.MethodPost, "/api/start-session", tok, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "SESSION_ALREADY_ACTIVE", body["code"])

	status, _ = env.do(http.MethodPost, "/api/pull-card/not-a-uuid", tok, nil)
	assert.Equal(t, http.StatusNotFound, status)

	other := env.token(uuid.New(), "other@example.com")
	status, body = env.do(http.MethodPost, "/api/pull-card/"+sessionID, other, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "NOT_OWNER", body["code"])

	status, body = env.do(http.MethodPost, "/api/pull-card/"+sessionID, tok, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "result")
	assert.Contains(t, body, "session")

	status, _ = env.do(http.MethodGet, "/api/leaderboard", "", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestRouter_PickRateLimited(t *testing.T) {
	env := newTestEnv(t, guard.NewRateLimiter(0.001, 1))
	tok := env.token(uuid.New(), "pat@example.com")

	status, body := env.do(http.MethodPost, "/api/lucky-grid/pick", tok, map[string]any{"numbers": []int{1}})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "NO_ACTIVE_GAME", body["code"])

	status, body = env.do(http.MethodPost, "/api/lucky-grid/pick", tok, map[string]any{"numbers": []int{1}})
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "RATE_LIMITED", body["code"])
}

func TestRouter_PublicEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)

	status, body := env.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", body["status"])

	resp, err := http.Get(env.server.URL + "/metrics")
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "luckygrid_http_requests_total")

	req, err := http.NewRequest(http.MethodPost, env.server.URL+"/api/paystack-webhook", bytes.NewBufferString(`{"event":"charge.success"}`))
	require.NoError(t, err)
	req.Header.Set(provider.PaystackSignatureHeader, "bogus")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRouter_AdminRoutes(t *testing.T) {
	env := newTestEnv(t, nil)
	admin := env.token(uuid.New(), "Admin@Example.com")

	for _, path := range []string{"/api/admin/stats", "/api/admin/game-status"} {
		status, _ := env.do(http.MethodGet, path, admin, nil)
		assert.Equal(t, http.StatusOK, status, path)
	}

	status, body := env.do(http.MethodGet, "/api/admin/games/"+uuid.NewString()+"/entries", admin, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", body["code"])

	status, _ = env.do(http.MethodGet, "/api/admin/stats", env.token(uuid.New(), "pat@example.com"), nil)
	assert.Equal(t, http.StatusForbidden, status)
}
