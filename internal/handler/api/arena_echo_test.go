package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ModelArena/internal/domain/models"
	"ModelArena/internal/service/ratelimit"
	"ModelArena/internal/services/inference"
	"ModelArena/internal/usecase"
	applogger "ModelArena/pkg/logger"
)

type fixedFeed float64

func (f fixedFeed) Price(context.Context) (float64, error) { return float64(f), nil }

type nopMetrics struct{}

func (nopMetrics) RecordTick(string)                {}
func (nopMetrics) RecordTickDuration(time.Duration) {}
func (nopMetrics) RecordTrade(string)               {}
func (nopMetrics) RecordLastPrice(float64)          {}
func (nopMetrics) RecordFighters(int)               {}
func (nopMetrics) RecordError(string)               {}
func (nopMetrics) RecordLatency(string, float64)    {}

type healthFunc func(context.Context) error

func (f healthFunc) Health(ctx context.Context) error { return f(ctx) }

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

const buyModel = `{"name":"bull","inputWindow":2,"layers":[{"weights":[[0,0,0],[0,0,0]],"bias":[1,0,0],"activation":"linear"}]}`

func setup(t *testing.T, cfg usecase.ArenaConfig, store HealthChecker, limiter *ratelimit.Limiter) (*echo.Echo, *usecase.Arena) {
	t.Helper()
	arena := usecase.NewArena(applogger.Nop(), fixedFeed(100), inference.NewEngine(), nopMetrics{}, usecase.WithArenaConfig(cfg))
	e := echo.New()
	NewArenaEchoHandler(applogger.Nop(), arena, store, limiter).RegisterRoutes(e)
	return e, arena
}

func do(t *testing.T, e *echo.Echo, method, target, body string) (int, envelope) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func joinBody(wallet, model string) string {
	return `{"wallet":"` + wallet + `","model":` + model + `}`
}

func TestJoinAndQuery(t *testing.T) {
	e, arena := setup(t, usecase.DefaultArenaConfig(), nil, nil)

	code, env := do(t, e, http.MethodPost, "/api/arena/join", joinBody("0xABC", buyModel))
	require.Equal(t, http.StatusOK, code)
	var joined models.JoinResponse
	require.NoError(t, json.Unmarshal(env.Data, &joined))
	assert.Equal(t, "0xabc", joined.Wallet)
	assert.Equal(t, "bull", joined.Name)
	assert.Equal(t, usecase.FighterColors[0], joined.Color)

	_, err := arena.Tick(context.Background())
	require.NoError(t, err)

	code, env = do(t, e, http.MethodGet, "/api/arena/leaderboard", "")
	require.Equal(t, http.StatusOK, code)
	var lb []models.LeaderboardEntry
	require.NoError(t, json.Unmarshal(env.Data, &lb))
	require.Len(t, lb, 1)
	assert.Equal(t, 9000.0, lb[0].Cash)
	assert.Equal(t, 10.0, lb[0].Position)

	code, env = do(t, e, http.MethodGet, "/api/arena/trades?limit=500", "")
	require.Equal(t, http.StatusOK, code)
	var trades []models.Trade
	require.NoError(t, json.Unmarshal(env.Data, &trades))
	assert.Len(t, trades, 1)

	code, env = do(t, e, http.MethodGet, "/api/arena/status", "")
	require.Equal(t, http.StatusOK, code)
	var st models.ArenaStatus
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.Equal(t, int64(1), st.TickCount)
	require.NotNil(t, st.CurrentPrice)
	assert.Equal(t, 100.0, *st.CurrentPrice)

	code, _ = do(t, e, http.MethodGet, "/api/arena/fighter/0xAbC", "")
	assert.Equal(t, http.StatusOK, code)
	code, _ = do(t, e, http.MethodGet, "/api/arena/portfolios", "")
	assert.Equal(t, http.StatusOK, code)

	code, _ = do(t, e, http.MethodDelete, "/api/arena/leave/0xabc", "")
	assert.Equal(t, http.StatusOK, code)
	code, env = do(t, e, http.MethodDelete, "/api/arena/leave/0xabc", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Contains(t, string(env.Data), "not in arena")

	code, _ = do(t, e, http.MethodGet, "/api/arena/fighter/0xabc", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestJoinErrors(t *testing.T) {
	cfg := usecase.DefaultArenaConfig()
	cfg.MaxFighters = 1
	e, _ := setup(t, cfg, nil, nil)

	twoOut := `{"layers":[{"weights":[[0,0]],"bias":[1,0]}]}`
	tests := []struct {
		name string
		body string
		code int
		want string
	}{
		{"missing model", `{"wallet":"0x1"}`, http.StatusBadRequest, "ERR_REQUIRED"},
		{"model not object", joinBody("0x1", `[1,2]`), http.StatusBadRequest, "ERR_INVALID_MODEL"},
		{"output width", joinBody("0x1", twoOut), http.StatusBadRequest, "must output 3"},
		{"ok", joinBody("0x1", buyModel), http.StatusOK, "0x1"},
		{"full", joinBody("0x2", buyModel), http.StatusConflict, "ERR_ARENA_FULL"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			code, env := do(t, e, http.MethodPost, "/api/arena/join", tc.body)
			assert.Equal(t, tc.code, code)
			assert.Contains(t, string(env.Data), tc.want)
		})
	}
}

func TestJoinRateLimited(t *testing.T) {
	e, _ := setup(t, usecase.DefaultArenaConfig(), nil, ratelimit.New(1, 1))

	code, _ := do(t, e, http.MethodPost, "/api/arena/join", joinBody("0x1", buyModel))
	assert.Equal(t, http.StatusOK, code)
	code, env := do(t, e, http.MethodPost, "/api/arena/join", joinBody("0x2", buyModel))
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Contains(t, string(env.Data), "ERR_RATE_LIMITED")
}

func TestSamples(t *testing.T) {
	e, _ := setup(t, usecase.DefaultArenaConfig(), nil, nil)
	code, env := do(t, e, http.MethodGet, "/api/arena/samples", "")
	require.Equal(t, http.StatusOK, code)

	var samples []models.Model
	require.NoError(t, json.Unmarshal(env.Data, &samples))
	assert.Len(t, samples, 3)
	for _, m := range samples {
		assert.NoError(t, inference.ValidateModel(&m))
	}
}

func TestHealth(t *testing.T) {
	e, _ := setup(t, usecase.DefaultArenaConfig(), healthFunc(func(context.Context) error { return nil }), nil)
	code, env := do(t, e, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"status":"ok"`)

	e, _ = setup(t, usecase.DefaultArenaConfig(), healthFunc(func(context.Context) error { return errors.New("db down") }), nil)
	code, env = do(t, e, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, string(env.Data), "db down")
}
