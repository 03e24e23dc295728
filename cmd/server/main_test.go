package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kiranshivaraju/videolens/internal/cache"
	"github.com/kiranshivaraju/videolens/internal/store"
	"github.com/kiranshivaraju/videolens/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ─── mock cache ──────────────────────────────────────────────────────────────

type testCache struct {
	pingErr error
}

func (c *testCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error { return nil }
func (c *testCache) Get(_ context.Context, _ string) ([]byte, bool, error)            { return nil, false, nil }
func (c *testCache) Ping(_ context.Context) error                                      { return c.pingErr }
func (c *testCache) SetJobSnapshot(_ context.Context, _ *models.Job, _ time.Duration) error {
	return nil
}
func (c *testCache) GetJobSnapshot(_ context.Context, _ string) (*models.Job, bool, error) {
	return nil, false, nil
}
func (c *testCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 1, nil
}
func (c *testCache) Close() error { return nil }

var _ cache.Cache = (*testCache)(nil)

type fixedJobs int

func (n fixedJobs) Len() int { return int(n) }

// ─── health handler tests ───────────────────────────────────────────────────

func healthBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHealthHandler_AllOK(t *testing.T) {
	h := healthHandler(&testCache{}, fixedJobs(3), "gemini")

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	h(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	data := healthBody(t, w)["data"].(map[string]any)
	assert.Equal(t, "ok", data["status"])
	services := data["services"].(map[string]any)
	assert.Equal(t, "ok", services["cache"])
	assert.Equal(t, "gemini", services["ai_provider"])
	assert.Equal(t, float64(3), data["jobs"])
}

func TestHealthHandler_CacheDisabled(t *testing.T) {
	h := healthHandler(cache.NopCache{}, store.NewMemoryStore(), "mock")

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	h(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	services := healthBody(t, w)["data"].(map[string]any)["services"].(map[string]any)
	assert.Equal(t, "disabled", services["cache"])
}

func TestHealthHandler_CountsStoredJobs(t *testing.T) {
	st := store.NewMemoryStore()
	_, err := st.Create("a")
	require.NoError(t, err)
	_, err = st.Create("b")
	require.NoError(t, err)
	h := healthHandler(cache.NopCache{}, st, "mock")

	w := httptest.NewRecorder()
	h(w, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	data := healthBody(t, w)["data"].(map[string]any)
	assert.Equal(t, float64(2), data["jobs"])
}

func TestHealthHandler_CacheDegraded(t *testing.T) {
	h := healthHandler(&testCache{pingErr: errors.New("redis down")}, fixedJobs(0), "mock")

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	h(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	errObj := healthBody(t, w)["error"].(map[string]any)
	assert.Equal(t, "DEGRADED", errObj["code"])
	details := errObj["details"].(map[string]any)
	assert.Equal(t, "degraded", details["cache"])
}

// ─── logger tests ───────────────────────────────────────────────────────────

func TestNewLogger_Levels(t *testing.T) {
	ctx := context.Background()
	assert.True(t, newLogger("debug").Enabled(ctx, slog.LevelDebug))
	assert.False(t, newLogger("info").Enabled(ctx, slog.LevelDebug))
	assert.False(t, newLogger("error").Enabled(ctx, slog.LevelWarn))
	assert.True(t, newLogger("bogus").Enabled(ctx, slog.LevelInfo))
}

// ─── run() config validation tests ──────────────────────────────────────────

func TestRun_FailsOnMissingConfig(t *testing.T) {
	clearConfigEnv(t)

	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func TestRun_FailsOnInvalidRedisURL(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("AI_PROVIDER", "mock")
	t.Setenv("REDIS_URL", "localhost:6379")

	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func TestRun_FailsOnUnreachableRedis(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping network test in short mode")
	}
	clearConfigEnv(t)
	t.Setenv("AI_PROVIDER", "mock")
	t.Setenv("REDIS_URL", "redis://127.0.0.1:1")

	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping redis")
}

// ─── shutdown timeout constant test ─────────────────────────────────────────

func TestShutdownTimeout(t *testing.T) {
	assert.Equal(t, 30*time.Second, shutdownTimeout)
	assert.Greater(t, drainTimeout, shutdownTimeout)
}

// ─── shutdown sequencing tests ──────────────────────────────────────────────

type recordingWaiter struct {
	called   bool
	deadline time.Time
}

func (w *recordingWaiter) Wait(ctx context.Context) error {
	w.called = true
	w.deadline, _ = ctx.Deadline()
	return nil
}

func TestShutdown_IdleServer(t *testing.T) {
	srv := &http.Server{Handler: http.NotFoundHandler()}
	jobs := &recordingWaiter{}

	start := time.Now()
	require.NoError(t, shutdown(srv, jobs, time.Second, time.Minute))

	assert.True(t, jobs.called)
	assert.WithinDuration(t, start.Add(time.Minute), jobs.deadline, 5*time.Second)
}

func TestShutdown_WaitsForJobsWhenHTTPDrainTimesOut(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		close(entered)
		<-release
	}))
	defer func() {
		close(release)
		ts.Close()
	}()

	go func() {
		resp, err := http.Get(ts.URL)
		if err == nil {
			resp.Body.Close()
		}
	}()
	<-entered

	jobs := &recordingWaiter{}
	err := shutdown(ts.Config, jobs, 20*time.Millisecond, time.Minute)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, jobs.called, "detached jobs must be awaited after a failed HTTP drain")
}

// ─── helper: clear env ──────────────────────────────────────────────────────

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"REDIS_URL", "AI_PROVIDER", "GEMINI_API_KEY", "GEMINI_BASE_URL",
		"VIDEOLENS_PORT", "LOG_LEVEL", "INGEST_SOURCES", "INGEST_TEMP_DIR",
	} {
		t.Setenv(key, "")
	}
}
