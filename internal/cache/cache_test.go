package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/videolens/internal/cache"
	"github.com/kiranshivaraju/videolens/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis spins up a Redis container and returns a connected RedisCache + cleanup.
func setupRedis(t *testing.T) *cache.RedisCache {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, container.Terminate(ctx)) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	redisURL := "redis://" + host + ":" + port.Port()
	rc, err := cache.NewRedisCache(redisURL)
	require.NoError(t, err)

	return rc
}

// --- Ping ---

func TestPing(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc := setupRedis(t)
	err := rc.Ping(context.Background())
	assert.NoError(t, err)
}

// --- Set / Get roundtrip ---

func TestSetGet_Roundtrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc := setupRedis(t)
	ctx := context.Background()

	err := rc.Set(ctx, "test:key", []byte("hello"), 10*time.Second)
	require.NoError(t, err)

	val, found, err := rc.Get(ctx, "test:key")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("hello"), val)
}

func TestGet_NotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc := setupRedis(t)

	val, found, err := rc.Get(context.Background(), "nonexistent:key")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, val)
}

func TestSet_TTLExpiry(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc := setupRedis(t)
	ctx := context.Background()

	err := rc.Set(ctx, "expiry:key", []byte("temp"), 1*time.Second)
	require.NoError(t, err)

	// Immediately should exist
	_, found, err := rc.Get(ctx, "expiry:key")
	require.NoError(t, err)
	assert.True(t, found)

	// Wait for TTL to expire
	time.Sleep(1500 * time.Millisecond)

	_, found, err = rc.Get(ctx, "expiry:key")
	require.NoError(t, err)
	assert.False(t, found)
}

// --- Job snapshots ---

func TestSetGetJobSnapshot(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc := setupRedis(t)
	ctx := context.Background()
	job := models.NewJob(uuid.NewString(), time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	job.State.Steps[models.StepIngest].Status = models.StepStatusInProgress
	job.State.Steps[models.StepIngest].Progress = 0.5
	job.State.Recompute()

	require.NoError(t, rc.SetJobSnapshot(ctx, job, 10*time.Second))

	got, found, err := rc.GetJobSnapshot(ctx, job.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, job.State.Steps, got.State.Steps)
	assert.InDelta(t, 0.5/3, got.State.Progress, 1e-9)
	assert.True(t, job.State.Timestamp.Equal(got.State.Timestamp))
}

func TestGetJobSnapshot_NotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc := setupRedis(t)

	job, found, err := rc.GetJobSnapshot(context.Background(), uuid.NewString())
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, job)
}

func TestGetJobSnapshot_CorruptValue(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc := setupRedis(t)
	ctx := context.Background()
	id := uuid.NewString()
	require.NoError(t, rc.Set(ctx, cache.JobKey(id), []byte("{not json"), 10*time.Second))

	_, found, err := rc.GetJobSnapshot(ctx, id)
	require.Error(t, err)
	assert.False(t, found)
}

// --- IncrWithExpiry ---

func TestIncrWithExpiry(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc := setupRedis(t)
	ctx := context.Background()
	key := "ratelimit:test:" + uuid.NewString()[:8]

	val, err := rc.IncrWithExpiry(ctx, key, 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), val)

	val, err = rc.IncrWithExpiry(ctx, key, 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(2), val)

	val, err = rc.IncrWithExpiry(ctx, key, 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(3), val)
}

func TestIncrWithExpiry_Expires(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc := setupRedis(t)
	ctx := context.Background()
	key := "ratelimit:expiry:" + uuid.NewString()[:8]

	_, err := rc.IncrWithExpiry(ctx, key, 1*time.Second)
	require.NoError(t, err)

	time.Sleep(1500 * time.Millisecond)

	// After expiry, should start from 1 again
	val, err := rc.IncrWithExpiry(ctx, key, 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), val)
}

// --- NopCache ---

func TestNopCache(t *testing.T) {
	ctx := context.Background()
	var c cache.Cache = cache.NopCache{}

	assert.ErrorIs(t, c.Ping(ctx), cache.ErrDisabled)
	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Second))
	_, found, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.SetJobSnapshot(ctx, models.NewJob("j", time.Now()), time.Second))
	job, found, err := c.GetJobSnapshot(ctx, "j")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, job)

	n, err := c.IncrWithExpiry(ctx, "k", time.Second)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, c.Close())
}

// --- Cache Key Builders ---

func TestJobKey(t *testing.T) {
	key := cache.JobKey("0190f0a2-7c4e-7a10-8b3c-1234567890ab")
	assert.Equal(t, "job:0190f0a2-7c4e-7a10-8b3c-1234567890ab", key)
}

func TestRateLimitKey(t *testing.T) {
	key := cache.RateLimitKey("ip:10.0.0.1")
	assert.Equal(t, "ratelimit:ip:10.0.0.1", key)
}

func TestKeyBuilders_NonColliding(t *testing.T) {
	id := uuid.NewString()
	assert.NotEqual(t, cache.JobKey(id), cache.RateLimitKey(id))
}
