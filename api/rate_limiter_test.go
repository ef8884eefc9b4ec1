package api

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping Redis container in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
			Labels:       map[string]string{"test": "taixiu-api", "cleanup": "auto"},
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("Redis container unavailable: %v", err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestRedisRateLimiter(t *testing.T) {
	t.Parallel()

	client := setupTestRedis(t)
	limiter := NewRedisRateLimiter(client, 3, time.Second)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(ctx, 1001, "bet")
		require.NoError(t, err)
		assert.True(t, allowed, "request %d", i+1)
	}

	allowed, err := limiter.Allow(ctx, 1001, "bet")
	require.NoError(t, err)
	assert.False(t, allowed)

	allowed, err = limiter.Allow(ctx, 2002, "bet")
	require.NoError(t, err)
	assert.True(t, allowed, "limits are per user")

	ttl, err := client.TTL(ctx, "ratelimit:bet:1001").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	assert.Eventually(t, func() bool {
		allowed, err := limiter.Allow(ctx, 1001, "bet")
		return err == nil && allowed
	}, 3*time.Second, 100*time.Millisecond)
}

func TestNoopRateLimiter(t *testing.T) {
	t.Parallel()

	allowed, err := NoopRateLimiter{}.Allow(context.Background(), 1, "bet")
	require.NoError(t, err)
	assert.True(t, allowed)
}
