//go:build integration

package containers

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"crboard/internal/platform/config"
	"crboard/internal/platform/redis"
)

// RedisContainer is a Redis instance shared by the registry store suites.
type RedisContainer struct {
	Container testcontainers.Container
	URL       string
	Client    *redis.Client
}

// NewRedisContainer starts Redis and connects to it the way the server does.
func NewRedisContainer(t *testing.T) *RedisContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}

	url, err := container.ConnectionString(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get redis connection string: %v", err)
	}

	rc := &RedisContainer{Container: container, URL: url}
	client, err := redis.New(ctx, rc.Config(""))
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to connect to redis: %v", err)
	}
	rc.Client = client
	return rc
}

// Config returns client settings for the container. An empty key names the
// document after the calling test so suites sharing the container do not
// see each other's registry.
func (r *RedisContainer) Config(key string) config.RedisConfig {
	return config.RedisConfig{
		URL:          r.URL,
		Key:          key,
		PoolSize:     4,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// DocumentKey derives a registry key unique to t.
func DocumentKey(t *testing.T) string {
	return "crboard:test:" + strings.ReplaceAll(t.Name(), "/", ":")
}

// Reset removes the given document keys.
func (r *RedisContainer) Reset(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := r.Client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("reset redis keys: %w", err)
	}
	return nil
}
