package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, 5*time.Second, cfg.Store.Timeout)
	assert.Equal(t, 3, cfg.ConflictRetries)
	assert.Equal(t, "crboard:registry", cfg.Redis.Key)
	assert.False(t, cfg.Kafka.Enabled())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("CRBOARD_ADDR", ":9090")
	t.Setenv("CRBOARD_STORE_BACKEND", "postgres")
	t.Setenv("CRBOARD_POSTGRES_URL", "postgres://u:p@localhost/db?sslmode=disable")
	t.Setenv("CRBOARD_STORE_TIMEOUT", "750ms")
	t.Setenv("CRBOARD_KAFKA_BROKERS", "a:9092,b:9092")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, BackendPostgres, cfg.Store.Backend)
	assert.Equal(t, 750*time.Millisecond, cfg.Store.Timeout)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Kafka.Enabled())
}

func TestFromEnvErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"unparseable duration", map[string]string{"CRBOARD_STORE_TIMEOUT": "soon"}, "parse env:"},
		{"unknown backend", map[string]string{"CRBOARD_STORE_BACKEND": "mongo"}, "unknown store backend"},
		{"redis without url", map[string]string{"CRBOARD_STORE_BACKEND": "redis"}, "CRBOARD_REDIS_URL"},
		{"postgres without url", map[string]string{"CRBOARD_STORE_BACKEND": "postgres"}, "CRBOARD_POSTGRES_URL"},
		{"negative retries", map[string]string{"CRBOARD_CONFLICT_RETRIES": "-1"}, "conflict retries"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
