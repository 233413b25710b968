//go:build integration

package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"crboard/internal/changerequest/models"
	"crboard/internal/platform/config"
	"crboard/pkg/testutil/containers"
)

func TestNew_ServerBackends(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	mgr := containers.GetManager()

	t.Run(config.BackendRedis, func(t *testing.T) {
		rc := mgr.GetRedis(t)
		cfg := baseConfig(t, config.BackendMemory)
		cfg.Store.Backend = config.BackendRedis
		cfg.Redis = rc.Config(containers.DocumentKey(t))
		require.NoError(t, rc.Reset(context.Background(), cfg.Redis.Key))

		exerciseApp(t, newApp(t, cfg))
	})

	t.Run(config.BackendPostgres, func(t *testing.T) {
		pg := mgr.GetPostgres(t)
		cfg := baseConfig(t, config.BackendMemory)
		cfg.Store.Backend = config.BackendPostgres
		cfg.Postgres.URL = pg.DSN
		a := newApp(t, cfg)
		// the table exists once New has migrated
		require.NoError(t, pg.TruncateTables(context.Background(), "registry_document"))

		exerciseApp(t, a)
	})

	t.Run("kafka", func(t *testing.T) {
		rp := mgr.GetRedpanda(t)
		cfg := baseConfig(t, config.BackendMemory)
		cfg.Kafka.Brokers = []string{rp.Broker}
		cfg.Kafka.Topic = "crboard.app-test"

		exerciseApp(t, newApp(t, cfg))
	})
}

func exerciseApp(t *testing.T, a *App) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, a.Health(ctx))

	_, err := a.Service.Create(ctx, models.ChangeRequest{
		CRID: "CR-INT-1", Title: "X", Application: "rnqc", Owner: "alice",
	})
	require.NoError(t, err)

	crs, err := a.Service.List(ctx, "rnqc")
	require.NoError(t, err)
	require.NotEmpty(t, crs)
}
