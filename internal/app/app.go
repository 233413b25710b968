// Package app assembles the registry service from configuration. The HTTP
// server and the operator CLI share it so both talk to the same backend the
// same way.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"crboard/internal/changerequest/metrics"
	"crboard/internal/changerequest/service"
	"crboard/internal/changerequest/store"
	"crboard/internal/changerequest/store/migrations"
	"crboard/internal/changerequest/store/seed"
	"crboard/internal/platform/badger"
	"crboard/internal/platform/config"
	"crboard/internal/platform/kafka"
	"crboard/internal/platform/postgres"
	"crboard/internal/platform/redis"
	"crboard/internal/platform/sqlite"
	"crboard/pkg/platform/audit/publisher"
	kafkasink "crboard/pkg/platform/audit/publishers/kafka"
	"crboard/pkg/platform/audit/store/logstore"
	"crboard/pkg/platform/circuit"
)

// auditBuffer is the number of change events queued for async delivery.
const auditBuffer = 256

// App owns the service and every resource it was built on.
type App struct {
	Service *service.Service
	Metrics *metrics.Metrics

	health  func(ctx context.Context) error
	closers []func() error
}

// Health checks the document backend connection.
func (a *App) Health(ctx context.Context) error {
	if a.health == nil {
		return nil
	}
	return a.health(ctx)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// New builds the service described by cfg. reg may be nil to register no
// metrics.
func New(ctx context.Context, cfg config.Server, logger *slog.Logger, reg prometheus.Registerer) (*App, error) {
	a := &App{}
	if reg != nil {
		a.Metrics = metrics.NewWithRegisterer(reg)
	}

	backend, err := a.openBackend(ctx, cfg, logger)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	breaker := circuit.New("registry-store",
		circuit.WithFailureThreshold(cfg.Store.BreakerFailures),
		circuit.WithSuccessThreshold(cfg.Store.BreakerSuccesses),
		circuit.WithCooldown(cfg.Store.BreakerCooldown),
	)
	guarded := store.NewGuarded(backend,
		store.WithTimeout(cfg.Store.Timeout),
		store.WithBreaker(breaker),
		store.WithGuardLogger(logger),
		store.WithGuardMetrics(a.Metrics),
	)

	storeOpts := []store.Option{store.WithLogger(logger), store.WithMetrics(a.Metrics)}
	if cfg.Store.SeedFile != "" {
		doc, err := seed.FromFile(cfg.Store.SeedFile)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		storeOpts = append(storeOpts, store.WithSeed(doc))
	}
	st := store.New(guarded, storeOpts...)

	pub, err := a.openPublisher(ctx, cfg, logger)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	svc, err := service.New(st,
		service.WithLogger(logger),
		service.WithMetrics(a.Metrics),
		service.WithAuditPublisher(pub),
	)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Service = svc
	return a, nil
}

func (a *App) openBackend(ctx context.Context, cfg config.Server, logger *slog.Logger) (store.Backend, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		logger.Warn("using in-memory registry store; data is lost on restart")
		return store.NewMemory(), nil

	case config.BackendRedis:
		client, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		a.health = client.Health
		return store.NewRedis(client.Client, cfg.Redis.Key), nil

	case config.BackendPostgres:
		db, err := postgres.Open(ctx, cfg.Postgres, migrations.Postgres, "postgres")
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		a.health = db.PingContext
		return store.NewPostgres(db), nil

	case config.BackendSQLite:
		db, err := sqlite.Open(cfg.SQLite.Path, migrations.SQLite, "sqlite")
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		a.health = db.PingContext
		return store.NewSQLite(db), nil

	case config.BackendBadger:
		db, err := badger.Open(cfg.Badger, logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		return store.NewBadger(db), nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func (a *App) openPublisher(ctx context.Context, cfg config.Server, logger *slog.Logger) (*publisher.Publisher, error) {
	if !cfg.Kafka.Enabled() {
		return publisher.NewPublisher(logstore.New(logger), publisher.WithLogger(logger)), nil
	}
	client, err := kafka.NewClient(ctx, cfg.Kafka)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error {
		client.Close()
		return nil
	})
	pub := publisher.NewPublisher(kafkasink.New(client, cfg.Kafka.Topic),
		publisher.WithAsyncBuffer(auditBuffer),
		publisher.WithLogger(logger),
	)
	// drains queued events before the client above is closed
	a.closers = append(a.closers, func() error {
		pub.Close()
		return nil
	})
	logger.Info("publishing change events to kafka", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	return pub, nil
}
