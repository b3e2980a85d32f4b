// Package app wires configuration, infrastructure and services into a Container
// shared by the HTTP server and the distributor CLI.
package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/spec-kit/lead-distribution/internal/allocation"
	"github.com/spec-kit/lead-distribution/internal/config"
	"github.com/spec-kit/lead-distribution/internal/events"
	"github.com/spec-kit/lead-distribution/internal/observability"
	"github.com/spec-kit/lead-distribution/internal/persistence"
	"github.com/spec-kit/lead-distribution/internal/repository"
	"github.com/spec-kit/lead-distribution/internal/service"
	"github.com/spec-kit/lead-distribution/internal/worker"
)

// Container owns long lived dependencies.
type Container struct {
	Config       *config.Config
	Logger       *zap.Logger
	Registry     *prometheus.Registry
	Metrics      *observability.Metrics
	Postgres     *persistence.Postgres
	Redis        *persistence.Redis
	NATS         *persistence.NATS
	Dispatcher   events.Dispatcher
	Distribution *service.DistributionService
}

// New connects to every backing service and builds the distribution service.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Container, error) {
	c := &Container{Config: cfg, Logger: logger}

	c.Registry = prometheus.NewRegistry()
	c.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	c.Metrics = observability.NewMetrics(c.Registry)

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	c.Postgres = pg

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			c.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	c.Redis, err = persistence.NewRedis(ctx, cfg.Redis, cfg.Distribution.RoundRobinLock == config.LockModeRedis, logger)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	nc, err := persistence.NewNATS(cfg.NATS, logger)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	c.NATS = nc

	c.Dispatcher = events.NewInMemoryDispatcher()
	worker.StartNotificationWorker(
		service.NewNotificationService(c.Dispatcher, logger, cfg.Notification),
		events.NewNATSPublisher(nc.Conn, cfg.NATS.SubjectPrefix, logger),
		c.Dispatcher,
	)

	pool := pg.PoolHandle()
	c.Distribution = service.NewDistributionService(service.DistributionDependencies{
		SettingsRepo: repository.NewSettingsRepository(pool),
		LeadRepo:     repository.NewLeadRepository(pool),
		StaffRepo:    repository.NewStaffRepository(pool),
		TxManager:    repository.NewTxManager(pool),
		Locker:       c.rotationLocker(),
		Dispatcher:   c.Dispatcher,
		Metrics:      c.Metrics,
		Logger:       logger,
		Config:       cfg.Distribution,
	})
	return c, nil
}

func (c *Container) rotationLocker() allocation.Locker {
	switch c.Config.Distribution.RoundRobinLock {
	case config.LockModeLocal:
		return allocation.NewLocalLocker()
	case config.LockModeRedis:
		return persistence.NewRedisLocker(c.Redis, c.Config.Distribution.LockKeyNamespace, c.Config.Distribution.LockTTL())
	default:
		return allocation.NopLocker{}
	}
}

// Close releases connections in reverse order of creation.
func (c *Container) Close() {
	c.NATS.Close()
	c.Redis.Close()
	c.Postgres.Close()
}
