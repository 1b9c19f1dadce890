package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/taskscheduler/pkg/admin"
	"github.com/dmitrymomot/taskscheduler/pkg/backend/memory"
	"github.com/dmitrymomot/taskscheduler/pkg/backend/mongo"
	"github.com/dmitrymomot/taskscheduler/pkg/backend/pg"
	"github.com/dmitrymomot/taskscheduler/pkg/backend/redis"
	"github.com/dmitrymomot/taskscheduler/pkg/backend/s3"
	"github.com/dmitrymomot/taskscheduler/pkg/backend/sqs"
	"github.com/dmitrymomot/taskscheduler/pkg/config"
	"github.com/dmitrymomot/taskscheduler/pkg/logger"
	"github.com/dmitrymomot/taskscheduler/pkg/scheduler"
)

var ErrUnknownBackend = errors.New("unknown backend")

// openedBackend is a connected queue backend plus what the process needs to
// probe and release it.
type openedBackend struct {
	backend  scheduler.Backend
	checks   []admin.HealthCheck
	shutdown func(ctx context.Context) error

	// recoverTopic returns in-flight messages left by a previous process, if the backend supports it.
	recoverTopic func(ctx context.Context, topic string) (int, error)
}

func noClose(context.Context) error { return nil }

// openBackend connects the backend selected by name using its env config.
func openBackend(ctx context.Context, name string, log *slog.Logger) (*openedBackend, error) {
	log = log.With(logger.Backend(name))

	switch name {
	case "memory", "":
		return &openedBackend{backend: memory.New(), shutdown: noClose}, nil

	case "redis":
		var cfg redis.Config
		if err := config.Load(&cfg); err != nil {
			return nil, err
		}
		client, err := redis.Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		b, err := redis.New(client, cfg)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		return &openedBackend{
			backend:      b,
			checks:       []admin.HealthCheck{redis.Healthcheck(client)},
			shutdown:     func(context.Context) error { return client.Close() },
			recoverTopic: b.Recover,
		}, nil

	case "pg":
		var cfg pg.Config
		if err := config.Load(&cfg); err != nil {
			return nil, err
		}
		pool, err := pg.Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx, pool, cfg, log); err != nil {
			pool.Close()
			return nil, err
		}
		b, err := pg.New(pool, cfg)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return &openedBackend{
			backend: b,
			checks:  []admin.HealthCheck{pg.Healthcheck(pool)},
			shutdown: func(context.Context) error {
				pool.Close()
				return nil
			},
		}, nil

	case "mongo":
		var cfg mongo.Config
		if err := config.Load(&cfg); err != nil {
			return nil, err
		}
		client, err := mongo.Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		b, err := mongo.New(client.Database(cfg.Database), cfg)
		if err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		if err := b.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		return &openedBackend{
			backend:  b,
			checks:   []admin.HealthCheck{mongo.Healthcheck(client)},
			shutdown: client.Disconnect,
		}, nil

	case "sqs":
		var cfg sqs.Config
		if err := config.Load(&cfg); err != nil {
			return nil, err
		}
		b, err := sqs.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return &openedBackend{backend: b, shutdown: noClose}, nil

	case "s3":
		var cfg s3.Config
		if err := config.Load(&cfg); err != nil {
			return nil, err
		}
		b, err := s3.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return &openedBackend{backend: b, shutdown: noClose}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
}
