// Command taskscheduler polls queue topics and dispatches their messages to
// handlers declared in a YAML manifest, with an HTTP admin API on the side.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/taskscheduler/pkg/admin"
	"github.com/dmitrymomot/taskscheduler/pkg/config"
	"github.com/dmitrymomot/taskscheduler/pkg/logger"
	"github.com/dmitrymomot/taskscheduler/pkg/scheduler"
)

// appConfig holds process-level settings.
type appConfig struct {
	Env          string `env:"APP_ENV" envDefault:"development"`
	Name         string `env:"APP_NAME" envDefault:"taskscheduler"`
	LogLevel     string `env:"LOG_LEVEL"`
	Backend      string `env:"BACKEND" envDefault:"memory"`
	ManifestPath string `env:"MANIFEST_PATH"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("taskscheduler exited with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var cfg appConfig
	if err := config.Load(&cfg); err != nil {
		return err
	}

	opts := []logger.Option{logger.WithEnvironment(cfg.Env, cfg.Name)}
	if cfg.LogLevel != "" {
		opts = append(opts, logger.WithLevelName(cfg.LogLevel))
	}
	log := logger.New(opts...)
	logger.SetAsDefault(log)

	manifest, err := loadManifest(cfg.ManifestPath)
	if err != nil {
		return err
	}

	var schedCfg scheduler.Config
	if err := config.Load(&schedCfg); err != nil {
		return err
	}
	var adminCfg admin.Config
	if err := config.Load(&adminCfg); err != nil {
		return err
	}

	opened, err := openBackend(ctx, cfg.Backend, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := opened.shutdown(context.WithoutCancel(ctx)); err != nil {
			log.Error("failed to close backend", logger.Backend(cfg.Backend), logger.Error(err))
		}
	}()

	if opened.recoverTopic != nil {
		for _, topic := range manifest.AllTopics() {
			n, err := opened.recoverTopic(ctx, topic)
			if err != nil {
				return err
			}
			if n > 0 {
				log.Info("recovered in-flight messages", logger.Topic(topic), slog.Int("count", n))
			}
		}
	}

	s, err := scheduler.New(opened.backend,
		scheduler.WithConfig(schedCfg),
		scheduler.WithLogger(log),
		scheduler.WithSleepHook(func(info scheduler.HandlerInfo) {
			log.Info("handler asleep, wake it via the admin API",
				logger.HandlerID(info.ID),
				logger.Topic(info.Topic))
		}))
	if err != nil {
		return err
	}

	if err := register(ctx, s, manifest, log); err != nil {
		s.Stop()
		return err
	}

	router := admin.Router(s,
		admin.WithLogger(log),
		admin.WithHealthChecks(opened.checks...),
		admin.WithMaxBodyBytes(adminCfg.MaxBodyBytes))
	srv := admin.NewServerFromConfig(adminCfg, admin.WithServerLogger(log))

	log.Info("taskscheduler started",
		logger.Backend(cfg.Backend),
		slog.Int("handlers", len(manifest.Handlers)))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(s.Run(gctx))
	g.Go(func() error { return srv.Run(gctx, router) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
