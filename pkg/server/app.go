package server

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"GapSight/internal/handler/api"
	"GapSight/internal/usecase"
	"GapSight/pkg/config"
	xhttp "GapSight/pkg/http"
	pkgkafka "GapSight/pkg/kafka"
	"GapSight/pkg/logger"
	"GapSight/pkg/queue"
)

// App owns the lifecycle of the HTTP server and the optional background workers.
// Infrastructure clients are closed by the cleanup function returned from DI.
type App struct {
	cfg       *config.Config
	log       *logger.Logger
	server    *xhttp.Server
	hub       *api.GrowthHub
	collector *usecase.SnapshotCollector
	consumer  *pkgkafka.Consumer
	queue     *queue.RedisQueue
}

// New creates the application. collector, consumer and q may be nil when disabled.
func New(
	cfg *config.Config,
	log *logger.Logger,
	server *xhttp.Server,
	hub *api.GrowthHub,
	collector *usecase.SnapshotCollector,
	consumer *pkgkafka.Consumer,
	q *queue.RedisQueue,
) *App {
	return &App{
		cfg:       cfg,
		log:       log,
		server:    server,
		hub:       hub,
		collector: collector,
		consumer:  consumer,
		queue:     q,
	}
}

// Run starts everything and blocks until SIGINT/SIGTERM, ctx cancellation or a
// fatal server error, then shuts down in reverse order.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	workers, wctx := errgroup.WithContext(ctx)
	if a.queue != nil {
		if err := a.queue.Start(wctx); err != nil {
			return fmt.Errorf("start queue: %w", err)
		}
		a.log.Info("job queue started", logger.String("queue", a.cfg.Queue.Name))
	}
	if a.collector != nil {
		workers.Go(func() error { return a.collector.Run(wctx) })
		a.log.Info("snapshot collector started",
			logger.Duration("interval", a.cfg.Snapshots.Interval),
			logger.String("backend", a.cfg.Snapshots.Backend))
	}
	if a.consumer != nil {
		workers.Go(func() error { return a.consumer.Run(wctx) })
		a.log.Info("kafka consumer started", logger.String("topic", a.cfg.Kafka.Topic))
	}

	serverErr := a.server.Start()
	var runErr error
	select {
	case <-wctx.Done():
		a.log.Info("shutdown signal received")
	case err, ok := <-serverErr:
		if ok && err != nil {
			a.log.Error("http server failed", logger.Error(err))
			runErr = err
		}
	}
	stop()
	return errors.Join(runErr, a.shutdown(workers))
}

func (a *App) shutdown(workers *errgroup.Group) error {
	a.log.Info("shutting down")
	var errs []error

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if a.hub != nil {
		a.hub.Close()
	}
	if err := a.server.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	if a.queue != nil {
		if err := a.queue.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop queue: %w", err))
		}
	}
	// Workers return once their context is cancelled.
	if err := workers.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		errs = append(errs, err)
	}
	if a.consumer != nil {
		if err := a.consumer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close consumer: %w", err))
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		a.log.Error("shutdown finished with errors", logger.Error(err))
	} else {
		a.log.Info("shutdown complete")
	}
	return err
}
