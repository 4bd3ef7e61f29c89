package server

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	"SignalCast/internal/domain/repository"
	"SignalCast/internal/usecase"
	"SignalCast/pkg/cache"
	pkgch "SignalCast/pkg/clickhouse"
	"SignalCast/pkg/config"
	xhttp "SignalCast/pkg/http"
	pkgkafka "SignalCast/pkg/kafka"
	"SignalCast/pkg/logger"
	"SignalCast/pkg/queue"
)

// Deps are the components App runs. Optional ones may be nil.
type Deps struct {
	Config     *config.Config
	Logger     *logger.Logger
	Handler    xhttp.Handler
	Collector  *usecase.QuoteCollector
	Consumer   *pkgkafka.Consumer
	Ingest     pkgkafka.MessageHandler
	Jobs       *queue.RedisQueue
	Scheduler  *usecase.SweepScheduler
	Publisher  repository.PredictionPublisher
	Cache      cache.Service
	ClickHouse *pkgch.Client
}

// App encapsulates the entire application lifecycle.
type App struct {
	Deps
	log        *logger.Logger
	httpServer *xhttp.Server
}

func New(d Deps) *App {
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}
	return &App{Deps: d, log: d.Logger.With(logger.String("component", "app"))}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.start(ctx); err != nil {
		_ = a.shutdown(context.Background())
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	cancel()
	return a.shutdown(context.Background())
}

func (a *App) start(ctx context.Context) error {
	cfg := a.Config

	a.httpServer = xhttp.NewServer(a.Handler,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithLogger(a.Logger),
		xhttp.WithMetricsPath(metricsPath(cfg)),
		xhttp.WithSlowThreshold(cfg.Server.SlowThreshold),
		xhttp.WithCORS(!cfg.Server.DisableCORS, cfg.Server.CORSOrigins...),
	)

	if a.Jobs != nil {
		if err := a.Jobs.Start(); err != nil {
			return err
		}
		a.log.Info("job queue started")
	}

	if a.Scheduler != nil {
		a.Scheduler.Start(ctx)
		a.log.Info("resolution sweep scheduled", logger.Duration("interval", cfg.Prediction.ResolveInterval))
	}

	if a.Collector != nil {
		if err := a.Collector.Start(ctx); err != nil {
			a.log.Error("collector error", logger.Error(err))
		} else {
			a.log.Info("collector started", logger.Strings("symbols", cfg.Prediction.Symbols))
		}
	}

	if a.Consumer != nil && a.Ingest != nil {
		a.Consumer.RegisterHandler(a.Ingest)
		if err := a.Consumer.Start(); err != nil {
			return err
		}
		a.log.Info("kafka consumer started", logger.String("topic", a.Ingest.Topic()))
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", logger.Error(err))
		return err
	}
	a.log.Info("http server started", logger.Int("port", cfg.Server.Port))
	return nil
}

func metricsPath(cfg *config.Config) string {
	if !cfg.Metrics.Enabled {
		return ""
	}
	return cfg.Metrics.Path
}

// shutdown stops producers of work first, then the sinks they write to.
func (a *App) shutdown(ctx context.Context) error {
	a.log.Info("shutting down...")
	var errs []error

	if a.Collector != nil {
		if err := a.Collector.Shutdown(ctx); err != nil {
			a.log.Warn("collector stop error", logger.Error(err))
		}
	}
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}

	if a.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			a.log.Error("http shutdown error", logger.Error(err))
			errs = append(errs, err)
		}
		cancel()
	}

	if a.Consumer != nil {
		if err := a.Consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", logger.Error(err))
		}
	}
	if a.Jobs != nil {
		if err := a.Jobs.Stop(ctx); err != nil {
			a.log.Warn("job queue stop error", logger.Error(err))
		}
	}

	a.log.RemoveCollector()

	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			a.log.Warn("publisher close error", logger.Error(err))
		}
	}
	if a.ClickHouse != nil {
		if err := a.ClickHouse.Close(); err != nil {
			a.log.Warn("clickhouse close error", logger.Error(err))
		}
	}
	if c, ok := a.Cache.(io.Closer); ok && c != nil {
		if err := c.Close(); err != nil {
			a.log.Warn("cache close error", logger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return errors.Join(errs...)
}
