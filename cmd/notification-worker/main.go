// Package main is the entrypoint for the BlueRide notification worker.
//
// The worker consumes notification requests from the RabbitMQ notification
// queue, decodes each request's purpose (ride matched, ride canceled, auth
// token), composes the matching plain-text email and delivers it over SMTP.
//
// Startup:
//  1. Initialize structured logger.
//  2. Load configuration from environment (and .env in development).
//  3. Initialize email transport: real SMTP relay when credentials are
//     configured, a logging stub otherwise.
//  4. Initialize composer, router, ack controller and metrics.
//  5. Start the queue consumer and the health endpoint, run until a
//     termination signal arrives.
//
// Per-message flow:
//
//	decode envelope -> compose email for the purpose -> send -> ack.
//	Undecodable or uncomposable messages are rejected permanently.
//	Transport failures wait a cooldown and requeue for retry.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"blueride-notifier/internal/config"
	"blueride-notifier/internal/dispatch"
	"blueride-notifier/internal/mailer"
	"blueride-notifier/internal/queue"
	"blueride-notifier/internal/types"
)

// slogAdapter wraps *slog.Logger to implement the types.Logger interface.
// slog.Logger satisfies Info, Error and Warn directly but With returns
// *slog.Logger, not types.Logger, so an adapter is necessary.
type slogAdapter struct {
	logger *slog.Logger
}

func (a *slogAdapter) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a *slogAdapter) With(args ...any) types.Logger {
	return &slogAdapter{logger: a.logger.With(args...)}
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	logger.Info("notification worker initializing")

	typedLogger := &slogAdapter{logger: logger}

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Real SMTP relay when credentials are configured, a logging stub
	// otherwise (development/testing mode).
	var transport mailer.Transport
	if cfg.SMTPConfigured() {
		smtp, err := mailer.NewSMTPTransport(mailer.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
		}, typedLogger)
		if err != nil {
			logger.Error("failed to initialize SMTP transport", "error", err)
			os.Exit(1)
		}
		transport = smtp
	} else {
		logger.Warn("SMTP relay not configured, using stub email transport")
		transport = mailer.NewStubTransport(typedLogger)
	}

	composer, err := dispatch.NewComposer(dispatch.ComposerConfig{
		FromName:        cfg.FromName,
		FromAddress:     cfg.FromAddress,
		DisplayTimezone: cfg.DisplayTimezone,
	})
	if err != nil {
		logger.Error("failed to initialize email composer", "error", err)
		os.Exit(1)
	}

	metrics := dispatch.NewMetrics()
	router := dispatch.NewRouter(composer, transport, typedLogger)
	acks := dispatch.NewAckController(cfg.RequeueDelay, typedLogger)
	handler := dispatch.NewHandler(router, acks, metrics, typedLogger)

	consumer := queue.NewConsumer(queue.Config{
		URL:           cfg.AMQPURL,
		QueueName:     cfg.QueueName,
		PrefetchCount: cfg.PrefetchCount,
		ReconnectWait: cfg.ReconnectWait,
	}, handler, typedLogger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return consumer.Run(ctx)
	})

	g.Go(func() error {
		metrics.LogPeriodically(ctx, time.Minute, typedLogger)
		return nil
	})

	healthSrv := newHealthServer(cfg.HealthPort, metrics)
	g.Go(func() error {
		logger.Info("health endpoint listening", "port", cfg.HealthPort)
		if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return healthSrv.Shutdown(shutdownCtx)
	})

	logger.Info("notification worker started", "queue", cfg.QueueName)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker terminated", "error", err)
		os.Exit(1)
	}

	logger.Info("notification worker stopped")
}

// newHealthServer exposes liveness and the delivery counters.
func newHealthServer(port int, metrics *dispatch.Metrics) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(metrics.Snapshot())
	})

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: r,
	}
}
