// The scheduler drains due reminder jobs into the outbox and publishes
// pending outbox rows to Kafka. It can run alongside the api process; both
// use FOR UPDATE SKIP LOCKED so instances never double-deliver.
package main

import (
	"context"
	"net/http"
	"time"

	"tablebook/internal/config"
	"tablebook/internal/db"
	"tablebook/internal/jobs"
	"tablebook/internal/otelx"
	"tablebook/internal/outbox"
	"tablebook/internal/runtime"
)

func main() {
	service := config.String("SERVICE_NAME", "tablebook-scheduler")
	port, err := config.Port("PORT", "8081")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	outboxRepo := outbox.NewRepository(pool)
	jobsRepo := jobs.NewRepository()

	worker := jobs.NewWorker(pool, jobsRepo, outboxRepo, logger, jobs.WorkerConfig{
		Interval:  config.Minutes("WORKER_INTERVAL_MINUTES", 0),
		BatchSize: config.Int("WORKER_BATCH_SIZE", 50),
		Backoff:   config.Minutes("WORKER_BACKOFF_MINUTES", time.Minute),
	})
	go worker.Run(ctx)

	publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go publisher.Run(ctx)

	mux := runtime.NewHealthMux(pool, config.String("KAFKA_BROKERS", ""))
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("scheduler stopped")
}
