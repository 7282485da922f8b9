// Package runtime holds the per-process plumbing every binary shares: the
// logger, the shutdown signal context and the health endpoints.
package runtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"tablebook/internal/config"
	"tablebook/internal/db"
	"tablebook/internal/kafkax"
)

// NewLogger builds the process-wide JSON logger. LOG_LEVEL accepts debug,
// info, warn or error; anything else falls back to info.
func NewLogger(service string) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(config.String("LOG_LEVEL", "info")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(h).With("service", service)
}

// SignalContext is canceled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// NewHealthMux serves /healthz (liveness, always ok) and /readyz, which pings
// the two dependencies every binary in this system has: Postgres and Kafka.
// An empty broker list skips the Kafka probe, matching the publisher's
// brokerless dev mode.
func NewHealthMux(pool *db.Pool, kafkaBrokers string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := map[string]string{}
		healthy := true

		if err := pool.Ping(ctx); err != nil {
			status["postgres"] = err.Error()
			healthy = false
		} else {
			status["postgres"] = "ok"
		}

		if strings.TrimSpace(kafkaBrokers) != "" {
			if err := kafkax.ReadyCheck(kafkaBrokers)(ctx); err != nil {
				status["kafka"] = err.Error()
				healthy = false
			} else {
				status["kafka"] = "ok"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(status)
	})
	return mux
}
