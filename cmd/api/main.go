package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"tablebook/internal/auth"
	"tablebook/internal/booking"
	"tablebook/internal/config"
	"tablebook/internal/db"
	"tablebook/internal/handlers"
	"tablebook/internal/httpx"
	"tablebook/internal/jobs"
	"tablebook/internal/otelx"
	"tablebook/internal/outbox"
	"tablebook/internal/runtime"
	"tablebook/internal/storage"
	"tablebook/internal/tables"
	"tablebook/internal/timeslot"
)

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func loadRules() (timeslot.Rules, error) {
	rules := timeslot.DefaultRules()

	loc, err := time.LoadLocation(config.String("RESTAURANT_TIMEZONE", "UTC"))
	if err != nil {
		return timeslot.Rules{}, err
	}
	rules.Location = loc

	if rules.Open, err = timeslot.ParseTimeOfDay(config.String("OPEN_TIME", "12:00")); err != nil {
		return timeslot.Rules{}, err
	}
	if rules.Close, err = timeslot.ParseTimeOfDay(config.String("CLOSE_TIME", "22:00")); err != nil {
		return timeslot.Rules{}, err
	}
	rules.SlotMinutes = config.Int("SLOT_MINUTES", 15)
	rules.Duration = config.Minutes("BOOKING_DURATION_MINUTES", 120*time.Minute)
	rules.MaxDaysAhead = config.Int("MAX_DAYS_AHEAD", 30)
	return rules, nil
}

func main() {
	service := config.String("SERVICE_NAME", "tablebook-api")
	port, err := config.Port("PORT", "8080")
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
	jwtSecret, err := config.RequiredString("JWT_SECRET")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	rules, err := loadRules()
	if err != nil {
		logger.Error("invalid booking rules config", "err", err)
		panic(err)
	}

	bookingRepo := storage.NewBookingRepository(pool)
	tableRepo := storage.NewTableRepository(pool)
	userRepo := storage.NewUserRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	jobsRepo := jobs.NewRepository()

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	var bookingSvc booking.Lifecycle = booking.NewService(bookingRepo, tableRepo, userRepo, jobsRepo, rules, logger)
	bookingSvc = booking.NewLogged(bookingSvc, logger)
	tableSvc := tables.NewService(tableRepo, rules)

	tokenTTL := config.Minutes("TOKEN_TTL_MINUTES", time.Hour)
	authHandler := handlers.NewAuthHandler(pool, userRepo, outboxRepo, logger, jwtSecret, tokenTTL)
	bookingHandler := handlers.NewBookingHandler(bookingSvc, logger)
	tableHandler := handlers.NewTableHandler(tableSvc, logger)

	requireAuth := auth.RequireAuth(jwtSecret)
	admin := func(h http.HandlerFunc) http.Handler {
		return requireAuth(auth.RequireAdmin(h))
	}

	mux := runtime.NewHealthMux(pool, config.String("KAFKA_BROKERS", ""))
	mux.HandleFunc("POST /api/v1/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/v1/auth/login", authHandler.Login)

	mux.Handle("POST /api/v1/bookings", requireAuth(http.HandlerFunc(bookingHandler.Create)))
	mux.Handle("GET /api/v1/bookings", requireAuth(http.HandlerFunc(bookingHandler.ListUpcoming)))
	mux.Handle("PATCH /api/v1/bookings/{id}", requireAuth(http.HandlerFunc(bookingHandler.Reschedule)))
	mux.Handle("DELETE /api/v1/bookings/{id}", requireAuth(http.HandlerFunc(bookingHandler.Cancel)))

	mux.HandleFunc("GET /api/v1/tables", tableHandler.List)
	mux.HandleFunc("GET /api/v1/tables/available", tableHandler.ListAvailable)
	mux.HandleFunc("GET /api/v1/tables/{id}", tableHandler.Get)
	mux.Handle("POST /api/v1/tables", admin(tableHandler.Create))
	mux.Handle("PATCH /api/v1/tables/{id}", admin(tableHandler.Update))
	mux.Handle("DELETE /api/v1/tables/{id}", admin(tableHandler.Delete))

	middlewares := []httpx.Middleware{
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecovery(logger),
		httpx.WithBodyLimit(1 << 20),
		httpx.WithTimeout(30 * time.Second),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: splitCSV(config.String("CORS_ALLOWED_ORIGINS", "")),
			AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-Id"},
			MaxAge:         10 * time.Minute,
		}),
	}
	if redisURL := config.String("REDIS_URL", ""); redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL", "err", err)
			panic(err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		limiter := httpx.NewRedisRateLimiter(rdb,
			config.Int("RATE_LIMIT_PER_MINUTE", 120),
			time.Minute,
			service,
		)
		middlewares = append(middlewares, limiter.Middleware(logger, true))
	}

	httpHandler := httpx.Chain(mux, middlewares...)
	httpHandler = otelhttp.NewHandler(httpHandler, "api")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
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
	logger.Info("http server stopped")
}
