// The notifier consumes booking events from Kafka and sends the matching
// emails. The inbox table keeps redeliveries from producing duplicate mail.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/segmentio/kafka-go"

	"tablebook/internal/config"
	"tablebook/internal/consumer"
	"tablebook/internal/db"
	"tablebook/internal/email"
	"tablebook/internal/inbox"
	"tablebook/internal/kafkax"
	"tablebook/internal/otelx"
	"tablebook/internal/runtime"
)

type reminderEvent struct {
	BookingID string    `json:"booking_id"`
	Recipient string    `json:"recipient"`
	FullName  string    `json:"full_name"`
	StartsAt  time.Time `json:"starts_at"`
}

type registeredEvent struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

func main() {
	service := config.String("SERVICE_NAME", "tablebook-notifier")
	port, err := config.Port("PORT", "8082")
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

	sender := email.NewSMTPSender(
		config.String("SMTP_HOST", "localhost"),
		config.String("SMTP_PORT", "1025"),
		config.String("SMTP_FROM", ""),
	)

	handle := func(ctx context.Context, msg kafka.Message) error {
		meta := kafkax.ExtractEventMeta(msg)
		switch meta.EventType {
		case "booking.reminder.due.v1":
			var evt reminderEvent
			if err := json.Unmarshal(msg.Value, &evt); err != nil {
				logger.Error("invalid reminder payload", "err", err)
				return nil
			}
			if evt.Recipient == "" {
				logger.Warn("reminder without recipient", "booking_id", evt.BookingID)
				return nil
			}
			body := fmt.Sprintf("Hi %s, reminder about your booking at %s.",
				evt.FullName, evt.StartsAt.UTC().Format(time.RFC1123))
			return sender.Send(evt.Recipient, "Booking reminder", body)

		case "auth.user.registered.v1":
			var evt registeredEvent
			if err := json.Unmarshal(msg.Value, &evt); err != nil {
				logger.Error("invalid registration payload", "err", err)
				return nil
			}
			if evt.Email == "" {
				return nil
			}
			body := fmt.Sprintf("Hi %s, your account is ready.", evt.FullName)
			return sender.Send(evt.Email, "Welcome to Table Reservations", body)

		default:
			logger.Info("ignoring event", "event_type", meta.EventType, "topic", msg.Topic)
			return nil
		}
	}

	eventConsumer := consumer.New(logger, inbox.NewRepository(pool), consumer.Config{
		Brokers: config.String("KAFKA_BROKERS", ""),
		GroupID: config.String("KAFKA_GROUP_ID", "tablebook-notifier"),
		Topics:  []string{"booking.reminder.due.v1", "auth.user.registered.v1"},
	}, handle)
	go eventConsumer.Run(ctx)

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
	logger.Info("notifier stopped")
}
