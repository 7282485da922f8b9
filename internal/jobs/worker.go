package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"tablebook/internal/db"
	"tablebook/internal/outbox"
	"tablebook/internal/otelx"
)

// Worker drains due reminder jobs into the outbox on a fixed tick. Moving the
// job and writing the event happen in one transaction, so a reminder is
// handed to the publisher exactly once.
type Worker struct {
	pool      *db.Pool
	repo      *Repository
	outbox    *outbox.Repository
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
	backoff   time.Duration
}

type WorkerConfig struct {
	Interval  time.Duration
	BatchSize int
	Backoff   time.Duration
}

func NewWorker(pool *db.Pool, repo *Repository, outboxRepo *outbox.Repository, logger *slog.Logger, cfg WorkerConfig) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 1 * time.Minute
	}
	return &Worker{
		pool:      pool,
		repo:      repo,
		outbox:    outboxRepo,
		logger:    logger,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
		backoff:   cfg.Backoff,
	}
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.processBatch(ctx); err != nil {
				w.logger.Error("reminder batch failed", "err", err)
			}
		}
	}
}

func (w *Worker) processBatch(ctx context.Context) error {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	due, err := w.repo.FetchDue(ctx, tx, w.batchSize)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return tx.Commit(ctx)
	}

	var done []int64
	for _, job := range due {
		jobCtx := otelx.ContextWithTraceContext(ctx, job.Traceparent, job.Tracestate)
		payload, err := json.Marshal(map[string]any{
			"booking_id": job.BookingID,
			"recipient":  job.Recipient,
			"full_name":  job.FullName,
			"starts_at":  job.StartsAt.UTC().Format(time.RFC3339),
			"remind_at":  job.RemindAt.UTC().Format(time.RFC3339),
		})
		if err == nil {
			err = w.outbox.Insert(jobCtx, tx, outbox.Event{
				AggregateType: "booking",
				AggregateID:   job.BookingID,
				EventType:     "booking.reminder.due.v1",
				Payload:       payload,
			})
		}
		if err != nil {
			nextRunAt := time.Now().UTC().Add(w.backoff)
			if ferr := w.repo.MarkFailed(ctx, tx, job.ID, job.Attempts+1, job.MaxAttempts, nextRunAt, err.Error()); ferr != nil {
				return ferr
			}
			w.logger.Warn("reminder enqueue failed", "booking_id", job.BookingID, "err", err)
			continue
		}
		done = append(done, job.ID)
	}

	if err := w.repo.MarkProcessed(ctx, tx, done); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
