// Package jobs stores scheduled booking reminders. A job row is written in
// the same transaction as the booking it belongs to; the worker later drains
// due rows into the outbox. Reminder delivery is strictly best-effort and can
// never fail a booking operation.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"tablebook/internal/otelx"
)

type Job struct {
	ID          int64
	BookingID   string
	Recipient   string
	FullName    string
	StartsAt    time.Time // booking start, shown in the reminder body
	RemindAt    time.Time
	Traceparent string
	Tracestate  string
	Attempts    int
	MaxAttempts int
	NextRunAt   time.Time
}

type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

// ScheduleTx upserts the reminder for a booking. One pending reminder per
// (booking, remind_at) pair; re-running the same schedule is a no-op.
func (r *Repository) ScheduleTx(ctx context.Context, tx pgx.Tx, job Job) error {
	key := fmt.Sprintf("%s:%d", job.BookingID, job.RemindAt.UTC().Unix())
	traceparent, tracestate := otelx.TraceContextStrings(ctx)
	_, err := tx.Exec(ctx, `
		INSERT INTO reminder_jobs (idempotency_key, booking_id, recipient, full_name, starts_at, remind_at, next_run_at, traceparent, tracestate)
		VALUES ($1, $2, $3, $4, $5, $6, $6, $7, $8)
		ON CONFLICT (idempotency_key) DO NOTHING
	`, key, job.BookingID, job.Recipient, job.FullName, job.StartsAt, job.RemindAt, traceparent, tracestate)
	return err
}

// DeleteForBookingTx drops pending reminders for a booking, used when it is
// rescheduled or canceled. Already-processed rows are kept for the record.
func (r *Repository) DeleteForBookingTx(ctx context.Context, tx pgx.Tx, bookingID string) error {
	_, err := tx.Exec(ctx, `
		DELETE FROM reminder_jobs
		WHERE booking_id = $1 AND status = 'pending'
	`, bookingID)
	return err
}

func (r *Repository) FetchDue(ctx context.Context, tx pgx.Tx, limit int) ([]Job, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, booking_id, recipient, full_name, starts_at, remind_at, traceparent, tracestate, attempts, max_attempts, next_run_at
		FROM reminder_jobs
		WHERE status = 'pending' AND next_run_at <= now()
		ORDER BY next_run_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var j Job
		if err := rows.Scan(&j.ID, &j.BookingID, &j.Recipient, &j.FullName, &j.StartsAt, &j.RemindAt, &j.Traceparent, &j.Tracestate, &j.Attempts, &j.MaxAttempts, &j.NextRunAt); err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return jobs, nil
}

func (r *Repository) MarkProcessed(ctx context.Context, tx pgx.Tx, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `
		UPDATE reminder_jobs
		SET status = 'processed', processed_at = now()
		WHERE id = ANY($1)
	`, ids)
	return err
}

// MarkFailed bumps the attempt counter and either re-queues the job at
// nextRunAt or dead-letters it once attempts are exhausted.
func (r *Repository) MarkFailed(ctx context.Context, tx pgx.Tx, id int64, attempts, maxAttempts int, nextRunAt time.Time, reason string) error {
	if attempts >= maxAttempts {
		_, err := tx.Exec(ctx, `
			UPDATE reminder_jobs
			SET status = 'failed', attempts = $2, last_error = $3
			WHERE id = $1
		`, id, attempts, reason)
		return err
	}
	_, err := tx.Exec(ctx, `
		UPDATE reminder_jobs
		SET attempts = $2, next_run_at = $3, last_error = $4
		WHERE id = $1
	`, id, attempts, nextRunAt, reason)
	return err
}
