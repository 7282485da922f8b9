package booking

import (
	"context"
	"log/slog"
	"time"

	"tablebook/internal/model"
	"tablebook/internal/timeslot"
)

// Logged wraps a Lifecycle and emits one structured log line per operation
// with its outcome and duration.
type Logged struct {
	next   Lifecycle
	logger *slog.Logger
}

func NewLogged(next Lifecycle, logger *slog.Logger) *Logged {
	return &Logged{next: next, logger: logger}
}

func (l *Logged) Create(ctx context.Context, userID, tableID string, date timeslot.Date, at timeslot.TimeOfDay) (model.Booking, error) {
	started := time.Now()
	b, err := l.next.Create(ctx, userID, tableID, date, at)
	l.log(ctx, "booking.create", started, err, "table_id", tableID, "booking_id", b.ID)
	return b, err
}

func (l *Logged) Reschedule(ctx context.Context, bookingID, userID string, date timeslot.Date, at timeslot.TimeOfDay) (model.Booking, error) {
	started := time.Now()
	b, err := l.next.Reschedule(ctx, bookingID, userID, date, at)
	l.log(ctx, "booking.reschedule", started, err, "booking_id", bookingID)
	return b, err
}

func (l *Logged) Cancel(ctx context.Context, bookingID, userID string) error {
	started := time.Now()
	err := l.next.Cancel(ctx, bookingID, userID)
	l.log(ctx, "booking.cancel", started, err, "booking_id", bookingID)
	return err
}

func (l *Logged) ListUpcoming(ctx context.Context, userID string) ([]model.Booking, error) {
	started := time.Now()
	bs, err := l.next.ListUpcoming(ctx, userID)
	l.log(ctx, "booking.list_upcoming", started, err, "count", len(bs))
	return bs, err
}

func (l *Logged) log(ctx context.Context, op string, started time.Time, err error, attrs ...any) {
	attrs = append(attrs, "op", op, "duration_ms", time.Since(started).Milliseconds())
	if err != nil {
		attrs = append(attrs, "err", err)
		l.logger.WarnContext(ctx, "booking operation failed", attrs...)
		return
	}
	l.logger.InfoContext(ctx, "booking operation", attrs...)
}
