// Package booking implements the booking lifecycle: create, reschedule,
// cancel and list-upcoming, built on the timeslot rules and the conflict
// check. All stored instants are UTC; requests arrive as a local calendar
// date plus time-of-day.
package booking

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"tablebook/internal/apperr"
	"tablebook/internal/jobs"
	"tablebook/internal/model"
	"tablebook/internal/storage"
	"tablebook/internal/timeslot"
)

// ReminderLeadTime is how far before the booking start the reminder email is
// scheduled. Bookings starting sooner than this simply get no reminder.
const ReminderLeadTime = 24 * time.Hour

const msgTableUnavailable = "Table is not available for the selected time"

type BookingStore interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	CreateTx(ctx context.Context, tx pgx.Tx, b *model.Booking) error
	GetForUpdateTx(ctx context.Context, tx pgx.Tx, id string) (model.Booking, error)
	HasConflictTx(ctx context.Context, tx pgx.Tx, tableID string, start, end time.Time, excludeID string) (bool, error)
	UpdateTimeTx(ctx context.Context, tx pgx.Tx, id string, start, end time.Time) error
	CancelTx(ctx context.Context, tx pgx.Tx, id string) error
	ListUpcoming(ctx context.Context, userID string, from time.Time) ([]model.Booking, error)
}

type TableStore interface {
	GetByID(ctx context.Context, id string) (model.Table, error)
}

type UserStore interface {
	GetByID(ctx context.Context, id string) (model.User, error)
}

type ReminderStore interface {
	ScheduleTx(ctx context.Context, tx pgx.Tx, job jobs.Job) error
	DeleteForBookingTx(ctx context.Context, tx pgx.Tx, bookingID string) error
}

// Lifecycle is the booking state machine exposed to the transport layer.
type Lifecycle interface {
	Create(ctx context.Context, userID, tableID string, date timeslot.Date, at timeslot.TimeOfDay) (model.Booking, error)
	Reschedule(ctx context.Context, bookingID, userID string, date timeslot.Date, at timeslot.TimeOfDay) (model.Booking, error)
	Cancel(ctx context.Context, bookingID, userID string) error
	ListUpcoming(ctx context.Context, userID string) ([]model.Booking, error)
}

type Service struct {
	bookings  BookingStore
	tables    TableStore
	users     UserStore
	reminders ReminderStore
	rules     timeslot.Rules
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(bookings BookingStore, tables TableStore, users UserStore, reminders ReminderStore, rules timeslot.Rules, logger *slog.Logger) *Service {
	return &Service{
		bookings:  bookings,
		tables:    tables,
		users:     users,
		reminders: reminders,
		rules:     rules,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create validates the requested slot, checks availability and inserts an
// active booking. The conflict query produces the friendly error; the
// exclusion constraint on the bookings table is the backstop that makes two
// racing creates impossible to both commit.
func (s *Service) Create(ctx context.Context, userID, tableID string, date timeslot.Date, at timeslot.TimeOfDay) (model.Booking, error) {
	now := s.now()
	slot := s.rules.BuildSlot(date, at)
	if err := s.rules.Validate(slot, now); err != nil {
		return model.Booking{}, err
	}
	start, end := slot.UTC()

	if _, err := s.tables.GetByID(ctx, tableID); err != nil {
		if storage.IsNotFound(err) {
			return model.Booking{}, apperr.NotFound("Table not found")
		}
		return model.Booking{}, err
	}

	tx, err := s.bookings.Begin(ctx)
	if err != nil {
		return model.Booking{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	conflict, err := s.bookings.HasConflictTx(ctx, tx, tableID, start, end, "")
	if err != nil {
		return model.Booking{}, err
	}
	if conflict {
		return model.Booking{}, apperr.BusinessRule(msgTableUnavailable)
	}

	b := model.Booking{
		ID:        uuid.NewString(),
		TableID:   tableID,
		UserID:    userID,
		StartTime: start,
		EndTime:   end,
		Status:    model.StatusActive,
	}
	if err := s.bookings.CreateTx(ctx, tx, &b); err != nil {
		if storage.IsConflict(err) {
			return model.Booking{}, apperr.BusinessRule(msgTableUnavailable)
		}
		return model.Booking{}, err
	}

	s.scheduleReminderTx(ctx, tx, b, now)

	if err := tx.Commit(ctx); err != nil {
		return model.Booking{}, err
	}
	return b, nil
}

// Reschedule moves an active booking owned by userID to a new slot. The
// booking's own interval is excluded from the conflict check so moving onto
// (or overlapping) its current slot is allowed.
func (s *Service) Reschedule(ctx context.Context, bookingID, userID string, date timeslot.Date, at timeslot.TimeOfDay) (model.Booking, error) {
	now := s.now()
	slot := s.rules.BuildSlot(date, at)
	if err := s.rules.Validate(slot, now); err != nil {
		return model.Booking{}, err
	}
	start, end := slot.UTC()

	tx, err := s.bookings.Begin(ctx)
	if err != nil {
		return model.Booking{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	b, err := s.bookings.GetForUpdateTx(ctx, tx, bookingID)
	if err != nil {
		if storage.IsNotFound(err) {
			return model.Booking{}, apperr.NotFound("Booking not found")
		}
		return model.Booking{}, err
	}
	if b.UserID != userID {
		return model.Booking{}, apperr.Forbidden("You cannot modify this booking")
	}
	if b.Status != model.StatusActive {
		return model.Booking{}, apperr.BusinessRule("Canceled bookings cannot be rescheduled")
	}

	conflict, err := s.bookings.HasConflictTx(ctx, tx, b.TableID, start, end, b.ID)
	if err != nil {
		return model.Booking{}, err
	}
	if conflict {
		return model.Booking{}, apperr.BusinessRule(msgTableUnavailable)
	}

	if err := s.bookings.UpdateTimeTx(ctx, tx, b.ID, start, end); err != nil {
		if storage.IsConflict(err) {
			return model.Booking{}, apperr.BusinessRule(msgTableUnavailable)
		}
		return model.Booking{}, err
	}
	b.StartTime = start
	b.EndTime = end

	err = s.reminderSavepoint(ctx, tx, func(sp pgx.Tx) error {
		return s.reminders.DeleteForBookingTx(ctx, sp, b.ID)
	})
	if err != nil {
		s.logger.Warn("dropping stale reminder failed", "booking_id", b.ID, "err", err)
	} else {
		s.scheduleReminderTx(ctx, tx, b, now)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Booking{}, err
	}
	return b, nil
}

// Cancel flips an active booking to canceled, provided the caller owns it and
// the start is at least an hour away. Canceling twice is a no-op.
func (s *Service) Cancel(ctx context.Context, bookingID, userID string) error {
	tx, err := s.bookings.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	b, err := s.bookings.GetForUpdateTx(ctx, tx, bookingID)
	if err != nil {
		if storage.IsNotFound(err) {
			return apperr.NotFound("Booking not found")
		}
		return err
	}
	if b.UserID != userID {
		return apperr.Forbidden("You cannot cancel this booking")
	}
	if b.Status == model.StatusCanceled {
		return tx.Commit(ctx)
	}
	if b.StartTime.Sub(s.now()) < time.Hour {
		return apperr.BusinessRule("Booking cannot be canceled less than 1 hour before start")
	}

	if err := s.bookings.CancelTx(ctx, tx, b.ID); err != nil {
		return err
	}
	err = s.reminderSavepoint(ctx, tx, func(sp pgx.Tx) error {
		return s.reminders.DeleteForBookingTx(ctx, sp, b.ID)
	})
	if err != nil {
		s.logger.Warn("dropping reminder for canceled booking failed", "booking_id", b.ID, "err", err)
	}
	return tx.Commit(ctx)
}

// ListUpcoming returns the caller's active bookings that have not started
// yet. The store query already applies both filters; they are re-applied here
// so the contract does not depend on the SQL alone.
func (s *Service) ListUpcoming(ctx context.Context, userID string) ([]model.Booking, error) {
	now := s.now()
	rows, err := s.bookings.ListUpcoming(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	upcoming := make([]model.Booking, 0, len(rows))
	for _, b := range rows {
		if b.Status != model.StatusActive || b.StartTime.Before(now) {
			continue
		}
		upcoming = append(upcoming, b)
	}
	return upcoming, nil
}

// reminderSavepoint runs fn inside a nested transaction. pgx maps nested
// Begin to SAVEPOINT, so a failed reminder write rolls back alone instead of
// poisoning the booking's transaction.
func (s *Service) reminderSavepoint(ctx context.Context, tx pgx.Tx, fn func(sp pgx.Tx) error) error {
	sp, err := tx.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(sp); err != nil {
		_ = sp.Rollback(ctx)
		return err
	}
	return sp.Commit(ctx)
}

// scheduleReminderTx enqueues the reminder job inside the booking's
// transaction. Reminders are best-effort: the write runs in a savepoint, so a
// failure is logged, rolled back on its own and the booking proceeds.
func (s *Service) scheduleReminderTx(ctx context.Context, tx pgx.Tx, b model.Booking, now time.Time) {
	remindAt := b.StartTime.Add(-ReminderLeadTime)
	if !remindAt.After(now) {
		return
	}
	user, err := s.users.GetByID(ctx, b.UserID)
	if err != nil {
		s.logger.Warn("reminder skipped: user lookup failed", "booking_id", b.ID, "err", err)
		return
	}
	err = s.reminderSavepoint(ctx, tx, func(sp pgx.Tx) error {
		return s.reminders.ScheduleTx(ctx, sp, jobs.Job{
			BookingID: b.ID,
			Recipient: user.Email,
			FullName:  user.FullName,
			StartsAt:  b.StartTime,
			RemindAt:  remindAt,
		})
	})
	if err != nil {
		s.logger.Warn("reminder schedule failed", "booking_id", b.ID, "err", err)
	}
}
