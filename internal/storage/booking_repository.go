package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"tablebook/internal/db"
	"tablebook/internal/model"
)

// BookingRepository persists bookings. The bookings table carries an
// exclusion constraint on (table_id, tstzrange(start_time, end_time)) for
// active rows, so an insert or reschedule that slips past the HasConflictTx
// read still cannot commit an overlap; it fails with SQLSTATE 23P01 instead.
type BookingRepository struct {
	pool *db.Pool
}

func NewBookingRepository(pool *db.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

func (r *BookingRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

const bookingColumns = `id, table_id, user_id, start_time, end_time, status, created_at`

func scanBooking(row pgx.Row) (model.Booking, error) {
	var b model.Booking
	var status string
	if err := row.Scan(&b.ID, &b.TableID, &b.UserID, &b.StartTime, &b.EndTime, &status, &b.CreatedAt); err != nil {
		return model.Booking{}, err
	}
	st, err := model.ParseBookingStatus(status)
	if err != nil {
		return model.Booking{}, err
	}
	b.Status = st
	return b, nil
}

func (r *BookingRepository) CreateTx(ctx context.Context, tx pgx.Tx, b *model.Booking) error {
	return tx.QueryRow(ctx, `
		INSERT INTO bookings (id, table_id, user_id, start_time, end_time, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, b.ID, b.TableID, b.UserID, b.StartTime, b.EndTime, b.Status.String()).Scan(&b.CreatedAt)
}

// GetForUpdateTx loads a booking and row-locks it for the duration of the
// transaction, serializing reschedule/cancel against each other.
func (r *BookingRepository) GetForUpdateTx(ctx context.Context, tx pgx.Tx, id string) (model.Booking, error) {
	return scanBooking(tx.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1
		FOR UPDATE
	`, id))
}

// HasConflictTx reports whether any active booking on the table overlaps the
// half-open [start, end) interval. excludeID, when non-empty, is left out of
// the check so a booking can be rescheduled onto its own slot.
func (r *BookingRepository) HasConflictTx(ctx context.Context, tx pgx.Tx, tableID string, start, end time.Time, excludeID string) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE table_id = $1
				AND status = 'active'
				AND start_time < $3
				AND end_time > $2
				AND ($4 = '' OR id::text <> $4)
		)
	`, tableID, start, end, excludeID).Scan(&exists)
	return exists, err
}

func (r *BookingRepository) UpdateTimeTx(ctx context.Context, tx pgx.Tx, id string, start, end time.Time) error {
	tag, err := tx.Exec(ctx, `
		UPDATE bookings
		SET start_time = $2, end_time = $3
		WHERE id = $1 AND status = 'active'
	`, id, start, end)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *BookingRepository) CancelTx(ctx context.Context, tx pgx.Tx, id string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE bookings
		SET status = 'canceled'
		WHERE id = $1 AND status = 'active'
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ListUpcoming returns the user's active bookings starting at or after "from",
// soonest first. Canceled and already-started bookings never appear.
func (r *BookingRepository) ListUpcoming(ctx context.Context, userID string, from time.Time) ([]model.Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE user_id = $1
			AND status = 'active'
			AND start_time >= $2
		ORDER BY start_time ASC
	`, userID, from)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return bookings, nil
}

// IsConflict reports whether err is the bookings overlap exclusion constraint
// firing (SQLSTATE 23P01).
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

// IsDuplicate reports a unique constraint violation (SQLSTATE 23505).
func IsDuplicate(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
