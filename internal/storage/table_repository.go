package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"tablebook/internal/db"
	"tablebook/internal/model"
)

type TableRepository struct {
	pool *db.Pool
}

func NewTableRepository(pool *db.Pool) *TableRepository {
	return &TableRepository{pool: pool}
}

func scanTable(row pgx.Row) (model.Table, error) {
	var t model.Table
	if err := row.Scan(&t.ID, &t.Name, &t.Seats, &t.CreatedAt); err != nil {
		return model.Table{}, err
	}
	return t, nil
}

func (r *TableRepository) Create(ctx context.Context, t *model.Table) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO dining_tables (id, name, seats)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`, t.ID, t.Name, t.Seats).Scan(&t.CreatedAt)
}

func (r *TableRepository) GetByID(ctx context.Context, id string) (model.Table, error) {
	return scanTable(r.pool.QueryRow(ctx, `
		SELECT id, name, seats, created_at
		FROM dining_tables
		WHERE id = $1
	`, id))
}

func (r *TableRepository) List(ctx context.Context) ([]model.Table, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, seats, created_at
		FROM dining_tables
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []model.Table
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return tables, nil
}

func (r *TableRepository) Update(ctx context.Context, id string, name *string, seats *int) (model.Table, error) {
	return scanTable(r.pool.QueryRow(ctx, `
		UPDATE dining_tables
		SET name = COALESCE($2, name),
			seats = COALESCE($3, seats)
		WHERE id = $1
		RETURNING id, name, seats, created_at
	`, id, name, seats))
}

// Delete removes a table; its bookings go with it via ON DELETE CASCADE.
func (r *TableRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM dining_tables WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ListAvailable returns tables with no active booking overlapping
// [start, end), optionally restricted to a minimum seat count.
func (r *TableRepository) ListAvailable(ctx context.Context, start, end time.Time, minSeats *int) ([]model.Table, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, seats, created_at
		FROM dining_tables t
		WHERE ($3::int IS NULL OR t.seats >= $3)
			AND NOT EXISTS (
				SELECT 1 FROM bookings b
				WHERE b.table_id = t.id
					AND b.status = 'active'
					AND b.start_time < $2
					AND b.end_time > $1
			)
		ORDER BY t.created_at, t.id
	`, start, end, minSeats)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []model.Table
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return tables, nil
}
