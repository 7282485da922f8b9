package storage

import (
	"context"

	"github.com/jackc/pgx/v5"

	"tablebook/internal/db"
	"tablebook/internal/model"
)

type UserRepository struct {
	pool *db.Pool
}

func NewUserRepository(pool *db.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) CreateTx(ctx context.Context, tx pgx.Tx, u *model.User) error {
	return tx.QueryRow(ctx, `
		INSERT INTO users (id, email, password_hash, full_name, phone_number, is_admin)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, u.ID, u.Email, u.PasswordHash, u.FullName, u.PhoneNumber, u.IsAdmin).Scan(&u.CreatedAt)
}

const userColumns = `id, email, password_hash, full_name, phone_number, is_admin, created_at`

func scanUser(row pgx.Row) (model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.PhoneNumber, &u.IsAdmin, &u.CreatedAt); err != nil {
		return model.User{}, err
	}
	return u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (model.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE email = $1
	`, email))
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (model.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, id))
}
