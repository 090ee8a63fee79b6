package repository

import (
	"context"
	"errors"

	"poker_arena/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	return r.db.QueryRow(ctx,
		`INSERT INTO users (username, rating)
		 VALUES ($1, $2)
		 RETURNING id, created_at`,
		u.Username, u.Rating,
	).Scan(&u.ID, &u.CreatedAt)
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	u := &domain.User{}
	err := r.db.QueryRow(ctx,
		`SELECT id, username, rating, created_at FROM users WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.Username, &u.Rating, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// GetByUsername is used by the seed CLI to keep reruns idempotent.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	u := &domain.User{}
	err := r.db.QueryRow(ctx,
		`SELECT id, username, rating, created_at FROM users WHERE username = $1 LIMIT 1`,
		username,
	).Scan(&u.ID, &u.Username, &u.Rating, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// IsNotFound reports whether err means the row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
