package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"chatgo/internal/domain"
)

type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

var _ domain.UserRepository = (*UserRepo)(nil)

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO users (username, name, share_id, hashed_password, created_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
	`, u.Username, u.Name, u.ShareID, u.HashedPassword)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	u.ID = id
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.getBy(ctx, `id = ?`, id)
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getBy(ctx, `username = ?`, username)
}

func (r *UserRepo) GetByShareID(ctx context.Context, shareID string) (*domain.User, error) {
	return r.getBy(ctx, `share_id = ?`, shareID)
}

func (r *UserRepo) getBy(ctx context.Context, where string, arg any) (*domain.User, error) {
	u := &domain.User{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, username, name, share_id, hashed_password, created_at
		FROM users
		WHERE `+where, arg).Scan(
		&u.ID,
		&u.Username,
		&u.Name,
		&u.ShareID,
		&u.HashedPassword,
		&u.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}
