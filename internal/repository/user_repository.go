package repository

import (
	"context"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// UserRepository looks up accounts.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

type userRepository struct {
	db DB
}

// NewUserRepository instantiates repository.
func NewUserRepository(db DB) UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, name, email, password_hash, role, status, created_at, updated_at`

func (r *userRepository) GetByID(ctx context.Context, id int) (*domain.User, error) {
	return r.fetchSingle(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.fetchSingle(ctx, `SELECT `+userColumns+` FROM users WHERE email=$1`, email)
}

func (r *userRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.User, error) {
	var user domain.User
	if err := r.db.QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.Status,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}
