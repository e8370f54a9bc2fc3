package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tenacity/ops-backend/internal/model"
	"github.com/tenacity/ops-backend/internal/validator"
)

// UserRepository handles parent, tutor and admin accounts.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	u := &model.User{}
	var role string
	err := r.pool.QueryRow(ctx,
		`SELECT id, role, first_name, last_name, email FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &role, &u.FirstName, &u.LastName, &u.Email)
	if err != nil {
		return nil, notFound(err)
	}
	u.Role = model.Role(role)
	if err := validator.Document(u); err != nil {
		return nil, fmt.Errorf("user %s: %w", id, err)
	}
	return u, nil
}
