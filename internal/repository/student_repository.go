package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tenacity/ops-backend/internal/model"
	"github.com/tenacity/ops-backend/internal/validator"
)

// StudentRepository handles student data access.
type StudentRepository struct {
	pool *pgxpool.Pool
}

// NewStudentRepository creates a new StudentRepository.
func NewStudentRepository(pool *pgxpool.Pool) *StudentRepository {
	return &StudentRepository{pool: pool}
}

// GetByID retrieves a student by ID.
func (r *StudentRepository) GetByID(ctx context.Context, id string) (*model.Student, error) {
	s := &model.Student{}
	var primary *string
	err := r.pool.QueryRow(ctx,
		`SELECT id, first_name, last_name, grade, parents, primary_parent_id
		 FROM students WHERE id = $1`, id,
	).Scan(&s.ID, &s.FirstName, &s.LastName, &s.Grade, &s.Parents, &primary)
	if err != nil {
		return nil, notFound(err)
	}
	if primary != nil {
		s.PrimaryParentID = *primary
	}
	if err := validator.Document(s); err != nil {
		return nil, fmt.Errorf("student %s: %w", id, err)
	}
	return s, nil
}
