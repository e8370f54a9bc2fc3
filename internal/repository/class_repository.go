package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/tenacity/ops-backend/internal/model"
	"github.com/tenacity/ops-backend/internal/validator"
)

const classColumns = `id, type, day, start_time, end_time, enrolled_students, tutors`

// ClassRepository handles class data access.
type ClassRepository struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// NewClassRepository creates a new ClassRepository.
func NewClassRepository(pool *pgxpool.Pool, log zerolog.Logger) *ClassRepository {
	return &ClassRepository{
		pool: pool,
		log:  log.With().Str("component", "class_repository").Logger(),
	}
}

func scanClass(row pgx.Row) (*model.Class, error) {
	c := &model.Class{}
	if err := row.Scan(&c.ID, &c.Type, &c.Day, &c.StartTime, &c.EndTime, &c.EnrolledStudents, &c.Tutors); err != nil {
		return nil, notFound(err)
	}
	if err := validator.Document(c); err != nil {
		return nil, fmt.Errorf("class %s: %w", c.ID, err)
	}
	return c, nil
}

// GetByID retrieves a class by its ID.
func (r *ClassRepository) GetByID(ctx context.Context, id string) (*model.Class, error) {
	return scanClass(r.pool.QueryRow(ctx,
		`SELECT `+classColumns+` FROM classes WHERE id = $1`, id))
}

// List retrieves all classes. Rows failing validation are logged and left out.
func (r *ClassRepository) List(ctx context.Context) ([]model.Class, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+classColumns+` FROM classes ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var classes []model.Class
	for rows.Next() {
		c, err := scanClass(rows)
		if err != nil {
			if errors.Is(err, validator.ErrInvalidDocument) {
				r.log.Warn().Err(err).Msg("Skipping invalid class document")
				continue
			}
			return nil, err
		}
		classes = append(classes, *c)
	}
	return classes, rows.Err()
}
