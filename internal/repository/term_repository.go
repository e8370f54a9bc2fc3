package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tenacity/ops-backend/internal/model"
	"github.com/tenacity/ops-backend/internal/validator"
)

const termColumns = `id, name, start_date, end_date, weeks, status, invoices_generated_at`

// TermRepository handles term data access.
type TermRepository struct {
	pool *pgxpool.Pool
}

// NewTermRepository creates a new TermRepository.
func NewTermRepository(pool *pgxpool.Pool) *TermRepository {
	return &TermRepository{pool: pool}
}

func scanTerm(row pgx.Row) (*model.Term, error) {
	t := &model.Term{}
	var status string
	if err := row.Scan(&t.ID, &t.Name, &t.StartDate, &t.EndDate, &t.Weeks, &status, &t.InvoicesGeneratedAt); err != nil {
		return nil, notFound(err)
	}
	t.Status = model.TermStatus(status)
	if err := validator.Document(t); err != nil {
		return nil, fmt.Errorf("term %s: %w", t.ID, err)
	}
	return t, nil
}

// GetByID retrieves a term by its ID.
func (r *TermRepository) GetByID(ctx context.Context, id string) (*model.Term, error) {
	return scanTerm(r.pool.QueryRow(ctx,
		`SELECT `+termColumns+` FROM terms WHERE id = $1`, id))
}

// FindEndedBetween returns the term whose end date lies in [from, to).
// When several match, the latest-ending one wins.
func (r *TermRepository) FindEndedBetween(ctx context.Context, from, to time.Time) (*model.Term, error) {
	return scanTerm(r.pool.QueryRow(ctx,
		`SELECT `+termColumns+` FROM terms
		 WHERE end_date >= $1 AND end_date < $2
		 ORDER BY end_date DESC
		 LIMIT 1`, from, to))
}

// FindNextAfter returns the term with the earliest start date strictly after t.
func (r *TermRepository) FindNextAfter(ctx context.Context, t time.Time) (*model.Term, error) {
	return scanTerm(r.pool.QueryRow(ctx,
		`SELECT `+termColumns+` FROM terms
		 WHERE start_date > $1
		 ORDER BY start_date ASC
		 LIMIT 1`, t))
}

// FindUninvoicedActive returns at most one active term that has started by
// asOf and has no invoicing marker.
func (r *TermRepository) FindUninvoicedActive(ctx context.Context, asOf time.Time) (*model.Term, error) {
	return scanTerm(r.pool.QueryRow(ctx,
		`SELECT `+termColumns+` FROM terms
		 WHERE status = 'active' AND start_date <= $1 AND invoices_generated_at IS NULL
		 ORDER BY start_date ASC
		 LIMIT 1`, asOf))
}

// FindActive returns the current active term regardless of its invoicing marker.
func (r *TermRepository) FindActive(ctx context.Context) (*model.Term, error) {
	return scanTerm(r.pool.QueryRow(ctx,
		`SELECT `+termColumns+` FROM terms
		 WHERE status = 'active'
		 ORDER BY start_date DESC
		 LIMIT 1`))
}

// SetStatus updates a term's lifecycle status.
func (r *TermRepository) SetStatus(ctx context.Context, id string, status model.TermStatus) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE terms SET status = $1 WHERE id = $2`, string(status), id)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
