package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tenacity/ops-backend/internal/model"
)

// InvoiceRepository handles invoice data access.
type InvoiceRepository struct {
	pool *pgxpool.Pool
}

// NewInvoiceRepository creates a new InvoiceRepository.
func NewInvoiceRepository(pool *pgxpool.Pool) *InvoiceRepository {
	return &InvoiceRepository{pool: pool}
}

// CommitTermInvoices inserts every invoice of a term and sets the term's
// invoicing marker in one transaction. If the marker is already set the
// transaction rolls back with ErrAlreadyInvoiced and nothing is written.
func (r *InvoiceRepository) CommitTermInvoices(ctx context.Context, termID string, invoices []model.Invoice, invoicedAt time.Time) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		cmdTag, err := tx.Exec(ctx,
			`UPDATE terms SET invoices_generated_at = $1
			 WHERE id = $2 AND invoices_generated_at IS NULL`,
			invoicedAt, termID,
		)
		if err != nil {
			return fmt.Errorf("set invoicing marker: %w", err)
		}
		if cmdTag.RowsAffected() == 0 {
			return ErrAlreadyInvoiced
		}

		if len(invoices) == 0 {
			return nil
		}

		batch := &pgx.Batch{}
		for _, inv := range invoices {
			items, err := json.Marshal(inv.LineItems)
			if err != nil {
				return fmt.Errorf("encode line items for %s: %w", inv.ParentID, err)
			}
			batch.Queue(
				`INSERT INTO invoices (id, parent_id, parent_name, parent_email, line_items, weeks, amount_due, status, due_date, created_at, term_id)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
				inv.ID, inv.ParentID, inv.ParentName, inv.ParentEmail, items, inv.Weeks,
				inv.AmountDue, string(inv.Status), inv.DueDate, inv.CreatedAt, inv.TermID,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert invoices: %w", err)
		}
		return nil
	})
}

// ListOpen returns every unpaid or overdue invoice.
func (r *InvoiceRepository) ListOpen(ctx context.Context) ([]model.Invoice, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, parent_id, parent_name, parent_email, line_items, weeks, amount_due, status, due_date, created_at, term_id
		 FROM invoices
		 WHERE status IN ('unpaid', 'overdue')
		 ORDER BY due_date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []model.Invoice
	for rows.Next() {
		var (
			inv    model.Invoice
			items  []byte
			status string
		)
		if err := rows.Scan(&inv.ID, &inv.ParentID, &inv.ParentName, &inv.ParentEmail, &items, &inv.Weeks,
			&inv.AmountDue, &status, &inv.DueDate, &inv.CreatedAt, &inv.TermID); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(items, &inv.LineItems); err != nil {
			return nil, fmt.Errorf("decode line items of invoice %s: %w", inv.ID, err)
		}
		inv.Status = model.InvoiceStatus(status)
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}
