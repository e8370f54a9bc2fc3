package model

import "time"

// TermStatus is the lifecycle state of a term.
type TermStatus string

const (
	TermStatusUpcoming TermStatus = "upcoming"
	TermStatusActive   TermStatus = "active"
	TermStatusInactive TermStatus = "inactive"
)

// Term is a fixed multi-week billing and scheduling period.
type Term struct {
	ID                  string     `json:"id" validate:"required"`
	Name                string     `json:"name"`
	StartDate           time.Time  `json:"start_date" validate:"required"`
	EndDate             time.Time  `json:"end_date" validate:"required,gtefield=StartDate"`
	Weeks               int        `json:"weeks" validate:"min=1,max=53"`
	Status              TermStatus `json:"status" validate:"oneof=upcoming active inactive"`
	InvoicesGeneratedAt *time.Time `json:"invoices_generated_at,omitempty"`
}

// Invoiced reports whether invoices have already been generated for the term.
func (t *Term) Invoiced() bool {
	return t.InvoicesGeneratedAt != nil
}
