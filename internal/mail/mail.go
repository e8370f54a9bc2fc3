// Package mail sends transactional email to parents.
package mail

import "context"

// InvoiceEmail carries the fields rendered into the invoice-ready email.
type InvoiceEmail struct {
	InvoiceID string
	ToName    string
	ToAddress string
	TermName  string
	Amount    string
	DueDate   string
	Lines     []InvoiceEmailLine
}

// InvoiceEmailLine is one rendered invoice line.
type InvoiceEmailLine struct {
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	UnitAmount  string `json:"unit_amount"`
	LineTotal   string `json:"line_total"`
}

// Mailer delivers transactional email.
type Mailer interface {
	SendInvoiceReady(ctx context.Context, e InvoiceEmail) error
}
