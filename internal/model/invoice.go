package model

import "time"

// InvoiceStatus is the payment state of an invoice.
type InvoiceStatus string

const (
	InvoiceStatusUnpaid  InvoiceStatus = "unpaid"
	InvoiceStatusOverdue InvoiceStatus = "overdue"
	InvoiceStatusPaid    InvoiceStatus = "paid"
)

// LineItem is one invoice line. Amounts are in cents; discount lines carry a
// negative UnitAmount.
type LineItem struct {
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	UnitAmount  int64  `json:"unit_amount"`
	LineTotal   int64  `json:"line_total"`
}

// NewLineItem builds a line whose total is quantity × unit amount.
func NewLineItem(description string, quantity int, unitAmount int64) LineItem {
	return LineItem{
		Description: description,
		Quantity:    quantity,
		UnitAmount:  unitAmount,
		LineTotal:   int64(quantity) * unitAmount,
	}
}

// Invoice is created once per billing parent per term.
type Invoice struct {
	ID          string        `json:"id"`
	ParentID    string        `json:"parent_id"`
	ParentName  string        `json:"parent_name"`
	ParentEmail string        `json:"parent_email"`
	LineItems   []LineItem    `json:"line_items"`
	Weeks       int           `json:"weeks"`
	AmountDue   int64         `json:"amount_due"`
	Status      InvoiceStatus `json:"status"`
	DueDate     time.Time     `json:"due_date"`
	CreatedAt   time.Time     `json:"created_at"`
	TermID      string        `json:"term_id"`
}

// SumLineItems totals every line, discounts included.
func SumLineItems(items []LineItem) int64 {
	var total int64
	for _, li := range items {
		total += li.LineTotal
	}
	return total
}
