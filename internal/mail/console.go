package mail

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// ConsoleMailer logs emails instead of sending them and keeps a copy of each
// for inspection. Used when no SendGrid key is configured.
type ConsoleMailer struct {
	log zerolog.Logger

	mu   sync.Mutex
	sent []InvoiceEmail
}

func NewConsoleMailer(log zerolog.Logger) *ConsoleMailer {
	return &ConsoleMailer{log: log.With().Str("component", "console_mailer").Logger()}
}

func (m *ConsoleMailer) SendInvoiceReady(_ context.Context, e InvoiceEmail) error {
	if e.ToAddress == "" {
		return ErrNoRecipient
	}
	m.log.Info().
		Str("to", e.ToAddress).
		Str("invoice_id", e.InvoiceID).
		Str("amount", e.Amount).
		Str("due", e.DueDate).
		Msg("Invoice email")

	m.mu.Lock()
	m.sent = append(m.sent, e)
	m.mu.Unlock()
	return nil
}

// Sent returns the emails handled so far.
func (m *ConsoleMailer) Sent() []InvoiceEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]InvoiceEmail, len(m.sent))
	copy(out, m.sent)
	return out
}
