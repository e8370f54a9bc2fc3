package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/tenacity/ops-backend/internal/model"
	"github.com/tenacity/ops-backend/internal/push"
	"github.com/tenacity/ops-backend/internal/timetable"
)

// InvoiceReminderResult summarises one invoice reminder run.
type InvoiceReminderResult struct {
	Open       int `json:"open"`
	Due        int `json:"due"`
	Sent       int `json:"sent"`
	Suppressed int `json:"suppressed"`
	Failed     int `json:"failed"`
}

// InvoiceReminder nudges parents about open invoices a week before the due
// date, on the due date and every seventh day once overdue.
type InvoiceReminder struct {
	invoices InvoiceStore
	tokens   TokenStore
	settings SettingStore
	push     push.Dispatcher
	loc      *time.Location
	log      zerolog.Logger
}

// NewInvoiceReminder creates a new InvoiceReminder.
func NewInvoiceReminder(invoices InvoiceStore, tokens TokenStore, settings SettingStore, dispatcher push.Dispatcher, loc *time.Location, log zerolog.Logger) *InvoiceReminder {
	return &InvoiceReminder{
		invoices: invoices,
		tokens:   tokens,
		settings: settings,
		push:     dispatcher,
		loc:      loc,
		log:      log.With().Str("component", "invoice_reminder").Logger(),
	}
}

// InvoiceReminderMessage returns the title and body for an invoice that is
// daysUntilDue calendar days from due. ok is false when no reminder is due.
func InvoiceReminderMessage(inv *model.Invoice, daysUntilDue int, loc *time.Location) (title, body string, ok bool) {
	amount := FormatCents(inv.AmountDue)
	switch {
	case daysUntilDue == 7:
		return "Invoice due in 1 week",
			fmt.Sprintf("Your invoice for %s is due on %s.", amount, timetable.FormatDate(inv.DueDate, loc)), true
	case daysUntilDue == 0:
		return "Invoice due today",
			fmt.Sprintf("Your invoice for %s is due today.", amount), true
	case daysUntilDue < 0 && -daysUntilDue%7 == 0:
		return "Invoice overdue",
			fmt.Sprintf("Your invoice for %s is overdue by %d day(s).", amount, -daysUntilDue), true
	}
	return "", "", false
}

// Run sends today's invoice reminders.
func (r *InvoiceReminder) Run(ctx context.Context, now time.Time) (*InvoiceReminderResult, error) {
	open, err := r.invoices.ListOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("list open invoices: %w", err)
	}
	res := &InvoiceReminderResult{Open: len(open)}

	for i := range open {
		inv := &open[i]
		if inv.ParentID == "" || inv.DueDate.IsZero() {
			continue
		}
		days := timetable.DaysUntil(now, inv.DueDate, r.loc)
		title, body, ok := InvoiceReminderMessage(inv, days, r.loc)
		if !ok {
			continue
		}
		res.Due++

		log := r.log.With().Str("invoice_id", inv.ID).Str("parent_id", inv.ParentID).Int("days_until_due", days).Logger()

		settings, err := r.settings.GetByUser(ctx, inv.ParentID)
		if err != nil {
			log.Error().Err(err).Msg("Load settings failed")
			res.Failed++
			continue
		}
		if !settings.Allows(model.ReminderInvoice) {
			res.Suppressed++
			continue
		}
		tokens, err := r.tokens.ListByUser(ctx, inv.ParentID)
		if err != nil {
			log.Error().Err(err).Msg("Load push tokens failed")
			res.Failed++
			continue
		}
		if len(tokens) == 0 {
			res.Suppressed++
			continue
		}

		report, err := r.push.Dispatch(ctx, push.Notification{
			UserID: inv.ParentID,
			Tokens: tokens,
			Title:  title,
			Body:   body,
			Data: map[string]string{
				"type":      string(model.ReminderInvoice),
				"invoiceId": inv.ID,
			},
		})
		if err != nil {
			log.Error().Err(err).Msg("Invoice reminder push failed")
			res.Failed++
			continue
		}
		logReport(log, report)
		res.Sent++
	}

	r.log.Info().
		Int("open", res.Open).
		Int("due", res.Due).
		Int("sent", res.Sent).
		Msg("Invoice reminders done")
	return res, nil
}
