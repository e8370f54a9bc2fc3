package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tenacity/ops-backend/internal/config"
	"github.com/tenacity/ops-backend/internal/mail"
	"github.com/tenacity/ops-backend/internal/model"
	"github.com/tenacity/ops-backend/internal/push"
	"github.com/tenacity/ops-backend/internal/repository"
	"github.com/tenacity/ops-backend/internal/timetable"
	"github.com/tenacity/ops-backend/internal/validator"
)

// InvoiceRunResult summarises an invoice generation or preview.
type InvoiceRunResult struct {
	TermID          string          `json:"term_id,omitempty"`
	Invoices        []model.Invoice `json:"invoices"`
	SkippedStudents int             `json:"skipped_students"`
	Committed       bool            `json:"committed"`
	Notified        int             `json:"notified"`
}

// Total sums the amount due over every invoice.
func (r *InvoiceRunResult) Total() int64 {
	var total int64
	for _, inv := range r.Invoices {
		total += inv.AmountDue
	}
	return total
}

// InvoiceGenerator bills every parent once per term.
type InvoiceGenerator struct {
	terms    TermStore
	classes  ClassStore
	students StudentStore
	users    UserStore
	invoices InvoiceStore
	tokens   TokenStore
	push     push.Dispatcher
	mailer   mail.Mailer
	billing  config.Billing
	loc      *time.Location
	log      zerolog.Logger
	newID    func() string
}

// InvoiceGeneratorDeps groups the collaborators of an InvoiceGenerator.
type InvoiceGeneratorDeps struct {
	Terms    TermStore
	Classes  ClassStore
	Students StudentStore
	Users    UserStore
	Invoices InvoiceStore
	Tokens   TokenStore
	Push     push.Dispatcher
	// Mailer is optional; without it no invoice email is sent.
	Mailer mail.Mailer
}

// NewInvoiceGenerator creates a new InvoiceGenerator.
func NewInvoiceGenerator(deps InvoiceGeneratorDeps, billing config.Billing, loc *time.Location, log zerolog.Logger) *InvoiceGenerator {
	return &InvoiceGenerator{
		terms:    deps.Terms,
		classes:  deps.Classes,
		students: deps.Students,
		users:    deps.Users,
		invoices: deps.Invoices,
		tokens:   deps.Tokens,
		push:     deps.Push,
		mailer:   deps.Mailer,
		billing:  billing,
		loc:      loc,
		log:      log.With().Str("component", "invoice_generator").Logger(),
		newID:    uuid.NewString,
	}
}

// Generate invoices the active, started, not yet invoiced term. The invoices
// and the term marker commit together; a term already invoiced yields a
// no-op.
func (g *InvoiceGenerator) Generate(ctx context.Context, now time.Time) (*InvoiceRunResult, error) {
	term, err := g.terms.FindUninvoicedActive(ctx, now)
	if errors.Is(err, repository.ErrNotFound) {
		g.log.Info().Msg("No eligible term to invoice")
		return &InvoiceRunResult{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find term to invoice: %w", err)
	}
	if term.Invoiced() {
		g.log.Info().Str("term_id", term.ID).Msg("Term already invoiced")
		return &InvoiceRunResult{TermID: term.ID}, nil
	}

	res, err := g.build(ctx, term, now)
	if err != nil {
		return nil, err
	}

	err = g.invoices.CommitTermInvoices(ctx, term.ID, res.Invoices, now)
	if errors.Is(err, repository.ErrAlreadyInvoiced) {
		g.log.Info().Str("term_id", term.ID).Msg("Term invoiced by a concurrent run")
		return &InvoiceRunResult{TermID: term.ID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("commit invoices for term %s: %w", term.ID, err)
	}
	res.Committed = true

	g.log.Info().
		Str("term_id", term.ID).
		Int("invoices", len(res.Invoices)).
		Str("total", FormatCents(res.Total())).
		Msg("Invoices generated")

	for i := range res.Invoices {
		if g.notify(ctx, term, &res.Invoices[i]) {
			res.Notified++
		}
	}
	return res, nil
}

// Preview builds the invoices the current active term would receive,
// ignoring its marker, and writes nothing.
func (g *InvoiceGenerator) Preview(ctx context.Context, now time.Time) (*InvoiceRunResult, error) {
	term, err := g.terms.FindActive(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		g.log.Info().Msg("No active term to preview")
		return &InvoiceRunResult{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find active term: %w", err)
	}
	res, err := g.build(ctx, term, now)
	if err != nil {
		return nil, err
	}
	g.log.Info().
		Str("term_id", term.ID).
		Int("invoices", len(res.Invoices)).
		Str("total", FormatCents(res.Total())).
		Msg("Invoice preview built")
	return res, nil
}

type parentInvoice struct {
	parent *model.User
	lines  []model.LineItem
}

func (g *InvoiceGenerator) build(ctx context.Context, term *model.Term, now time.Time) (*InvoiceRunResult, error) {
	classes, err := g.classes.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}

	res := &InvoiceRunResult{TermID: term.ID}
	students := make(map[string]*model.Student)
	users := make(map[string]*model.User)
	byParent := make(map[string]*parentInvoice)
	var order []string

	for i := range classes {
		cls := &classes[i]
		for _, sid := range cls.EnrolledStudents {
			student, err := g.student(ctx, students, sid)
			if err != nil {
				if !skippable(err) {
					return nil, fmt.Errorf("load student %s: %w", sid, err)
				}
				g.log.Warn().Err(err).Str("student_id", sid).Str("class_id", cls.ID).Msg("Skipping student")
				res.SkippedStudents++
				continue
			}
			pid := student.BillingParentID()
			if pid == "" {
				g.log.Warn().Str("student_id", sid).Msg("Student has no parent, skipping")
				res.SkippedStudents++
				continue
			}
			parent, err := g.user(ctx, users, pid)
			if err != nil {
				if !skippable(err) {
					return nil, fmt.Errorf("load parent %s: %w", pid, err)
				}
				g.log.Warn().Err(err).Str("parent_id", pid).Str("student_id", sid).Msg("Skipping student with unknown parent")
				res.SkippedStudents++
				continue
			}

			pi, ok := byParent[pid]
			if !ok {
				pi = &parentInvoice{parent: parent}
				byParent[pid] = pi
				order = append(order, pid)
			}
			rate := rateFor(g.billing, student.GradeNumber())
			desc := fmt.Sprintf("%s %s — %s", student.FirstName, student.LastName, cls.DisplayName())
			pi.lines = append(pi.lines, model.NewLineItem(desc, term.Weeks, rate))
		}
	}

	due := term.StartDate.In(g.loc).AddDate(0, 0, g.billing.InvoiceDueDays)
	for _, pid := range order {
		pi := byParent[pid]
		lines := append(pi.lines, discountLines(g.billing, len(pi.lines), term.Weeks)...)
		res.Invoices = append(res.Invoices, model.Invoice{
			ID:          g.newID(),
			ParentID:    pid,
			ParentName:  pi.parent.FullName(),
			ParentEmail: pi.parent.Email,
			LineItems:   lines,
			Weeks:       term.Weeks,
			AmountDue:   model.SumLineItems(lines),
			Status:      model.InvoiceStatusUnpaid,
			DueDate:     due,
			CreatedAt:   now,
			TermID:      term.ID,
		})
	}
	return res, nil
}

// skippable reports whether a lookup failed because the record is missing or
// malformed. Any other failure aborts the run before the marker is set.
func skippable(err error) bool {
	return errors.Is(err, repository.ErrNotFound) || errors.Is(err, validator.ErrInvalidDocument)
}

func (g *InvoiceGenerator) student(ctx context.Context, memo map[string]*model.Student, id string) (*model.Student, error) {
	if s, ok := memo[id]; ok {
		if s == nil {
			return nil, repository.ErrNotFound
		}
		return s, nil
	}
	s, err := g.students.GetByID(ctx, id)
	if err != nil {
		if skippable(err) {
			memo[id] = nil
		}
		return nil, err
	}
	memo[id] = s
	return s, nil
}

func (g *InvoiceGenerator) user(ctx context.Context, memo map[string]*model.User, id string) (*model.User, error) {
	if u, ok := memo[id]; ok {
		if u == nil {
			return nil, repository.ErrNotFound
		}
		return u, nil
	}
	u, err := g.users.GetByID(ctx, id)
	if err != nil {
		if skippable(err) {
			memo[id] = nil
		}
		return nil, err
	}
	memo[id] = u
	return u, nil
}

// notify tells the parent their invoice is ready. Failures are logged only;
// the invoices are already committed.
func (g *InvoiceGenerator) notify(ctx context.Context, term *model.Term, inv *model.Invoice) bool {
	log := g.log.With().Str("invoice_id", inv.ID).Str("parent_id", inv.ParentID).Logger()
	delivered := false

	if g.mailer != nil && inv.ParentEmail != "" {
		if err := g.mailer.SendInvoiceReady(ctx, invoiceEmail(term, inv, g.loc)); err != nil {
			log.Error().Err(err).Msg("Invoice email failed")
		} else {
			delivered = true
		}
	}

	tokens, err := g.tokens.ListByUser(ctx, inv.ParentID)
	if err != nil {
		log.Error().Err(err).Msg("Load push tokens failed")
		return delivered
	}
	if len(tokens) == 0 {
		log.Debug().Msg("No push tokens for parent")
		return delivered
	}

	report, err := g.push.Dispatch(ctx, push.Notification{
		UserID: inv.ParentID,
		Tokens: tokens,
		Title:  "Your invoice is ready!",
		Body:   "Invoice for amount " + FormatCents(inv.AmountDue),
		Data: map[string]string{
			"type":      "invoice",
			"invoiceId": inv.ID,
		},
	})
	if err != nil {
		log.Error().Err(err).Msg("Invoice push failed")
		return delivered
	}
	logReport(log, report)
	return true
}

func invoiceEmail(term *model.Term, inv *model.Invoice, loc *time.Location) mail.InvoiceEmail {
	lines := make([]mail.InvoiceEmailLine, 0, len(inv.LineItems))
	for _, li := range inv.LineItems {
		lines = append(lines, mail.InvoiceEmailLine{
			Description: li.Description,
			Quantity:    li.Quantity,
			UnitAmount:  FormatCents(li.UnitAmount),
			LineTotal:   FormatCents(li.LineTotal),
		})
	}
	name := term.Name
	if name == "" {
		name = term.ID
	}
	return mail.InvoiceEmail{
		InvoiceID: inv.ID,
		ToName:    inv.ParentName,
		ToAddress: inv.ParentEmail,
		TermName:  name,
		Amount:    FormatCents(inv.AmountDue),
		DueDate:   timetable.FormatDate(inv.DueDate, loc),
		Lines:     lines,
	}
}

func logReport(log zerolog.Logger, report push.Report) {
	if report.Queued {
		log.Debug().Msg("Push queued")
		return
	}
	ev := log.Info()
	if len(report.Failures) > 0 {
		ev = log.Warn()
	}
	ev.Int("sent", report.Sent).Int("failed", len(report.Failures)).Msg("Push sent")
}
