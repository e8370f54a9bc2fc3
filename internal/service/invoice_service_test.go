package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tenacity/ops-backend/internal/mail"
	"github.com/tenacity/ops-backend/internal/model"
	"github.com/tenacity/ops-backend/internal/validator"
)

type invoiceFixture struct {
	terms    *memTerms
	invoices *memInvoices
	students *memStudents
	users    *memUsers
	push     *recordingDispatcher
	mailer   *mail.ConsoleMailer
	gen      *InvoiceGenerator
}

func newInvoiceFixture(t *testing.T, invoiced bool) *invoiceFixture {
	t.Helper()
	loc := sydney()
	term := model.Term{
		ID:        "T1",
		Name:      "Term 1 2025",
		StartDate: time.Date(2025, 1, 6, 0, 0, 0, 0, loc),
		EndDate:   time.Date(2025, 3, 16, 0, 0, 0, 0, loc),
		Weeks:     10,
		Status:    model.TermStatusActive,
	}
	if invoiced {
		at := term.StartDate
		term.InvoicesGeneratedAt = &at
	}
	f := &invoiceFixture{
		terms: newMemTerms(term),
		students: newMemStudents(
			model.Student{ID: "s1", FirstName: "Ava", LastName: "Lee", Grade: "Year 8", Parents: []string{"p1"}},
			model.Student{ID: "s2", FirstName: "Ben", LastName: "Lee", Grade: "5", Parents: []string{"p2", "p1"}, PrimaryParentID: "p1"},
			model.Student{ID: "s3", FirstName: "Cy", LastName: "Ng", Grade: "Year 11", Parents: []string{"p3"}},
			model.Student{ID: "orphan", FirstName: "No", LastName: "Parent"},
			model.Student{ID: "lost", FirstName: "Lost", LastName: "Parent", Parents: []string{"ghost"}},
		),
		push:   &recordingDispatcher{},
		mailer: mail.NewConsoleMailer(zerolog.Nop()),
	}
	f.invoices = &memInvoices{terms: f.terms}
	classes := &memClasses{classes: []model.Class{
		{ID: "maths", Type: "Maths", Day: "Monday", EnrolledStudents: []string{"s1", "s2", "s3", "missing"}},
		{ID: "english", Day: "Tuesday", EnrolledStudents: []string{"s1", "orphan", "lost"}},
	}}
	f.users = newMemUsers(
		model.User{ID: "p1", Role: model.RoleParent, FirstName: "Pat", LastName: "Lee", Email: "pat@example.com"},
		model.User{ID: "p2", Role: model.RoleParent, FirstName: "Sam", LastName: "Lee"},
		model.User{ID: "p3", Role: model.RoleParent, FirstName: "Kim", LastName: "Ng", Email: "kim@example.com"},
	)

	ids := 0
	f.gen = NewInvoiceGenerator(InvoiceGeneratorDeps{
		Terms:    f.terms,
		Classes:  classes,
		Students: f.students,
		Users:    f.users,
		Invoices: f.invoices,
		Tokens:   memTokens{"p1": {"tok-p1"}},
		Push:     f.push,
		Mailer:   f.mailer,
	}, testBilling, loc, zerolog.Nop())
	f.gen.newID = func() string {
		ids++
		return "inv-" + string(rune('0'+ids))
	}
	return f
}

func TestInvoiceGeneratorBuildsPerParentInvoices(t *testing.T) {
	f := newInvoiceFixture(t, false)
	now := time.Date(2025, 1, 7, 9, 0, 0, 0, sydney())

	res, err := f.gen.Generate(context.Background(), now)
	require.NoError(t, err)
	assert.True(t, res.Committed)
	assert.Equal(t, 3, res.SkippedStudents)
	require.Len(t, res.Invoices, 2)

	p1 := res.Invoices[0]
	assert.Equal(t, "p1", p1.ParentID)
	assert.Equal(t, "Pat Lee", p1.ParentName)
	assert.Equal(t, "pat@example.com", p1.ParentEmail)
	// Ava (senior) maths, Ben (junior, primary parent p1) maths, Ava english,
	// then one discount line for three lesson lines.
	require.Len(t, p1.LineItems, 4)
	assert.Equal(t, "Ava Lee — Maths", p1.LineItems[0].Description)
	assert.Equal(t, int64(7000), p1.LineItems[0].UnitAmount)
	assert.Equal(t, int64(70000), p1.LineItems[0].LineTotal)
	assert.Equal(t, "Ben Lee — Maths", p1.LineItems[1].Description)
	assert.Equal(t, int64(6000), p1.LineItems[1].UnitAmount)
	assert.Equal(t, "Ava Lee — Class", p1.LineItems[2].Description)
	assert.Equal(t, "Second lesson discount", p1.LineItems[3].Description)
	assert.Equal(t, int64(-10000), p1.LineItems[3].LineTotal)
	assert.Equal(t, int64(70000+60000+70000-10000), p1.AmountDue)
	assert.Equal(t, model.InvoiceStatusUnpaid, p1.Status)
	assert.Equal(t, 10, p1.Weeks)
	assert.Equal(t, "2025-01-27", p1.DueDate.In(sydney()).Format("2006-01-02"))
	assert.Equal(t, "T1", p1.TermID)
	for _, li := range p1.LineItems {
		assert.Equal(t, int64(li.Quantity)*li.UnitAmount, li.LineTotal)
	}

	p3 := res.Invoices[1]
	assert.Equal(t, "p3", p3.ParentID)
	require.Len(t, p3.LineItems, 1)
	assert.Equal(t, int64(70000), p3.AmountDue)

	term, err := f.terms.GetByID(context.Background(), "T1")
	require.NoError(t, err)
	assert.True(t, term.Invoiced())
	assert.Len(t, f.invoices.invoices, 2)
}

func TestInvoiceGeneratorMemoisesLoads(t *testing.T) {
	f := newInvoiceFixture(t, false)
	_, err := f.gen.Generate(context.Background(), time.Date(2025, 1, 7, 9, 0, 0, 0, sydney()))
	require.NoError(t, err)
	// s1 is enrolled twice but loaded once; six distinct IDs in total.
	assert.Equal(t, 6, f.students.calls)
}

func TestInvoiceGeneratorExactlyOnce(t *testing.T) {
	now := time.Date(2025, 1, 7, 9, 0, 0, 0, sydney())

	t.Run("marker already set", func(t *testing.T) {
		f := newInvoiceFixture(t, true)
		res, err := f.gen.Generate(context.Background(), now)
		require.NoError(t, err)
		assert.Empty(t, res.Invoices)
		assert.Zero(t, f.invoices.commits)
	})

	t.Run("second run", func(t *testing.T) {
		f := newInvoiceFixture(t, false)
		_, err := f.gen.Generate(context.Background(), now)
		require.NoError(t, err)
		res, err := f.gen.Generate(context.Background(), now.Add(24*time.Hour))
		require.NoError(t, err)
		assert.Empty(t, res.Invoices)
		assert.Len(t, f.invoices.invoices, 2)
	})
}

func TestInvoiceGeneratorSkipsFutureTerm(t *testing.T) {
	f := newInvoiceFixture(t, false)
	res, err := f.gen.Generate(context.Background(), time.Date(2025, 1, 5, 9, 0, 0, 0, sydney()))
	require.NoError(t, err)
	assert.Empty(t, res.TermID)
	assert.Zero(t, f.invoices.commits)
}

func TestInvoiceGeneratorCommitFailureLeavesMarkerUnset(t *testing.T) {
	f := newInvoiceFixture(t, false)
	f.invoices.commitErr = errors.New("batch rejected")

	_, err := f.gen.Generate(context.Background(), time.Date(2025, 1, 7, 9, 0, 0, 0, sydney()))
	require.Error(t, err)

	term, err := f.terms.GetByID(context.Background(), "T1")
	require.NoError(t, err)
	assert.False(t, term.Invoiced())
	assert.Empty(t, f.push.sent)
}

func TestInvoiceGeneratorLookupFailureAbortsRun(t *testing.T) {
	now := time.Date(2025, 1, 7, 9, 0, 0, 0, sydney())
	connReset := errors.New("conn reset")

	tests := []struct {
		name   string
		inject func(f *invoiceFixture)
	}{
		{name: "student", inject: func(f *invoiceFixture) { f.students.errs = map[string]error{"s2": connReset} }},
		{name: "parent", inject: func(f *invoiceFixture) { f.users.errs = map[string]error{"p3": context.DeadlineExceeded} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newInvoiceFixture(t, false)
			tt.inject(f)

			_, err := f.gen.Generate(context.Background(), now)
			require.Error(t, err)
			assert.Zero(t, f.invoices.commits)
			assert.Empty(t, f.invoices.invoices)
			assert.Empty(t, f.push.sent)

			term, err := f.terms.GetByID(context.Background(), "T1")
			require.NoError(t, err)
			assert.False(t, term.Invoiced())
		})
	}
}

func TestInvoiceGeneratorSkipsMalformedStudent(t *testing.T) {
	f := newInvoiceFixture(t, false)
	f.students.errs = map[string]error{"s3": fmt.Errorf("student s3: %w", validator.ErrInvalidDocument)}

	res, err := f.gen.Generate(context.Background(), time.Date(2025, 1, 7, 9, 0, 0, 0, sydney()))
	require.NoError(t, err)
	assert.True(t, res.Committed)
	require.Len(t, res.Invoices, 1)
	assert.Equal(t, "p1", res.Invoices[0].ParentID)
}

func TestInvoiceGeneratorNotifiesParents(t *testing.T) {
	f := newInvoiceFixture(t, false)
	res, err := f.gen.Generate(context.Background(), time.Date(2025, 1, 7, 9, 0, 0, 0, sydney()))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Notified)

	sent := f.push.to("p1")
	require.Len(t, sent, 1)
	assert.Equal(t, "Your invoice is ready!", sent[0].Title)
	assert.Equal(t, "Invoice for amount $1900.00", sent[0].Body)
	assert.Equal(t, "invoice", sent[0].Data["type"])
	assert.Equal(t, res.Invoices[0].ID, sent[0].Data["invoiceId"])
	// p3 has no tokens but still gets the email.
	assert.Empty(t, f.push.to("p3"))

	emails := f.mailer.Sent()
	require.Len(t, emails, 2)
	assert.Equal(t, "kim@example.com", emails[1].ToAddress)
	assert.Equal(t, "Term 1 2025", emails[1].TermName)
	assert.Equal(t, "27 Jan 2025", emails[1].DueDate)
}

func TestInvoiceGeneratorPushFailureDoesNotFailRun(t *testing.T) {
	f := newInvoiceFixture(t, false)
	f.push.err = errors.New("fcm unavailable")
	res, err := f.gen.Generate(context.Background(), time.Date(2025, 1, 7, 9, 0, 0, 0, sydney()))
	require.NoError(t, err)
	assert.True(t, res.Committed)
}

func TestInvoicePreviewWritesNothing(t *testing.T) {
	f := newInvoiceFixture(t, true)
	res, err := f.gen.Preview(context.Background(), time.Date(2025, 2, 1, 9, 0, 0, 0, sydney()))
	require.NoError(t, err)
	assert.Equal(t, "T1", res.TermID)
	assert.Len(t, res.Invoices, 2)
	assert.False(t, res.Committed)
	assert.Equal(t, int64(190000+70000), res.Total())
	assert.Zero(t, f.invoices.commits)
	assert.Empty(t, f.push.sent)
}
