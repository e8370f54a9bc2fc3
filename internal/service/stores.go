package service

import (
	"context"
	"time"

	"github.com/tenacity/ops-backend/internal/model"
)

// The batch jobs depend on these narrow views of the repositories so tests
// can substitute in-memory stores. Lookups of a missing document return
// repository.ErrNotFound.

type TermStore interface {
	GetByID(ctx context.Context, id string) (*model.Term, error)
	FindEndedBetween(ctx context.Context, from, to time.Time) (*model.Term, error)
	FindNextAfter(ctx context.Context, t time.Time) (*model.Term, error)
	FindUninvoicedActive(ctx context.Context, asOf time.Time) (*model.Term, error)
	FindActive(ctx context.Context) (*model.Term, error)
	SetStatus(ctx context.Context, id string, status model.TermStatus) error
}

type ClassStore interface {
	GetByID(ctx context.Context, id string) (*model.Class, error)
	List(ctx context.Context) ([]model.Class, error)
}

type AttendanceStore interface {
	UpsertSessions(ctx context.Context, classID string, sessions []model.AttendanceSession) error
	ListBetween(ctx context.Context, from, to time.Time) ([]model.AttendanceSession, error)
}

type StudentStore interface {
	GetByID(ctx context.Context, id string) (*model.Student, error)
}

type UserStore interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
}

type InvoiceStore interface {
	CommitTermInvoices(ctx context.Context, termID string, invoices []model.Invoice, invoicedAt time.Time) error
	ListOpen(ctx context.Context) ([]model.Invoice, error)
}

type TokenStore interface {
	ListByUser(ctx context.Context, userID string) ([]string, error)
}

type SettingStore interface {
	GetByUser(ctx context.Context, userID string) (model.UserSettings, error)
}
