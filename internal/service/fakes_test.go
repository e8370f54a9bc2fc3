package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/tenacity/ops-backend/internal/model"
	"github.com/tenacity/ops-backend/internal/push"
	"github.com/tenacity/ops-backend/internal/repository"
)

func sydney() *time.Location {
	loc, err := time.LoadLocation("Australia/Sydney")
	if err != nil {
		panic(err)
	}
	return loc
}

// ─── Terms ───────────────────────────────────────────────────────

type memTerms struct {
	mu        sync.Mutex
	terms     map[string]*model.Term
	setErr    error
	statusLog []string
}

func newMemTerms(terms ...model.Term) *memTerms {
	m := &memTerms{terms: make(map[string]*model.Term)}
	for i := range terms {
		t := terms[i]
		m.terms[t.ID] = &t
	}
	return m
}

func (m *memTerms) copyOf(t *model.Term) *model.Term {
	c := *t
	return &c
}

func (m *memTerms) GetByID(_ context.Context, id string) (*model.Term, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.terms[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return m.copyOf(t), nil
}

func (m *memTerms) FindEndedBetween(_ context.Context, from, to time.Time) (*model.Term, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *model.Term
	for _, t := range m.terms {
		if t.EndDate.Before(from) || !t.EndDate.Before(to) {
			continue
		}
		if best == nil || t.EndDate.After(best.EndDate) {
			best = t
		}
	}
	if best == nil {
		return nil, repository.ErrNotFound
	}
	return m.copyOf(best), nil
}

func (m *memTerms) FindNextAfter(_ context.Context, after time.Time) (*model.Term, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *model.Term
	for _, t := range m.terms {
		if !t.StartDate.After(after) {
			continue
		}
		if best == nil || t.StartDate.Before(best.StartDate) {
			best = t
		}
	}
	if best == nil {
		return nil, repository.ErrNotFound
	}
	return m.copyOf(best), nil
}

func (m *memTerms) FindUninvoicedActive(_ context.Context, asOf time.Time) (*model.Term, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *model.Term
	for _, t := range m.terms {
		if t.Status != model.TermStatusActive || t.StartDate.After(asOf) || t.Invoiced() {
			continue
		}
		if best == nil || t.StartDate.Before(best.StartDate) {
			best = t
		}
	}
	if best == nil {
		return nil, repository.ErrNotFound
	}
	return m.copyOf(best), nil
}

func (m *memTerms) FindActive(_ context.Context) (*model.Term, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *model.Term
	for _, t := range m.terms {
		if t.Status != model.TermStatusActive {
			continue
		}
		if best == nil || t.StartDate.After(best.StartDate) {
			best = t
		}
	}
	if best == nil {
		return nil, repository.ErrNotFound
	}
	return m.copyOf(best), nil
}

func (m *memTerms) SetStatus(_ context.Context, id string, status model.TermStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	t, ok := m.terms[id]
	if !ok {
		return repository.ErrNotFound
	}
	t.Status = status
	m.statusLog = append(m.statusLog, id+"="+string(status))
	return nil
}

func (m *memTerms) status(id string) model.TermStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.terms[id].Status
}

// ─── Classes ─────────────────────────────────────────────────────

type memClasses struct {
	classes []model.Class
}

func (m *memClasses) GetByID(_ context.Context, id string) (*model.Class, error) {
	for i := range m.classes {
		if m.classes[i].ID == id {
			c := m.classes[i]
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memClasses) List(_ context.Context) ([]model.Class, error) {
	out := make([]model.Class, len(m.classes))
	copy(out, m.classes)
	return out, nil
}

// ─── Attendance ──────────────────────────────────────────────────

type memAttendance struct {
	mu       sync.Mutex
	sessions map[string]map[string]model.AttendanceSession
	upserts  int
	failFor  string
}

func newMemAttendance(sessions ...model.AttendanceSession) *memAttendance {
	m := &memAttendance{sessions: make(map[string]map[string]model.AttendanceSession)}
	for _, s := range sessions {
		m.put(s)
	}
	return m
}

func (m *memAttendance) put(s model.AttendanceSession) {
	if m.sessions[s.ClassID] == nil {
		m.sessions[s.ClassID] = make(map[string]model.AttendanceSession)
	}
	m.sessions[s.ClassID][s.ID()] = s
}

func (m *memAttendance) UpsertSessions(_ context.Context, classID string, sessions []model.AttendanceSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if classID == m.failFor {
		return errors.New("write failed")
	}
	for _, s := range sessions {
		m.put(s)
		m.upserts++
	}
	return nil
}

func (m *memAttendance) ListBetween(_ context.Context, from, to time.Time) ([]model.AttendanceSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.AttendanceSession
	for _, byID := range m.sessions {
		for _, s := range byID {
			if !s.Date.Before(from) && s.Date.Before(to) {
				out = append(out, s)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ClassID < out[j].ClassID
	})
	return out, nil
}

func (m *memAttendance) forClass(classID string) []model.AttendanceSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.AttendanceSession
	for _, s := range m.sessions[classID] {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.Week < out[j].Key.Week })
	return out
}

// ─── Students and users ──────────────────────────────────────────

type memStudents struct {
	students map[string]model.Student
	errs     map[string]error
	calls    int
}

func newMemStudents(students ...model.Student) *memStudents {
	m := &memStudents{students: make(map[string]model.Student)}
	for _, s := range students {
		m.students[s.ID] = s
	}
	return m
}

func (m *memStudents) GetByID(_ context.Context, id string) (*model.Student, error) {
	m.calls++
	if err := m.errs[id]; err != nil {
		return nil, err
	}
	s, ok := m.students[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

type memUsers struct {
	users map[string]model.User
	errs  map[string]error
}

func newMemUsers(users ...model.User) *memUsers {
	m := &memUsers{users: make(map[string]model.User)}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *memUsers) GetByID(_ context.Context, id string) (*model.User, error) {
	if err := m.errs[id]; err != nil {
		return nil, err
	}
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

// ─── Invoices ────────────────────────────────────────────────────

type memInvoices struct {
	terms     *memTerms
	invoices  []model.Invoice
	commits   int
	commitErr error
}

func (m *memInvoices) CommitTermInvoices(_ context.Context, termID string, invoices []model.Invoice, invoicedAt time.Time) error {
	m.commits++
	if m.commitErr != nil {
		return m.commitErr
	}
	m.terms.mu.Lock()
	defer m.terms.mu.Unlock()
	t, ok := m.terms.terms[termID]
	if !ok {
		return repository.ErrNotFound
	}
	if t.Invoiced() {
		return repository.ErrAlreadyInvoiced
	}
	at := invoicedAt
	t.InvoicesGeneratedAt = &at
	m.invoices = append(m.invoices, invoices...)
	return nil
}

func (m *memInvoices) ListOpen(_ context.Context) ([]model.Invoice, error) {
	var out []model.Invoice
	for _, inv := range m.invoices {
		if inv.Status == model.InvoiceStatusUnpaid || inv.Status == model.InvoiceStatusOverdue {
			out = append(out, inv)
		}
	}
	return out, nil
}

// ─── Tokens and settings ─────────────────────────────────────────

type memTokens map[string][]string

func (m memTokens) ListByUser(_ context.Context, userID string) ([]string, error) {
	return m[userID], nil
}

type memSettings map[string]model.UserSettings

func (m memSettings) GetByUser(_ context.Context, userID string) (model.UserSettings, error) {
	if s, ok := m[userID]; ok {
		return s, nil
	}
	return model.DefaultUserSettings(userID), nil
}

// ─── Push ────────────────────────────────────────────────────────

type recordingDispatcher struct {
	mu   sync.Mutex
	sent []push.Notification
	err  error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, n push.Notification) (push.Report, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return push.Report{}, d.err
	}
	d.sent = append(d.sent, n)
	return push.Report{Sent: len(n.Tokens)}, nil
}

func (d *recordingDispatcher) to(userID string) []push.Notification {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []push.Notification
	for _, n := range d.sent {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}
