package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tenacity/ops-backend/internal/model"
	"github.com/tenacity/ops-backend/internal/push"
	"github.com/tenacity/ops-backend/internal/timetable"
)

// ReminderResult summarises one daily reminder run.
type ReminderResult struct {
	Sessions        int `json:"sessions"`
	SkippedSessions int `json:"skipped_sessions"`
	Tutors          int `json:"tutors"`
	Parents         int `json:"parents"`
	Sent            int `json:"sent"`
	Suppressed      int `json:"suppressed"`
	Failed          int `json:"failed"`
}

// ReminderAggregator sends one shift reminder per tutor and one lesson
// reminder per parent for today's sessions.
type ReminderAggregator struct {
	terms      TermStore
	classes    ClassStore
	attendance AttendanceStore
	students   StudentStore
	tokens     TokenStore
	settings   SettingStore
	push       push.Dispatcher
	loc        *time.Location
	log        zerolog.Logger
}

// ReminderDeps groups the collaborators of a ReminderAggregator.
type ReminderDeps struct {
	Terms      TermStore
	Classes    ClassStore
	Attendance AttendanceStore
	Students   StudentStore
	Tokens     TokenStore
	Settings   SettingStore
	Push       push.Dispatcher
}

// NewReminderAggregator creates a new ReminderAggregator.
func NewReminderAggregator(deps ReminderDeps, loc *time.Location, log zerolog.Logger) *ReminderAggregator {
	return &ReminderAggregator{
		terms:      deps.Terms,
		classes:    deps.Classes,
		attendance: deps.Attendance,
		students:   deps.Students,
		tokens:     deps.Tokens,
		settings:   deps.Settings,
		push:       deps.Push,
		loc:        loc,
		log:        log.With().Str("component", "reminder_aggregator").Logger(),
	}
}

type childWindow struct {
	window timetable.Window
	child  string
}

// Run builds and dispatches today's reminders. Only listing the sessions can
// fail the run; unresolved entities and rejected sends are logged and skipped.
func (a *ReminderAggregator) Run(ctx context.Context, now time.Time) (*ReminderResult, error) {
	from, to := timetable.DayWindow(now, a.loc)
	sessions, err := a.attendance.ListBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list today's sessions: %w", err)
	}
	res := &ReminderResult{}

	tutors := make(map[string][]timetable.Window)
	parents := make(map[string][]childWindow)
	r := newResolver(a)

	for i := range sessions {
		s := &sessions[i]
		log := a.log.With().Str("class_id", s.ClassID).Str("session_id", s.ID()).Logger()

		if s.Cancelled {
			log.Debug().Msg("Session cancelled, skipping")
			res.SkippedSessions++
			continue
		}
		term, err := r.term(ctx, s.Key.TermID)
		if err != nil {
			log.Warn().Err(err).Str("term_id", s.Key.TermID).Msg("Skipping session with unknown term")
			res.SkippedSessions++
			continue
		}
		if s.Date.Before(term.StartDate) {
			log.Info().Time("date", s.Date).Time("term_start", term.StartDate).Msg("Session before term start, skipping")
			res.SkippedSessions++
			continue
		}
		cls, err := r.class(ctx, s.ClassID)
		if err != nil {
			log.Warn().Err(err).Msg("Skipping session with unknown class")
			res.SkippedSessions++
			continue
		}
		w, err := timetable.SessionWindow(s.Date, cls.StartTime, cls.EndTime, a.loc)
		if err != nil {
			log.Warn().Err(err).Msg("Skipping session with invalid class times")
			res.SkippedSessions++
			continue
		}
		res.Sessions++

		for _, tid := range s.Tutors {
			tutors[tid] = append(tutors[tid], w)
		}
		for _, sid := range s.Attendance {
			student, err := r.student(ctx, sid)
			if err != nil {
				log.Warn().Err(err).Str("student_id", sid).Msg("Skipping unknown student")
				continue
			}
			if len(student.Parents) == 0 {
				log.Warn().Str("student_id", sid).Msg("Student has no parents, skipping")
				continue
			}
			for _, pid := range student.Parents {
				parents[pid] = append(parents[pid], childWindow{window: w, child: student.DisplayName()})
			}
		}
	}

	for _, tid := range sortedKeys(tutors) {
		n, ok := a.tutorNotification(tid, tutors[tid])
		if !ok {
			continue
		}
		res.Tutors++
		a.deliver(ctx, model.ReminderShift, n, res)
	}
	for _, pid := range sortedKeys(parents) {
		res.Parents++
		a.deliver(ctx, model.ReminderLesson, a.parentNotification(pid, parents[pid]), res)
	}

	a.log.Info().
		Int("sessions", res.Sessions).
		Int("tutors", res.Tutors).
		Int("parents", res.Parents).
		Int("sent", res.Sent).
		Int("suppressed", res.Suppressed).
		Int("failed", res.Failed).
		Msg("Daily reminders done")
	return res, nil
}

// tutorNotification collapses every window into one span from the earliest
// start to the latest end, gaps included.
func (a *ReminderAggregator) tutorNotification(tutorID string, ws []timetable.Window) (push.Notification, bool) {
	env, ok := timetable.Envelope(ws)
	if !ok {
		return push.Notification{}, false
	}
	return push.Notification{
		UserID: tutorID,
		Title:  "You have a shift tonight!",
		Body: fmt.Sprintf("You’re tutoring from %s–%s.",
			timetable.FormatClock(env.Start, a.loc), timetable.FormatClock(env.End, a.loc)),
		Data: map[string]string{"type": string(model.ReminderShift)},
	}, true
}

// parentNotification merges each child's windows, folds identical spans
// across children and lists the result in start order.
func (a *ReminderAggregator) parentNotification(parentID string, cws []childWindow) push.Notification {
	byChild := make(map[string][]timetable.Window)
	for _, cw := range cws {
		byChild[cw.child] = append(byChild[cw.child], cw.window)
	}
	return push.Notification{
		UserID: parentID,
		Title:  "You have a lesson tonight!",
		Body:   strings.Join(ParentLines(byChild, a.loc), "; "),
		Data:   map[string]string{"type": string(model.ReminderLesson)},
	}
}

// ParentLines renders the merged spans of a parent's children, e.g.
// "Ava and Ben 6:00 pm–7:00 pm".
func ParentLines(byChild map[string][]timetable.Window, loc *time.Location) []string {
	spans := timetable.MergeByLabel(byChild)
	lines := make([]string, 0, len(spans))
	for _, s := range spans {
		lines = append(lines, fmt.Sprintf("%s %s–%s",
			s.Label(), timetable.FormatClock(s.Start, loc), timetable.FormatClock(s.End, loc)))
	}
	return lines
}

// deliver applies the recipient's settings and tokens, then dispatches.
func (a *ReminderAggregator) deliver(ctx context.Context, kind model.ReminderType, n push.Notification, res *ReminderResult) {
	log := a.log.With().Str("user_id", n.UserID).Str("type", string(kind)).Logger()

	settings, err := a.settings.GetByUser(ctx, n.UserID)
	if err != nil {
		log.Error().Err(err).Msg("Load settings failed")
		res.Failed++
		return
	}
	if !settings.Allows(kind) {
		log.Info().Msg("Reminder disabled in user settings")
		res.Suppressed++
		return
	}
	tokens, err := a.tokens.ListByUser(ctx, n.UserID)
	if err != nil {
		log.Error().Err(err).Msg("Load push tokens failed")
		res.Failed++
		return
	}
	if len(tokens) == 0 {
		log.Debug().Msg("No push tokens")
		res.Suppressed++
		return
	}
	n.Tokens = tokens

	report, err := a.push.Dispatch(ctx, n)
	if err != nil {
		log.Error().Err(err).Msg("Reminder push failed")
		res.Failed++
		return
	}
	logReport(log, report)
	res.Sent++
}

// resolver memoises lookups for the duration of one run. Misses are cached
// too so a missing document is only reported once per run.
type resolver struct {
	a        *ReminderAggregator
	terms    map[string]*model.Term
	classes  map[string]*model.Class
	students map[string]*model.Student
	errs     map[string]error
}

func newResolver(a *ReminderAggregator) *resolver {
	return &resolver{
		a:        a,
		terms:    make(map[string]*model.Term),
		classes:  make(map[string]*model.Class),
		students: make(map[string]*model.Student),
		errs:     make(map[string]error),
	}
}

func (r *resolver) term(ctx context.Context, id string) (*model.Term, error) {
	if t, ok := r.terms[id]; ok {
		return t, nil
	}
	if err, ok := r.errs["term:"+id]; ok {
		return nil, err
	}
	t, err := r.a.terms.GetByID(ctx, id)
	if err != nil {
		r.errs["term:"+id] = err
		return nil, err
	}
	r.terms[id] = t
	return t, nil
}

func (r *resolver) class(ctx context.Context, id string) (*model.Class, error) {
	if c, ok := r.classes[id]; ok {
		return c, nil
	}
	if err, ok := r.errs["class:"+id]; ok {
		return nil, err
	}
	c, err := r.a.classes.GetByID(ctx, id)
	if err != nil {
		r.errs["class:"+id] = err
		return nil, err
	}
	r.classes[id] = c
	return c, nil
}

func (r *resolver) student(ctx context.Context, id string) (*model.Student, error) {
	if s, ok := r.students[id]; ok {
		return s, nil
	}
	if err, ok := r.errs["student:"+id]; ok {
		return nil, err
	}
	s, err := r.a.students.GetByID(ctx, id)
	if err != nil {
		r.errs["student:"+id] = err
		return nil, err
	}
	r.students[id] = s
	return s, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
