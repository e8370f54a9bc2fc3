package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/tenacity/ops-backend/internal/model"
	"github.com/tenacity/ops-backend/internal/repository"
	"github.com/tenacity/ops-backend/internal/timetable"
	"golang.org/x/sync/errgroup"
)

// SystemActor is recorded as the author of documents written by batch jobs.
const SystemActor = "system"

// RolloverResult summarises one roller run. Empty IDs mean the matching step
// found nothing to do.
type RolloverResult struct {
	EndedTermID    string `json:"ended_term_id,omitempty"`
	NewTermID      string `json:"new_term_id,omitempty"`
	Classes        int    `json:"classes"`
	SkippedClasses int    `json:"skipped_classes"`
	Sessions       int    `json:"sessions"`
}

// TermRoller closes the term that ended yesterday, activates the next one and
// pre-generates its attendance sessions.
type TermRoller struct {
	terms       TermStore
	classes     ClassStore
	attendance  AttendanceStore
	loc         *time.Location
	concurrency int
	log         zerolog.Logger
}

// NewTermRoller creates a new TermRoller.
func NewTermRoller(terms TermStore, classes ClassStore, attendance AttendanceStore, loc *time.Location, concurrency int, log zerolog.Logger) *TermRoller {
	if concurrency < 1 {
		concurrency = 1
	}
	return &TermRoller{
		terms:       terms,
		classes:     classes,
		attendance:  attendance,
		loc:         loc,
		concurrency: concurrency,
		log:         log.With().Str("component", "term_roller").Logger(),
	}
}

// Run performs one rollover as of now. Any store failure aborts the run; all
// writes are keyed deterministically so a retry is safe.
func (r *TermRoller) Run(ctx context.Context, now time.Time) (*RolloverResult, error) {
	res := &RolloverResult{}

	from, to := timetable.PreviousDayWindow(now, r.loc)
	ended, err := r.terms.FindEndedBetween(ctx, from, to)
	if errors.Is(err, repository.ErrNotFound) {
		r.log.Info().Time("from", from).Time("to", to).Msg("No term ended yesterday")
		return res, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find ended term: %w", err)
	}

	if err := r.terms.SetStatus(ctx, ended.ID, model.TermStatusInactive); err != nil {
		return nil, fmt.Errorf("deactivate term %s: %w", ended.ID, err)
	}
	res.EndedTermID = ended.ID
	r.log.Info().Str("term_id", ended.ID).Msg("Term marked inactive")

	next, err := r.terms.FindNextAfter(ctx, ended.EndDate)
	if errors.Is(err, repository.ErrNotFound) {
		r.log.Info().Str("ended_term_id", ended.ID).Msg("No next term configured")
		return res, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find next term: %w", err)
	}

	if err := r.terms.SetStatus(ctx, next.ID, model.TermStatusActive); err != nil {
		return nil, fmt.Errorf("activate term %s: %w", next.ID, err)
	}
	res.NewTermID = next.ID
	r.log.Info().Str("term_id", next.ID).Msg("Term marked active")

	classes, err := r.classes.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i := range classes {
		cls := classes[i]
		sessions, err := GenerateSessions(next, &cls, now, r.loc)
		if err != nil {
			r.log.Warn().Err(err).Str("class_id", cls.ID).Msg("Skipping class")
			res.SkippedClasses++
			continue
		}
		res.Classes++
		res.Sessions += len(sessions)

		g.Go(func() error {
			if err := r.attendance.UpsertSessions(gctx, cls.ID, sessions); err != nil {
				return fmt.Errorf("write sessions of class %s: %w", cls.ID, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	r.log.Info().
		Str("term_id", next.ID).
		Int("classes", res.Classes).
		Int("sessions", res.Sessions).
		Int("skipped", res.SkippedClasses).
		Msg("Attendance generated")
	return res, nil
}

// GenerateSessions builds one session per week of term for cls. Sessions
// land on the class weekday at its start time (local midnight without one),
// seeded with the class roster.
func GenerateSessions(term *model.Term, cls *model.Class, now time.Time, loc *time.Location) ([]model.AttendanceSession, error) {
	wd, err := timetable.ParseWeekday(cls.Day)
	if err != nil {
		return nil, err
	}
	var start timetable.Clock
	if cls.StartTime != "" {
		if start, err = timetable.ParseClock(cls.StartTime); err != nil {
			return nil, err
		}
	}

	first := timetable.FirstSessionDate(term.StartDate, wd, loc)
	sessions := make([]model.AttendanceSession, 0, term.Weeks)
	for week := 1; week <= term.Weeks; week++ {
		sessions = append(sessions, model.AttendanceSession{
			ClassID:    cls.ID,
			Key:        model.NewAttendanceKey(term.ID, week),
			Date:       timetable.WeekSessionDate(first, week, start, loc),
			Attendance: clone(cls.EnrolledStudents),
			Tutors:     clone(cls.Tutors),
			Cancelled:  false,
			UpdatedAt:  now,
			UpdatedBy:  SystemActor,
		})
	}
	return sessions, nil
}

func clone(ids []string) []string {
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}
