package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/tenacity/ops-backend/internal/model"
	"github.com/tenacity/ops-backend/internal/validator"
)

// AttendanceRepository handles the classes/{id}/attendance sub-collection.
type AttendanceRepository struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// NewAttendanceRepository creates a new AttendanceRepository.
func NewAttendanceRepository(pool *pgxpool.Pool, log zerolog.Logger) *AttendanceRepository {
	return &AttendanceRepository{
		pool: pool,
		log:  log.With().Str("component", "attendance_repository").Logger(),
	}
}

// UpsertSessions writes the sessions of one class in a single transaction.
// Existing documents with the same key are overwritten, so regenerating a
// term yields the same rows.
func (r *AttendanceRepository) UpsertSessions(ctx context.Context, classID string, sessions []model.AttendanceSession) error {
	if len(sessions) == 0 {
		return nil
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, s := range sessions {
			batch.Queue(
				`INSERT INTO attendance (class_id, id, term_id, week, date, attendance, tutors, cancelled, updated_at, updated_by)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
				 ON CONFLICT (class_id, id) DO UPDATE
				 SET term_id = EXCLUDED.term_id,
				     week = EXCLUDED.week,
				     date = EXCLUDED.date,
				     attendance = EXCLUDED.attendance,
				     tutors = EXCLUDED.tutors,
				     cancelled = EXCLUDED.cancelled,
				     updated_at = EXCLUDED.updated_at,
				     updated_by = EXCLUDED.updated_by`,
				classID, s.Key.String(), s.Key.TermID, s.Key.Week, s.Date,
				nonNil(s.Attendance), nonNil(s.Tutors), s.Cancelled, s.UpdatedAt, s.UpdatedBy,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("upsert attendance for class %s: %w", classID, err)
		}
		return nil
	})
}

// ListBetween returns every session across all classes dated in [from, to).
func (r *AttendanceRepository) ListBetween(ctx context.Context, from, to time.Time) ([]model.AttendanceSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT class_id, id, date, attendance, tutors, cancelled, updated_at, updated_by
		 FROM attendance
		 WHERE date >= $1 AND date < $2
		 ORDER BY date, class_id`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.AttendanceSession
	for rows.Next() {
		var (
			s  model.AttendanceSession
			id string
		)
		if err := rows.Scan(&s.ClassID, &id, &s.Date, &s.Attendance, &s.Tutors, &s.Cancelled, &s.UpdatedAt, &s.UpdatedBy); err != nil {
			return nil, err
		}
		key, err := model.ParseAttendanceKey(id)
		if err != nil {
			r.log.Warn().Err(err).Str("class_id", s.ClassID).Msg("Skipping attendance with malformed id")
			continue
		}
		s.Key = key
		if err := validator.Document(&s); err != nil {
			if errors.Is(err, validator.ErrInvalidDocument) {
				r.log.Warn().Err(err).Str("attendance_id", id).Msg("Skipping invalid attendance document")
				continue
			}
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// ListByClassAndTerm returns a class's sessions for one term ordered by week.
func (r *AttendanceRepository) ListByClassAndTerm(ctx context.Context, classID, termID string) ([]model.AttendanceSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT class_id, term_id, week, date, attendance, tutors, cancelled, updated_at, updated_by
		 FROM attendance
		 WHERE class_id = $1 AND term_id = $2
		 ORDER BY week`, classID, termID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.AttendanceSession
	for rows.Next() {
		var s model.AttendanceSession
		if err := rows.Scan(&s.ClassID, &s.Key.TermID, &s.Key.Week, &s.Date, &s.Attendance, &s.Tutors, &s.Cancelled, &s.UpdatedAt, &s.UpdatedBy); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
