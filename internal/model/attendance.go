package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidAttendanceKey is returned when a session identifier cannot be parsed.
var ErrInvalidAttendanceKey = errors.New("invalid attendance key")

const attendanceWeekSep = "_W"

// AttendanceKey identifies one weekly session of a class within a term.
// Together with the owning class ID it is unique, so regenerating a term
// overwrites instead of appending.
type AttendanceKey struct {
	TermID string
	Week   int
}

// NewAttendanceKey builds the key for a term week.
func NewAttendanceKey(termID string, week int) AttendanceKey {
	return AttendanceKey{TermID: termID, Week: week}
}

// String renders the stored identifier, e.g. "2025_T3_W4".
func (k AttendanceKey) String() string {
	return fmt.Sprintf("%s%s%d", k.TermID, attendanceWeekSep, k.Week)
}

// ParseAttendanceKey parses "{termId}_W{week}". The split happens at the last
// "_W" so term IDs may themselves contain underscores.
func ParseAttendanceKey(s string) (AttendanceKey, error) {
	idx := strings.LastIndex(s, attendanceWeekSep)
	if idx <= 0 {
		return AttendanceKey{}, fmt.Errorf("%w: %q", ErrInvalidAttendanceKey, s)
	}
	week, err := strconv.Atoi(s[idx+len(attendanceWeekSep):])
	if err != nil || week < 1 {
		return AttendanceKey{}, fmt.Errorf("%w: %q", ErrInvalidAttendanceKey, s)
	}
	return AttendanceKey{TermID: s[:idx], Week: week}, nil
}

// AttendanceSession is one concrete weekly occurrence of a class.
type AttendanceSession struct {
	ClassID    string        `json:"class_id" validate:"required"`
	Key        AttendanceKey `json:"-"`
	Date       time.Time     `json:"date" validate:"required"`
	Attendance []string      `json:"attendance"`
	Tutors     []string      `json:"tutors"`
	Cancelled  bool          `json:"cancelled"`
	UpdatedAt  time.Time     `json:"updated_at"`
	UpdatedBy  string        `json:"updated_by"`
}

// ID is the document identifier of the session inside its class.
func (s *AttendanceSession) ID() string {
	return s.Key.String()
}
