package model

// UserSettings holds a user's notification preferences. A missing record
// means every reminder is enabled.
type UserSettings struct {
	UserID          string `json:"user_id"`
	LessonReminder  bool   `json:"lesson_reminder"`
	ShiftReminder   bool   `json:"shift_reminder"`
	InvoiceReminder bool   `json:"invoice_reminder"`
}

// DefaultUserSettings is the preference set of a user with no record.
func DefaultUserSettings(userID string) UserSettings {
	return UserSettings{
		UserID:          userID,
		LessonReminder:  true,
		ShiftReminder:   true,
		InvoiceReminder: true,
	}
}

// ReminderType names a kind of scheduled reminder.
type ReminderType string

const (
	ReminderLesson  ReminderType = "lesson_reminder"
	ReminderShift   ReminderType = "shift_reminder"
	ReminderInvoice ReminderType = "invoice_reminder"
)

// Allows reports whether the user accepts reminders of type t.
func (s UserSettings) Allows(t ReminderType) bool {
	switch t {
	case ReminderLesson:
		return s.LessonReminder
	case ReminderShift:
		return s.ShiftReminder
	case ReminderInvoice:
		return s.InvoiceReminder
	default:
		return true
	}
}
