package model

// Class is a recurring weekly time slot with a fixed roster.
type Class struct {
	ID               string   `json:"id" validate:"required"`
	Type             string   `json:"type"`
	Day              string   `json:"day" validate:"required"`
	StartTime        string   `json:"start_time"`
	EndTime          string   `json:"end_time"`
	EnrolledStudents []string `json:"enrolled_students"`
	Tutors           []string `json:"tutors"`
}

// DisplayName is the class label used on invoice lines.
func (c *Class) DisplayName() string {
	if c.Type == "" {
		return "Class"
	}
	return c.Type
}
