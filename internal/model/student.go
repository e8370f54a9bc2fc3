package model

import (
	"strconv"
	"strings"
	"unicode"
)

// Student is a tutored child. Grade drives the billing tier.
type Student struct {
	ID              string   `json:"id" validate:"required"`
	FirstName       string   `json:"first_name"`
	LastName        string   `json:"last_name"`
	Grade           string   `json:"grade"`
	Parents         []string `json:"parents"`
	PrimaryParentID string   `json:"primary_parent_id,omitempty"`
}

// DisplayName returns "First Last", or "Your child" when both are empty.
func (s *Student) DisplayName() string {
	name := strings.TrimSpace(s.FirstName + " " + s.LastName)
	if name == "" {
		return "Your child"
	}
	return name
}

// GradeNumber extracts the digits of Grade ("Year 8" -> 8). Zero when none.
func (s *Student) GradeNumber() int {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s.Grade)
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return n
}

// BillingParentID is the parent invoiced for this student.
func (s *Student) BillingParentID() string {
	if s.PrimaryParentID != "" {
		return s.PrimaryParentID
	}
	if len(s.Parents) > 0 {
		return s.Parents[0]
	}
	return ""
}
