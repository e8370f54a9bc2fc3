package model

import "strings"

// Role distinguishes parents, tutors and admins.
type Role string

const (
	RoleParent Role = "parent"
	RoleTutor  Role = "tutor"
	RoleAdmin  Role = "admin"
)

// User is a parent, tutor or admin account.
type User struct {
	ID        string `json:"id" validate:"required"`
	Role      Role   `json:"role"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email" validate:"omitempty,email"`
}

// FullName joins first and last name.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
