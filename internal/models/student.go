package models

import "time"

// Student is an employee who can enroll in courses.
type Student struct {
	ID         string    `db:"id" json:"id"`
	EmployeeID string    `db:"employee_id" json:"employee_id"`
	Name       string    `db:"name" json:"name"`
	Email      string    `db:"email" json:"email"`
	SBU        string    `db:"sbu" json:"sbu"`
	Department string    `db:"department" json:"department"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search   string
	Page     int
	PageSize int
}
