package models

import "time"

// UnknownMentorName is shown when a mentor's name cannot be resolved.
const UnknownMentorName = "Unknown Mentor"

// Mentor is a trainer that can be assigned to courses.
type Mentor struct {
	ID         string    `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	Email      string    `db:"email" json:"email"`
	IsInternal bool      `db:"is_internal" json:"is_internal"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// MentorFilter narrows mentor listings.
type MentorFilter struct {
	Search     string
	IsInternal *bool
	Page       int
	PageSize   int
}
