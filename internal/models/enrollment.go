package models

import "time"

// Enrollment links a student to a course; the pair is its identity.
type Enrollment struct {
	UserID     int64     `db:"user_id" json:"user_id"`
	CourseID   int64     `db:"course_id" json:"course_id"`
	EnrolledAt time.Time `db:"enrolled_at" json:"enrolled_at"`
}

// EnrollOutcome is the result of an atomic enrollment attempt.
type EnrollOutcome int

const (
	EnrollOK EnrollOutcome = iota
	EnrollCourseMissing
	EnrollAlreadyEnrolled
	EnrollCourseFull
)

func (o EnrollOutcome) String() string {
	switch o {
	case EnrollOK:
		return "success"
	case EnrollCourseMissing:
		return "course_missing"
	case EnrollAlreadyEnrolled:
		return "already_enrolled"
	case EnrollCourseFull:
		return "course_full"
	default:
		return "unknown"
	}
}

// DropOutcome is the result of an atomic drop attempt.
type DropOutcome int

const (
	DropOK DropOutcome = iota
	DropCourseMissing
	DropNotEnrolled
)

func (o DropOutcome) String() string {
	switch o {
	case DropOK:
		return "success"
	case DropCourseMissing:
		return "course_missing"
	case DropNotEnrolled:
		return "not_enrolled"
	default:
		return "unknown"
	}
}

// RosterEntry is one enrolled student with their grade, if any.
type RosterEntry struct {
	ID       int64    `db:"id" json:"id"`
	Username string   `db:"username" json:"username"`
	Role     UserRole `db:"role" json:"role"`
	Grade    *float64 `db:"grade" json:"grade"`
}
