package models

import "time"

// Grade represents a row in the grades table; (student_id, course_id) is unique.
type Grade struct {
	ID        int64     `db:"id" json:"id"`
	StudentID int64     `db:"student_id" json:"student_id"`
	CourseID  int64     `db:"course_id" json:"course_id"`
	Value     float64   `db:"value" json:"value"`
	CreatedAt time.Time `db:"created_at" json:"-"`
	UpdatedAt time.Time `db:"updated_at" json:"-"`
}

// GradeDetail joins a grade with the names shown in the back-office list.
type GradeDetail struct {
	ID              int64   `db:"id" json:"id"`
	StudentID       int64   `db:"student_id" json:"student_id"`
	StudentUsername string  `db:"student_username" json:"student_username"`
	CourseID        int64   `db:"course_id" json:"course_id"`
	CourseName      string  `db:"course_name" json:"course_name"`
	Value           float64 `db:"value" json:"value"`
}
