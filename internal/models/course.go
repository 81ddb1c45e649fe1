package models

import "time"

// UnknownTeacher is displayed when a course has no resolvable teacher.
const UnknownTeacher = "Unknown"

// Course represents a row in the courses table.
type Course struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description"`
	Capacity    int       `db:"capacity" json:"capacity"`
	Timeslot    string    `db:"timeslot" json:"timeslot"`
	TeacherID   int64     `db:"teacher_id" json:"teacher_id"`
	CreatedAt   time.Time `db:"created_at" json:"-"`
	UpdatedAt   time.Time `db:"updated_at" json:"-"`
}

// CourseDetail is the external representation of a course with derived fields.
type CourseDetail struct {
	ID            int64   `db:"id" json:"id"`
	Name          string  `db:"name" json:"name"`
	Description   *string `db:"description" json:"description"`
	Capacity      int     `db:"capacity" json:"capacity"`
	Timeslot      string  `db:"timeslot" json:"timeslot"`
	TeacherID     int64   `db:"teacher_id" json:"teacher_id"`
	TeacherName   string  `db:"teacher_name" json:"teacher_name"`
	EnrolledCount int     `db:"enrolled_count" json:"enrolled_count"`
}

// Full reports whether no seat is left.
func (c CourseDetail) Full() bool {
	return c.EnrolledCount >= c.Capacity
}

// StudentCourse is a course as seen by one student.
type StudentCourse struct {
	CourseDetail
	Enrolled bool     `db:"enrolled" json:"enrolled"`
	Grade    *float64 `db:"grade" json:"grade,omitempty"`
}

// StudentCourses partitions the catalog by the student's enrollment set.
type StudentCourses struct {
	Enrolled  []StudentCourse `json:"enrolled_courses"`
	Available []StudentCourse `json:"available_courses"`
}
