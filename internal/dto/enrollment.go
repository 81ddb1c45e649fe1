package dto

// CourseActionRequest is the body of the student enroll and drop endpoints.
type CourseActionRequest struct {
	CourseID int64 `json:"course_id" validate:"required,gt=0"`
}

// SetGradeRequest is the body of POST /api/teacher/update-grade. Value is a
// pointer so a missing or null value is rejected rather than read as zero.
type SetGradeRequest struct {
	CourseID  int64    `json:"course_id" validate:"required,gt=0"`
	StudentID int64    `json:"student_id" validate:"required,gt=0"`
	Value     *float64 `json:"value" validate:"required"`
}

// RosterExportQuery selects the roster download format.
type RosterExportQuery struct {
	Format string `form:"format"`
}
