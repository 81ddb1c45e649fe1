package dto

// Admin forms are bound from url-encoded posts. Every field is a raw string:
// on create each required field must be present, on edit an empty field keeps
// the stored value.

// UserForm backs the back-office user create and edit pages.
type UserForm struct {
	Username string `form:"username"`
	Password string `form:"password"`
	Role     string `form:"role"`
}

// CourseForm backs the back-office course create and edit pages.
type CourseForm struct {
	Name        string `form:"name"`
	Description string `form:"description"`
	Capacity    string `form:"capacity"`
	Timeslot    string `form:"timeslot"`
	TeacherID   string `form:"teacher_id"`
}

// GradeForm backs the back-office grade create and edit pages.
type GradeForm struct {
	StudentID string `form:"student_id"`
	CourseID  string `form:"course_id"`
	Value     string `form:"value"`
}
