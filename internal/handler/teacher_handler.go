package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-enrollment-api/internal/dto"
	"github.com/noah-isme/sma-enrollment-api/internal/models"
	"github.com/noah-isme/sma-enrollment-api/internal/service"
	appErrors "github.com/noah-isme/sma-enrollment-api/pkg/errors"
	"github.com/noah-isme/sma-enrollment-api/pkg/response"
)

type teacherCourseLister interface {
	ListForTeacher(ctx context.Context, session *models.Session) ([]models.CourseDetail, error)
}

type gradingService interface {
	ListRoster(ctx context.Context, session *models.Session, courseID int64) ([]models.RosterEntry, error)
	SetGrade(ctx context.Context, session *models.Session, req dto.SetGradeRequest) error
	ExportRoster(ctx context.Context, session *models.Session, courseID int64, format string) (*service.ExportFile, error)
}

// TeacherHandler exposes the teacher course and grading endpoints.
type TeacherHandler struct {
	courses teacherCourseLister
	grades  gradingService
}

// NewTeacherHandler constructs the handler.
func NewTeacherHandler(courses teacherCourseLister, grades gradingService) *TeacherHandler {
	return &TeacherHandler{courses: courses, grades: grades}
}

// Courses godoc
// @Summary Teacher courses
// @Tags Teacher
// @Produce json
// @Success 200 {array} models.CourseDetail
// @Failure 403 {object} response.ErrorEnvelope
// @Router /api/teacher/courses [get]
func (h *TeacherHandler) Courses(c *gin.Context) {
	courses, err := h.courses.ListForTeacher(c.Request.Context(), sessionFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, courses)
}

// Students godoc
// @Summary Course roster
// @Description Students enrolled in an owned course with their grades
// @Tags Teacher
// @Produce json
// @Param id path int true "Course ID"
// @Success 200 {array} models.RosterEntry
// @Failure 403 {object} response.ErrorEnvelope
// @Router /api/teacher/course/{id}/students [get]
func (h *TeacherHandler) Students(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	roster, err := h.grades.ListRoster(c.Request.Context(), sessionFromContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, roster)
}

// UpdateGrade godoc
// @Summary Set a grade
// @Description Creates or replaces the grade of an enrolled student
// @Tags Teacher
// @Accept json
// @Produce json
// @Param payload body dto.SetGradeRequest true "Grade"
// @Success 200 {object} map[string]bool
// @Failure 400 {object} response.ErrorEnvelope
// @Failure 403 {object} response.ErrorEnvelope
// @Router /api/teacher/update-grade [post]
func (h *TeacherHandler) UpdateGrade(c *gin.Context) {
	var req dto.SetGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid grade value"))
		return
	}
	if err := h.grades.SetGrade(c.Request.Context(), sessionFromContext(c), req); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c)
}

// ExportStudents godoc
// @Summary Export course roster
// @Tags Teacher
// @Produce text/csv
// @Produce application/pdf
// @Param id path int true "Course ID"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Failure 403 {object} response.ErrorEnvelope
// @Router /api/teacher/course/{id}/students/export [get]
func (h *TeacherHandler) ExportStudents(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var query dto.RosterExportQuery
	_ = c.ShouldBindQuery(&query)

	file, err := h.grades.ExportRoster(c.Request.Context(), sessionFromContext(c), id, query.Format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}
