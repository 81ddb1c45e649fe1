package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-enrollment-api/internal/dto"
	"github.com/noah-isme/sma-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/sma-enrollment-api/pkg/errors"
	"github.com/noah-isme/sma-enrollment-api/pkg/response"
)

type studentCourseLister interface {
	ListForStudent(ctx context.Context, session *models.Session) (*models.StudentCourses, error)
}

type enrollmentService interface {
	Enroll(ctx context.Context, session *models.Session, req dto.CourseActionRequest) error
	Drop(ctx context.Context, session *models.Session, req dto.CourseActionRequest) error
}

// StudentHandler exposes the student course endpoints.
type StudentHandler struct {
	courses     studentCourseLister
	enrollments enrollmentService
}

// NewStudentHandler constructs the handler.
func NewStudentHandler(courses studentCourseLister, enrollments enrollmentService) *StudentHandler {
	return &StudentHandler{courses: courses, enrollments: enrollments}
}

// Courses godoc
// @Summary Student courses
// @Description Courses split into enrolled (with grade) and available
// @Tags Student
// @Produce json
// @Success 200 {object} models.StudentCourses
// @Failure 401 {object} response.ErrorEnvelope
// @Failure 403 {object} response.ErrorEnvelope
// @Router /api/student/courses [get]
func (h *StudentHandler) Courses(c *gin.Context) {
	result, err := h.courses.ListForStudent(c.Request.Context(), sessionFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// Enroll godoc
// @Summary Enroll in a course
// @Tags Student
// @Accept json
// @Produce json
// @Param payload body dto.CourseActionRequest true "Course"
// @Success 200 {object} map[string]bool
// @Failure 400 {object} response.ErrorEnvelope
// @Failure 404 {object} response.ErrorEnvelope
// @Router /api/student/enroll [post]
func (h *StudentHandler) Enroll(c *gin.Context) {
	var req dto.CourseActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid enrollment payload"))
		return
	}
	if err := h.enrollments.Enroll(c.Request.Context(), sessionFromContext(c), req); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c)
}

// Drop godoc
// @Summary Drop a course
// @Description Removes the enrollment and the grade recorded for it
// @Tags Student
// @Accept json
// @Produce json
// @Param payload body dto.CourseActionRequest true "Course"
// @Success 200 {object} map[string]bool
// @Failure 400 {object} response.ErrorEnvelope
// @Failure 404 {object} response.ErrorEnvelope
// @Router /api/student/drop [post]
func (h *StudentHandler) Drop(c *gin.Context) {
	var req dto.CourseActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid drop payload"))
		return
	}
	if err := h.enrollments.Drop(c.Request.Context(), sessionFromContext(c), req); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c)
}
