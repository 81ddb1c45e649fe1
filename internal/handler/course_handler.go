package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-enrollment-api/internal/middleware"
	"github.com/noah-isme/sma-enrollment-api/internal/models"
	"github.com/noah-isme/sma-enrollment-api/pkg/response"
)

type courseCatalog interface {
	ListAll(ctx context.Context, session *models.Session) ([]models.CourseDetail, bool, error)
}

// CourseHandler serves the shared course catalog.
type CourseHandler struct {
	service courseCatalog
}

// NewCourseHandler constructs the handler.
func NewCourseHandler(service courseCatalog) *CourseHandler {
	return &CourseHandler{service: service}
}

// List godoc
// @Summary List courses
// @Description Every course with teacher name and enrolled count
// @Tags Courses
// @Produce json
// @Success 200 {array} models.CourseDetail
// @Failure 401 {object} response.ErrorEnvelope
// @Router /api/courses [get]
func (h *CourseHandler) List(c *gin.Context) {
	courses, hit, err := h.service.ListAll(c.Request.Context(), sessionFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.OK(c, courses)
}
