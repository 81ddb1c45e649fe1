package handler

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-enrollment-api/internal/dto"
	"github.com/noah-isme/sma-enrollment-api/internal/models"
	"github.com/noah-isme/sma-enrollment-api/internal/service"
	appErrors "github.com/noah-isme/sma-enrollment-api/pkg/errors"
	"github.com/noah-isme/sma-enrollment-api/pkg/response"
)

//go:embed templates/*.html
var templateFS embed.FS

// AdminTemplates parses the back-office pages.
func AdminTemplates() *template.Template {
	funcs := template.FuncMap{
		"grade": func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) },
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
	}
	return template.Must(template.New("admin").Funcs(funcs).ParseFS(templateFS, "templates/*.html"))
}

type adminUserService interface {
	List(ctx context.Context, session *models.Session, role *models.UserRole) ([]models.User, error)
	Get(ctx context.Context, session *models.Session, id int64) (*models.User, error)
	Create(ctx context.Context, session *models.Session, form dto.UserForm) (*models.User, error)
	Update(ctx context.Context, session *models.Session, id int64, form dto.UserForm) (*models.User, error)
	Delete(ctx context.Context, session *models.Session, id int64) error
}

type adminCourseService interface {
	AdminList(ctx context.Context, session *models.Session) ([]models.CourseDetail, error)
	Get(ctx context.Context, session *models.Session, id int64) (*models.Course, error)
	Create(ctx context.Context, session *models.Session, form dto.CourseForm) (*models.Course, error)
	Update(ctx context.Context, session *models.Session, id int64, form dto.CourseForm) (*models.Course, error)
	Delete(ctx context.Context, session *models.Session, id int64) error
}

type adminGradeService interface {
	AdminList(ctx context.Context, session *models.Session) ([]models.GradeDetail, error)
	Get(ctx context.Context, session *models.Session, id int64) (*models.Grade, error)
	Create(ctx context.Context, session *models.Session, form dto.GradeForm) (*models.Grade, error)
	Update(ctx context.Context, session *models.Session, id int64, form dto.GradeForm) (*models.Grade, error)
	Enrolled(ctx context.Context, grade *models.Grade) (bool, error)
	Delete(ctx context.Context, session *models.Session, id int64) error
	ExportCSV(ctx context.Context, session *models.Session) (*service.ExportFile, error)
}

type adminDashboard interface {
	Overview(ctx context.Context, session *models.Session) (*service.DashboardView, error)
}

// AdminHandler renders the server-side back-office.
type AdminHandler struct {
	users     adminUserService
	courses   adminCourseService
	grades    adminGradeService
	dashboard adminDashboard
	flash     *FlashStore
	logger    *zap.Logger
}

// NewAdminHandler constructs the handler.
func NewAdminHandler(users adminUserService, courses adminCourseService, grades adminGradeService, dashboard adminDashboard, flash *FlashStore, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{users: users, courses: courses, grades: grades, dashboard: dashboard, flash: flash, logger: logger}
}

type formPage struct {
	Title    string
	Entity   string
	Action   string
	ID       int64
	Editing  bool
	Error    string
	Flashes  Flashes
	Form     interface{}
	Roles    []models.UserRole
	Teachers []models.User
	Students []models.User
	Courses  []models.CourseDetail
}

// Index shows entity counts and recent activity.
func (h *AdminHandler) Index(c *gin.Context) {
	view, err := h.dashboard.Overview(c.Request.Context(), sessionFromContext(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.HTML(http.StatusOK, "index.html", gin.H{"Title": "Dashboard", "View": view, "Flashes": h.flash.pop(c)})
}

// ListUsers renders the user list.
func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.users.List(c.Request.Context(), sessionFromContext(c), nil)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.HTML(http.StatusOK, "users.html", gin.H{"Title": "Users", "Users": users, "Flashes": h.flash.pop(c)})
}

// NewUser renders the empty user form.
func (h *AdminHandler) NewUser(c *gin.Context) {
	h.renderUserForm(c, http.StatusOK, 0, dto.UserForm{Role: string(models.RoleStudent)}, "")
}

// CreateUser handles the user create submission.
func (h *AdminHandler) CreateUser(c *gin.Context) {
	var form dto.UserForm
	_ = c.ShouldBind(&form)
	if _, err := h.users.Create(c.Request.Context(), sessionFromContext(c), form); err != nil {
		h.renderUserForm(c, appErrors.FromError(err).Status, 0, form, appErrors.FromError(err).Message)
		return
	}
	h.done(c, "/admin/users", "User successfully created")
}

// EditUser renders the user form filled with the stored values.
func (h *AdminHandler) EditUser(c *gin.Context) {
	id, ok := h.editID(c, "/admin/users")
	if !ok {
		return
	}
	user, err := h.users.Get(c.Request.Context(), sessionFromContext(c), id)
	if err != nil {
		h.missing(c, "/admin/users", err)
		return
	}
	h.renderUserForm(c, http.StatusOK, id, dto.UserForm{Username: user.Username, Role: string(user.Role)}, "")
}

// UpdateUser handles the user edit submission; empty fields keep their stored values.
func (h *AdminHandler) UpdateUser(c *gin.Context) {
	id, ok := h.editID(c, "/admin/users")
	if !ok {
		return
	}
	var form dto.UserForm
	_ = c.ShouldBind(&form)
	if _, err := h.users.Update(c.Request.Context(), sessionFromContext(c), id, form); err != nil {
		if isNotFound(err) {
			h.missing(c, "/admin/users", err)
			return
		}
		form.Password = ""
		h.renderUserForm(c, appErrors.FromError(err).Status, id, form, appErrors.FromError(err).Message)
		return
	}
	h.done(c, "/admin/users", "User successfully updated")
}

// DeleteUser removes a user.
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	h.delete(c, "/admin/users", "User", h.users.Delete)
}

func (h *AdminHandler) renderUserForm(c *gin.Context, status int, id int64, form dto.UserForm, message string) {
	h.renderForm(c, status, "user_form.html", formPage{
		Title:  formTitle("User", id),
		Entity: "users",
		ID:     id,
		Error:  message,
		Form:   form,
		Roles:  models.Roles,
	})
}

// ListCourses renders the course list.
func (h *AdminHandler) ListCourses(c *gin.Context) {
	courses, err := h.courses.AdminList(c.Request.Context(), sessionFromContext(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.HTML(http.StatusOK, "courses.html", gin.H{"Title": "Courses", "Courses": courses, "Flashes": h.flash.pop(c)})
}

// NewCourse renders the empty course form.
func (h *AdminHandler) NewCourse(c *gin.Context) {
	h.renderCourseForm(c, http.StatusOK, 0, dto.CourseForm{}, "")
}

// CreateCourse handles the course create submission.
func (h *AdminHandler) CreateCourse(c *gin.Context) {
	var form dto.CourseForm
	_ = c.ShouldBind(&form)
	if _, err := h.courses.Create(c.Request.Context(), sessionFromContext(c), form); err != nil {
		h.renderCourseForm(c, appErrors.FromError(err).Status, 0, form, appErrors.FromError(err).Message)
		return
	}
	h.done(c, "/admin/courses", "Course successfully created")
}

// EditCourse renders the course form filled with the stored values.
func (h *AdminHandler) EditCourse(c *gin.Context) {
	id, ok := h.editID(c, "/admin/courses")
	if !ok {
		return
	}
	course, err := h.courses.Get(c.Request.Context(), sessionFromContext(c), id)
	if err != nil {
		h.missing(c, "/admin/courses", err)
		return
	}
	form := dto.CourseForm{
		Name:      course.Name,
		Capacity:  strconv.Itoa(course.Capacity),
		Timeslot:  course.Timeslot,
		TeacherID: strconv.FormatInt(course.TeacherID, 10),
	}
	if course.Description != nil {
		form.Description = *course.Description
	}
	h.renderCourseForm(c, http.StatusOK, id, form, "")
}

// UpdateCourse handles the course edit submission; empty fields keep their stored values.
func (h *AdminHandler) UpdateCourse(c *gin.Context) {
	id, ok := h.editID(c, "/admin/courses")
	if !ok {
		return
	}
	var form dto.CourseForm
	_ = c.ShouldBind(&form)
	if _, err := h.courses.Update(c.Request.Context(), sessionFromContext(c), id, form); err != nil {
		if isNotFound(err) {
			h.missing(c, "/admin/courses", err)
			return
		}
		h.renderCourseForm(c, appErrors.FromError(err).Status, id, form, appErrors.FromError(err).Message)
		return
	}
	h.done(c, "/admin/courses", "Course successfully updated")
}

// DeleteCourse removes a course with its enrollments and grades.
func (h *AdminHandler) DeleteCourse(c *gin.Context) {
	h.delete(c, "/admin/courses", "Course", h.courses.Delete)
}

func (h *AdminHandler) renderCourseForm(c *gin.Context, status int, id int64, form dto.CourseForm, message string) {
	role := models.RoleTeacher
	teachers, err := h.users.List(c.Request.Context(), sessionFromContext(c), &role)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.renderForm(c, status, "course_form.html", formPage{
		Title:    formTitle("Course", id),
		Entity:   "courses",
		ID:       id,
		Error:    message,
		Form:     form,
		Teachers: teachers,
	})
}

// ListGrades renders the grade list.
func (h *AdminHandler) ListGrades(c *gin.Context) {
	grades, err := h.grades.AdminList(c.Request.Context(), sessionFromContext(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.HTML(http.StatusOK, "grades.html", gin.H{"Title": "Grades", "Grades": grades, "Flashes": h.flash.pop(c)})
}

// NewGrade renders the empty grade form.
func (h *AdminHandler) NewGrade(c *gin.Context) {
	h.renderGradeForm(c, http.StatusOK, 0, dto.GradeForm{}, "")
}

// CreateGrade handles the grade create submission.
func (h *AdminHandler) CreateGrade(c *gin.Context) {
	var form dto.GradeForm
	_ = c.ShouldBind(&form)
	grade, err := h.grades.Create(c.Request.Context(), sessionFromContext(c), form)
	if err != nil {
		h.renderGradeForm(c, appErrors.FromError(err).Status, 0, form, appErrors.FromError(err).Message)
		return
	}
	h.warnUnenrolled(c, grade)
	h.done(c, "/admin/grades", "Grade successfully created")
}

// EditGrade renders the grade form filled with the stored values.
func (h *AdminHandler) EditGrade(c *gin.Context) {
	id, ok := h.editID(c, "/admin/grades")
	if !ok {
		return
	}
	grade, err := h.grades.Get(c.Request.Context(), sessionFromContext(c), id)
	if err != nil {
		h.missing(c, "/admin/grades", err)
		return
	}
	h.renderGradeForm(c, http.StatusOK, id, dto.GradeForm{
		StudentID: strconv.FormatInt(grade.StudentID, 10),
		CourseID:  strconv.FormatInt(grade.CourseID, 10),
		Value:     strconv.FormatFloat(grade.Value, 'f', -1, 64),
	}, "")
}

// UpdateGrade handles the grade edit submission; empty fields keep their stored values.
func (h *AdminHandler) UpdateGrade(c *gin.Context) {
	id, ok := h.editID(c, "/admin/grades")
	if !ok {
		return
	}
	var form dto.GradeForm
	_ = c.ShouldBind(&form)
	grade, err := h.grades.Update(c.Request.Context(), sessionFromContext(c), id, form)
	if err != nil {
		if isNotFound(err) {
			h.missing(c, "/admin/grades", err)
			return
		}
		h.renderGradeForm(c, appErrors.FromError(err).Status, id, form, appErrors.FromError(err).Message)
		return
	}
	h.warnUnenrolled(c, grade)
	h.done(c, "/admin/grades", "Grade successfully updated")
}

func (h *AdminHandler) warnUnenrolled(c *gin.Context, grade *models.Grade) {
	enrolled, err := h.grades.Enrolled(c.Request.Context(), grade)
	if err != nil {
		h.logger.Warn("enrollment check failed", zap.Error(err))
		return
	}
	if !enrolled && grade != nil {
		h.flash.add(c, flashWarning, fmt.Sprintf("Student %d is not enrolled in course %d", grade.StudentID, grade.CourseID))
	}
}

// DeleteGrade removes a grade.
func (h *AdminHandler) DeleteGrade(c *gin.Context) {
	h.delete(c, "/admin/grades", "Grade", h.grades.Delete)
}

// ExportGrades downloads every grade as CSV.
func (h *AdminHandler) ExportGrades(c *gin.Context) {
	file, err := h.grades.ExportCSV(c.Request.Context(), sessionFromContext(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}

func (h *AdminHandler) renderGradeForm(c *gin.Context, status int, id int64, form dto.GradeForm, message string) {
	ctx, session := c.Request.Context(), sessionFromContext(c)
	role := models.RoleStudent
	students, err := h.users.List(ctx, session, &role)
	if err != nil {
		h.fail(c, err)
		return
	}
	courses, err := h.courses.AdminList(ctx, session)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.renderForm(c, status, "grade_form.html", formPage{
		Title:    formTitle("Grade", id),
		Entity:   "grades",
		ID:       id,
		Error:    message,
		Form:     form,
		Students: students,
		Courses:  courses,
	})
}

func (h *AdminHandler) renderForm(c *gin.Context, status int, name string, page formPage) {
	page.Editing = page.ID > 0
	if page.Editing {
		page.Action = fmt.Sprintf("/admin/%s/edit?id=%d", page.Entity, page.ID)
	} else {
		page.Action = "/admin/" + page.Entity + "/new"
	}
	page.Flashes = h.flash.pop(c)
	c.HTML(status, name, page)
}

// editID reads the id query parameter; without one the caller goes back to the list.
func (h *AdminHandler) editID(c *gin.Context, list string) (int64, bool) {
	raw := strings.TrimSpace(c.Query("id"))
	if raw == "" {
		raw = strings.TrimSpace(c.PostForm("id"))
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		c.Redirect(http.StatusFound, list)
		return 0, false
	}
	return id, true
}

func (h *AdminHandler) delete(c *gin.Context, list, entity string, remove func(context.Context, *models.Session, int64) error) {
	id, ok := h.editID(c, list)
	if !ok {
		return
	}
	if err := remove(c.Request.Context(), sessionFromContext(c), id); err != nil {
		if appErrors.FromError(err).Status >= http.StatusInternalServerError {
			h.logger.Error("admin delete failed", zap.String("entity", entity), zap.Int64("id", id), zap.Error(err))
		}
		h.flash.add(c, flashError, appErrors.FromError(err).Message)
		c.Redirect(http.StatusFound, list)
		return
	}
	h.done(c, list, entity+" successfully deleted")
}

func (h *AdminHandler) missing(c *gin.Context, list string, err error) {
	if !isNotFound(err) {
		h.fail(c, err)
		return
	}
	h.flash.add(c, flashError, appErrors.FromError(err).Message)
	c.Redirect(http.StatusFound, list)
}

func (h *AdminHandler) done(c *gin.Context, list, message string) {
	h.flash.add(c, flashSuccess, message)
	c.Redirect(http.StatusFound, list)
}

func (h *AdminHandler) fail(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Error("admin page failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.HTML(appErr.Status, "error.html", gin.H{"Title": "Error", "Status": appErr.Status, "Message": appErr.Message})
}

func isNotFound(err error) bool {
	return appErrors.FromError(err).Code == appErrors.ErrNotFound.Code
}

func formTitle(entity string, id int64) string {
	if id > 0 {
		return fmt.Sprintf("Edit %s #%d", entity, id)
	}
	return "New " + entity
}
