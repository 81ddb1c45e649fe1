package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-enrollment-api/internal/dto"
	"github.com/noah-isme/sma-enrollment-api/internal/models"
	"github.com/noah-isme/sma-enrollment-api/internal/service"
	appErrors "github.com/noah-isme/sma-enrollment-api/pkg/errors"
)

func notFound(id int64) error {
	return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("Record %d not found", id))
}

type fakeAdminUsers struct {
	users     map[int64]models.User
	createErr error
	updates   map[int64]dto.UserForm
}

func (f *fakeAdminUsers) List(ctx context.Context, session *models.Session, role *models.UserRole) ([]models.User, error) {
	var out []models.User
	for id := int64(1); id <= int64(len(f.users)); id++ {
		u, ok := f.users[id]
		if ok && (role == nil || u.Role == *role) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeAdminUsers) Get(ctx context.Context, session *models.Session, id int64) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, notFound(id)
	}
	return &u, nil
}

func (f *fakeAdminUsers) Create(ctx context.Context, session *models.Session, form dto.UserForm) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	u := models.User{ID: int64(len(f.users) + 1), Username: form.Username, Role: models.UserRole(form.Role)}
	f.users[u.ID] = u
	return &u, nil
}

func (f *fakeAdminUsers) Update(ctx context.Context, session *models.Session, id int64, form dto.UserForm) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, notFound(id)
	}
	if f.updates == nil {
		f.updates = map[int64]dto.UserForm{}
	}
	f.updates[id] = form
	return &u, nil
}

func (f *fakeAdminUsers) Delete(ctx context.Context, session *models.Session, id int64) error {
	if _, ok := f.users[id]; !ok {
		return notFound(id)
	}
	delete(f.users, id)
	return nil
}

type fakeAdminCourses struct {
	courses   []models.CourseDetail
	createErr error
}

func (f *fakeAdminCourses) AdminList(ctx context.Context, session *models.Session) ([]models.CourseDetail, error) {
	return f.courses, nil
}

func (f *fakeAdminCourses) Get(ctx context.Context, session *models.Session, id int64) (*models.Course, error) {
	for _, c := range f.courses {
		if c.ID == id {
			return &models.Course{ID: c.ID, Name: c.Name, Capacity: c.Capacity, Timeslot: c.Timeslot, TeacherID: c.TeacherID}, nil
		}
	}
	return nil, notFound(id)
}

func (f *fakeAdminCourses) Create(ctx context.Context, session *models.Session, form dto.CourseForm) (*models.Course, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &models.Course{ID: 9, Name: form.Name}, nil
}

func (f *fakeAdminCourses) Update(ctx context.Context, session *models.Session, id int64, form dto.CourseForm) (*models.Course, error) {
	return f.Get(ctx, session, id)
}

func (f *fakeAdminCourses) Delete(ctx context.Context, session *models.Session, id int64) error {
	_, err := f.Get(ctx, session, id)
	return err
}

type fakeAdminGrades struct {
	grades   []models.GradeDetail
	enrolled bool
}

func (f *fakeAdminGrades) AdminList(ctx context.Context, session *models.Session) ([]models.GradeDetail, error) {
	return f.grades, nil
}

func (f *fakeAdminGrades) Get(ctx context.Context, session *models.Session, id int64) (*models.Grade, error) {
	return nil, notFound(id)
}

func (f *fakeAdminGrades) Create(ctx context.Context, session *models.Session, form dto.GradeForm) (*models.Grade, error) {
	return nil, appErrors.Clone(appErrors.ErrValidation, "grade value must be a number")
}

func (f *fakeAdminGrades) Update(ctx context.Context, session *models.Session, id int64, form dto.GradeForm) (*models.Grade, error) {
	for _, g := range f.grades {
		if g.ID != id {
			continue
		}
		grade := &models.Grade{ID: g.ID, StudentID: g.StudentID, CourseID: g.CourseID, Value: g.Value}
		if form.CourseID != "" {
			grade.CourseID, _ = strconv.ParseInt(form.CourseID, 10, 64)
		}
		return grade, nil
	}
	return nil, notFound(id)
}

func (f *fakeAdminGrades) Enrolled(ctx context.Context, grade *models.Grade) (bool, error) {
	return f.enrolled, nil
}

func (f *fakeAdminGrades) Delete(ctx context.Context, session *models.Session, id int64) error {
	return notFound(id)
}

func (f *fakeAdminGrades) ExportCSV(ctx context.Context, session *models.Session) (*service.ExportFile, error) {
	return &service.ExportFile{Filename: "grades.csv", ContentType: "text/csv", Body: []byte("ID,Student,Course,Value\n1,student1,Python,85.5\n")}, nil
}

type fakeDashboard struct{}

func (fakeDashboard) Overview(ctx context.Context, session *models.Session) (*service.DashboardView, error) {
	return &service.DashboardView{
		Stats: models.DashboardStats{Users: 6, Students: 3, Teachers: 2, Courses: 3, Enrollments: 4, Grades: 4},
	}, nil
}

type adminFixture struct {
	router  *gin.Engine
	users   *fakeAdminUsers
	courses *fakeAdminCourses
	grades  *fakeAdminGrades
}

func newAdminFixture() *adminFixture {
	gin.SetMode(gin.TestMode)
	f := &adminFixture{
		users: &fakeAdminUsers{users: map[int64]models.User{
			1: {ID: 1, Username: "admin", Role: models.RoleAdmin},
			2: {ID: 2, Username: "teacher1", Role: models.RoleTeacher},
			3: {ID: 3, Username: "student1", Role: models.RoleStudent},
		}},
		courses: &fakeAdminCourses{courses: []models.CourseDetail{
			{ID: 1, Name: "Introduction to Python", Capacity: 30, Timeslot: "MW 10:00 AM - 11:30 AM", TeacherID: 2, TeacherName: "teacher1", EnrolledCount: 2},
		}},
		grades: &fakeAdminGrades{grades: []models.GradeDetail{
			{ID: 1, StudentID: 3, StudentUsername: "student1", CourseID: 1, CourseName: "Introduction to Python", Value: 85.5},
		}},
	}
	h := NewAdminHandler(f.users, f.courses, f.grades, fakeDashboard{}, NewFlashStore("test-secret", false), nil)

	r := gin.New()
	r.SetHTMLTemplate(AdminTemplates())
	admin := r.Group("/admin", asSession(&models.Session{UserID: 1, Role: models.RoleAdmin, AdminLoggedIn: true}))
	admin.GET("/", h.Index)
	admin.GET("/users", h.ListUsers)
	admin.GET("/users/new", h.NewUser)
	admin.POST("/users/new", h.CreateUser)
	admin.GET("/users/edit", h.EditUser)
	admin.POST("/users/edit", h.UpdateUser)
	admin.POST("/users/delete", h.DeleteUser)
	admin.GET("/courses", h.ListCourses)
	admin.GET("/courses/edit", h.EditCourse)
	admin.POST("/courses/new", h.CreateCourse)
	admin.GET("/grades", h.ListGrades)
	admin.POST("/grades/new", h.CreateGrade)
	admin.POST("/grades/edit", h.UpdateGrade)
	admin.GET("/grades/export.csv", h.ExportGrades)
	f.router = r
	return f
}

func (f *adminFixture) get(path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *adminFixture) post(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestAdminIndexShowsCounts(t *testing.T) {
	f := newAdminFixture()

	rec := f.get("/admin/")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<th>Enrollments</th><td>4</td>")
	assert.Contains(t, body, "No activity yet.")
}

func TestAdminListPages(t *testing.T) {
	f := newAdminFixture()

	rec := f.get("/admin/users")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "teacher1")
	assert.Contains(t, rec.Body.String(), "Teacher")

	rec = f.get("/admin/courses")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<td>Introduction to Python</td><td>30</td>")

	rec = f.get("/admin/grades")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<td>85.5</td>")
}

func TestAdminCreateUserFlashesAndRedirects(t *testing.T) {
	f := newAdminFixture()

	rec := f.post("/admin/users/new", url.Values{"username": {"student9"}, "password": {"pw"}, "role": {"student"}})

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/admin/users", rec.Header().Get("Location"))

	next := f.get("/admin/users", rec.Result().Cookies()...)
	assert.Contains(t, next.Body.String(), "User successfully created")
	assert.Contains(t, next.Body.String(), "student9")
}

func TestAdminCreateUserRerendersOnError(t *testing.T) {
	f := newAdminFixture()
	f.users.createErr = appErrors.Clone(appErrors.ErrConflict, "username student1 already exists")

	rec := f.post("/admin/users/new", url.Values{"username": {"student1"}, "password": {"pw"}, "role": {"student"}})

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "username student1 already exists")
	assert.Contains(t, rec.Body.String(), `value="student1"`)
}

func TestAdminEditMissingID(t *testing.T) {
	f := newAdminFixture()

	rec := f.get("/admin/users/edit")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/admin/users", rec.Header().Get("Location"))

	rec = f.get("/admin/users/edit?id=abc")
	assert.Equal(t, http.StatusFound, rec.Code)
}

func TestAdminEditUnknownRecord(t *testing.T) {
	f := newAdminFixture()

	rec := f.get("/admin/users/edit?id=42")
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/admin/users", rec.Header().Get("Location"))

	next := f.get("/admin/users", rec.Result().Cookies()...)
	assert.Contains(t, next.Body.String(), "Record 42 not found")

	rec = f.post("/admin/grades/edit?id=7", url.Values{"value": {"90"}})
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/admin/grades", rec.Header().Get("Location"))
}

func TestAdminEditUserPrefillsAndUpdates(t *testing.T) {
	f := newAdminFixture()

	rec := f.get("/admin/users/edit?id=2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `value="teacher1"`)
	assert.Contains(t, rec.Body.String(), "Edit User #2")
	assert.Contains(t, rec.Body.String(), `action="/admin/users/edit?id=2"`)

	rec = f.post("/admin/users/edit?id=2", url.Values{"username": {""}, "password": {""}, "role": {"admin"}})
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, dto.UserForm{Role: "admin"}, f.users.updates[2])
}

func TestAdminEditCourseShowsTeacherDropdown(t *testing.T) {
	f := newAdminFixture()

	rec := f.get("/admin/courses/edit?id=1")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `<option value="2" selected>teacher1</option>`)
	assert.NotContains(t, body, "student1")
}

func TestAdminCreateCourseValidation(t *testing.T) {
	f := newAdminFixture()
	f.courses.createErr = appErrors.Clone(appErrors.ErrValidation, "capacity must be a positive integer")

	rec := f.post("/admin/courses/new", url.Values{"name": {"Go"}, "capacity": {"-1"}})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "capacity must be a positive integer")
}

func TestAdminUpdateGradeWarnsWhenNotEnrolled(t *testing.T) {
	f := newAdminFixture()

	rec := f.post("/admin/grades/edit?id=1", url.Values{"course_id": {"2"}})
	require.Equal(t, http.StatusFound, rec.Code)
	next := f.get("/admin/grades", rec.Result().Cookies()...)
	assert.Contains(t, next.Body.String(), "Grade successfully updated")
	assert.Contains(t, next.Body.String(), `<div class="flash-warning">Student 3 is not enrolled in course 2</div>`)

	f.grades.enrolled = true
	rec = f.post("/admin/grades/edit?id=1", url.Values{"value": {"91"}})
	require.Equal(t, http.StatusFound, rec.Code)
	next = f.get("/admin/grades", rec.Result().Cookies()...)
	assert.Contains(t, next.Body.String(), "Grade successfully updated")
	assert.NotContains(t, next.Body.String(), "flash-warning\">")
}

func TestAdminCreateGradeRerendersWithDropdowns(t *testing.T) {
	f := newAdminFixture()

	rec := f.post("/admin/grades/new", url.Values{"student_id": {"3"}, "course_id": {"1"}, "value": {"abc"}})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "grade value must be a number")
	assert.Contains(t, body, `<option value="3" selected>student1</option>`)
	assert.Contains(t, body, `<option value="1" selected>Introduction to Python</option>`)
}

func TestAdminDeleteUser(t *testing.T) {
	f := newAdminFixture()

	rec := f.post("/admin/users/delete?id=3", nil)
	require.Equal(t, http.StatusFound, rec.Code)
	_, exists := f.users.users[3]
	assert.False(t, exists)

	next := f.get("/admin/users", rec.Result().Cookies()...)
	assert.Contains(t, next.Body.String(), "User successfully deleted")
}

func TestAdminExportGrades(t *testing.T) {
	f := newAdminFixture()

	rec := f.get("/admin/grades/export.csv")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="grades.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Contains(t, rec.Body.String(), "1,student1,Python,85.5")
}
