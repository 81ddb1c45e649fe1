package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-enrollment-api/internal/middleware"
	"github.com/noah-isme/sma-enrollment-api/internal/models"
	"github.com/noah-isme/sma-enrollment-api/internal/service"
)

// Handlers groups everything RegisterRoutes mounts.
type Handlers struct {
	Auth    *AuthHandler
	Course  *CourseHandler
	Student *StudentHandler
	Teacher *TeacherHandler
	Admin   *AdminHandler
	Metrics *MetricsHandler
}

// RouteConfig carries the collaborators the route guards need.
type RouteConfig struct {
	Sessions   middleware.SessionResolver
	Audit      service.AuditRecorder
	CookieName string
}

// RegisterRoutes mounts the JSON API, the back-office and the probes on r.
func RegisterRoutes(r *gin.Engine, h Handlers, cfg RouteConfig) {
	r.SetHTMLTemplate(AdminTemplates())

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	r.GET("/login", h.Auth.LoginPage)

	session := middleware.Session(cfg.Sessions, cfg.CookieName)

	api := r.Group("/api")
	api.POST("/login", h.Auth.Login)
	api.POST("/logout", h.Auth.Logout)
	api.GET("/user", middleware.OptionalSession(cfg.Sessions, cfg.CookieName), h.Auth.CurrentUser)
	api.GET("/courses", session, h.Course.List)

	student := api.Group("/student", session, middleware.RequireRoles(models.RoleStudent))
	student.GET("/courses", h.Student.Courses)
	student.POST("/enroll", h.Student.Enroll)
	student.POST("/drop", h.Student.Drop)

	teacher := api.Group("/teacher", session, middleware.RequireRoles(models.RoleTeacher))
	teacher.GET("/courses", h.Teacher.Courses)
	teacher.GET("/course/:id/students", h.Teacher.Students)
	teacher.GET("/course/:id/students/export",
		middleware.Audit(cfg.Audit, models.AuditActionExport, models.AuditResourceCourse),
		h.Teacher.ExportStudents)
	teacher.POST("/update-grade", h.Teacher.UpdateGrade)

	r.GET("/admin/logout", h.Auth.AdminLogout)

	admin := r.Group("/admin", middleware.AdminArea(cfg.Sessions, cfg.CookieName, "/login"))
	admin.GET("/", h.Admin.Index)

	admin.GET("/users", h.Admin.ListUsers)
	admin.GET("/users/new", h.Admin.NewUser)
	admin.POST("/users/new", h.Admin.CreateUser)
	admin.GET("/users/edit", h.Admin.EditUser)
	admin.POST("/users/edit", h.Admin.UpdateUser)
	admin.POST("/users/delete", h.Admin.DeleteUser)

	admin.GET("/courses", h.Admin.ListCourses)
	admin.GET("/courses/new", h.Admin.NewCourse)
	admin.POST("/courses/new", h.Admin.CreateCourse)
	admin.GET("/courses/edit", h.Admin.EditCourse)
	admin.POST("/courses/edit", h.Admin.UpdateCourse)
	admin.POST("/courses/delete", h.Admin.DeleteCourse)

	admin.GET("/grades", h.Admin.ListGrades)
	admin.GET("/grades/new", h.Admin.NewGrade)
	admin.POST("/grades/new", h.Admin.CreateGrade)
	admin.GET("/grades/edit", h.Admin.EditGrade)
	admin.POST("/grades/edit", h.Admin.UpdateGrade)
	admin.POST("/grades/delete", h.Admin.DeleteGrade)
	admin.GET("/grades/export.csv",
		middleware.Audit(cfg.Audit, models.AuditActionExport, models.AuditResourceGrade),
		h.Admin.ExportGrades)
}
