package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-enrollment-api/internal/dto"
	"github.com/noah-isme/sma-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/sma-enrollment-api/pkg/errors"
	"github.com/noah-isme/sma-enrollment-api/pkg/export"
)

type gradeRepository interface {
	UpsertForEnrolled(ctx context.Context, studentID, courseID int64, value float64) (int64, error)
	List(ctx context.Context) ([]models.GradeDetail, error)
	FindByID(ctx context.Context, id int64) (*models.Grade, error)
	Create(ctx context.Context, grade *models.Grade) error
	Update(ctx context.Context, id int64, mutate func(*models.Grade) error) (*models.Grade, error)
	Delete(ctx context.Context, id int64) error
}

type rosterRepository interface {
	Roster(ctx context.Context, courseID int64) ([]models.RosterEntry, error)
}

type courseLookup interface {
	FindByID(ctx context.Context, id int64) (*models.Course, error)
}

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

// GradeService covers teacher grading and the back-office grade screens.
type GradeService struct {
	grades    gradeRepository
	roster    rosterRepository
	courses   courseLookup
	users     userLookup
	audit     AuditRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGradeService constructs GradeService.
func NewGradeService(grades gradeRepository, roster rosterRepository, courses courseLookup, users userLookup, audit AuditRecorder, validate *validator.Validate, logger *zap.Logger) *GradeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if audit == nil {
		audit = discardAudit{}
	}
	return &GradeService{
		grades:    grades,
		roster:    roster,
		courses:   courses,
		users:     users,
		audit:     audit,
		validator: validate,
		logger:    logger,
	}
}

// ListRoster returns the students of a course the calling teacher owns.
// A missing course reads the same as a course owned by someone else.
func (s *GradeService) ListRoster(ctx context.Context, session *models.Session, courseID int64) ([]models.RosterEntry, error) {
	course, err := s.ownedCourse(ctx, session, courseID)
	if err != nil {
		return nil, err
	}
	entries, err := s.roster.Roster(ctx, course.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return entries, nil
}

// SetGrade creates or replaces the grade of an enrolled student in an owned course.
func (s *GradeService) SetGrade(ctx context.Context, session *models.Session, req dto.SetGradeRequest) error {
	if err := authorize(session, models.RoleTeacher); err != nil {
		return err
	}
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "course_id, student_id and a numeric value are required")
	}
	if _, err := s.ownedCourse(ctx, session, req.CourseID); err != nil {
		return err
	}

	id, err := s.grades.UpsertForEnrolled(ctx, req.StudentID, req.CourseID, *req.Value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotEnrolled, "student is not enrolled in this course")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save grade")
	}

	s.record(session, models.AuditActionGradeSet, id, map[string]interface{}{
		"student_id": req.StudentID,
		"course_id":  req.CourseID,
		"value":      *req.Value,
	})
	return nil
}

// ExportRoster renders the roster of an owned course as CSV or PDF.
func (s *GradeService) ExportRoster(ctx context.Context, session *models.Session, courseID int64, format string) (*ExportFile, error) {
	parsed, err := export.ParseFormat(format)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "format must be csv or pdf")
	}
	course, err := s.ownedCourse(ctx, session, courseID)
	if err != nil {
		return nil, err
	}
	entries, err := s.roster.Roster(ctx, course.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}

	data := export.Dataset{
		Title:   course.Name + " roster",
		Headers: []string{"ID", "Username", "Grade"},
		Rows:    make([]map[string]string, 0, len(entries)),
	}
	for _, entry := range entries {
		data.Rows = append(data.Rows, map[string]string{
			"ID":       strconv.FormatInt(entry.ID, 10),
			"Username": entry.Username,
			"Grade":    formatGrade(entry.Grade),
		})
	}
	return render(parsed, data, fmt.Sprintf("course-%d-roster", course.ID))
}

// AdminList returns every grade for the back-office list.
func (s *GradeService) AdminList(ctx context.Context, session *models.Session) ([]models.GradeDetail, error) {
	if err := authorizeAdmin(session); err != nil {
		return nil, err
	}
	grades, err := s.grades.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grades")
	}
	return grades, nil
}

// Get loads one grade for the back-office edit form.
func (s *GradeService) Get(ctx context.Context, session *models.Session, id int64) (*models.Grade, error) {
	if err := authorizeAdmin(session); err != nil {
		return nil, err
	}
	grade, err := s.grades.FindByID(ctx, id)
	if err != nil {
		return nil, persistError(err, id, "grade")
	}
	return grade, nil
}

// Create inserts a grade from a complete form. A second grade for the same
// student and course is a conflict.
func (s *GradeService) Create(ctx context.Context, session *models.Session, form dto.GradeForm) (*models.Grade, error) {
	if err := authorizeAdmin(session); err != nil {
		return nil, err
	}
	studentID, err := s.studentID(ctx, form.StudentID)
	if err != nil {
		return nil, err
	}
	courseID, err := s.courseID(ctx, form.CourseID)
	if err != nil {
		return nil, err
	}
	value, err := parseGradeValue(form.Value)
	if err != nil {
		return nil, err
	}

	grade := &models.Grade{StudentID: studentID, CourseID: courseID, Value: value}
	if err := s.grades.Create(ctx, grade); err != nil {
		return nil, persistError(err, 0, "grade for this student and course")
	}
	s.record(session, models.AuditActionCreate, grade.ID, map[string]interface{}{
		"student_id": studentID,
		"course_id":  courseID,
		"value":      value,
	})
	return grade, nil
}

// Update applies the non-empty fields of form to the stored grade.
func (s *GradeService) Update(ctx context.Context, session *models.Session, id int64, form dto.GradeForm) (*models.Grade, error) {
	if err := authorizeAdmin(session); err != nil {
		return nil, err
	}

	var studentID, courseID int64
	var value *float64
	var err error
	if strings.TrimSpace(form.StudentID) != "" {
		if studentID, err = s.studentID(ctx, form.StudentID); err != nil {
			return nil, err
		}
	}
	if strings.TrimSpace(form.CourseID) != "" {
		if courseID, err = s.courseID(ctx, form.CourseID); err != nil {
			return nil, err
		}
	}
	if strings.TrimSpace(form.Value) != "" {
		parsed, err := parseGradeValue(form.Value)
		if err != nil {
			return nil, err
		}
		value = &parsed
	}

	changed := make([]string, 0, 3)
	grade, err := s.grades.Update(ctx, id, func(g *models.Grade) error {
		if studentID > 0 {
			g.StudentID = studentID
			changed = append(changed, "student_id")
		}
		if courseID > 0 {
			g.CourseID = courseID
			changed = append(changed, "course_id")
		}
		if value != nil {
			g.Value = *value
			changed = append(changed, "value")
		}
		return nil
	})
	if err != nil {
		return nil, persistError(err, id, "grade for this student and course")
	}
	s.record(session, models.AuditActionUpdate, id, map[string]interface{}{"fields": changed})
	return grade, nil
}

// Enrolled reports whether grade's student is enrolled in grade's course.
// Admin writes do not require enrollment; the back-office warns instead.
func (s *GradeService) Enrolled(ctx context.Context, grade *models.Grade) (bool, error) {
	if grade == nil {
		return false, nil
	}
	roster, err := s.roster.Roster(ctx, grade.CourseID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	for _, entry := range roster {
		if entry.ID == grade.StudentID {
			return true, nil
		}
	}
	return false, nil
}

// Delete removes a grade.
func (s *GradeService) Delete(ctx context.Context, session *models.Session, id int64) error {
	if err := authorizeAdmin(session); err != nil {
		return err
	}
	if err := s.grades.Delete(ctx, id); err != nil {
		return persistError(err, id, "grade")
	}
	s.record(session, models.AuditActionDelete, id, nil)
	return nil
}

// ExportCSV renders the back-office grade list as CSV.
func (s *GradeService) ExportCSV(ctx context.Context, session *models.Session) (*ExportFile, error) {
	grades, err := s.AdminList(ctx, session)
	if err != nil {
		return nil, err
	}
	data := export.Dataset{
		Title:   "Grades",
		Headers: []string{"ID", "Student", "Course", "Value"},
		Rows:    make([]map[string]string, 0, len(grades)),
	}
	for _, grade := range grades {
		value := grade.Value
		data.Rows = append(data.Rows, map[string]string{
			"ID":      strconv.FormatInt(grade.ID, 10),
			"Student": grade.StudentUsername,
			"Course":  grade.CourseName,
			"Value":   formatGrade(&value),
		})
	}
	return render(export.FormatCSV, data, "grades")
}

func (s *GradeService) ownedCourse(ctx context.Context, session *models.Session, courseID int64) (*models.Course, error) {
	if err := authorize(session, models.RoleTeacher); err != nil {
		return nil, err
	}
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrForbidden
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if course.TeacherID != session.UserID {
		return nil, appErrors.ErrForbidden
	}
	return course, nil
}

func (s *GradeService) studentID(ctx context.Context, raw string) (int64, error) {
	id, err := parseID("student", raw)
	if err != nil {
		return 0, err
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, invalid("student %d does not exist", id)
		}
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if user.Role != models.RoleStudent {
		return 0, invalid("user %s is not a student", user.Username)
	}
	return id, nil
}

func (s *GradeService) courseID(ctx context.Context, raw string) (int64, error) {
	id, err := parseID("course", raw)
	if err != nil {
		return 0, err
	}
	if _, err := s.courses.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, invalid("course %d does not exist", id)
		}
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return id, nil
}

func (s *GradeService) record(session *models.Session, action string, id int64, details map[string]interface{}) {
	s.audit.Record(models.AuditEntry{
		UserID:     userIDPtr(session),
		Action:     action,
		Resource:   models.AuditResourceGrade,
		ResourceID: strconv.FormatInt(id, 10),
		Details:    details,
		IPAddress:  session.IPAddress,
		UserAgent:  session.UserAgent,
	})
}

func render(format export.Format, data export.Dataset, name string) (*ExportFile, error) {
	exporter := export.For(format)
	body, err := exporter.Render(data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return &ExportFile{
		Filename:    name + "." + exporter.Extension(),
		ContentType: exporter.ContentType(),
		Body:        body,
	}, nil
}

func formatGrade(value *float64) string {
	if value == nil {
		return ""
	}
	return strconv.FormatFloat(*value, 'f', -1, 64)
}
