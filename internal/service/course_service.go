package service

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-enrollment-api/internal/dto"
	"github.com/noah-isme/sma-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/sma-enrollment-api/pkg/errors"
)

type courseRepository interface {
	List(ctx context.Context) ([]models.CourseDetail, error)
	ListByTeacher(ctx context.Context, teacherID int64) ([]models.CourseDetail, error)
	ListForStudent(ctx context.Context, studentID int64) ([]models.StudentCourse, error)
	FindByID(ctx context.Context, id int64) (*models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, id int64, mutate func(*models.Course) error) (*models.Course, error)
	Delete(ctx context.Context, id int64) error
}

type userLookup interface {
	FindByID(ctx context.Context, id int64) (*models.User, error)
}

// CourseService serves the course catalog and the back-office course screens.
type CourseService struct {
	repo   courseRepository
	users  userLookup
	cache  *CacheService
	audit  AuditRecorder
	logger *zap.Logger
}

// NewCourseService constructs the service.
func NewCourseService(repo courseRepository, users userLookup, cache *CacheService, audit AuditRecorder, logger *zap.Logger) *CourseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if audit == nil {
		audit = discardAudit{}
	}
	return &CourseService{repo: repo, users: users, cache: cache, audit: audit, logger: logger}
}

// ListAll returns the full catalog to any authenticated user. The bool
// reports whether the result came from cache.
func (s *CourseService) ListAll(ctx context.Context, session *models.Session) ([]models.CourseDetail, bool, error) {
	if err := authorize(session); err != nil {
		return nil, false, err
	}

	var cached []models.CourseDetail
	if hit, _ := s.cache.Get(ctx, cacheKeyAllCourses, &cached); hit {
		return cached, true, nil
	}

	generation := s.cache.Generation()
	courses, err := s.repo.List(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	_, _ = s.cache.SetIfCurrent(ctx, generation, cacheKeyAllCourses, courses, 0)
	return courses, false, nil
}

// ListForStudent partitions the catalog into the student's enrolled and available courses.
func (s *CourseService) ListForStudent(ctx context.Context, session *models.Session) (*models.StudentCourses, error) {
	if err := authorize(session, models.RoleStudent); err != nil {
		return nil, err
	}
	courses, err := s.repo.ListForStudent(ctx, session.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list student courses")
	}

	result := &models.StudentCourses{
		Enrolled:  make([]models.StudentCourse, 0),
		Available: make([]models.StudentCourse, 0),
	}
	for _, course := range courses {
		if course.Enrolled {
			result.Enrolled = append(result.Enrolled, course)
			continue
		}
		course.Grade = nil
		result.Available = append(result.Available, course)
	}
	return result, nil
}

// ListForTeacher returns the courses the calling teacher owns.
func (s *CourseService) ListForTeacher(ctx context.Context, session *models.Session) ([]models.CourseDetail, error) {
	if err := authorize(session, models.RoleTeacher); err != nil {
		return nil, err
	}
	courses, err := s.repo.ListByTeacher(ctx, session.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teacher courses")
	}
	return courses, nil
}

// AdminList returns every course for the back-office list.
func (s *CourseService) AdminList(ctx context.Context, session *models.Session) ([]models.CourseDetail, error) {
	if err := authorizeAdmin(session); err != nil {
		return nil, err
	}
	courses, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	return courses, nil
}

// Get loads one course for the back-office edit form.
func (s *CourseService) Get(ctx context.Context, session *models.Session, id int64) (*models.Course, error) {
	if err := authorizeAdmin(session); err != nil {
		return nil, err
	}
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, persistError(err, id, "course")
	}
	return course, nil
}

// Create validates a complete form and inserts the course.
func (s *CourseService) Create(ctx context.Context, session *models.Session, form dto.CourseForm) (*models.Course, error) {
	if err := authorizeAdmin(session); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(form.Name)
	timeslot := strings.TrimSpace(form.Timeslot)
	if name == "" || timeslot == "" {
		return nil, invalid("name and timeslot are required")
	}
	capacity, err := parseCapacity(form.Capacity)
	if err != nil {
		return nil, err
	}
	teacherID, err := s.teacherID(ctx, form.TeacherID)
	if err != nil {
		return nil, err
	}

	course := &models.Course{
		Name:        name,
		Description: optionalText(form.Description),
		Capacity:    capacity,
		Timeslot:    timeslot,
		TeacherID:   teacherID,
	}
	if err := s.repo.Create(ctx, course); err != nil {
		return nil, persistError(err, 0, "course")
	}

	s.cache.InvalidateCourses(ctx)
	s.record(session, models.AuditActionCreate, course.ID, map[string]interface{}{"name": course.Name})
	return course, nil
}

// Update applies only the non-empty fields of form to the stored course.
func (s *CourseService) Update(ctx context.Context, session *models.Session, id int64, form dto.CourseForm) (*models.Course, error) {
	if err := authorizeAdmin(session); err != nil {
		return nil, err
	}

	var capacity int
	if strings.TrimSpace(form.Capacity) != "" {
		parsed, err := parseCapacity(form.Capacity)
		if err != nil {
			return nil, err
		}
		capacity = parsed
	}
	var teacherID int64
	if strings.TrimSpace(form.TeacherID) != "" {
		parsed, err := s.teacherID(ctx, form.TeacherID)
		if err != nil {
			return nil, err
		}
		teacherID = parsed
	}

	changed := make([]string, 0, 5)
	course, err := s.repo.Update(ctx, id, func(c *models.Course) error {
		if name := strings.TrimSpace(form.Name); name != "" {
			c.Name = name
			changed = append(changed, "name")
		}
		if desc := optionalText(form.Description); desc != nil {
			c.Description = desc
			changed = append(changed, "description")
		}
		if capacity > 0 {
			c.Capacity = capacity
			changed = append(changed, "capacity")
		}
		if timeslot := strings.TrimSpace(form.Timeslot); timeslot != "" {
			c.Timeslot = timeslot
			changed = append(changed, "timeslot")
		}
		if teacherID > 0 {
			c.TeacherID = teacherID
			changed = append(changed, "teacher_id")
		}
		return nil
	})
	if err != nil {
		return nil, persistError(err, id, "course")
	}

	s.cache.InvalidateCourses(ctx)
	s.record(session, models.AuditActionUpdate, id, map[string]interface{}{"fields": changed})
	return course, nil
}

// Delete removes the course together with its enrollments and grades.
func (s *CourseService) Delete(ctx context.Context, session *models.Session, id int64) error {
	if err := authorizeAdmin(session); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return persistError(err, id, "course")
	}
	s.cache.InvalidateCourses(ctx)
	s.record(session, models.AuditActionDelete, id, nil)
	return nil
}

func (s *CourseService) teacherID(ctx context.Context, raw string) (int64, error) {
	id, err := parseID("teacher", raw)
	if err != nil {
		return 0, err
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, invalid("teacher %d does not exist", id)
		}
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	if user.Role != models.RoleTeacher {
		return 0, invalid("user %s is not a teacher", user.Username)
	}
	return id, nil
}

func (s *CourseService) record(session *models.Session, action string, id int64, details map[string]interface{}) {
	s.audit.Record(models.AuditEntry{
		UserID:     userIDPtr(session),
		Action:     action,
		Resource:   models.AuditResourceCourse,
		ResourceID: strconv.FormatInt(id, 10),
		Details:    details,
		IPAddress:  session.IPAddress,
		UserAgent:  session.UserAgent,
	})
}

func optionalText(raw string) *string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
