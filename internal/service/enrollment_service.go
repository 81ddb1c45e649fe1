package service

import (
	"context"
	"strconv"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-enrollment-api/internal/dto"
	"github.com/noah-isme/sma-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/sma-enrollment-api/pkg/errors"
)

type enrollmentRepository interface {
	Enroll(ctx context.Context, studentID, courseID int64) (models.EnrollOutcome, error)
	Drop(ctx context.Context, studentID, courseID int64) (models.DropOutcome, error)
}

// EnrollmentService implements the student enroll and drop workflows.
type EnrollmentService struct {
	repo      enrollmentRepository
	cache     *CacheService
	audit     AuditRecorder
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, cache *CacheService, audit AuditRecorder, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if audit == nil {
		audit = discardAudit{}
	}
	return &EnrollmentService{repo: repo, cache: cache, audit: audit, metrics: metrics, validator: validate, logger: logger}
}

// Enroll adds the calling student to a course.
func (s *EnrollmentService) Enroll(ctx context.Context, session *models.Session, req dto.CourseActionRequest) error {
	if err := authorize(session, models.RoleStudent); err != nil {
		return err
	}
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "course_id is required")
	}

	outcome, err := s.repo.Enroll(ctx, session.UserID, req.CourseID)
	if err != nil {
		s.metrics.RecordEnrollment("enroll", "error")
		s.logger.Error("enroll failed", zap.Int64("student_id", session.UserID), zap.Int64("course_id", req.CourseID), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enroll")
	}
	s.metrics.RecordEnrollment("enroll", outcome.String())

	switch outcome {
	case models.EnrollOK:
	case models.EnrollCourseMissing:
		return appErrors.Clone(appErrors.ErrNotFound, "course not found")
	case models.EnrollAlreadyEnrolled:
		return appErrors.ErrAlreadyEnrolled
	case models.EnrollCourseFull:
		return appErrors.ErrCourseFull
	default:
		return appErrors.Clone(appErrors.ErrInternal, "unexpected enrollment outcome")
	}

	s.cache.InvalidateCourses(ctx)
	s.record(session, models.AuditActionEnroll, req.CourseID)
	return nil
}

// Drop removes the calling student from a course; the grade for the pair goes with it.
func (s *EnrollmentService) Drop(ctx context.Context, session *models.Session, req dto.CourseActionRequest) error {
	if err := authorize(session, models.RoleStudent); err != nil {
		return err
	}
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "course_id is required")
	}

	outcome, err := s.repo.Drop(ctx, session.UserID, req.CourseID)
	if err != nil {
		s.metrics.RecordEnrollment("drop", "error")
		s.logger.Error("drop failed", zap.Int64("student_id", session.UserID), zap.Int64("course_id", req.CourseID), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to drop course")
	}
	s.metrics.RecordEnrollment("drop", outcome.String())

	switch outcome {
	case models.DropOK:
	case models.DropCourseMissing:
		return appErrors.Clone(appErrors.ErrNotFound, "course not found")
	case models.DropNotEnrolled:
		return appErrors.ErrNotEnrolled
	default:
		return appErrors.Clone(appErrors.ErrInternal, "unexpected drop outcome")
	}

	s.cache.InvalidateCourses(ctx)
	s.record(session, models.AuditActionDrop, req.CourseID)
	return nil
}

func (s *EnrollmentService) record(session *models.Session, action string, courseID int64) {
	s.audit.Record(models.AuditEntry{
		UserID:     userIDPtr(session),
		Action:     action,
		Resource:   models.AuditResourceEnrollment,
		ResourceID: strconv.FormatInt(session.UserID, 10) + ":" + strconv.FormatInt(courseID, 10),
		Details:    map[string]interface{}{"course_id": courseID},
		IPAddress:  session.IPAddress,
		UserAgent:  session.UserAgent,
	})
}
