package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/sma-enrollment-api/pkg/errors"
)

type userCounter interface {
	Count(ctx context.Context, role *models.UserRole) (int, error)
}

type rowCounter interface {
	Count(ctx context.Context) (int, error)
}

type auditReader interface {
	Recent(ctx context.Context, limit int) ([]models.AuditLog, error)
}

// DashboardView is rendered on the back-office index page.
type DashboardView struct {
	Stats   models.DashboardStats
	Metrics MetricsSnapshot
}

// DashboardService composes the back-office index page.
type DashboardService struct {
	users       userCounter
	courses     rowCounter
	enrollments rowCounter
	grades      rowCounter
	audit       auditReader
	metrics     *MetricsService
	logger      *zap.Logger
	recentLimit int
}

// NewDashboardService constructs DashboardService.
func NewDashboardService(users userCounter, courses, enrollments, grades rowCounter, audit auditReader, metrics *MetricsService, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		users:       users,
		courses:     courses,
		enrollments: enrollments,
		grades:      grades,
		audit:       audit,
		metrics:     metrics,
		logger:      logger,
		recentLimit: 10,
	}
}

// Overview returns entity counts, the latest audit entries and a metrics snapshot.
func (s *DashboardService) Overview(ctx context.Context, session *models.Session) (*DashboardView, error) {
	if err := authorizeAdmin(session); err != nil {
		return nil, err
	}

	student, teacher := models.RoleStudent, models.RoleTeacher
	stats := models.DashboardStats{}
	counts := []struct {
		dest  *int
		count func() (int, error)
	}{
		{&stats.Users, func() (int, error) { return s.users.Count(ctx, nil) }},
		{&stats.Students, func() (int, error) { return s.users.Count(ctx, &student) }},
		{&stats.Teachers, func() (int, error) { return s.users.Count(ctx, &teacher) }},
		{&stats.Courses, func() (int, error) { return s.courses.Count(ctx) }},
		{&stats.Enrollments, func() (int, error) { return s.enrollments.Count(ctx) }},
		{&stats.Grades, func() (int, error) { return s.grades.Count(ctx) }},
	}
	for _, c := range counts {
		n, err := c.count()
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load dashboard")
		}
		*c.dest = n
	}

	if s.audit != nil {
		recent, err := s.audit.Recent(ctx, s.recentLimit)
		if err != nil {
			s.logger.Warn("dashboard audit lookup failed", zap.Error(err))
		} else {
			stats.RecentAudit = recent
		}
	}

	return &DashboardView{Stats: stats, Metrics: s.metrics.Snapshot()}, nil
}
