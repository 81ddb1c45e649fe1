package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-enrollment-api/internal/models"
)

type seedUserRepository interface {
	Count(ctx context.Context, role *models.UserRole) (int, error)
	Create(ctx context.Context, user *models.User) error
}

type seedCourseRepository interface {
	Create(ctx context.Context, course *models.Course) error
}

type seedEnrollmentRepository interface {
	Add(ctx context.Context, studentID, courseID int64) error
}

type seedGradeRepository interface {
	Create(ctx context.Context, grade *models.Grade) error
}

type seedUser struct {
	username string
	password string
	role     models.UserRole
}

type seedCourse struct {
	name     string
	capacity int
	timeslot string
	teacher  string
}

type seedRecord struct {
	student string
	course  string
	grade   float64
}

var (
	seedUsers = []seedUser{
		{"admin", "admin123", models.RoleAdmin},
		{"teacher1", "teacher123", models.RoleTeacher},
		{"teacher2", "teacher123", models.RoleTeacher},
		{"student1", "student123", models.RoleStudent},
		{"student2", "student123", models.RoleStudent},
		{"student3", "student123", models.RoleStudent},
	}
	seedCourses = []seedCourse{
		{"Introduction to Python", 30, "MW 10:00 AM - 11:30 AM", "teacher1"},
		{"Web Development with Flask", 25, "TTH 1:00 PM - 2:30 PM", "teacher1"},
		{"Data Science Fundamentals", 20, "MF 3:00 PM - 4:30 PM", "teacher2"},
	}
	seedRecords = []seedRecord{
		{"student1", "Introduction to Python", 85.5},
		{"student1", "Web Development with Flask", 92.0},
		{"student2", "Introduction to Python", 78.5},
		{"student3", "Data Science Fundamentals", 88.0},
	}
)

// SeedResult reports what a seed run did.
type SeedResult struct {
	Skipped     bool
	Users       int
	Courses     int
	Enrollments int
	Grades      int
}

// SeedService loads the sample data set into an empty database.
type SeedService struct {
	users       seedUserRepository
	courses     seedCourseRepository
	enrollments seedEnrollmentRepository
	grades      seedGradeRepository
	logger      *zap.Logger
}

// NewSeedService constructs SeedService.
func NewSeedService(users seedUserRepository, courses seedCourseRepository, enrollments seedEnrollmentRepository, grades seedGradeRepository, logger *zap.Logger) *SeedService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SeedService{users: users, courses: courses, enrollments: enrollments, grades: grades, logger: logger}
}

// Seed inserts the sample users, courses, enrollments and grades. It does
// nothing when any user already exists.
func (s *SeedService) Seed(ctx context.Context) (*SeedResult, error) {
	existing, err := s.users.Count(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	if existing > 0 {
		s.logger.Info("database already contains users, skipping seed", zap.Int("users", existing))
		return &SeedResult{Skipped: true}, nil
	}

	result := &SeedResult{}
	userIDs := make(map[string]int64, len(seedUsers))
	for _, u := range seedUsers {
		hash, err := HashPassword(u.password)
		if err != nil {
			return nil, err
		}
		user := &models.User{Username: u.username, PasswordHash: hash, Role: u.role}
		if err := s.users.Create(ctx, user); err != nil {
			return nil, fmt.Errorf("seed user %s: %w", u.username, err)
		}
		userIDs[u.username] = user.ID
		result.Users++
	}

	courseIDs := make(map[string]int64, len(seedCourses))
	for _, c := range seedCourses {
		course := &models.Course{
			Name:      c.name,
			Capacity:  c.capacity,
			Timeslot:  c.timeslot,
			TeacherID: userIDs[c.teacher],
		}
		if err := s.courses.Create(ctx, course); err != nil {
			return nil, fmt.Errorf("seed course %s: %w", c.name, err)
		}
		courseIDs[c.name] = course.ID
		result.Courses++
	}

	for _, r := range seedRecords {
		studentID, courseID := userIDs[r.student], courseIDs[r.course]
		if err := s.enrollments.Add(ctx, studentID, courseID); err != nil {
			return nil, fmt.Errorf("seed enrollment %s/%s: %w", r.student, r.course, err)
		}
		result.Enrollments++
		if err := s.grades.Create(ctx, &models.Grade{StudentID: studentID, CourseID: courseID, Value: r.grade}); err != nil {
			return nil, fmt.Errorf("seed grade %s/%s: %w", r.student, r.course, err)
		}
		result.Grades++
	}

	s.logger.Info("seed complete",
		zap.Int("users", result.Users),
		zap.Int("courses", result.Courses),
		zap.Int("enrollments", result.Enrollments),
		zap.Int("grades", result.Grades),
	)
	return result, nil
}
