package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-enrollment-api/internal/models"
	"github.com/noah-isme/sma-enrollment-api/pkg/database"
)

const (
	courseColumns = `id, name, description, capacity, timeslot, teacher_id, created_at, updated_at`

	courseDetailSelect = `SELECT c.id, c.name, c.description, c.capacity, c.timeslot, c.teacher_id,
	COALESCE(u.username, 'Unknown') AS teacher_name,
	(SELECT COUNT(*) FROM enrollments e WHERE e.course_id = c.id) AS enrolled_count
FROM courses c
LEFT JOIN users u ON u.id = c.teacher_id`
)

// CourseRepository handles persistence of courses and their derived views.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// List returns every course with teacher name and enrollment count.
func (r *CourseRepository) List(ctx context.Context) ([]models.CourseDetail, error) {
	const query = courseDetailSelect + ` ORDER BY c.id`
	courses := make([]models.CourseDetail, 0)
	if err := r.db.SelectContext(ctx, &courses, query); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

// ListByTeacher returns the courses taught by teacherID.
func (r *CourseRepository) ListByTeacher(ctx context.Context, teacherID int64) ([]models.CourseDetail, error) {
	const query = courseDetailSelect + ` WHERE c.teacher_id = $1 ORDER BY c.id`
	courses := make([]models.CourseDetail, 0)
	if err := r.db.SelectContext(ctx, &courses, query, teacherID); err != nil {
		return nil, fmt.Errorf("list courses by teacher: %w", err)
	}
	return courses, nil
}

// ListForStudent returns every course flagged with the student's membership and grade.
func (r *CourseRepository) ListForStudent(ctx context.Context, studentID int64) ([]models.StudentCourse, error) {
	const query = `SELECT c.id, c.name, c.description, c.capacity, c.timeslot, c.teacher_id,
	COALESCE(u.username, 'Unknown') AS teacher_name,
	(SELECT COUNT(*) FROM enrollments e2 WHERE e2.course_id = c.id) AS enrolled_count,
	(e.user_id IS NOT NULL) AS enrolled,
	CASE WHEN e.user_id IS NOT NULL THEN g.value END AS grade
FROM courses c
LEFT JOIN users u ON u.id = c.teacher_id
LEFT JOIN enrollments e ON e.course_id = c.id AND e.user_id = $1
LEFT JOIN grades g ON g.course_id = c.id AND g.student_id = $1
ORDER BY c.id`
	courses := make([]models.StudentCourse, 0)
	if err := r.db.SelectContext(ctx, &courses, query, studentID); err != nil {
		return nil, fmt.Errorf("list courses for student: %w", err)
	}
	return courses, nil
}

// FindByID returns the stored course row.
func (r *CourseRepository) FindByID(ctx context.Context, id int64) (*models.Course, error) {
	const query = `SELECT ` + courseColumns + ` FROM courses WHERE id = $1 LIMIT 1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find course: %w", err)
	}
	return &course, nil
}

// Count returns the number of courses.
func (r *CourseRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM courses`); err != nil {
		return 0, fmt.Errorf("count courses: %w", err)
	}
	return total, nil
}

// Create inserts a course; an unknown teacher surfaces as ErrForeignKeyViolation.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	now := time.Now().UTC()
	course.CreatedAt = now
	course.UpdatedAt = now

	const query = `INSERT INTO courses (name, description, capacity, timeslot, teacher_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	if err := r.db.QueryRowxContext(ctx, query, course.Name, course.Description, course.Capacity, course.Timeslot, course.TeacherID, course.CreatedAt, course.UpdatedAt).Scan(&course.ID); err != nil {
		return fmt.Errorf("create course: %w", classify(err))
	}
	return nil
}

// Update locks the course row, applies mutate and persists the result in one transaction.
func (r *CourseRepository) Update(ctx context.Context, id int64, mutate func(*models.Course) error) (*models.Course, error) {
	var course models.Course
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		const selectQuery = `SELECT ` + courseColumns + ` FROM courses WHERE id = $1 FOR UPDATE`
		if err := tx.GetContext(ctx, &course, selectQuery, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return err
			}
			return fmt.Errorf("lock course: %w", err)
		}
		if err := mutate(&course); err != nil {
			return err
		}
		course.UpdatedAt = time.Now().UTC()

		const updateQuery = `UPDATE courses SET name = :name, description = :description, capacity = :capacity, timeslot = :timeslot, teacher_id = :teacher_id, updated_at = :updated_at WHERE id = :id`
		if _, err := tx.NamedExecContext(ctx, updateQuery, &course); err != nil {
			return fmt.Errorf("update course: %w", classify(err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &course, nil
}

// Delete removes a course; its enrollments and grades cascade.
func (r *CourseRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete course: %w", classify(err))
	}
	return requireAffected(res)
}
