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

const gradeColumns = `id, student_id, course_id, value, created_at, updated_at`

// GradeRepository manages grade persistence.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository constructs the repository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

// UpsertForEnrolled writes the grade for the pair only if the student is
// enrolled in the course. It returns sql.ErrNoRows when there is no enrollment.
func (r *GradeRepository) UpsertForEnrolled(ctx context.Context, studentID, courseID int64, value float64) (int64, error) {
	const query = `INSERT INTO grades (student_id, course_id, value, created_at, updated_at)
SELECT $1::bigint, $2::bigint, $3::double precision, $4::timestamptz, $4::timestamptz
WHERE EXISTS (SELECT 1 FROM enrollments WHERE user_id = $1 AND course_id = $2)
ON CONFLICT (student_id, course_id) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
RETURNING id`
	var id int64
	if err := r.db.QueryRowxContext(ctx, query, studentID, courseID, value, time.Now().UTC()).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, err
		}
		return 0, fmt.Errorf("upsert grade: %w", err)
	}
	return id, nil
}

// List returns every grade joined with student and course names.
func (r *GradeRepository) List(ctx context.Context) ([]models.GradeDetail, error) {
	const query = `SELECT g.id, g.student_id, COALESCE(u.username, 'Unknown') AS student_username,
	g.course_id, COALESCE(c.name, 'Unknown') AS course_name, g.value
FROM grades g
LEFT JOIN users u ON u.id = g.student_id
LEFT JOIN courses c ON c.id = g.course_id
ORDER BY g.id`
	grades := make([]models.GradeDetail, 0)
	if err := r.db.SelectContext(ctx, &grades, query); err != nil {
		return nil, fmt.Errorf("list grades: %w", err)
	}
	return grades, nil
}

// FindByID returns the stored grade row.
func (r *GradeRepository) FindByID(ctx context.Context, id int64) (*models.Grade, error) {
	const query = `SELECT ` + gradeColumns + ` FROM grades WHERE id = $1 LIMIT 1`
	var grade models.Grade
	if err := r.db.GetContext(ctx, &grade, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find grade: %w", err)
	}
	return &grade, nil
}

// FindForPair returns the grade recorded for a student in a course.
func (r *GradeRepository) FindForPair(ctx context.Context, studentID, courseID int64) (*models.Grade, error) {
	const query = `SELECT ` + gradeColumns + ` FROM grades WHERE student_id = $1 AND course_id = $2 LIMIT 1`
	var grade models.Grade
	if err := r.db.GetContext(ctx, &grade, query, studentID, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find grade for pair: %w", err)
	}
	return &grade, nil
}

// Count returns the number of grades.
func (r *GradeRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM grades`); err != nil {
		return 0, fmt.Errorf("count grades: %w", err)
	}
	return total, nil
}

// Create inserts a grade; a duplicate pair surfaces as ErrUniqueViolation.
func (r *GradeRepository) Create(ctx context.Context, grade *models.Grade) error {
	now := time.Now().UTC()
	grade.CreatedAt = now
	grade.UpdatedAt = now

	const query = `INSERT INTO grades (student_id, course_id, value, created_at, updated_at) VALUES ($1, $2, $3, $4, $5) RETURNING id`
	if err := r.db.QueryRowxContext(ctx, query, grade.StudentID, grade.CourseID, grade.Value, grade.CreatedAt, grade.UpdatedAt).Scan(&grade.ID); err != nil {
		return fmt.Errorf("create grade: %w", classify(err))
	}
	return nil
}

// Update locks the grade row, applies mutate and persists the result in one transaction.
func (r *GradeRepository) Update(ctx context.Context, id int64, mutate func(*models.Grade) error) (*models.Grade, error) {
	var grade models.Grade
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		const selectQuery = `SELECT ` + gradeColumns + ` FROM grades WHERE id = $1 FOR UPDATE`
		if err := tx.GetContext(ctx, &grade, selectQuery, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return err
			}
			return fmt.Errorf("lock grade: %w", err)
		}
		if err := mutate(&grade); err != nil {
			return err
		}
		grade.UpdatedAt = time.Now().UTC()

		const updateQuery = `UPDATE grades SET student_id = :student_id, course_id = :course_id, value = :value, updated_at = :updated_at WHERE id = :id`
		if _, err := tx.NamedExecContext(ctx, updateQuery, &grade); err != nil {
			return fmt.Errorf("update grade: %w", classify(err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &grade, nil
}

// Delete removes a grade.
func (r *GradeRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM grades WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete grade: %w", err)
	}
	return requireAffected(res)
}
