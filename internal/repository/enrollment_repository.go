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

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// Enroll adds the student to the course if a seat is free. The course row is
// locked for the whole check so concurrent enrollments into the same course
// are serialized and enrolled_count never exceeds capacity.
func (r *EnrollmentRepository) Enroll(ctx context.Context, studentID, courseID int64) (models.EnrollOutcome, error) {
	outcome := models.EnrollOK
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var capacity int
		const lockQuery = `SELECT capacity FROM courses WHERE id = $1 FOR UPDATE`
		if err := tx.GetContext(ctx, &capacity, lockQuery, courseID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				outcome = models.EnrollCourseMissing
				return nil
			}
			return fmt.Errorf("lock course: %w", err)
		}

		var exists bool
		const existsQuery = `SELECT EXISTS (SELECT 1 FROM enrollments WHERE user_id = $1 AND course_id = $2)`
		if err := tx.GetContext(ctx, &exists, existsQuery, studentID, courseID); err != nil {
			return fmt.Errorf("check enrollment: %w", err)
		}
		if exists {
			outcome = models.EnrollAlreadyEnrolled
			return nil
		}

		var enrolled int
		const countQuery = `SELECT COUNT(*) FROM enrollments WHERE course_id = $1`
		if err := tx.GetContext(ctx, &enrolled, countQuery, courseID); err != nil {
			return fmt.Errorf("count enrollments: %w", err)
		}
		if enrolled >= capacity {
			outcome = models.EnrollCourseFull
			return nil
		}

		const insertQuery = `INSERT INTO enrollments (user_id, course_id, enrolled_at) VALUES ($1, $2, $3)`
		if _, err := tx.ExecContext(ctx, insertQuery, studentID, courseID, time.Now().UTC()); err != nil {
			return fmt.Errorf("insert enrollment: %w", classify(err))
		}
		return nil
	})
	if err != nil {
		return outcome, err
	}
	return outcome, nil
}

// Drop removes the enrollment and the grade recorded for the same pair.
func (r *EnrollmentRepository) Drop(ctx context.Context, studentID, courseID int64) (models.DropOutcome, error) {
	outcome := models.DropOK
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var id int64
		const lockQuery = `SELECT id FROM courses WHERE id = $1 FOR UPDATE`
		if err := tx.GetContext(ctx, &id, lockQuery, courseID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				outcome = models.DropCourseMissing
				return nil
			}
			return fmt.Errorf("lock course: %w", err)
		}

		const deleteEnrollment = `DELETE FROM enrollments WHERE user_id = $1 AND course_id = $2`
		res, err := tx.ExecContext(ctx, deleteEnrollment, studentID, courseID)
		if err != nil {
			return fmt.Errorf("delete enrollment: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete enrollment rows: %w", err)
		}
		if affected == 0 {
			outcome = models.DropNotEnrolled
			return nil
		}

		const deleteGrade = `DELETE FROM grades WHERE student_id = $1 AND course_id = $2`
		if _, err := tx.ExecContext(ctx, deleteGrade, studentID, courseID); err != nil {
			return fmt.Errorf("delete grade: %w", err)
		}
		return nil
	})
	if err != nil {
		return outcome, err
	}
	return outcome, nil
}

// Roster lists the students enrolled in a course with their grade, if any.
func (r *EnrollmentRepository) Roster(ctx context.Context, courseID int64) ([]models.RosterEntry, error) {
	const query = `SELECT u.id, u.username, u.role, g.value AS grade
FROM enrollments e
JOIN users u ON u.id = e.user_id
LEFT JOIN grades g ON g.student_id = e.user_id AND g.course_id = e.course_id
WHERE e.course_id = $1
ORDER BY u.username`
	entries := make([]models.RosterEntry, 0)
	if err := r.db.SelectContext(ctx, &entries, query, courseID); err != nil {
		return nil, fmt.Errorf("list roster: %w", err)
	}
	return entries, nil
}

// Count returns the total number of enrollments.
func (r *EnrollmentRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM enrollments`); err != nil {
		return 0, fmt.Errorf("count enrollments: %w", err)
	}
	return total, nil
}

// Add inserts an enrollment without capacity checks; used by the seeder.
func (r *EnrollmentRepository) Add(ctx context.Context, studentID, courseID int64) error {
	const query = `INSERT INTO enrollments (user_id, course_id, enrolled_at) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, studentID, courseID, time.Now().UTC()); err != nil {
		return fmt.Errorf("add enrollment: %w", classify(err))
	}
	return nil
}
