package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/fluentia/tutor-admin-api/internal/models"
)

// ErrClassFull is returned when an enrollment would exceed class capacity.
var ErrClassFull = errors.New("class is full")

// EnrollmentRepository handles persistence of class enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// FindByClassAndStudent returns the enrollment row for the pair, active or not.
func (r *EnrollmentRepository) FindByClassAndStudent(ctx context.Context, classID, studentID string) (*models.Enrollment, error) {
	const query = `SELECT id, class_id, student_id, enrolled_at, is_active FROM class_enrollments WHERE class_id = $1 AND student_id = $2`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, classID, studentID); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ListActiveByClass returns active enrollments with student detail.
func (r *EnrollmentRepository) ListActiveByClass(ctx context.Context, classID string) ([]models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.class_id, e.student_id, e.enrolled_at, e.is_active,
        u.full_name AS student_name, u.email AS student_email, u.phone AS student_phone, c.name AS class_name
        FROM class_enrollments e
        JOIN users u ON u.id = e.student_id
        JOIN classes c ON c.id = e.class_id
        WHERE e.class_id = $1 AND e.is_active
        ORDER BY e.enrolled_at ASC`
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, classID); err != nil {
		return nil, fmt.Errorf("list class enrollments: %w", err)
	}
	return enrollments, nil
}

// CountActiveByClass returns the active enrollment count for a class.
func (r *EnrollmentRepository) CountActiveByClass(ctx context.Context, classID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM class_enrollments WHERE class_id = $1 AND is_active", classID); err != nil {
		return 0, fmt.Errorf("count class enrollments: %w", err)
	}
	return count, nil
}

// CreateGuarded inserts a new enrollment inside a transaction that locks the
// class row, so the capacity check and the insert cannot race with a
// concurrent enrollment into the same class.
func (r *EnrollmentRepository) CreateGuarded(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}
	enrollment.IsActive = true

	return r.withCapacityLock(ctx, enrollment.ClassID, func(tx *sqlx.Tx) error {
		const query = `INSERT INTO class_enrollments (id, class_id, student_id, enrolled_at, is_active)
            VALUES (:id, :class_id, :student_id, :enrolled_at, :is_active)`
		if _, err := tx.NamedExecContext(ctx, query, enrollment); err != nil {
			return fmt.Errorf("create enrollment: %w", err)
		}
		return nil
	})
}

// ReactivateGuarded flips an inactive enrollment back to active under the
// same class-row lock used for inserts.
func (r *EnrollmentRepository) ReactivateGuarded(ctx context.Context, enrollment *models.Enrollment) error {
	return r.withCapacityLock(ctx, enrollment.ClassID, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, "UPDATE class_enrollments SET is_active = TRUE WHERE id = $1", enrollment.ID); err != nil {
			return fmt.Errorf("reactivate enrollment: %w", err)
		}
		enrollment.IsActive = true
		return nil
	})
}

func (r *EnrollmentRepository) withCapacityLock(ctx context.Context, classID string, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin enrollment tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var maxStudents int
	if err := tx.GetContext(ctx, &maxStudents, "SELECT max_students FROM classes WHERE id = $1 FOR UPDATE", classID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sql.ErrNoRows
		}
		return fmt.Errorf("lock class row: %w", err)
	}

	var active int
	if err := tx.GetContext(ctx, &active, "SELECT COUNT(*) FROM class_enrollments WHERE class_id = $1 AND is_active", classID); err != nil {
		return fmt.Errorf("count active enrollments: %w", err)
	}
	if active >= maxStudents {
		return ErrClassFull
	}

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit enrollment tx: %w", err)
	}
	return nil
}

// Deactivate soft-deletes an enrollment, preserving history.
func (r *EnrollmentRepository) Deactivate(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "UPDATE class_enrollments SET is_active = FALSE WHERE id = $1", id); err != nil {
		return fmt.Errorf("deactivate enrollment: %w", err)
	}
	return nil
}

// CountActive returns the total number of active enrollments.
func (r *EnrollmentRepository) CountActive(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM class_enrollments WHERE is_active"); err != nil {
		return 0, fmt.Errorf("count enrollments: %w", err)
	}
	return count, nil
}

// CountActiveSince returns active enrollments created after the given time.
func (r *EnrollmentRepository) CountActiveSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM class_enrollments WHERE is_active AND enrolled_at >= $1", since); err != nil {
		return 0, fmt.Errorf("count recent enrollments: %w", err)
	}
	return count, nil
}

// RecentActive returns the most recent active enrollments with detail.
func (r *EnrollmentRepository) RecentActive(ctx context.Context, limit int) ([]models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.class_id, e.student_id, e.enrolled_at, e.is_active,
        u.full_name AS student_name, u.email AS student_email, u.phone AS student_phone, c.name AS class_name
        FROM class_enrollments e
        JOIN users u ON u.id = e.student_id
        JOIN classes c ON c.id = e.class_id
        WHERE e.is_active
        ORDER BY e.enrolled_at DESC LIMIT $1`
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, limit); err != nil {
		return nil, fmt.Errorf("recent enrollments: %w", err)
	}
	return enrollments, nil
}

// HasActiveByClass reports whether a class has any active enrollments.
func (r *EnrollmentRepository) HasActiveByClass(ctx context.Context, classID string) (bool, error) {
	var exists int
	err := r.db.GetContext(ctx, &exists, "SELECT 1 FROM class_enrollments WHERE class_id = $1 AND is_active LIMIT 1", classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check class enrollments: %w", err)
	}
	return true, nil
}

// IsActive reports whether the student is actively enrolled in the class.
func (r *EnrollmentRepository) IsActive(ctx context.Context, classID, studentID string) (bool, error) {
	var exists int
	err := r.db.GetContext(ctx, &exists, "SELECT 1 FROM class_enrollments WHERE class_id = $1 AND student_id = $2 AND is_active LIMIT 1", classID, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return true, nil
}
