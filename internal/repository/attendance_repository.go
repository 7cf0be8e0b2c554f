package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/fluentia/tutor-admin-api/internal/models"
)

// AttendanceRepository handles persistence of lesson attendance.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Upsert inserts or replaces the attendance record for (lesson, student).
func (r *AttendanceRepository) Upsert(ctx context.Context, record *models.Attendance) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now

	const query = `INSERT INTO attendances (id, lesson_id, student_id, status, notes, created_at, updated_at)
        VALUES (:id, :lesson_id, :student_id, :status, :notes, :created_at, :updated_at)
        ON CONFLICT (lesson_id, student_id)
        DO UPDATE SET status = EXCLUDED.status, notes = EXCLUDED.notes, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("upsert attendance: %w", err)
	}
	return nil
}

// ListByLesson returns attendance records for a lesson with student names.
func (r *AttendanceRepository) ListByLesson(ctx context.Context, lessonID string) ([]models.Attendance, error) {
	const query = `SELECT a.id, a.lesson_id, a.student_id, a.status, a.notes, a.created_at, a.updated_at,
        u.full_name AS student_name
        FROM attendances a
        JOIN users u ON u.id = a.student_id
        WHERE a.lesson_id = $1
        ORDER BY u.full_name ASC`
	var records []models.Attendance
	if err := r.db.SelectContext(ctx, &records, query, lessonID); err != nil {
		return nil, fmt.Errorf("list lesson attendance: %w", err)
	}
	return records, nil
}

// CountByLesson returns the number of attendance records for a lesson.
func (r *AttendanceRepository) CountByLesson(ctx context.Context, lessonID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM attendances WHERE lesson_id = $1", lessonID); err != nil {
		return 0, fmt.Errorf("count lesson attendance: %w", err)
	}
	return count, nil
}

// CountByStatus returns the number of records with the given status.
func (r *AttendanceRepository) CountByStatus(ctx context.Context, status models.AttendanceStatus) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM attendances WHERE status = $1", status); err != nil {
		return 0, fmt.Errorf("count attendance by status: %w", err)
	}
	return count, nil
}

// CountAll returns the total number of attendance records.
func (r *AttendanceRepository) CountAll(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM attendances"); err != nil {
		return 0, fmt.Errorf("count attendance: %w", err)
	}
	return count, nil
}
