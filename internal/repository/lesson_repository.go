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

// LessonRepository handles persistence of class lessons.
type LessonRepository struct {
	db *sqlx.DB
}

// NewLessonRepository constructs the repository.
func NewLessonRepository(db *sqlx.DB) *LessonRepository {
	return &LessonRepository{db: db}
}

// ListByClass returns all lessons of a class, most recent first.
func (r *LessonRepository) ListByClass(ctx context.Context, classID string) ([]models.LessonSummary, error) {
	const query = `SELECT l.id, l.class_id, l.content_id, l.lesson_date, l.notes, l.was_completed,
        ct.title AS content_title, ct.module, ct.sort_order
        FROM class_lessons l
        JOIN contents ct ON ct.id = l.content_id
        WHERE l.class_id = $1
        ORDER BY l.lesson_date DESC`
	var lessons []models.LessonSummary
	if err := r.db.SelectContext(ctx, &lessons, query, classID); err != nil {
		return nil, fmt.Errorf("list class lessons: %w", err)
	}
	return lessons, nil
}

// ListRecentByContent returns the latest lessons that scheduled a content,
// with the owning class name.
func (r *LessonRepository) ListRecentByContent(ctx context.Context, contentID string, limit int) ([]models.LessonSummary, error) {
	const query = `SELECT l.id, l.class_id, l.content_id, l.lesson_date, l.notes, l.was_completed,
        c.name AS class_name
        FROM class_lessons l
        JOIN classes c ON c.id = l.class_id
        WHERE l.content_id = $1
        ORDER BY l.lesson_date DESC LIMIT $2`
	var lessons []models.LessonSummary
	if err := r.db.SelectContext(ctx, &lessons, query, contentID, limit); err != nil {
		return nil, fmt.Errorf("list content lessons: %w", err)
	}
	return lessons, nil
}

// FindByID returns a bare lesson row.
func (r *LessonRepository) FindByID(ctx context.Context, id string) (*models.Lesson, error) {
	const query = `SELECT id, class_id, content_id, lesson_date, notes, was_completed, created_at, updated_at FROM class_lessons WHERE id = $1`
	var lesson models.Lesson
	if err := r.db.GetContext(ctx, &lesson, query, id); err != nil {
		return nil, err
	}
	return &lesson, nil
}

// FindDetailByID returns a lesson joined with its class and content.
func (r *LessonRepository) FindDetailByID(ctx context.Context, id string) (*models.LessonDetail, error) {
	const query = `SELECT l.id, l.class_id, l.content_id, l.lesson_date, l.notes, l.was_completed, l.created_at, l.updated_at,
        c.name AS class_name, c.type AS class_type, c.level AS class_level,
        ct.title AS content_title, ct.module, ct.sort_order
        FROM class_lessons l
        JOIN classes c ON c.id = l.class_id
        JOIN contents ct ON ct.id = l.content_id
        WHERE l.id = $1`
	var lesson models.LessonDetail
	if err := r.db.GetContext(ctx, &lesson, query, id); err != nil {
		return nil, err
	}
	return &lesson, nil
}

// ExistsByClassContentDate reports whether a lesson already records the same
// content for the class on the same date. excludeID skips the row being
// updated.
func (r *LessonRepository) ExistsByClassContentDate(ctx context.Context, classID, contentID string, lessonDate time.Time, excludeID string) (bool, error) {
	query := "SELECT 1 FROM class_lessons WHERE class_id = $1 AND content_id = $2 AND lesson_date = $3"
	args := []interface{}{classID, contentID, lessonDate}
	if excludeID != "" {
		query += " AND id != $4"
		args = append(args, excludeID)
	}
	query += " LIMIT 1"

	var exists int
	err := r.db.GetContext(ctx, &exists, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check lesson slot: %w", err)
	}
	return true, nil
}

// Create inserts a new lesson.
func (r *LessonRepository) Create(ctx context.Context, lesson *models.Lesson) error {
	lesson.ID = uuid.NewString()
	now := time.Now().UTC()
	lesson.CreatedAt = now
	lesson.UpdatedAt = now

	const query = `INSERT INTO class_lessons (id, class_id, content_id, lesson_date, notes, was_completed, created_at, updated_at)
        VALUES (:id, :class_id, :content_id, :lesson_date, :notes, :was_completed, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, lesson); err != nil {
		return fmt.Errorf("create lesson: %w", err)
	}
	return nil
}

// Update rewrites a lesson row.
func (r *LessonRepository) Update(ctx context.Context, lesson *models.Lesson) error {
	lesson.UpdatedAt = time.Now().UTC()

	const query = `UPDATE class_lessons SET content_id = :content_id, lesson_date = :lesson_date, notes = :notes,
        was_completed = :was_completed, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, lesson); err != nil {
		return fmt.Errorf("update lesson: %w", err)
	}
	return nil
}

// Delete removes a lesson row. Callers guard against existing attendance.
func (r *LessonRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM class_lessons WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete lesson: %w", err)
	}
	return nil
}

// CountByContent returns how many lessons reference a content.
func (r *LessonRepository) CountByContent(ctx context.Context, contentID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM class_lessons WHERE content_id = $1", contentID); err != nil {
		return 0, fmt.Errorf("count content lessons: %w", err)
	}
	return count, nil
}

// CountAll returns the total number of lessons.
func (r *LessonRepository) CountAll(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM class_lessons"); err != nil {
		return 0, fmt.Errorf("count lessons: %w", err)
	}
	return count, nil
}
