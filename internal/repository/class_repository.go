package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/fluentia/tutor-admin-api/internal/models"
)

// ClassRepository handles persistence of classes.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs the repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

const classDetailColumns = `c.id, c.name, c.description, c.type, c.level, c.max_students, c.is_active,
        c.start_time, c.end_time, c.day_of_week, c.consultant_id, c.created_at, c.updated_at,
        u.full_name AS consultant_name, u.email AS consultant_email,
        (SELECT COUNT(*) FROM class_enrollments e WHERE e.class_id = c.id AND e.is_active) AS enrolled_count`

// List returns classes with consultant info and active enrollment counts.
func (r *ClassRepository) List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, int, error) {
	base := `FROM classes c LEFT JOIN users u ON u.id = c.consultant_id`
	var conditions []string
	var args []interface{}

	if filter.Type != "" {
		conditions = append(conditions, fmt.Sprintf("c.type = $%d", len(args)+1))
		args = append(args, filter.Type)
	}
	if filter.Level != "" {
		conditions = append(conditions, fmt.Sprintf("c.level = $%d", len(args)+1))
		args = append(args, filter.Level)
	}
	if filter.ConsultantID != "" {
		conditions = append(conditions, fmt.Sprintf("c.consultant_id = $%d", len(args)+1))
		args = append(args, filter.ConsultantID)
	}
	if filter.IsActive != nil {
		conditions = append(conditions, fmt.Sprintf("c.is_active = $%d", len(args)+1))
		args = append(args, *filter.IsActive)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 10
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY c.created_at DESC LIMIT %d OFFSET %d",
		classDetailColumns, base+clause, size, offset)

	var classes []models.ClassDetail
	if err := r.db.SelectContext(ctx, &classes, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list classes: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count classes: %w", err)
	}
	return classes, total, nil
}

// FindByID returns a class by its ID.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	const query = `SELECT id, name, description, type, level, max_students, is_active, start_time, end_time,
        day_of_week, consultant_id, created_at, updated_at FROM classes WHERE id = $1`
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}

// FindDetailByID returns a class with consultant and enrollment info.
func (r *ClassRepository) FindDetailByID(ctx context.Context, id string) (*models.ClassDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM classes c LEFT JOIN users u ON u.id = c.consultant_id WHERE c.id = $1`, classDetailColumns)
	var detail models.ClassDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Create persists a new class record.
func (r *ClassRepository) Create(ctx context.Context, class *models.Class) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	class.CreatedAt = now
	class.UpdatedAt = now
	const query = `INSERT INTO classes (id, name, description, type, level, max_students, is_active, start_time, end_time, day_of_week, consultant_id, created_at, updated_at)
        VALUES (:id, :name, :description, :type, :level, :max_students, :is_active, :start_time, :end_time, :day_of_week, :consultant_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}

// Update persists modified class attributes.
func (r *ClassRepository) Update(ctx context.Context, class *models.Class) error {
	class.UpdatedAt = time.Now().UTC()
	const query = `UPDATE classes SET name = :name, description = :description, type = :type, level = :level,
        max_students = :max_students, is_active = :is_active, start_time = :start_time, end_time = :end_time,
        day_of_week = :day_of_week, consultant_id = :consultant_id, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("update class: %w", err)
	}
	return nil
}

// Delete removes a class row.
func (r *ClassRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM classes WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete class: %w", err)
	}
	return nil
}

// CountAll returns the total number of classes.
func (r *ClassRepository) CountAll(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM classes"); err != nil {
		return 0, fmt.Errorf("count classes: %w", err)
	}
	return count, nil
}

// CountActive returns the number of active classes.
func (r *ClassRepository) CountActive(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM classes WHERE is_active"); err != nil {
		return 0, fmt.Errorf("count active classes: %w", err)
	}
	return count, nil
}
