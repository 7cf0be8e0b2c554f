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

// ContentRepository handles persistence of curriculum contents.
type ContentRepository struct {
	db *sqlx.DB
}

// NewContentRepository constructs the repository.
func NewContentRepository(db *sqlx.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

const contentColumns = `id, title, description, module, sort_order, presentation_url, students_pdf_url, homework_url, is_active, created_at, updated_at`

// List returns contents matching the filter, module then order ascending.
func (r *ContentRepository) List(ctx context.Context, filter models.ContentFilter) ([]models.Content, int, error) {
	clause := " WHERE 1=1"
	args := []interface{}{}

	if filter.Module != "" {
		clause += fmt.Sprintf(" AND module = $%d", len(args)+1)
		args = append(args, filter.Module)
	}
	if filter.IsActive != nil {
		clause += fmt.Sprintf(" AND is_active = $%d", len(args)+1)
		args = append(args, *filter.IsActive)
	}
	if filter.Search != "" {
		clause += fmt.Sprintf(" AND (title ILIKE $%d OR description ILIKE $%d)", len(args)+1, len(args)+1)
		args = append(args, "%"+filter.Search+"%")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM contents"+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count contents: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 10
	}
	if pageSize > 100 {
		pageSize = 100
	}

	query := fmt.Sprintf("SELECT %s FROM contents%s ORDER BY module ASC, sort_order ASC LIMIT $%d OFFSET $%d",
		contentColumns, clause, len(args)+1, len(args)+2)
	args = append(args, pageSize, (page-1)*pageSize)

	var contents []models.Content
	if err := r.db.SelectContext(ctx, &contents, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list contents: %w", err)
	}
	return contents, total, nil
}

// FindByID returns a single content row.
func (r *ContentRepository) FindByID(ctx context.Context, id string) (*models.Content, error) {
	var content models.Content
	query := fmt.Sprintf("SELECT %s FROM contents WHERE id = $1", contentColumns)
	if err := r.db.GetContext(ctx, &content, query, id); err != nil {
		return nil, err
	}
	return &content, nil
}

// ExistsByModuleOrder reports whether another content occupies the same
// (module, order) slot. excludeID skips the row being updated.
func (r *ContentRepository) ExistsByModuleOrder(ctx context.Context, module models.ClassLevel, order int, excludeID string) (bool, error) {
	query := "SELECT 1 FROM contents WHERE module = $1 AND sort_order = $2"
	args := []interface{}{module, order}
	if excludeID != "" {
		query += " AND id != $3"
		args = append(args, excludeID)
	}
	query += " LIMIT 1"

	var exists int
	err := r.db.GetContext(ctx, &exists, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check content slot: %w", err)
	}
	return true, nil
}

// ListByModule returns all contents of a module ordered by sort_order.
func (r *ContentRepository) ListByModule(ctx context.Context, module models.ClassLevel) ([]models.Content, error) {
	query := fmt.Sprintf("SELECT %s FROM contents WHERE module = $1 ORDER BY sort_order ASC", contentColumns)
	var contents []models.Content
	if err := r.db.SelectContext(ctx, &contents, query, module); err != nil {
		return nil, fmt.Errorf("list module contents: %w", err)
	}
	return contents, nil
}

// Create inserts a new content.
func (r *ContentRepository) Create(ctx context.Context, content *models.Content) error {
	content.ID = uuid.NewString()
	now := time.Now().UTC()
	content.CreatedAt = now
	content.UpdatedAt = now

	const query = `INSERT INTO contents (id, title, description, module, sort_order, presentation_url, students_pdf_url, homework_url, is_active, created_at, updated_at)
        VALUES (:id, :title, :description, :module, :sort_order, :presentation_url, :students_pdf_url, :homework_url, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, content); err != nil {
		return fmt.Errorf("create content: %w", err)
	}
	return nil
}

// Update rewrites a content row.
func (r *ContentRepository) Update(ctx context.Context, content *models.Content) error {
	content.UpdatedAt = time.Now().UTC()

	const query = `UPDATE contents SET title = :title, description = :description, module = :module, sort_order = :sort_order,
        presentation_url = :presentation_url, students_pdf_url = :students_pdf_url, homework_url = :homework_url,
        is_active = :is_active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, content); err != nil {
		return fmt.Errorf("update content: %w", err)
	}
	return nil
}

// Delete removes a content row.
func (r *ContentRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM contents WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete content: %w", err)
	}
	return nil
}

// CountActive returns the number of active contents.
func (r *ContentRepository) CountActive(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM contents WHERE is_active"); err != nil {
		return 0, fmt.Errorf("count contents: %w", err)
	}
	return count, nil
}
