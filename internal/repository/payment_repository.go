package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/fluentia/tutor-admin-api/internal/models"
)

// PaymentRepository handles persistence of payments.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentDetailColumns = `p.id, p.student_id, p.class_id, p.amount, p.description, p.status, p.due_date,
    p.paid_date, p.reference_month, p.reference_year, p.notes, p.created_at, p.updated_at,
    u.full_name AS student_name, u.email AS student_email, c.name AS class_name`

var paymentSortColumns = map[string]string{
	"dueDate":   "p.due_date",
	"paidDate":  "p.paid_date",
	"amount":    "p.amount",
	"createdAt": "p.created_at",
}

// SweepOverdue flips every pending payment whose due date has passed to
// OVERDUE and returns how many rows changed.
func (r *PaymentRepository) SweepOverdue(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE payments SET status = $1, updated_at = $2 WHERE status = $3 AND due_date < $2",
		models.PaymentOverdue, now, models.PaymentPending)
	if err != nil {
		return 0, fmt.Errorf("sweep overdue payments: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sweep overdue payments: %w", err)
	}
	return affected, nil
}

// List returns payments matching the filter with student and class detail.
func (r *PaymentRepository) List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, int, error) {
	clause := " WHERE 1=1"
	args := []interface{}{}

	if filter.Status != "" {
		clause += fmt.Sprintf(" AND p.status = $%d", len(args)+1)
		args = append(args, filter.Status)
	}
	if filter.StudentID != "" {
		clause += fmt.Sprintf(" AND p.student_id = $%d", len(args)+1)
		args = append(args, filter.StudentID)
	}
	if filter.ClassID != "" {
		clause += fmt.Sprintf(" AND p.class_id = $%d", len(args)+1)
		args = append(args, filter.ClassID)
	}
	if filter.ReferenceMonth != 0 {
		clause += fmt.Sprintf(" AND p.reference_month = $%d", len(args)+1)
		args = append(args, filter.ReferenceMonth)
	}
	if filter.ReferenceYear != 0 {
		clause += fmt.Sprintf(" AND p.reference_year = $%d", len(args)+1)
		args = append(args, filter.ReferenceYear)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM payments p"+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}

	sortColumn, ok := paymentSortColumns[filter.SortBy]
	if !ok {
		sortColumn = "p.due_date"
	}
	sortOrder := "DESC"
	if strings.EqualFold(filter.SortOrder, "asc") {
		sortOrder = "ASC"
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

	query := fmt.Sprintf(`SELECT %s FROM payments p
        JOIN users u ON u.id = p.student_id
        LEFT JOIN classes c ON c.id = p.class_id%s
        ORDER BY %s %s LIMIT $%d OFFSET $%d`,
		paymentDetailColumns, clause, sortColumn, sortOrder, len(args)+1, len(args)+2)
	args = append(args, pageSize, (page-1)*pageSize)

	var payments []models.PaymentDetail
	if err := r.db.SelectContext(ctx, &payments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}
	return payments, total, nil
}

// FindByID returns a bare payment row.
func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	const query = `SELECT id, student_id, class_id, amount, description, status, due_date, paid_date,
        reference_month, reference_year, notes, created_at, updated_at FROM payments WHERE id = $1`
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		return nil, err
	}
	return &payment, nil
}

// FindDetailByID returns a payment with student and class info.
func (r *PaymentRepository) FindDetailByID(ctx context.Context, id string) (*models.PaymentDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments p
        JOIN users u ON u.id = p.student_id
        LEFT JOIN classes c ON c.id = p.class_id
        WHERE p.id = $1`, paymentDetailColumns)
	var payment models.PaymentDetail
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		return nil, err
	}
	return &payment, nil
}

// ListByStudent returns every payment of a student, most recent due first.
func (r *PaymentRepository) ListByStudent(ctx context.Context, studentID string) ([]models.PaymentDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments p
        JOIN users u ON u.id = p.student_id
        LEFT JOIN classes c ON c.id = p.class_id
        WHERE p.student_id = $1
        ORDER BY p.due_date DESC`, paymentDetailColumns)
	var payments []models.PaymentDetail
	if err := r.db.SelectContext(ctx, &payments, query, studentID); err != nil {
		return nil, fmt.Errorf("list student payments: %w", err)
	}
	return payments, nil
}

// Create inserts a new payment.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	payment.ID = uuid.NewString()
	now := time.Now().UTC()
	payment.CreatedAt = now
	payment.UpdatedAt = now

	const query = `INSERT INTO payments (id, student_id, class_id, amount, description, status, due_date, paid_date,
        reference_month, reference_year, notes, created_at, updated_at)
        VALUES (:id, :student_id, :class_id, :amount, :description, :status, :due_date, :paid_date,
        :reference_month, :reference_year, :notes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, payment); err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// BulkCreate inserts a batch of payments in a single transaction.
func (r *PaymentRepository) BulkCreate(ctx context.Context, payments []*models.Payment) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bulk payment tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `INSERT INTO payments (id, student_id, class_id, amount, description, status, due_date, paid_date,
        reference_month, reference_year, notes, created_at, updated_at)
        VALUES (:id, :student_id, :class_id, :amount, :description, :status, :due_date, :paid_date,
        :reference_month, :reference_year, :notes, :created_at, :updated_at)`
	now := time.Now().UTC()
	for _, payment := range payments {
		payment.ID = uuid.NewString()
		payment.CreatedAt = now
		payment.UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, query, payment); err != nil {
			return fmt.Errorf("bulk create payment: %w", err)
		}
	}
	return tx.Commit()
}

// Update rewrites a payment row.
func (r *PaymentRepository) Update(ctx context.Context, payment *models.Payment) error {
	payment.UpdatedAt = time.Now().UTC()

	const query = `UPDATE payments SET student_id = :student_id, class_id = :class_id, amount = :amount,
        description = :description, status = :status, due_date = :due_date, paid_date = :paid_date,
        reference_month = :reference_month, reference_year = :reference_year, notes = :notes,
        updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, payment); err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	return nil
}

// MarkPaid sets the payment to PAID with the given paid date.
func (r *PaymentRepository) MarkPaid(ctx context.Context, id string, paidDate time.Time) error {
	if _, err := r.db.ExecContext(ctx,
		"UPDATE payments SET status = $1, paid_date = $2, updated_at = $3 WHERE id = $4",
		models.PaymentPaid, paidDate, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("mark payment paid: %w", err)
	}
	return nil
}

// Delete removes a payment row.
func (r *PaymentRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM payments WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}
	return nil
}

// StatusBreakdown aggregates payment counts and sums grouped by status.
func (r *PaymentRepository) StatusBreakdown(ctx context.Context) ([]models.PaymentStatusBreakdown, error) {
	const query = `SELECT status, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS sum FROM payments GROUP BY status`
	var rows []models.PaymentStatusBreakdown
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("payment status breakdown: %w", err)
	}
	return rows, nil
}

// SumPaidForPeriod returns the paid total for a reference month and year.
func (r *PaymentRepository) SumPaidForPeriod(ctx context.Context, month, year int) (decimal.Decimal, error) {
	var sum decimal.Decimal
	const query = `SELECT COALESCE(SUM(amount), 0) FROM payments WHERE status = $1 AND reference_month = $2 AND reference_year = $3`
	if err := r.db.GetContext(ctx, &sum, query, models.PaymentPaid, month, year); err != nil {
		return decimal.Zero, fmt.Errorf("sum paid payments: %w", err)
	}
	return sum, nil
}

// RecentWithStudent returns the most recently created payments with student
// names, for the activity feed.
func (r *PaymentRepository) RecentWithStudent(ctx context.Context, limit int) ([]models.PaymentDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments p
        JOIN users u ON u.id = p.student_id
        LEFT JOIN classes c ON c.id = p.class_id
        ORDER BY p.created_at DESC LIMIT $1`, paymentDetailColumns)
	var payments []models.PaymentDetail
	if err := r.db.SelectContext(ctx, &payments, query, limit); err != nil {
		return nil, fmt.Errorf("recent payments: %w", err)
	}
	return payments, nil
}
