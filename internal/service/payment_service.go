package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fluentia/tutor-admin-api/internal/models"
	appErrors "github.com/fluentia/tutor-admin-api/pkg/errors"
	"github.com/fluentia/tutor-admin-api/pkg/export"
)

type paymentRepository interface {
	SweepOverdue(ctx context.Context, now time.Time) (int64, error)
	List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Payment, error)
	FindDetailByID(ctx context.Context, id string) (*models.PaymentDetail, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.PaymentDetail, error)
	Create(ctx context.Context, payment *models.Payment) error
	BulkCreate(ctx context.Context, payments []*models.Payment) error
	Update(ctx context.Context, payment *models.Payment) error
	MarkPaid(ctx context.Context, id string, paidDate time.Time) error
	Delete(ctx context.Context, id string) error
	StatusBreakdown(ctx context.Context) ([]models.PaymentStatusBreakdown, error)
}

type paymentUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type paymentClassRepository interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

type paymentEnrollmentRepository interface {
	ListActiveByClass(ctx context.Context, classID string) ([]models.EnrollmentDetail, error)
}

// CreatePaymentRequest holds payload for creating payments.
type CreatePaymentRequest struct {
	StudentID      string          `json:"student_id" validate:"required"`
	ClassID        *string         `json:"class_id"`
	Amount         decimal.Decimal `json:"amount" validate:"required"`
	Description    string          `json:"description" validate:"required"`
	DueDate        time.Time       `json:"due_date" validate:"required"`
	ReferenceMonth int             `json:"reference_month" validate:"required,min=1,max=12"`
	ReferenceYear  int             `json:"reference_year" validate:"required,min=2000"`
	Notes          *string         `json:"notes"`
}

// UpdatePaymentRequest holds payload for updating payments. Nil fields are
// left untouched.
type UpdatePaymentRequest struct {
	Amount         *decimal.Decimal      `json:"amount"`
	Description    *string               `json:"description"`
	Status         *models.PaymentStatus `json:"status"`
	DueDate        *time.Time            `json:"due_date"`
	PaidDate       *time.Time            `json:"paid_date"`
	ReferenceMonth *int                  `json:"reference_month" validate:"omitempty,min=1,max=12"`
	ReferenceYear  *int                  `json:"reference_year" validate:"omitempty,min=2000"`
	Notes          *string               `json:"notes"`
}

// MarkPaidRequest holds the optional paid date and notes for settling a
// payment.
type MarkPaidRequest struct {
	PaidDate *time.Time `json:"paid_date"`
	Notes    *string    `json:"notes"`
}

// BulkPaymentRequest creates one payment per actively enrolled student of a
// class from a shared template.
type BulkPaymentRequest struct {
	ClassID        string          `json:"class_id" validate:"required"`
	Amount         decimal.Decimal `json:"amount" validate:"required"`
	Description    string          `json:"description" validate:"required"`
	DueDate        time.Time       `json:"due_date" validate:"required"`
	ReferenceMonth int             `json:"reference_month" validate:"required,min=1,max=12"`
	ReferenceYear  int             `json:"reference_year" validate:"required,min=2000"`
	Notes          *string         `json:"notes"`
}

// SweepTrigger records what caused a queued sweep run.
type SweepTrigger string

const (
	SweepTriggerStartup   SweepTrigger = "startup"
	SweepTriggerScheduled SweepTrigger = "scheduled"
)

// SweepJob is the payload carried by queued overdue-sweep jobs.
type SweepJob struct {
	Trigger     SweepTrigger `json:"trigger"`
	RequestedAt time.Time    `json:"requested_at"`
}

// PaymentService handles billing use-cases. Every read path runs the overdue
// sweep first so PENDING rows past their due date are never served stale.
type PaymentService struct {
	payments    paymentRepository
	users       paymentUserRepository
	classes     paymentClassRepository
	enrollments paymentEnrollmentRepository
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewPaymentService constructs the payment service.
func NewPaymentService(payments paymentRepository, users paymentUserRepository, classes paymentClassRepository, enrollments paymentEnrollmentRepository, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *PaymentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{
		payments:    payments,
		users:       users,
		classes:     classes,
		enrollments: enrollments,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SweepOverdue flips due PENDING payments to OVERDUE. Safe to run at any
// time, from request paths and the background ticker alike.
func (s *PaymentService) SweepOverdue(ctx context.Context) (int64, error) {
	updated, err := s.payments.SweepOverdue(ctx, s.now())
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sweep overdue payments")
	}
	s.metrics.RecordSweep(updated)
	if updated > 0 {
		s.logger.Info("payments marked overdue", zap.Int64("count", updated))
	}
	return updated, nil
}

func (s *PaymentService) sweepQuietly(ctx context.Context) {
	if _, err := s.SweepOverdue(ctx); err != nil {
		s.logger.Warn("overdue sweep failed", zap.Error(err))
	}
}

// List returns payments matching the filter, sweeping first.
func (s *PaymentService) List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, *models.Pagination, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid payment status")
	}
	s.sweepQuietly(ctx)

	payments, total, err := s.payments.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 10
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return payments, pagination, nil
}

// Get returns a single payment with detail, sweeping first.
func (s *PaymentService) Get(ctx context.Context, id string) (*models.PaymentDetail, error) {
	s.sweepQuietly(ctx)

	payment, err := s.payments.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	return payment, nil
}

// ListByStudent returns a student's payments, sweeping first.
func (s *PaymentService) ListByStudent(ctx context.Context, studentID string) ([]models.PaymentDetail, error) {
	if _, err := s.users.FindByID(ctx, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	s.sweepQuietly(ctx)

	payments, err := s.payments.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	return payments, nil
}

// Create registers a PENDING payment for a student.
func (s *PaymentService) Create(ctx context.Context, req CreatePaymentRequest) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	if req.Amount.Sign() <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "amount must be positive")
	}

	student, err := s.users.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "user is not a student")
	}

	if req.ClassID != nil {
		if _, err := s.classes.FindByID(ctx, *req.ClassID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
		}
	}

	payment := &models.Payment{
		StudentID:      req.StudentID,
		ClassID:        req.ClassID,
		Amount:         req.Amount,
		Description:    req.Description,
		Status:         models.PaymentPending,
		DueDate:        req.DueDate,
		ReferenceMonth: req.ReferenceMonth,
		ReferenceYear:  req.ReferenceYear,
		Notes:          req.Notes,
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create payment")
	}
	return payment, nil
}

// Update modifies a payment.
func (s *PaymentService) Update(ctx context.Context, id string, req UpdatePaymentRequest) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}

	payment, err := s.payments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}

	if req.Amount != nil {
		if req.Amount.Sign() <= 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "amount must be positive")
		}
		payment.Amount = *req.Amount
	}
	if req.Description != nil {
		payment.Description = *req.Description
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid payment status")
		}
		payment.Status = *req.Status
	}
	if req.DueDate != nil {
		payment.DueDate = *req.DueDate
	}
	if req.PaidDate != nil {
		payment.PaidDate = req.PaidDate
	}
	if req.ReferenceMonth != nil {
		payment.ReferenceMonth = *req.ReferenceMonth
	}
	if req.ReferenceYear != nil {
		payment.ReferenceYear = *req.ReferenceYear
	}
	if req.Notes != nil {
		payment.Notes = req.Notes
	}

	if err := s.payments.Update(ctx, payment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update payment")
	}
	return payment, nil
}

// MarkPaid settles a payment regardless of its current status.
func (s *PaymentService) MarkPaid(ctx context.Context, id string, req MarkPaidRequest) (*models.Payment, error) {
	payment, err := s.payments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}

	paidDate := s.now()
	if req.PaidDate != nil {
		paidDate = *req.PaidDate
	}
	if req.Notes != nil {
		payment.Notes = req.Notes
		payment.Status = models.PaymentPaid
		payment.PaidDate = &paidDate
		if err := s.payments.Update(ctx, payment); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark payment paid")
		}
		return payment, nil
	}

	if err := s.payments.MarkPaid(ctx, id, paidDate); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark payment paid")
	}
	payment.Status = models.PaymentPaid
	payment.PaidDate = &paidDate
	return payment, nil
}

// Delete removes a payment.
func (s *PaymentService) Delete(ctx context.Context, id string) error {
	if _, err := s.payments.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	if err := s.payments.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete payment")
	}
	return nil
}

// CreateBulk creates one payment per actively enrolled student of a class.
// The batch inserts in one transaction; either every student gets a payment
// or none do.
func (s *PaymentService) CreateBulk(ctx context.Context, req BulkPaymentRequest) (*models.BulkPaymentResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk payment payload")
	}
	if req.Amount.Sign() <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "amount must be positive")
	}

	if _, err := s.classes.FindByID(ctx, req.ClassID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	enrollments, err := s.enrollments.ListActiveByClass(ctx, req.ClassID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	if len(enrollments) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "class has no active enrollments")
	}

	payments := make([]*models.Payment, 0, len(enrollments))
	affected := make([]models.UserInfo, 0, len(enrollments))
	classID := req.ClassID
	for _, enrollment := range enrollments {
		payments = append(payments, &models.Payment{
			StudentID:      enrollment.StudentID,
			ClassID:        &classID,
			Amount:         req.Amount,
			Description:    req.Description,
			Status:         models.PaymentPending,
			DueDate:        req.DueDate,
			ReferenceMonth: req.ReferenceMonth,
			ReferenceYear:  req.ReferenceYear,
			Notes:          req.Notes,
		})
		affected = append(affected, models.UserInfo{
			ID:       enrollment.StudentID,
			Email:    enrollment.StudentEmail,
			FullName: enrollment.StudentName,
		})
	}

	if err := s.payments.BulkCreate(ctx, payments); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create payments")
	}
	return &models.BulkPaymentResult{PaymentsCreated: len(payments), StudentsAffected: affected}, nil
}

// Stats aggregates payment counts and decimal sums by status, sweeping first.
func (s *PaymentService) Stats(ctx context.Context) (*models.PaymentStats, error) {
	s.sweepQuietly(ctx)

	breakdown, err := s.payments.StatusBreakdown(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment stats")
	}

	stats := &models.PaymentStats{}
	for _, row := range breakdown {
		stats.TotalPayments += row.Count
		stats.TotalAmount = stats.TotalAmount.Add(row.Sum)
		switch row.Status {
		case models.PaymentPaid:
			stats.PaidPayments = row.Count
			stats.PaidAmount = row.Sum
		case models.PaymentPending:
			stats.PendingPayments = row.Count
			stats.PendingAmount = row.Sum
		case models.PaymentOverdue:
			stats.OverduePayments = row.Count
			stats.OverdueAmount = row.Sum
		}
	}
	return stats, nil
}

// Export renders the filtered payment list as a tabular dataset.
func (s *PaymentService) Export(ctx context.Context, filter models.PaymentFilter) (export.Dataset, error) {
	filter.Page = 1
	filter.PageSize = 100
	payments, _, err := s.List(ctx, filter)
	if err != nil {
		return export.Dataset{}, err
	}

	rows := make([][]string, 0, len(payments))
	for _, payment := range payments {
		className := ""
		if payment.ClassName != nil {
			className = *payment.ClassName
		}
		paidDate := ""
		if payment.PaidDate != nil {
			paidDate = payment.PaidDate.Format("2006-01-02")
		}
		rows = append(rows, []string{
			payment.StudentName,
			className,
			payment.Description,
			payment.Amount.StringFixed(2),
			string(payment.Status),
			payment.DueDate.Format("2006-01-02"),
			paidDate,
			fmt.Sprintf("%02d/%d", payment.ReferenceMonth, payment.ReferenceYear),
		})
	}

	return export.Dataset{
		Headers: []string{"Student", "Class", "Description", "Amount", "Status", "Due Date", "Paid Date", "Reference"},
		Rows:    rows,
	}, nil
}
