package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the lifecycle state of a payment. PENDING transitions to
// OVERDUE automatically once the due date passes; PAID and CANCELLED are
// terminal as far as the sweep is concerned.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentPaid      PaymentStatus = "PAID"
	PaymentOverdue   PaymentStatus = "OVERDUE"
	PaymentCancelled PaymentStatus = "CANCELLED"
)

// Valid reports whether the status is a supported value.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentOverdue, PaymentCancelled:
		return true
	default:
		return false
	}
}

// Payment is a billing record for a student, optionally tied to a class.
// Amount stays decimal end to end; JSON encodes it as a plain number.
type Payment struct {
	ID             string          `db:"id" json:"id"`
	StudentID      string          `db:"student_id" json:"student_id"`
	ClassID        *string         `db:"class_id" json:"class_id,omitempty"`
	Amount         decimal.Decimal `db:"amount" json:"amount"`
	Description    string          `db:"description" json:"description"`
	Status         PaymentStatus   `db:"status" json:"status"`
	DueDate        time.Time       `db:"due_date" json:"due_date"`
	PaidDate       *time.Time      `db:"paid_date" json:"paid_date,omitempty"`
	ReferenceMonth int             `db:"reference_month" json:"reference_month"`
	ReferenceYear  int             `db:"reference_year" json:"reference_year"`
	Notes          *string         `db:"notes" json:"notes,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// PaymentDetail enriches Payment with student and class info.
type PaymentDetail struct {
	Payment
	StudentName  string  `db:"student_name" json:"student_name"`
	StudentEmail string  `db:"student_email" json:"student_email"`
	ClassName    *string `db:"class_name" json:"class_name,omitempty"`
}

// PaymentFilter captures list criteria for payments.
type PaymentFilter struct {
	Status         PaymentStatus
	StudentID      string
	ClassID        string
	ReferenceMonth int
	ReferenceYear  int
	SortBy         string
	SortOrder      string
	Page           int
	PageSize       int
}

// PaymentStats aggregates counts and decimal sums per status.
type PaymentStats struct {
	TotalPayments   int             `json:"total_payments"`
	PaidPayments    int             `json:"paid_payments"`
	PendingPayments int             `json:"pending_payments"`
	OverduePayments int             `json:"overdue_payments"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	PaidAmount      decimal.Decimal `json:"paid_amount"`
	PendingAmount   decimal.Decimal `json:"pending_amount"`
	OverdueAmount   decimal.Decimal `json:"overdue_amount"`
}

// PaymentStatusBreakdown is one row of the grouped status aggregation.
type PaymentStatusBreakdown struct {
	Status PaymentStatus   `db:"status" json:"status"`
	Count  int             `db:"count" json:"count"`
	Sum    decimal.Decimal `db:"sum" json:"sum"`
}

// BulkPaymentResult reports the outcome of a bulk creation.
type BulkPaymentResult struct {
	PaymentsCreated  int        `json:"payments_created"`
	StudentsAffected []UserInfo `json:"students_affected"`
}
