package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ActivityType tags entries in the recent-activity feed.
type ActivityType string

const (
	ActivityPayment    ActivityType = "payment"
	ActivityEnrollment ActivityType = "enrollment"
)

// ActivityEntry is the uniform shape both activity streams map into.
type ActivityEntry struct {
	ID          string       `json:"id"`
	Type        ActivityType `json:"type"`
	Description string       `json:"description"`
	Date        time.Time    `json:"date"`
}

// DashboardStats is the cross-entity snapshot served to the dashboard.
type DashboardStats struct {
	TotalStudents     int             `json:"total_students"`
	TotalConsultants  int             `json:"total_consultants"`
	TotalContents     int             `json:"total_contents"`
	TotalClasses      int             `json:"total_classes"`
	ActiveClasses     int             `json:"active_classes"`
	TotalEnrollments  int             `json:"total_enrollments"`
	RecentEnrollments int             `json:"recent_enrollments"`
	AttendanceRate    int             `json:"attendance_rate"`
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	MonthlyRevenue    decimal.Decimal `json:"monthly_revenue"`
	PaidPayments      int             `json:"paid_payments"`
	PendingPayments   int             `json:"pending_payments"`
	OverduePayments   int             `json:"overdue_payments"`
	RecentActivity    []ActivityEntry `json:"recent_activity"`
}
