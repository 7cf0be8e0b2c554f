package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fluentia/tutor-admin-api/internal/models"
	appErrors "github.com/fluentia/tutor-admin-api/pkg/errors"
)

const (
	dashboardCacheKey  = "dashboard:stats"
	recentActivityFeed = 5
	recentActivityMax  = 10
	recentWindow       = 7 * 24 * time.Hour
)

type dashboardUserRepository interface {
	CountByRole(ctx context.Context, role models.UserRole) (int, error)
}

type dashboardClassRepository interface {
	CountAll(ctx context.Context) (int, error)
	CountActive(ctx context.Context) (int, error)
}

type dashboardContentRepository interface {
	CountActive(ctx context.Context) (int, error)
}

type dashboardEnrollmentRepository interface {
	CountActive(ctx context.Context) (int, error)
	CountActiveSince(ctx context.Context, since time.Time) (int, error)
	RecentActive(ctx context.Context, limit int) ([]models.EnrollmentDetail, error)
}

type dashboardAttendanceRepository interface {
	CountAll(ctx context.Context) (int, error)
	CountByStatus(ctx context.Context, status models.AttendanceStatus) (int, error)
}

type dashboardPaymentRepository interface {
	StatusBreakdown(ctx context.Context) ([]models.PaymentStatusBreakdown, error)
	SumPaidForPeriod(ctx context.Context, month, year int) (decimal.Decimal, error)
	RecentWithStudent(ctx context.Context, limit int) ([]models.PaymentDetail, error)
}

type overdueSweeper interface {
	SweepOverdue(ctx context.Context) (int64, error)
}

// DashboardService composes the cross-entity snapshot for the admin
// dashboard, with a short-lived Redis cache in front of it.
type DashboardService struct {
	users       dashboardUserRepository
	classes     dashboardClassRepository
	contents    dashboardContentRepository
	enrollments dashboardEnrollmentRepository
	attendance  dashboardAttendanceRepository
	payments    dashboardPaymentRepository
	sweeper     overdueSweeper
	cache       *CacheService
	cacheTTL    time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

// NewDashboardService constructs the dashboard service.
func NewDashboardService(users dashboardUserRepository, classes dashboardClassRepository, contents dashboardContentRepository, enrollments dashboardEnrollmentRepository, attendance dashboardAttendanceRepository, payments dashboardPaymentRepository, sweeper overdueSweeper, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		users:       users,
		classes:     classes,
		contents:    contents,
		enrollments: enrollments,
		attendance:  attendance,
		payments:    payments,
		sweeper:     sweeper,
		cache:       cache,
		cacheTTL:    cacheTTL,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Stats returns the dashboard snapshot, served from cache when fresh.
func (s *DashboardService) Stats(ctx context.Context) (*models.DashboardStats, error) {
	var cached models.DashboardStats
	if hit, err := s.cache.Get(ctx, dashboardCacheKey, &cached); err == nil && hit {
		return &cached, nil
	}

	if s.sweeper != nil {
		if _, err := s.sweeper.SweepOverdue(ctx); err != nil {
			s.logger.Warn("overdue sweep failed before dashboard compose", zap.Error(err))
		}
	}

	stats, err := s.compose(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, dashboardCacheKey, stats, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache dashboard stats", zap.Error(err))
	}
	return stats, nil
}

// Invalidate drops the cached snapshot, for callers that mutate the data it
// aggregates.
func (s *DashboardService) Invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, dashboardCacheKey); err != nil {
		s.logger.Warn("failed to invalidate dashboard cache", zap.Error(err))
	}
}

func (s *DashboardService) compose(ctx context.Context) (*models.DashboardStats, error) {
	stats := &models.DashboardStats{}

	var err error
	if stats.TotalStudents, err = s.users.CountByRole(ctx, models.RoleStudent); err != nil {
		return nil, s.composeErr(err, "students")
	}
	if stats.TotalConsultants, err = s.users.CountByRole(ctx, models.RoleConsultant); err != nil {
		return nil, s.composeErr(err, "consultants")
	}
	if stats.TotalContents, err = s.contents.CountActive(ctx); err != nil {
		return nil, s.composeErr(err, "contents")
	}
	if stats.TotalClasses, err = s.classes.CountAll(ctx); err != nil {
		return nil, s.composeErr(err, "classes")
	}
	if stats.ActiveClasses, err = s.classes.CountActive(ctx); err != nil {
		return nil, s.composeErr(err, "active classes")
	}
	if stats.TotalEnrollments, err = s.enrollments.CountActive(ctx); err != nil {
		return nil, s.composeErr(err, "enrollments")
	}
	if stats.RecentEnrollments, err = s.enrollments.CountActiveSince(ctx, s.now().Add(-recentWindow)); err != nil {
		return nil, s.composeErr(err, "recent enrollments")
	}

	totalAttendance, err := s.attendance.CountAll(ctx)
	if err != nil {
		return nil, s.composeErr(err, "attendance")
	}
	if totalAttendance > 0 {
		present, err := s.attendance.CountByStatus(ctx, models.AttendancePresent)
		if err != nil {
			return nil, s.composeErr(err, "attendance")
		}
		stats.AttendanceRate = int(math.Round(float64(present) / float64(totalAttendance) * 100))
	}

	breakdown, err := s.payments.StatusBreakdown(ctx)
	if err != nil {
		return nil, s.composeErr(err, "payments")
	}
	for _, row := range breakdown {
		switch row.Status {
		case models.PaymentPaid:
			stats.PaidPayments = row.Count
			stats.TotalRevenue = row.Sum
		case models.PaymentPending:
			stats.PendingPayments = row.Count
		case models.PaymentOverdue:
			stats.OverduePayments = row.Count
		}
	}

	now := s.now()
	if stats.MonthlyRevenue, err = s.payments.SumPaidForPeriod(ctx, int(now.Month()), now.Year()); err != nil {
		return nil, s.composeErr(err, "monthly revenue")
	}

	if stats.RecentActivity, err = s.recentActivity(ctx); err != nil {
		return nil, err
	}
	return stats, nil
}

// recentActivity merges the latest payments and enrollments into one feed,
// newest first, capped at ten entries.
func (s *DashboardService) recentActivity(ctx context.Context) ([]models.ActivityEntry, error) {
	payments, err := s.payments.RecentWithStudent(ctx, recentActivityFeed)
	if err != nil {
		return nil, s.composeErr(err, "recent payments")
	}
	enrollments, err := s.enrollments.RecentActive(ctx, recentActivityFeed)
	if err != nil {
		return nil, s.composeErr(err, "recent enrollments")
	}

	entries := make([]models.ActivityEntry, 0, len(payments)+len(enrollments))
	for _, payment := range payments {
		entries = append(entries, models.ActivityEntry{
			ID:          payment.ID,
			Type:        models.ActivityPayment,
			Description: fmt.Sprintf("Payment of %s from %s", payment.Amount.StringFixed(2), payment.StudentName),
			Date:        payment.CreatedAt,
		})
	}
	for _, enrollment := range enrollments {
		entries = append(entries, models.ActivityEntry{
			ID:          enrollment.ID,
			Type:        models.ActivityEnrollment,
			Description: fmt.Sprintf("%s enrolled in %s", enrollment.StudentName, enrollment.ClassName),
			Date:        enrollment.EnrolledAt,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Date.After(entries[j].Date)
	})
	if len(entries) > recentActivityMax {
		entries = entries[:recentActivityMax]
	}
	return entries, nil
}

func (s *DashboardService) composeErr(err error, part string) error {
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load dashboard "+part)
}
