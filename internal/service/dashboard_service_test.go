package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fluentia/tutor-admin-api/internal/models"
)

type mockUserCounter struct {
	byRole map[models.UserRole]int
}

func (m *mockUserCounter) CountByRole(ctx context.Context, role models.UserRole) (int, error) {
	return m.byRole[role], nil
}

type mockClassCounter struct {
	total  int
	active int
}

func (m *mockClassCounter) CountAll(ctx context.Context) (int, error)    { return m.total, nil }
func (m *mockClassCounter) CountActive(ctx context.Context) (int, error) { return m.active, nil }

type mockContentCounter struct {
	active int
}

func (m *mockContentCounter) CountActive(ctx context.Context) (int, error) { return m.active, nil }

type mockEnrollmentStats struct {
	active int
	recent int
	feed   []models.EnrollmentDetail
}

func (m *mockEnrollmentStats) CountActive(ctx context.Context) (int, error) { return m.active, nil }

func (m *mockEnrollmentStats) CountActiveSince(ctx context.Context, since time.Time) (int, error) {
	return m.recent, nil
}

func (m *mockEnrollmentStats) RecentActive(ctx context.Context, limit int) ([]models.EnrollmentDetail, error) {
	if len(m.feed) > limit {
		return m.feed[:limit], nil
	}
	return m.feed, nil
}

type mockAttendanceStats struct {
	total   int
	present int
}

func (m *mockAttendanceStats) CountAll(ctx context.Context) (int, error) { return m.total, nil }

func (m *mockAttendanceStats) CountByStatus(ctx context.Context, status models.AttendanceStatus) (int, error) {
	if status == models.AttendancePresent {
		return m.present, nil
	}
	return 0, nil
}

type mockPaymentStats struct {
	breakdown []models.PaymentStatusBreakdown
	monthly   decimal.Decimal
	feed      []models.PaymentDetail
}

func (m *mockPaymentStats) StatusBreakdown(ctx context.Context) ([]models.PaymentStatusBreakdown, error) {
	return m.breakdown, nil
}

func (m *mockPaymentStats) SumPaidForPeriod(ctx context.Context, month, year int) (decimal.Decimal, error) {
	return m.monthly, nil
}

func (m *mockPaymentStats) RecentWithStudent(ctx context.Context, limit int) ([]models.PaymentDetail, error) {
	if len(m.feed) > limit {
		return m.feed[:limit], nil
	}
	return m.feed, nil
}

type mockSweeper struct {
	calls int
}

func (m *mockSweeper) SweepOverdue(ctx context.Context) (int64, error) {
	m.calls++
	return 0, nil
}

type memoryCacheRepo struct {
	entries map[string][]byte
	sets    int
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	return cacheDecode(m.entries, key, dest)
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if m.entries == nil {
		m.entries = make(map[string][]byte)
	}
	m.sets++
	return cacheEncode(m.entries, key, value)
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	m.entries = nil
	return nil
}

func newDashboardService(users *mockUserCounter, classes *mockClassCounter, contents *mockContentCounter, enrollments *mockEnrollmentStats, attendance *mockAttendanceStats, payments *mockPaymentStats, sweeper *mockSweeper, cache *CacheService, now time.Time) *DashboardService {
	svc := NewDashboardService(users, classes, contents, enrollments, attendance, payments, sweeper, cache, time.Minute, zap.NewNop())
	svc.now = func() time.Time { return now }
	return svc
}

func TestDashboardServiceStatsComposes(t *testing.T) {
	now := mustTime(t, "2026-03-15T12:00:00Z")
	sweeper := &mockSweeper{}
	svc := newDashboardService(
		&mockUserCounter{byRole: map[models.UserRole]int{models.RoleStudent: 42, models.RoleConsultant: 5}},
		&mockClassCounter{total: 9, active: 7},
		&mockContentCounter{active: 30},
		&mockEnrollmentStats{active: 55, recent: 4},
		&mockAttendanceStats{total: 200, present: 165},
		&mockPaymentStats{
			breakdown: []models.PaymentStatusBreakdown{
				{Status: models.PaymentPaid, Count: 12, Sum: decimal.RequireFromString("4200.00")},
				{Status: models.PaymentPending, Count: 6, Sum: decimal.RequireFromString("2100.00")},
				{Status: models.PaymentOverdue, Count: 2, Sum: decimal.RequireFromString("700.00")},
			},
			monthly: decimal.RequireFromString("1050.00"),
		},
		sweeper, nil, now,
	)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sweeper.calls)
	assert.Equal(t, 42, stats.TotalStudents)
	assert.Equal(t, 5, stats.TotalConsultants)
	assert.Equal(t, 30, stats.TotalContents)
	assert.Equal(t, 9, stats.TotalClasses)
	assert.Equal(t, 7, stats.ActiveClasses)
	assert.Equal(t, 55, stats.TotalEnrollments)
	assert.Equal(t, 4, stats.RecentEnrollments)
	assert.Equal(t, 83, stats.AttendanceRate)
	assert.Equal(t, 12, stats.PaidPayments)
	assert.Equal(t, 6, stats.PendingPayments)
	assert.Equal(t, 2, stats.OverduePayments)
	assert.True(t, stats.TotalRevenue.Equal(decimal.RequireFromString("4200.00")))
	assert.True(t, stats.MonthlyRevenue.Equal(decimal.RequireFromString("1050.00")))
}

func TestDashboardServiceAttendanceRateEmpty(t *testing.T) {
	svc := newDashboardService(
		&mockUserCounter{},
		&mockClassCounter{},
		&mockContentCounter{},
		&mockEnrollmentStats{},
		&mockAttendanceStats{},
		&mockPaymentStats{},
		&mockSweeper{}, nil, mustTime(t, "2026-03-15T12:00:00Z"),
	)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.AttendanceRate)
}

func TestDashboardServiceAttendanceRateRounds(t *testing.T) {
	svc := newDashboardService(
		&mockUserCounter{},
		&mockClassCounter{},
		&mockContentCounter{},
		&mockEnrollmentStats{},
		&mockAttendanceStats{total: 3, present: 2},
		&mockPaymentStats{},
		&mockSweeper{}, nil, mustTime(t, "2026-03-15T12:00:00Z"),
	)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 67, stats.AttendanceRate)
}

func TestDashboardServiceRecentActivityMergedNewestFirst(t *testing.T) {
	base := mustTime(t, "2026-03-01T00:00:00Z")
	payments := make([]models.PaymentDetail, 0, 5)
	for i := 0; i < 5; i++ {
		payments = append(payments, models.PaymentDetail{
			Payment: models.Payment{
				ID:        fmt.Sprintf("pay-%d", i),
				Amount:    decimal.NewFromInt(int64(100 + i)),
				CreatedAt: base.Add(time.Duration(2*i) * time.Hour),
			},
			StudentName: "Alice",
		})
	}
	enrollments := make([]models.EnrollmentDetail, 0, 5)
	for i := 0; i < 5; i++ {
		enrollments = append(enrollments, models.EnrollmentDetail{
			Enrollment: models.Enrollment{
				ID:         fmt.Sprintf("enr-%d", i),
				EnrolledAt: base.Add(time.Duration(2*i+1) * time.Hour),
			},
			StudentName: "Bruno",
			ClassName:   "Business English",
		})
	}

	svc := newDashboardService(
		&mockUserCounter{},
		&mockClassCounter{},
		&mockContentCounter{},
		&mockEnrollmentStats{feed: enrollments},
		&mockAttendanceStats{},
		&mockPaymentStats{feed: payments},
		&mockSweeper{}, nil, mustTime(t, "2026-03-15T12:00:00Z"),
	)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	require.Len(t, stats.RecentActivity, 10)
	for i := 1; i < len(stats.RecentActivity); i++ {
		assert.False(t, stats.RecentActivity[i].Date.After(stats.RecentActivity[i-1].Date))
	}
	assert.Equal(t, "enr-4", stats.RecentActivity[0].ID)
	assert.Equal(t, models.ActivityEnrollment, stats.RecentActivity[0].Type)
	assert.Equal(t, "Bruno enrolled in Business English", stats.RecentActivity[0].Description)
	assert.Equal(t, "Payment of 104.00 from Alice", stats.RecentActivity[1].Description)
}

func TestDashboardServiceStatsServedFromCache(t *testing.T) {
	repo := &memoryCacheRepo{}
	cache := NewCacheService(repo, nil, time.Minute, zap.NewNop(), true)
	sweeper := &mockSweeper{}
	svc := newDashboardService(
		&mockUserCounter{byRole: map[models.UserRole]int{models.RoleStudent: 10}},
		&mockClassCounter{},
		&mockContentCounter{},
		&mockEnrollmentStats{},
		&mockAttendanceStats{},
		&mockPaymentStats{},
		sweeper, cache, mustTime(t, "2026-03-15T12:00:00Z"),
	)
	ctx := context.Background()

	first, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.sets)
	assert.Equal(t, 1, sweeper.calls)

	second, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.sets)
	assert.Equal(t, 1, sweeper.calls)
	assert.Equal(t, first.TotalStudents, second.TotalStudents)

	svc.Invalidate(ctx)
	_, err = svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sweeper.calls)
}
