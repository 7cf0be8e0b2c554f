package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluentia/tutor-admin-api/internal/models"
)

func newPaymentMock(t *testing.T) (*PaymentRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPaymentRepository(sqlx.NewDb(db, "sqlmock")), mock
}

func TestPaymentRepositorySweepOverdue(t *testing.T) {
	repo, mock := newPaymentMock(t)
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE payments SET status = $1, updated_at = $2 WHERE status = $3 AND due_date < $2")).
		WithArgs(models.PaymentOverdue, now, models.PaymentPending).
		WillReturnResult(sqlmock.NewResult(0, 3))

	updated, err := repo.SweepOverdue(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), updated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryListFiltersAndSorts(t *testing.T) {
	repo, mock := newPaymentMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM payments p WHERE 1=1 AND p.status = $1 AND p.student_id = $2")).
		WithArgs(models.PaymentPaid, "student-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	rows := sqlmock.NewRows([]string{
		"id", "student_id", "class_id", "amount", "description", "status", "due_date",
		"paid_date", "reference_month", "reference_year", "notes", "created_at", "updated_at",
		"student_name", "student_email", "class_name",
	}).AddRow(
		"p1", "student-1", nil, "350.00", "March tuition", "PAID", time.Now(),
		nil, 3, 2026, nil, time.Now(), time.Now(),
		"Maria Souza", "maria@example.com", nil,
	)
	mock.ExpectQuery("SELECT .+ FROM payments p\\s+JOIN users u ON u.id = p.student_id\\s+LEFT JOIN classes c ON c.id = p.class_id WHERE 1=1 AND p.status = \\$1 AND p.student_id = \\$2\\s+ORDER BY p.amount ASC LIMIT \\$3 OFFSET \\$4").
		WithArgs(models.PaymentPaid, "student-1", 10, 0).
		WillReturnRows(rows)

	payments, total, err := repo.List(context.Background(), models.PaymentFilter{
		Status:    models.PaymentPaid,
		StudentID: "student-1",
		SortBy:    "amount",
		SortOrder: "asc",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, payments, 1)
	assert.Equal(t, "Maria Souza", payments[0].StudentName)
	assert.True(t, payments[0].Amount.Equal(decimal.RequireFromString("350.00")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryListIgnoresUnknownSortColumn(t *testing.T) {
	repo, mock := newPaymentMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM payments p WHERE 1=1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("ORDER BY p.due_date DESC LIMIT \\$1 OFFSET \\$2").
		WithArgs(10, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, _, err := repo.List(context.Background(), models.PaymentFilter{SortBy: "id; DROP TABLE payments"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryMarkPaid(t *testing.T) {
	repo, mock := newPaymentMock(t)
	paidDate := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE payments SET status = $1, paid_date = $2, updated_at = $3 WHERE id = $4")).
		WithArgs(models.PaymentPaid, paidDate, sqlmock.AnyArg(), "p1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkPaid(context.Background(), "p1", paidDate))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryBulkCreateSingleTx(t *testing.T) {
	repo, mock := newPaymentMock(t)

	mock.ExpectBegin()
	for i := 0; i < 2; i++ {
		mock.ExpectExec("INSERT INTO payments").
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	payments := []*models.Payment{
		{StudentID: "student-a", Amount: decimal.NewFromInt(350), Status: models.PaymentPending},
		{StudentID: "student-b", Amount: decimal.NewFromInt(350), Status: models.PaymentPending},
	}
	require.NoError(t, repo.BulkCreate(context.Background(), payments))
	assert.NotEmpty(t, payments[0].ID)
	assert.NotEmpty(t, payments[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryStatusBreakdown(t *testing.T) {
	repo, mock := newPaymentMock(t)

	rows := sqlmock.NewRows([]string{"status", "count", "sum"}).
		AddRow("PAID", 3, "1050.00").
		AddRow("PENDING", 2, "700.00")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS sum FROM payments GROUP BY status")).
		WillReturnRows(rows)

	breakdown, err := repo.StatusBreakdown(context.Background())
	require.NoError(t, err)
	require.Len(t, breakdown, 2)
	assert.Equal(t, models.PaymentPaid, breakdown[0].Status)
	assert.Equal(t, 3, breakdown[0].Count)
	assert.True(t, breakdown[0].Sum.Equal(decimal.RequireFromString("1050.00")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositorySumPaidForPeriod(t *testing.T) {
	repo, mock := newPaymentMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(amount), 0) FROM payments WHERE status = $1 AND reference_month = $2 AND reference_year = $3")).
		WithArgs(models.PaymentPaid, 3, 2026).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow("1050.00"))

	sum, err := repo.SumPaidForPeriod(context.Background(), 3, 2026)
	require.NoError(t, err)
	assert.True(t, sum.Equal(decimal.RequireFromString("1050.00")))
	assert.NoError(t, mock.ExpectationsWereMet())
}
