package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluentia/tutor-admin-api/internal/models"
)

func newEnrollmentMock(t *testing.T) (*EnrollmentRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewEnrollmentRepository(sqlx.NewDb(db, "sqlmock")), mock
}

func expectCapacityLock(mock sqlmock.Sqlmock, classID string, maxStudents, active int) {
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT max_students FROM classes WHERE id = $1 FOR UPDATE")).
		WithArgs(classID).
		WillReturnRows(sqlmock.NewRows([]string{"max_students"}).AddRow(maxStudents))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM class_enrollments WHERE class_id = $1 AND is_active")).
		WithArgs(classID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(active))
}

func TestEnrollmentRepositoryCreateGuardedInserts(t *testing.T) {
	repo, mock := newEnrollmentMock(t)

	expectCapacityLock(mock, "class-1", 5, 2)
	mock.ExpectExec("INSERT INTO class_enrollments").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	enrollment := &models.Enrollment{ClassID: "class-1", StudentID: "student-1"}
	require.NoError(t, repo.CreateGuarded(context.Background(), enrollment))
	assert.NotEmpty(t, enrollment.ID)
	assert.True(t, enrollment.IsActive)
	assert.False(t, enrollment.EnrolledAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateGuardedFullClass(t *testing.T) {
	repo, mock := newEnrollmentMock(t)

	expectCapacityLock(mock, "class-1", 1, 1)
	mock.ExpectRollback()

	enrollment := &models.Enrollment{ClassID: "class-1", StudentID: "student-1"}
	err := repo.CreateGuarded(context.Background(), enrollment)
	require.ErrorIs(t, err, ErrClassFull)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateGuardedMissingClass(t *testing.T) {
	repo, mock := newEnrollmentMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT max_students FROM classes WHERE id = $1 FOR UPDATE")).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := repo.CreateGuarded(context.Background(), &models.Enrollment{ClassID: "ghost", StudentID: "student-1"})
	require.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryReactivateGuarded(t *testing.T) {
	repo, mock := newEnrollmentMock(t)

	expectCapacityLock(mock, "class-1", 5, 2)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE class_enrollments SET is_active = TRUE WHERE id = $1")).
		WithArgs("e1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	enrollment := &models.Enrollment{ID: "e1", ClassID: "class-1", StudentID: "student-1"}
	require.NoError(t, repo.ReactivateGuarded(context.Background(), enrollment))
	assert.True(t, enrollment.IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryDeactivate(t *testing.T) {
	repo, mock := newEnrollmentMock(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE class_enrollments SET is_active = FALSE WHERE id = $1")).
		WithArgs("e1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Deactivate(context.Background(), "e1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryIsActive(t *testing.T) {
	repo, mock := newEnrollmentMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM class_enrollments WHERE class_id = $1 AND student_id = $2 AND is_active LIMIT 1")).
		WithArgs("class-1", "student-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM class_enrollments WHERE class_id = $1 AND student_id = $2 AND is_active LIMIT 1")).
		WithArgs("class-1", "student-2").
		WillReturnError(sql.ErrNoRows)

	active, err := repo.IsActive(context.Background(), "class-1", "student-1")
	require.NoError(t, err)
	assert.True(t, active)

	active, err = repo.IsActive(context.Background(), "class-1", "student-2")
	require.NoError(t, err)
	assert.False(t, active)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListActiveByClass(t *testing.T) {
	repo, mock := newEnrollmentMock(t)

	rows := sqlmock.NewRows([]string{
		"id", "class_id", "student_id", "enrolled_at", "is_active",
		"student_name", "student_email", "student_phone", "class_name",
	}).
		AddRow("e1", "class-1", "student-a", time.Now(), true, "Alice", "alice@example.com", nil, "Business English").
		AddRow("e2", "class-1", "student-b", time.Now(), true, "Bruno", "bruno@example.com", nil, "Business English")
	mock.ExpectQuery("SELECT e.id, e.class_id, e.student_id, e.enrolled_at, e.is_active").
		WithArgs("class-1").
		WillReturnRows(rows)

	enrollments, err := repo.ListActiveByClass(context.Background(), "class-1")
	require.NoError(t, err)
	require.Len(t, enrollments, 2)
	assert.Equal(t, "Alice", enrollments[0].StudentName)
	assert.NoError(t, mock.ExpectationsWereMet())
}
