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

func newContentMock(t *testing.T) (*ContentRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewContentRepository(sqlx.NewDb(db, "sqlmock")), mock
}

func TestContentRepositoryExistsByModuleOrder(t *testing.T) {
	repo, mock := newContentMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM contents WHERE module = $1 AND sort_order = $2 LIMIT 1")).
		WithArgs(models.LevelA1, 3).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	taken, err := repo.ExistsByModuleOrder(context.Background(), models.LevelA1, 3, "")
	require.NoError(t, err)
	assert.True(t, taken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContentRepositoryExistsByModuleOrderExcludesSelf(t *testing.T) {
	repo, mock := newContentMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM contents WHERE module = $1 AND sort_order = $2 AND id != $3 LIMIT 1")).
		WithArgs(models.LevelA1, 3, "c1").
		WillReturnError(sql.ErrNoRows)

	taken, err := repo.ExistsByModuleOrder(context.Background(), models.LevelA1, 3, "c1")
	require.NoError(t, err)
	assert.False(t, taken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContentRepositoryListFilters(t *testing.T) {
	repo, mock := newContentMock(t)
	active := true

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM contents WHERE 1=1 AND module = $1 AND is_active = $2 AND (title ILIKE $3 OR description ILIKE $3)")).
		WithArgs(models.LevelB1, true, "%verb%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	rows := sqlmock.NewRows([]string{
		"id", "title", "description", "module", "sort_order", "presentation_url",
		"students_pdf_url", "homework_url", "is_active", "created_at", "updated_at",
	}).AddRow("c1", "Phrasal Verbs", nil, "B1", 4, nil, nil, nil, true, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY module ASC, sort_order ASC LIMIT $4 OFFSET $5")).
		WithArgs(models.LevelB1, true, "%verb%", 10, 0).
		WillReturnRows(rows)

	contents, total, err := repo.List(context.Background(), models.ContentFilter{
		Module:   models.LevelB1,
		IsActive: &active,
		Search:   "verb",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, contents, 1)
	assert.Equal(t, 4, contents[0].Order)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContentRepositoryCreate(t *testing.T) {
	repo, mock := newContentMock(t)

	mock.ExpectExec("INSERT INTO contents").
		WillReturnResult(sqlmock.NewResult(0, 1))

	content := &models.Content{Title: "Greetings", Module: models.LevelA1, Order: 1, IsActive: true}
	require.NoError(t, repo.Create(context.Background(), content))
	assert.NotEmpty(t, content.ID)
	assert.False(t, content.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}
