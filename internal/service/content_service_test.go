package service

import (
	"context"
	"database/sql"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fluentia/tutor-admin-api/internal/models"
	appErrors "github.com/fluentia/tutor-admin-api/pkg/errors"
)

type mockContentRepo struct {
	contents map[string]models.Content
}

func (m *mockContentRepo) List(ctx context.Context, filter models.ContentFilter) ([]models.Content, int, error) {
	var out []models.Content
	for _, c := range m.contents {
		out = append(out, c)
	}
	return out, len(out), nil
}

func (m *mockContentRepo) FindByID(ctx context.Context, id string) (*models.Content, error) {
	if c, ok := m.contents[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockContentRepo) ExistsByModuleOrder(ctx context.Context, module models.ClassLevel, order int, excludeID string) (bool, error) {
	for _, c := range m.contents {
		if c.ID == excludeID {
			continue
		}
		if c.Module == module && c.Order == order {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockContentRepo) ListByModule(ctx context.Context, module models.ClassLevel) ([]models.Content, error) {
	var out []models.Content
	for _, c := range m.contents {
		if c.Module == module {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockContentRepo) Create(ctx context.Context, content *models.Content) error {
	if m.contents == nil {
		m.contents = make(map[string]models.Content)
	}
	content.ID = "new-content"
	m.contents[content.ID] = *content
	return nil
}

func (m *mockContentRepo) Update(ctx context.Context, content *models.Content) error {
	m.contents[content.ID] = *content
	return nil
}

func (m *mockContentRepo) Delete(ctx context.Context, id string) error {
	delete(m.contents, id)
	return nil
}

type mockContentLessons struct {
	recent map[string][]models.LessonSummary
	counts map[string]int
}

func (m *mockContentLessons) ListRecentByContent(ctx context.Context, contentID string, limit int) ([]models.LessonSummary, error) {
	lessons := m.recent[contentID]
	if len(lessons) > limit {
		return lessons[:limit], nil
	}
	return lessons, nil
}

func (m *mockContentLessons) CountByContent(ctx context.Context, contentID string) (int, error) {
	return m.counts[contentID], nil
}

func newContentService(contents *mockContentRepo, lessons *mockContentLessons) *ContentService {
	return NewContentService(contents, lessons, nil, zap.NewNop())
}

func TestContentServiceCreateSlotConflict(t *testing.T) {
	repo := &mockContentRepo{contents: map[string]models.Content{
		"c1": {ID: "c1", Title: "Greetings", Module: models.LevelA1, Order: 1, IsActive: true},
	}}
	svc := newContentService(repo, &mockContentLessons{})

	_, err := svc.Create(context.Background(), CreateContentRequest{
		Title:  "Introductions",
		Module: models.LevelA1,
		Order:  1,
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, http.StatusConflict, appErr.Status)
	assert.Equal(t, "a content with order 1 already exists in module A1", appErr.Message)

	// Same order in another module is fine.
	content, err := svc.Create(context.Background(), CreateContentRequest{
		Title:  "Introductions",
		Module: models.LevelA2,
		Order:  1,
	})
	require.NoError(t, err)
	assert.True(t, content.IsActive)
}

func TestContentServiceUpdateExcludesSelfFromSlotCheck(t *testing.T) {
	repo := &mockContentRepo{contents: map[string]models.Content{
		"c1": {ID: "c1", Title: "Greetings", Module: models.LevelA1, Order: 1, IsActive: true},
		"c2": {ID: "c2", Title: "Numbers", Module: models.LevelA1, Order: 2, IsActive: true},
	}}
	svc := newContentService(repo, &mockContentLessons{})

	// Keeping its own slot must not conflict.
	title := "Greetings and Farewells"
	_, err := svc.Update(context.Background(), "c1", UpdateContentRequest{Title: &title})
	require.NoError(t, err)

	// Moving onto an occupied slot does.
	order := 2
	_, err = svc.Update(context.Background(), "c1", UpdateContentRequest{Order: &order})
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, appErrors.FromError(err).Status)
}

func TestContentServiceDeleteBlockedByLessons(t *testing.T) {
	repo := &mockContentRepo{contents: map[string]models.Content{
		"c1": {ID: "c1", Module: models.LevelA1, Order: 1},
	}}
	lessons := &mockContentLessons{counts: map[string]int{"c1": 3}}
	svc := newContentService(repo, lessons)

	err := svc.Delete(context.Background(), "c1")
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, appErrors.FromError(err).Status)
}

func TestContentServiceListByModuleFiltersInactive(t *testing.T) {
	repo := &mockContentRepo{contents: map[string]models.Content{
		"c1": {ID: "c1", Module: models.LevelB1, Order: 1, IsActive: true},
		"c2": {ID: "c2", Module: models.LevelB1, Order: 2, IsActive: false},
	}}
	svc := newContentService(repo, &mockContentLessons{})

	contents, err := svc.ListByModule(context.Background(), models.LevelB1)
	require.NoError(t, err)
	require.Len(t, contents, 1)
	assert.Equal(t, "c1", contents[0].ID)

	_, err = svc.ListByModule(context.Background(), "Z9")
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, appErrors.FromError(err).Status)
}

func TestContentServiceGetAttachesRecentLessons(t *testing.T) {
	repo := &mockContentRepo{contents: map[string]models.Content{
		"c1": {ID: "c1", Module: models.LevelA1, Order: 1, IsActive: true},
	}}
	lessons := &mockContentLessons{recent: map[string][]models.LessonSummary{
		"c1": {
			{ID: "l1", ContentID: "c1"},
			{ID: "l2", ContentID: "c1"},
		},
	}}
	svc := newContentService(repo, lessons)

	detail, err := svc.Get(context.Background(), "c1")
	require.NoError(t, err)
	assert.Len(t, detail.Lessons, 2)

	_, err = svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)
}
