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
	"github.com/fluentia/tutor-admin-api/internal/repository"
	appErrors "github.com/fluentia/tutor-admin-api/pkg/errors"
)

type mockClassRepo struct {
	classes map[string]models.Class
}

func (m *mockClassRepo) List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, int, error) {
	return nil, 0, nil
}

func (m *mockClassRepo) FindByID(ctx context.Context, id string) (*models.Class, error) {
	if c, ok := m.classes[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockClassRepo) FindDetailByID(ctx context.Context, id string) (*models.ClassDetail, error) {
	if c, ok := m.classes[id]; ok {
		return &models.ClassDetail{Class: c}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockClassRepo) Create(ctx context.Context, class *models.Class) error {
	if m.classes == nil {
		m.classes = make(map[string]models.Class)
	}
	if class.ID == "" {
		class.ID = "new-class"
	}
	m.classes[class.ID] = *class
	return nil
}

func (m *mockClassRepo) Update(ctx context.Context, class *models.Class) error {
	m.classes[class.ID] = *class
	return nil
}

func (m *mockClassRepo) Delete(ctx context.Context, id string) error {
	delete(m.classes, id)
	return nil
}

type mockEnrollmentRepo struct {
	byPair      map[string]models.Enrollment
	activeCount int
	capacity    int
	deactivated []string
}

func pairKey(classID, studentID string) string { return classID + "|" + studentID }

func (m *mockEnrollmentRepo) FindByClassAndStudent(ctx context.Context, classID, studentID string) (*models.Enrollment, error) {
	if e, ok := m.byPair[pairKey(classID, studentID)]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) ListActiveByClass(ctx context.Context, classID string) ([]models.EnrollmentDetail, error) {
	var out []models.EnrollmentDetail
	for _, e := range m.byPair {
		if e.ClassID == classID && e.IsActive {
			out = append(out, models.EnrollmentDetail{Enrollment: e})
		}
	}
	return out, nil
}

func (m *mockEnrollmentRepo) CreateGuarded(ctx context.Context, enrollment *models.Enrollment) error {
	if m.activeCount >= m.capacity {
		return repository.ErrClassFull
	}
	if m.byPair == nil {
		m.byPair = make(map[string]models.Enrollment)
	}
	enrollment.ID = "new-enrollment"
	enrollment.IsActive = true
	m.byPair[pairKey(enrollment.ClassID, enrollment.StudentID)] = *enrollment
	m.activeCount++
	return nil
}

func (m *mockEnrollmentRepo) ReactivateGuarded(ctx context.Context, enrollment *models.Enrollment) error {
	if m.activeCount >= m.capacity {
		return repository.ErrClassFull
	}
	enrollment.IsActive = true
	m.byPair[pairKey(enrollment.ClassID, enrollment.StudentID)] = *enrollment
	m.activeCount++
	return nil
}

func (m *mockEnrollmentRepo) Deactivate(ctx context.Context, id string) error {
	for k, e := range m.byPair {
		if e.ID == id {
			e.IsActive = false
			m.byPair[k] = e
			m.activeCount--
		}
	}
	m.deactivated = append(m.deactivated, id)
	return nil
}

func (m *mockEnrollmentRepo) HasActiveByClass(ctx context.Context, classID string) (bool, error) {
	for _, e := range m.byPair {
		if e.ClassID == classID && e.IsActive {
			return true, nil
		}
	}
	return false, nil
}

type mockUserReader struct {
	users map[string]models.User
}

func (m *mockUserReader) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func newClassService(classes *mockClassRepo, enrollments *mockEnrollmentRepo, users *mockUserReader) *ClassService {
	return NewClassService(classes, enrollments, users, nil, zap.NewNop())
}

func activeClass(id string, max int) models.Class {
	return models.Class{ID: id, Name: "Business English", Type: models.ClassTypeCorporate, Level: models.LevelB2, MaxStudents: max, IsActive: true, ConsultantID: "consultant-1"}
}

func TestClassServiceEnrollStudentNotFound(t *testing.T) {
	svc := newClassService(
		&mockClassRepo{classes: map[string]models.Class{"class-1": activeClass("class-1", 10)}},
		&mockEnrollmentRepo{capacity: 10},
		&mockUserReader{users: map[string]models.User{}},
	)

	_, _, err := svc.Enroll(context.Background(), "class-1", EnrollStudentRequest{StudentID: "ghost"})
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)
}

func TestClassServiceEnrollRejectsNonStudent(t *testing.T) {
	svc := newClassService(
		&mockClassRepo{classes: map[string]models.Class{"class-1": activeClass("class-1", 10)}},
		&mockEnrollmentRepo{capacity: 10},
		&mockUserReader{users: map[string]models.User{"consultant-1": {ID: "consultant-1", Role: models.RoleConsultant}}},
	)

	_, _, err := svc.Enroll(context.Background(), "class-1", EnrollStudentRequest{StudentID: "consultant-1"})
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, appErrors.FromError(err).Status)
}

func TestClassServiceEnrollRejectsInactiveClass(t *testing.T) {
	inactive := activeClass("class-1", 10)
	inactive.IsActive = false
	svc := newClassService(
		&mockClassRepo{classes: map[string]models.Class{"class-1": inactive}},
		&mockEnrollmentRepo{capacity: 10},
		&mockUserReader{users: map[string]models.User{"student-1": {ID: "student-1", Role: models.RoleStudent}}},
	)

	_, _, err := svc.Enroll(context.Background(), "class-1", EnrollStudentRequest{StudentID: "student-1"})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, appErrors.FromError(err).Status)
}

func TestClassServiceEnrollDuplicateActive(t *testing.T) {
	enrollments := &mockEnrollmentRepo{
		capacity:    10,
		activeCount: 1,
		byPair: map[string]models.Enrollment{
			pairKey("class-1", "student-1"): {ID: "e1", ClassID: "class-1", StudentID: "student-1", IsActive: true},
		},
	}
	svc := newClassService(
		&mockClassRepo{classes: map[string]models.Class{"class-1": activeClass("class-1", 10)}},
		enrollments,
		&mockUserReader{users: map[string]models.User{"student-1": {ID: "student-1", Role: models.RoleStudent}}},
	)

	_, _, err := svc.Enroll(context.Background(), "class-1", EnrollStudentRequest{StudentID: "student-1"})
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, appErrors.FromError(err).Status)
}

func TestClassServiceEnrollReactivatesInactive(t *testing.T) {
	enrollments := &mockEnrollmentRepo{
		capacity: 10,
		byPair: map[string]models.Enrollment{
			pairKey("class-1", "student-1"): {ID: "e1", ClassID: "class-1", StudentID: "student-1", IsActive: false},
		},
	}
	svc := newClassService(
		&mockClassRepo{classes: map[string]models.Class{"class-1": activeClass("class-1", 10)}},
		enrollments,
		&mockUserReader{users: map[string]models.User{"student-1": {ID: "student-1", Role: models.RoleStudent}}},
	)

	enrollment, reactivated, err := svc.Enroll(context.Background(), "class-1", EnrollStudentRequest{StudentID: "student-1"})
	require.NoError(t, err)
	assert.True(t, reactivated)
	assert.True(t, enrollment.IsActive)
	assert.Equal(t, "e1", enrollment.ID)
}

func TestClassServiceEnrollCapacityCycle(t *testing.T) {
	enrollments := &mockEnrollmentRepo{capacity: 1}
	svc := newClassService(
		&mockClassRepo{classes: map[string]models.Class{"class-1": activeClass("class-1", 1)}},
		enrollments,
		&mockUserReader{users: map[string]models.User{
			"student-a": {ID: "student-a", Role: models.RoleStudent},
			"student-b": {ID: "student-b", Role: models.RoleStudent},
		}},
	)
	ctx := context.Background()

	_, _, err := svc.Enroll(ctx, "class-1", EnrollStudentRequest{StudentID: "student-a"})
	require.NoError(t, err)

	_, _, err = svc.Enroll(ctx, "class-1", EnrollStudentRequest{StudentID: "student-b"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, http.StatusConflict, appErr.Status)
	assert.Contains(t, appErr.Message, "full")

	removed, err := svc.Unenroll(ctx, "class-1", "student-a")
	require.NoError(t, err)
	assert.False(t, removed.IsActive)

	_, _, err = svc.Enroll(ctx, "class-1", EnrollStudentRequest{StudentID: "student-b"})
	require.NoError(t, err)
}

func TestClassServiceUnenrollNotFound(t *testing.T) {
	svc := newClassService(
		&mockClassRepo{classes: map[string]models.Class{"class-1": activeClass("class-1", 10)}},
		&mockEnrollmentRepo{capacity: 10},
		&mockUserReader{},
	)

	_, err := svc.Unenroll(context.Background(), "class-1", "student-1")
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)
}

func TestClassServiceUnenrollAlreadyInactive(t *testing.T) {
	enrollments := &mockEnrollmentRepo{
		capacity: 10,
		byPair: map[string]models.Enrollment{
			pairKey("class-1", "student-1"): {ID: "e1", ClassID: "class-1", StudentID: "student-1", IsActive: false},
		},
	}
	svc := newClassService(
		&mockClassRepo{classes: map[string]models.Class{"class-1": activeClass("class-1", 10)}},
		enrollments,
		&mockUserReader{},
	)

	_, err := svc.Unenroll(context.Background(), "class-1", "student-1")
	require.Error(t, err)
	assert.Equal(t, http.StatusPreconditionFailed, appErrors.FromError(err).Status)
}

func TestClassServiceDeleteBlockedByEnrollments(t *testing.T) {
	enrollments := &mockEnrollmentRepo{
		capacity:    10,
		activeCount: 1,
		byPair: map[string]models.Enrollment{
			pairKey("class-1", "student-1"): {ID: "e1", ClassID: "class-1", StudentID: "student-1", IsActive: true},
		},
	}
	svc := newClassService(
		&mockClassRepo{classes: map[string]models.Class{"class-1": activeClass("class-1", 10)}},
		enrollments,
		&mockUserReader{},
	)

	err := svc.Delete(context.Background(), "class-1")
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, appErrors.FromError(err).Status)
}

func TestClassServiceCreateValidatesConsultant(t *testing.T) {
	users := &mockUserReader{users: map[string]models.User{
		"student-1":    {ID: "student-1", Role: models.RoleStudent},
		"consultant-1": {ID: "consultant-1", Role: models.RoleConsultant},
	}}
	svc := newClassService(&mockClassRepo{}, &mockEnrollmentRepo{capacity: 10}, users)

	req := CreateClassRequest{
		Name:         "Business English",
		Type:         models.ClassTypeCorporate,
		Level:        models.LevelB2,
		MaxStudents:  8,
		StartTime:    mustTime(t, "2026-03-02T18:00:00Z"),
		EndTime:      mustTime(t, "2026-03-02T19:30:00Z"),
		DayOfWeek:    1,
		ConsultantID: "student-1",
	}
	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, appErrors.FromError(err).Status)

	req.ConsultantID = "consultant-1"
	class, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, class.IsActive)
}
