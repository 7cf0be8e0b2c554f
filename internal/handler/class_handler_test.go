package handler

import (
	"bytes"
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fluentia/tutor-admin-api/internal/middleware"
	"github.com/fluentia/tutor-admin-api/internal/models"
	"github.com/fluentia/tutor-admin-api/internal/repository"
	"github.com/fluentia/tutor-admin-api/internal/service"
)

type classRepoStub struct {
	classes map[string]models.Class
}

func (s *classRepoStub) List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, int, error) {
	return nil, 0, nil
}

func (s *classRepoStub) FindByID(ctx context.Context, id string) (*models.Class, error) {
	if c, ok := s.classes[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (s *classRepoStub) FindDetailByID(ctx context.Context, id string) (*models.ClassDetail, error) {
	if c, ok := s.classes[id]; ok {
		return &models.ClassDetail{Class: c}, nil
	}
	return nil, sql.ErrNoRows
}

func (s *classRepoStub) Create(ctx context.Context, class *models.Class) error { return nil }
func (s *classRepoStub) Update(ctx context.Context, class *models.Class) error { return nil }
func (s *classRepoStub) Delete(ctx context.Context, id string) error           { return nil }

type enrollmentRepoStub struct {
	active   map[string]models.Enrollment
	capacity int
}

func (s *enrollmentRepoStub) FindByClassAndStudent(ctx context.Context, classID, studentID string) (*models.Enrollment, error) {
	if e, ok := s.active[classID+"|"+studentID]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (s *enrollmentRepoStub) ListActiveByClass(ctx context.Context, classID string) ([]models.EnrollmentDetail, error) {
	return nil, nil
}

func (s *enrollmentRepoStub) CreateGuarded(ctx context.Context, enrollment *models.Enrollment) error {
	if len(s.active) >= s.capacity {
		return repository.ErrClassFull
	}
	if s.active == nil {
		s.active = make(map[string]models.Enrollment)
	}
	enrollment.ID = "e-new"
	enrollment.IsActive = true
	s.active[enrollment.ClassID+"|"+enrollment.StudentID] = *enrollment
	return nil
}

func (s *enrollmentRepoStub) ReactivateGuarded(ctx context.Context, enrollment *models.Enrollment) error {
	enrollment.IsActive = true
	return nil
}

func (s *enrollmentRepoStub) Deactivate(ctx context.Context, id string) error { return nil }

func (s *enrollmentRepoStub) HasActiveByClass(ctx context.Context, classID string) (bool, error) {
	return len(s.active) > 0, nil
}

type userRepoStub struct {
	users map[string]models.User
}

func (s *userRepoStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := s.users[id]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func buildClassRouter(t *testing.T, enrollments *enrollmentRepoStub) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		if role := c.GetHeader("X-Test-Role"); role != "" {
			c.Set(middleware.ContextUserKey, &models.JWTClaims{
				UserID: "test-user",
				Role:   models.UserRole(role),
			})
		}
		c.Next()
	})

	classes := &classRepoStub{classes: map[string]models.Class{
		"class-1": {ID: "class-1", Name: "Business English", MaxStudents: 1, IsActive: true, ConsultantID: "consultant-1"},
	}}
	users := &userRepoStub{users: map[string]models.User{
		"student-a": {ID: "student-a", Role: models.RoleStudent},
		"student-b": {ID: "student-b", Role: models.RoleStudent},
	}}
	svc := service.NewClassService(classes, enrollments, users, nil, zap.NewNop())
	h := NewClassHandler(svc)

	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleConsultant)
	group := router.Group("/classes", staff)
	group.GET("/:id", h.Get)
	group.POST("/:id/enroll", h.Enroll)
	group.DELETE("/:id/students/:studentId", h.Unenroll)
	return router
}

func performRequest(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestClassRoutes(t *testing.T) {
	enrollments := &enrollmentRepoStub{capacity: 1}
	router := buildClassRouter(t, enrollments)

	t.Run("unauthenticated", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/classes/class-1", nil)
		resp := performRequest(router, req)
		require.Equal(t, http.StatusUnauthorized, resp.Code)
	})

	t.Run("student role forbidden", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/classes/class-1", nil)
		req.Header.Set("X-Test-Role", string(models.RoleStudent))
		resp := performRequest(router, req)
		require.Equal(t, http.StatusForbidden, resp.Code)
	})

	t.Run("enroll created", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPost, "/classes/class-1/enroll", bytes.NewBufferString(`{"student_id":"student-a"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Test-Role", string(models.RoleAdmin))
		resp := performRequest(router, req)
		require.Equal(t, http.StatusCreated, resp.Code)
		require.Contains(t, resp.Body.String(), `"is_active":true`)
	})

	t.Run("enroll full class conflict", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPost, "/classes/class-1/enroll", bytes.NewBufferString(`{"student_id":"student-b"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Test-Role", string(models.RoleConsultant))
		resp := performRequest(router, req)
		require.Equal(t, http.StatusConflict, resp.Code)
		require.Contains(t, resp.Body.String(), "class is full")
	})

	t.Run("enroll unknown class", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPost, "/classes/ghost/enroll", bytes.NewBufferString(`{"student_id":"student-a"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Test-Role", string(models.RoleAdmin))
		resp := performRequest(router, req)
		require.Equal(t, http.StatusNotFound, resp.Code)
	})

	t.Run("unenroll returns deactivated enrollment", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodDelete, "/classes/class-1/students/student-a", nil)
		req.Header.Set("X-Test-Role", string(models.RoleAdmin))
		resp := performRequest(router, req)
		require.Equal(t, http.StatusOK, resp.Code)
		require.Contains(t, resp.Body.String(), `"is_active":false`)
	})
}
