package service

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/fluentia/tutor-admin-api/internal/models"
	appErrors "github.com/fluentia/tutor-admin-api/pkg/errors"
)

type mockAuthRepo struct {
	users map[string]models.User
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			user := u
			return &user, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func newAuthService(t *testing.T, users map[string]models.User) *AuthService {
	t.Helper()
	return NewAuthService(&mockAuthRepo{users: users}, nil, zap.NewNop(), AuthConfig{
		Secret:     "test-secret",
		Expiration: time.Hour,
		Issuer:     "tutor-admin-api",
	})
}

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	svc := newAuthService(t, map[string]models.User{
		"admin-1": {
			ID: "admin-1", Email: "admin@example.com", FullName: "Admin",
			Role: models.RoleAdmin, Active: true,
			PasswordHash: hashPassword(t, "s3cret!"),
		},
	})

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@example.com", Password: "s3cret!"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.Equal(t, "admin-1", resp.User.ID)
	assert.Equal(t, models.RoleAdmin, resp.User.Role)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "admin-1", claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
	assert.Equal(t, "tutor-admin-api", claims.Issuer)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	svc := newAuthService(t, map[string]models.User{
		"admin-1": {
			ID: "admin-1", Email: "admin@example.com", Active: true,
			PasswordHash: hashPassword(t, "s3cret!"),
		},
	})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@example.com", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, appErrors.FromError(err).Status)
}

func TestAuthServiceLoginUnknownEmail(t *testing.T) {
	svc := newAuthService(t, nil)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "ghost@example.com", Password: "whatever"})
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, appErrors.FromError(err).Status)
}

func TestAuthServiceLoginInactiveAccount(t *testing.T) {
	svc := newAuthService(t, map[string]models.User{
		"user-1": {
			ID: "user-1", Email: "left@example.com", Active: false,
			PasswordHash: hashPassword(t, "s3cret!"),
		},
	})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "left@example.com", Password: "s3cret!"})
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, appErrors.FromError(err).Status)
}

func TestAuthServiceValidateTokenRejectsForeignSecret(t *testing.T) {
	users := map[string]models.User{
		"admin-1": {
			ID: "admin-1", Email: "admin@example.com", Active: true,
			PasswordHash: hashPassword(t, "s3cret!"),
		},
	}
	issuer := newAuthService(t, users)
	resp, err := issuer.Login(context.Background(), models.LoginRequest{Email: "admin@example.com", Password: "s3cret!"})
	require.NoError(t, err)

	verifier := NewAuthService(&mockAuthRepo{users: users}, nil, zap.NewNop(), AuthConfig{
		Secret:     "different-secret",
		Expiration: time.Hour,
		Issuer:     "tutor-admin-api",
	})
	_, err = verifier.ValidateToken(resp.AccessToken)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, appErrors.FromError(err).Status)
}
