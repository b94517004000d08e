package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxaudit/internal/middleware"
	"taxaudit/internal/model"
	"taxaudit/internal/service"
)

func TestUserService_CreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.users.CreateUser(ctx, service.CreateUserRequest{
		Username: "ana", Email: "Ana@Example.com", Password: "s3cret-pass", Role: middleware.RoleAuditor,
	}, "admin-1")
	require.NoError(t, err)

	tests := []struct {
		name string
		req  service.CreateUserRequest
		want error
	}{
		{"unknown role", service.CreateUserRequest{Username: "b", Email: "b@example.com", Password: "s3cret-pass", Role: "manager"}, service.ErrValidation},
		{"short password", service.CreateUserRequest{Username: "b", Email: "b@example.com", Password: "short", Role: middleware.RoleViewer}, service.ErrValidation},
		{"bad email", service.CreateUserRequest{Username: "b", Email: "not-an-email", Password: "s3cret-pass", Role: middleware.RoleViewer}, service.ErrValidation},
		{"blank username", service.CreateUserRequest{Username: "  ", Email: "b@example.com", Password: "s3cret-pass", Role: middleware.RoleViewer}, service.ErrValidation},
		{"email taken ignoring case", service.CreateUserRequest{Username: "b", Email: "ana@example.com", Password: "s3cret-pass", Role: middleware.RoleViewer}, service.ErrConflict},
		{"username taken", service.CreateUserRequest{Username: "ana", Email: "b@example.com", Password: "s3cret-pass", Role: middleware.RoleViewer}, service.ErrConflict},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.users.CreateUser(ctx, tc.req, "admin-1")
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestUserService_Login(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	middleware.SetJWTSecret("service-test-secret")

	user, err := f.users.CreateUser(ctx, service.CreateUserRequest{
		Username: "ana", Email: "ana@example.com", Password: "s3cret-pass", Role: middleware.RoleAuditor,
	}, "admin-1")
	require.NoError(t, err)

	_, err = f.users.Login(ctx, service.LoginUserRequest{Email: "ana@example.com", Password: "wrong-pass"})
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)
	_, err = f.users.Login(ctx, service.LoginUserRequest{Email: "nobody@example.com", Password: "s3cret-pass"})
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)

	tok, err := f.users.Login(ctx, service.LoginUserRequest{Email: " ANA@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), tok.ExpiresAt, time.Minute)

	parsed, err := jwt.Parse(tok.Token, func(*jwt.Token) (interface{}, error) {
		return []byte("service-test-secret"), nil
	})
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, user.ID.String(), claims["sub"])
	assert.Equal(t, middleware.RoleAuditor, claims["role"])

	// deactivated accounts cannot log in
	inactive := false
	_, err = f.users.UpdateUser(ctx, user.ID.String(), service.UpdateUserRequest{IsActive: &inactive}, "admin-1")
	require.NoError(t, err)
	_, err = f.users.Login(ctx, service.LoginUserRequest{Email: "ana@example.com", Password: "s3cret-pass"})
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)
}

func TestUserService_UpdateAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ana, err := f.users.CreateUser(ctx, service.CreateUserRequest{
		Username: "ana", Email: "ana@example.com", Password: "s3cret-pass", Role: middleware.RoleViewer,
	}, "admin-1")
	require.NoError(t, err)
	bia, err := f.users.CreateUser(ctx, service.CreateUserRequest{
		Username: "bia", Email: "bia@example.com", Password: "s3cret-pass", Role: middleware.RoleViewer,
	}, "admin-1")
	require.NoError(t, err)

	role := middleware.RoleAuditor
	updated, err := f.users.UpdateUser(ctx, ana.ID.String(), service.UpdateUserRequest{Role: &role}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, middleware.RoleAuditor, updated.Role)

	taken := "bia@example.com"
	_, err = f.users.UpdateUser(ctx, ana.ID.String(), service.UpdateUserRequest{Email: &taken}, "admin-1")
	assert.ErrorIs(t, err, service.ErrConflict)

	assert.ErrorIs(t, f.users.DeleteUser(ctx, bia.ID.String(), bia.ID.String()), service.ErrValidation)
	require.NoError(t, f.users.DeleteUser(ctx, bia.ID.String(), "admin-1"))
	_, err = f.users.GetUser(ctx, bia.ID.String())
	assert.ErrorIs(t, err, service.ErrNotFound)

	// a deleted account keeps its login
	_, err = f.users.CreateUser(ctx, service.CreateUserRequest{
		Username: "bia", Email: "other@example.com", Password: "s3cret-pass", Role: middleware.RoleViewer,
	}, "admin-1")
	assert.ErrorIs(t, err, service.ErrConflict)

	list, total, err := f.users.ListUsers(ctx, "", 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, list, 1)

	logs, _, err := f.audits.GetAuditLogs(ctx, model.ActionDeleteUser, "", 1, 10)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestUserService_EnsureAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.users.EnsureAdmin(ctx, "root@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = f.users.EnsureAdmin(ctx, "other@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.False(t, created)

	admins, total, err := f.users.ListUsers(ctx, middleware.RoleAdmin, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "root", admins[0].Username)
}
