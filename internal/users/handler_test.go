package users

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/niveshya/leadops/internal/rbac"
	"github.com/niveshya/leadops/internal/shared"
)

type stubRepo struct {
	users []User
}

func (s *stubRepo) ListUsers(ctx context.Context) ([]User, error) {
	return s.users, nil
}

func (s *stubRepo) GetUser(ctx context.Context, id string) (User, error) {
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return User{}, shared.ErrNotFound
}

func setup(t *testing.T) (*Service, *rbac.Service, *rbac.MemoryRepository) {
	t.Helper()
	svc := NewService(&stubRepo{users: []User{
		{ID: "u-root", Email: "root@example.com", Name: "Root", IsActive: true},
		{ID: "u-1", Email: "dana@example.com", IsActive: true},
	}})
	repo := rbac.NewMemoryRepository()
	rbacSvc := rbac.NewService(repo, svc, nil)
	require.NoError(t, rbacSvc.Bootstrap(context.Background(), rbac.BootstrapOptions{SuperAdminUserID: "u-root"}))
	return svc, rbacSvc, repo
}

func TestUserNameFallsBackToEmail(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	name, err := svc.UserName(ctx, "u-root")
	require.NoError(t, err)
	assert.Equal(t, "Root", name)

	name, err = svc.UserName(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "dana@example.com", name)

	_, err = svc.UserName(ctx, "ghost")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestHandlerRequiresViewUsers(t *testing.T) {
	svc, rbacSvc, _ := setup(t)
	h := NewHandler(nil, svc, rbac.Middleware{Service: rbacSvc})

	serve := func(userID, path string) *httptest.ResponseRecorder {
		r := chi.NewRouter()
		r.Route("/users", h.MountRoutes)
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req = req.WithContext(shared.ContextWithPrincipal(req.Context(), shared.Principal{UserID: userID}))
		res := httptest.NewRecorder()
		r.ServeHTTP(res, req)
		return res
	}

	res := serve("u-root", "/users")
	require.Equal(t, http.StatusOK, res.Code)
	var list []User
	require.NoError(t, json.NewDecoder(res.Body).Decode(&list))
	assert.Len(t, list, 2)

	res = serve("u-root", "/users/u-1")
	assert.Equal(t, http.StatusOK, res.Code)
	res = serve("u-root", "/users/ghost")
	assert.Equal(t, http.StatusNotFound, res.Code)

	res = serve("u-1", "/users")
	assert.Equal(t, http.StatusForbidden, res.Code)
}
