package rbac

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/niveshya/leadops/internal/shared"
)

func TestMiddlewareRequireAny(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.AssignRole(context.Background(), f.root, "u-1", f.role(t, shared.RoleUser).ID)
	require.NoError(t, err)
	mw := Middleware{Service: f.svc}

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })

	cases := []struct {
		name   string
		user   string
		perms  []string
		status int
	}{
		{"no principal", "", []string{shared.PermViewUsers}, http.StatusUnauthorized},
		{"granted", "u-1", []string{shared.PermViewUsers, "VIEW_CONTACTS"}, http.StatusTeapot},
		{"denied", "u-1", []string{shared.PermManageRoles}, http.StatusForbidden},
		{"nothing required", "", nil, http.StatusTeapot},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.user != "" {
				req = req.WithContext(shared.ContextWithPrincipal(req.Context(), shared.Principal{UserID: tc.user}))
			}
			res := httptest.NewRecorder()
			mw.RequireAny(tc.perms...)(ok).ServeHTTP(res, req)
			assert.Equal(t, tc.status, res.Code)
		})
	}
}

func TestMiddlewareRequireAll(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.AssignRole(context.Background(), f.root, "u-1", f.role(t, shared.RoleUser).ID)
	require.NoError(t, err)
	mw := Middleware{Service: f.svc}
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(shared.ContextWithPrincipal(req.Context(), shared.Principal{UserID: "u-1"}))

	res := httptest.NewRecorder()
	mw.RequireAll(shared.PermViewContacts, shared.PermViewTasks)(ok).ServeHTTP(res, req)
	assert.Equal(t, http.StatusNoContent, res.Code)

	res = httptest.NewRecorder()
	mw.RequireAll(shared.PermViewContacts, shared.PermDeleteContacts)(ok).ServeHTTP(res, req)
	assert.Equal(t, http.StatusForbidden, res.Code)
}

func TestPermissionHelpers(t *testing.T) {
	assert.ElementsMatch(t, []string{"a", "b"}, normalizePermissions([]string{" A", "a", "", "b "}))
	assert.True(t, hasAnyPermission([]string{"A"}, []string{"a"}))
	assert.False(t, hasAnyPermission(nil, []string{"a"}))
	assert.True(t, hasAllPermissions(nil, nil))
	assert.False(t, hasAllPermissions([]string{"a"}, []string{"a", "b"}))
}
