package dataapi_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/niveshya/leadops/internal/auth"
	"github.com/niveshya/leadops/internal/dataapi"
	"github.com/niveshya/leadops/internal/platform/httpx"
	"github.com/niveshya/leadops/internal/rbac"
	"github.com/niveshya/leadops/internal/shared"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

type mutableToken struct{ token string }

func (m *mutableToken) Token() string { return m.token }

type directory map[string]*auth.User

func (d directory) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	for _, u := range d {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (d directory) TouchLastLogin(ctx context.Context, userID string, at time.Time) error { return nil }

func (d directory) UserName(ctx context.Context, userID string) (string, error) {
	u, ok := d[userID]
	if !ok {
		return "", shared.ErrNotFound
	}
	return u.Name, nil
}

func newAPIServer(t *testing.T) (*httptest.Server, directory) {
	t.Helper()
	hash, err := auth.HashPassword("pw")
	require.NoError(t, err)
	users := directory{
		"u-root":   {ID: "u-root", Email: "root@example.com", Name: "Root", PasswordHash: hash, IsActive: true},
		"u-viewer": {ID: "u-viewer", Email: "viewer@example.com", Name: "Vera", PasswordHash: hash, IsActive: true},
	}

	rbacSvc := rbac.NewService(rbac.NewMemoryRepository(), users, nil)
	require.NoError(t, rbacSvc.Bootstrap(context.Background(), rbac.BootstrapOptions{SuperAdminUserID: "u-root"}))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	authSvc := auth.NewService(users, rbacSvc, auth.NewTokenIssuer("secret", "leadops", time.Hour), auth.NewRedisRevocationList(rdb), nil)

	r := chi.NewRouter()
	r.Use(auth.Middleware{Service: authSvc}.Authenticate)
	r.Route("/auth", auth.NewHandler(nil, authSvc).MountRoutes)
	r.Route("/rbac", rbac.NewHandler(nil, rbacSvc).MountRoutes)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, users
}

func TestClientAgainstServer(t *testing.T) {
	srv, _ := newAPIServer(t)
	ctx := context.Background()
	tokens := &mutableToken{}
	client, err := dataapi.New(srv.URL+"/", srv.Client(), tokens)
	require.NoError(t, err)

	_, err = client.ListRoles(ctx)
	require.ErrorIs(t, err, shared.ErrUnauthenticated)

	_, err = client.Login(ctx, "root@example.com", "wrong")
	require.ErrorIs(t, err, shared.ErrUnauthenticated)

	tokens.token, err = client.Login(ctx, "root@example.com", "pw")
	require.NoError(t, err)

	me, err := client.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{shared.RoleSuperAdmin}, me.Roles)

	perms, err := client.ListPermissions(ctx)
	require.NoError(t, err)
	assert.Len(t, perms, len(rbac.DefaultPermissions()))

	role, err := client.CreateRole(ctx, rbac.CreateRoleRequest{Name: "Viewer", Permissions: []string{shared.PermViewUsers}})
	require.NoError(t, err)

	_, err = client.CreateRole(ctx, rbac.CreateRoleRequest{Name: "viewer"})
	require.ErrorIs(t, err, shared.ErrDuplicateName)
	assert.NotErrorIs(t, err, shared.ErrConflict)

	_, err = client.CreateRole(ctx, rbac.CreateRoleRequest{Name: "Broken", Permissions: []string{"teleport"}})
	var apiErr *dataapi.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	assert.Contains(t, apiErr.Message, "teleport")
	assert.ErrorIs(t, err, shared.ErrInvalidPermission)

	_, err = client.AssignRole(ctx, "u-viewer", role.ID)
	require.NoError(t, err)
	_, err = client.AssignRole(ctx, "u-viewer", role.ID)
	require.NoError(t, err)
	userRoles, err := client.GetUserRoles(ctx, "u-viewer")
	require.NoError(t, err)
	assert.Len(t, userRoles.Roles, 1)

	err = client.DeleteRole(ctx, role.ID)
	require.ErrorIs(t, err, shared.ErrConflict)

	roles, err := client.ListRoles(ctx)
	require.NoError(t, err)
	for _, r := range roles {
		if r.IsSystemRole {
			err := client.DeleteRole(ctx, r.ID)
			assert.ErrorIs(t, err, shared.ErrForbidden, r.Name)
			assert.NotErrorIs(t, err, shared.ErrUnauthorized, r.Name)
		}
	}

	require.NoError(t, client.Logout(ctx, tokens.token))
	_, err = client.Me(ctx)
	assert.ErrorIs(t, err, shared.ErrUnauthenticated)
}

func TestViewerIsRejectedByServer(t *testing.T) {
	srv, _ := newAPIServer(t)
	ctx := context.Background()
	anon, err := dataapi.New(srv.URL, srv.Client(), nil)
	require.NoError(t, err)
	token, err := anon.Login(ctx, "viewer@example.com", "pw")
	require.NoError(t, err)

	client, err := dataapi.New(srv.URL, srv.Client(), staticToken(token))
	require.NoError(t, err)
	_, err = client.CreateRole(ctx, rbac.CreateRoleRequest{Name: "Escalate"})
	assert.ErrorIs(t, err, shared.ErrUnauthorized)
	assert.True(t, shared.IsAuthFailure(err))
}

func TestErrorBodies(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		message string
		is      error
	}{
		{"detail string", http.StatusNotFound, `{"detail":"Meeting not found"}`, "Meeting not found", shared.ErrNotFound},
		{"message field", http.StatusBadRequest, `{"message":"bad input"}`, "bad input", shared.ErrValidation},
		{"detail list", http.StatusUnprocessableEntity, `{"detail":[{"msg":"field required"},{"msg":"too long"}]}`, "field required; too long", shared.ErrValidation},
		{"plain text", http.StatusBadGateway, `upstream down`, "upstream down", nil},
		{"missing permission", http.StatusForbidden, `{"title":"Forbidden","status":403,"detail":"unauthorized"}`, "unauthorized", shared.ErrUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			}))
			defer srv.Close()
			client, err := dataapi.New(srv.URL, srv.Client(), nil)
			require.NoError(t, err)

			_, err = client.ListPermissions(context.Background())
			var apiErr *dataapi.APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tc.status, apiErr.Status)
			assert.Equal(t, tc.message, apiErr.Message)
			if tc.is != nil {
				assert.ErrorIs(t, err, tc.is)
			}
		})
	}
}

func TestProblemTitlesKeepErrorKind(t *testing.T) {
	cases := []struct {
		name    string
		server  error
		is      error
		not     error
		message string
	}{
		{"duplicate name", shared.NewFieldError(shared.ErrDuplicateName, "name", "Sales"), shared.ErrDuplicateName, shared.ErrConflict, `name "Sales"`},
		{"assigned role", fmt.Errorf("%w: role %q is assigned to 2 user(s)", shared.ErrConflict, "Sales"), shared.ErrConflict, shared.ErrDuplicateName, "may be assigned to users"},
		{"unknown permission", shared.NewFieldError(shared.ErrInvalidPermission, "permissions", "teleport"), shared.ErrInvalidPermission, shared.ErrValidation, `permissions "teleport"`},
		{"system role rename", fmt.Errorf("%w: system role %q cannot be renamed", shared.ErrForbidden, "Admin"), shared.ErrForbidden, shared.ErrUnauthorized, "protected"},
		{"missing permission", shared.ErrUnauthorized, shared.ErrUnauthorized, shared.ErrForbidden, "do not have permission"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				httpx.RespondError(w, tc.server)
			}))
			defer srv.Close()
			client, err := dataapi.New(srv.URL, srv.Client(), staticToken("t"))
			require.NoError(t, err)

			_, err = client.CreateRole(context.Background(), rbac.CreateRoleRequest{Name: "Sales"})
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.is)
			assert.NotErrorIs(t, err, tc.not)
			assert.Contains(t, shared.UserSafeMessage(err), tc.message)
		})
	}
}

func TestUploadMeetingAudio(t *testing.T) {
	var gotAuth, gotName, gotType string
	var gotData []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/meetings/m-42/audio", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		file, header, err := r.FormFile("audio_file")
		if !assert.NoError(t, err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		gotName = header.Filename
		gotType = header.Header.Get("Content-Type")
		gotData, _ = io.ReadAll(file)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"message":"Audio recording uploaded successfully","meeting_id":"m-42","audio_filename":"x.webm","file_size":6,"processing_status":"not_started"}`)
	}))
	defer srv.Close()

	client, err := dataapi.New(srv.URL, srv.Client(), staticToken("tok"))
	require.NoError(t, err)
	res, err := client.UploadMeetingAudio(context.Background(), "m-42", "m-42.webm", "audio/webm", strings.NewReader("abcdef"))
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "m-42.webm", gotName)
	assert.Equal(t, "audio/webm", gotType)
	assert.Equal(t, "abcdef", string(gotData))
	assert.Equal(t, int64(6), res.FileSize)
}

func TestNewRejectsRelativeURL(t *testing.T) {
	_, err := dataapi.New("/api", nil, nil)
	assert.Error(t, err)
}
