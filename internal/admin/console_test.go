package admin

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/niveshya/leadops/internal/rbac"
	"github.com/niveshya/leadops/internal/session"
	"github.com/niveshya/leadops/internal/shared"
)

// ============================================================================
// FAKE API
// ============================================================================

type fakeAPI struct {
	mu        sync.Mutex
	roles     map[string]rbac.Role
	mutations int
	permCalls atomic.Int32
	permDelay time.Duration
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{roles: map[string]rbac.Role{
		"r-super": {ID: "r-super", Name: shared.RoleSuperAdmin, IsSystemRole: true},
		"r-temp":  {ID: "r-temp", Name: "Temp"},
	}}
}

func (f *fakeAPI) ListPermissions(ctx context.Context) ([]rbac.Permission, error) {
	f.permCalls.Add(1)
	time.Sleep(f.permDelay)
	return []rbac.Permission{
		{Name: shared.PermViewUsers, Category: rbac.CategoryUsers},
		{Name: shared.PermManageRoles, Category: rbac.CategoryAdmin},
		{Name: shared.PermEditUsers, Category: rbac.CategoryUsers},
	}, nil
}

func (f *fakeAPI) ListRoles(ctx context.Context) ([]rbac.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]rbac.Role, 0, len(f.roles))
	for _, r := range f.roles {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeAPI) GetRole(ctx context.Context, id string) (rbac.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.roles[id]
	if !ok {
		return rbac.Role{}, shared.ErrNotFound
	}
	return r, nil
}

func (f *fakeAPI) CreateRole(ctx context.Context, req rbac.CreateRoleRequest) (rbac.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mutations++
	r := rbac.Role{ID: "r-" + req.Name, Name: req.Name, Permissions: req.Permissions}
	f.roles[r.ID] = r
	return r, nil
}

func (f *fakeAPI) UpdateRole(ctx context.Context, id string, req rbac.UpdateRoleRequest) (rbac.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mutations++
	return f.roles[id], nil
}

func (f *fakeAPI) DeleteRole(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mutations++
	delete(f.roles, id)
	return nil
}

func (f *fakeAPI) AssignRole(ctx context.Context, userID, roleID string) (rbac.RoleAssignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mutations++
	return rbac.RoleAssignment{UserID: userID, RoleID: roleID}, nil
}

func (f *fakeAPI) UnassignRole(ctx context.Context, userID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mutations++
	return nil
}

func (f *fakeAPI) GetUserRoles(ctx context.Context, userID string) (rbac.UserRolesResponse, error) {
	return rbac.UserRolesResponse{UserID: userID}, nil
}

type tokenAuth string

func (t tokenAuth) Login(ctx context.Context, email, password string) (string, error) {
	return string(t), nil
}

func signedIn(t *testing.T, userID string, roles ...string) *session.Store {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   userID,
		"exp":   time.Now().Add(time.Hour).Unix(),
		"roles": roles,
	})
	raw, err := token.SignedString([]byte("k"))
	require.NoError(t, err)
	store := session.NewStore(session.Options{}, &session.MemorySource{})
	_, err = store.Login(context.Background(), tokenAuth(raw), "x", "y")
	require.NoError(t, err)
	return store
}

// ============================================================================
// TESTS
// ============================================================================

func TestViewerCannotCreateRole(t *testing.T) {
	api := newFakeAPI()
	console := NewConsole(api, signedIn(t, "u-viewer", "Viewer"), nil, nil)

	_, err := console.CreateRole(context.Background(), rbac.CreateRoleRequest{Name: "Escalate"})
	require.ErrorIs(t, err, shared.ErrUnauthorized)
	assert.Zero(t, api.mutations)
	assert.Zero(t, api.permCalls.Load())

	assert.Equal(t, Affordances{}, console.Affordances())
}

func TestSignedOutConsole(t *testing.T) {
	api := newFakeAPI()
	console := NewConsole(api, session.NewStore(session.Options{}), nil, nil)

	_, err := console.Roles(context.Background())
	assert.ErrorIs(t, err, shared.ErrUnauthenticated)
	_, err = console.UserRoles(context.Background(), "u-1")
	assert.ErrorIs(t, err, shared.ErrUnauthenticated)
	assert.Equal(t, Affordances{}, console.Affordances())
}

func TestAffordancesFollowStoreClock(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "u-root",
		"exp":   time.Now().Add(time.Hour).Unix(),
		"roles": []string{shared.RoleSuperAdmin},
	})
	raw, err := token.SignedString([]byte("k"))
	require.NoError(t, err)

	now := time.Now()
	store := session.NewStore(session.Options{Clock: func() time.Time { return now }}, &session.MemorySource{})
	_, err = store.Login(context.Background(), tokenAuth(raw), "x", "y")
	require.NoError(t, err)
	assert.True(t, AffordancesFor(store.Current()).CanCreateRoles)

	now = now.Add(2 * time.Hour)
	assert.Equal(t, Affordances{}, AffordancesFor(store.Current()))
	_, err = NewConsole(newFakeAPI(), store, nil, nil).Roles(context.Background())
	assert.ErrorIs(t, err, shared.ErrUnauthenticated)
}

func TestSuperAdminCreatesAfterLocalValidation(t *testing.T) {
	api := newFakeAPI()
	console := NewConsole(api, signedIn(t, "u-root", shared.RoleSuperAdmin), nil, nil)
	ctx := context.Background()

	_, err := console.CreateRole(ctx, rbac.CreateRoleRequest{Name: "Ops", Permissions: []string{"view_users", "warp_drive"}})
	require.ErrorIs(t, err, shared.ErrInvalidPermission)
	var fieldErr *shared.FieldError
	require.True(t, errors.As(err, &fieldErr))
	assert.Equal(t, "warp_drive", fieldErr.Value)
	assert.Zero(t, api.mutations)

	_, err = console.CreateRole(ctx, rbac.CreateRoleRequest{Name: "  "})
	require.ErrorIs(t, err, shared.ErrValidation)

	role, err := console.CreateRole(ctx, rbac.CreateRoleRequest{Name: "Ops", Permissions: []string{"VIEW_USERS"}})
	require.NoError(t, err)
	assert.Equal(t, "Ops", role.Name)
	assert.Equal(t, 1, api.mutations)

	_, err = console.UpdateRole(ctx, role.ID, rbac.UpdateRoleRequest{Permissions: &[]string{"nope"}})
	assert.ErrorIs(t, err, shared.ErrInvalidPermission)
	assert.Equal(t, 1, api.mutations)

	assert.Equal(t, Affordances{CanViewRoles: true, CanCreateRoles: true, CanEditRoles: true, CanDeleteRoles: true, CanAssignRoles: true}, console.Affordances())
}

func TestDeleteSystemRoleRefusedLocally(t *testing.T) {
	api := newFakeAPI()
	console := NewConsole(api, signedIn(t, "u-root", shared.RoleSuperAdmin), nil, nil)
	ctx := context.Background()

	require.ErrorIs(t, console.DeleteRole(ctx, "r-super"), shared.ErrForbidden)
	assert.Zero(t, api.mutations)

	require.NoError(t, console.DeleteRole(ctx, "r-temp"))
	assert.Equal(t, 1, api.mutations)
	assert.ErrorIs(t, console.DeleteRole(ctx, "r-temp"), shared.ErrNotFound)
}

func TestAdminMayAssignButNotEdit(t *testing.T) {
	api := newFakeAPI()
	console := NewConsole(api, signedIn(t, "u-admin", shared.RoleAdmin), nil, nil)
	ctx := context.Background()

	_, err := console.AssignRole(ctx, "u-2", "r-temp")
	require.NoError(t, err)
	require.NoError(t, console.UnassignRole(ctx, "u-2", "r-temp"))
	_, err = console.UpdateRole(ctx, "r-temp", rbac.UpdateRoleRequest{})
	assert.ErrorIs(t, err, shared.ErrUnauthorized)
	assert.ErrorIs(t, console.DeleteRole(ctx, "r-temp"), shared.ErrUnauthorized)

	aff := console.Affordances()
	assert.True(t, aff.CanAssignRoles)
	assert.False(t, aff.CanCreateRoles)
}

func TestUserRolesSelfAccess(t *testing.T) {
	api := newFakeAPI()
	console := NewConsole(api, signedIn(t, "u-1", shared.RoleUser), nil, nil)
	ctx := context.Background()

	resp, err := console.UserRoles(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "u-1", resp.UserID)
	_, err = console.UserRoles(ctx, "u-2")
	assert.ErrorIs(t, err, shared.ErrUnauthorized)
}

func TestCatalogSharesConcurrentFetches(t *testing.T) {
	api := newFakeAPI()
	api.permDelay = 20 * time.Millisecond
	catalog := NewCatalog(api, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			perms, err := catalog.Permissions(context.Background())
			assert.NoError(t, err)
			assert.Len(t, perms, 3)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), api.permCalls.Load())

	_, err := catalog.Permissions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), api.permCalls.Load())

	catalog.Invalidate()
	_, err = catalog.Permissions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), api.permCalls.Load())
}

func TestCatalogExpires(t *testing.T) {
	api := newFakeAPI()
	catalog := NewCatalog(api, time.Minute)
	now := time.Now()
	catalog.now = func() time.Time { return now }

	_, err := catalog.Permissions(context.Background())
	require.NoError(t, err)
	now = now.Add(2 * time.Minute)
	_, err = catalog.Permissions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), api.permCalls.Load())

	groups := ByCategory(mustPerms(t, catalog))
	assert.Len(t, groups[rbac.CategoryUsers], 2)
	assert.Len(t, groups[rbac.CategoryAdmin], 1)
}

func mustPerms(t *testing.T, c *Catalog) []rbac.Permission {
	t.Helper()
	perms, err := c.Permissions(context.Background())
	require.NoError(t, err)
	return perms
}
