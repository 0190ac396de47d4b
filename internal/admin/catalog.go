package admin

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/niveshya/leadops/internal/rbac"
	"github.com/niveshya/leadops/internal/shared"
)

// DefaultCatalogTTL bounds how long a fetched permission catalog is reused.
const DefaultCatalogTTL = 5 * time.Minute

// PermissionLister fetches the permission catalog.
type PermissionLister interface {
	ListPermissions(ctx context.Context) ([]rbac.Permission, error)
}

// Catalog caches the permission catalog. Concurrent misses share one fetch.
type Catalog struct {
	api   PermissionLister
	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group

	mu        sync.RWMutex
	perms     []rbac.Permission
	fetchedAt time.Time
}

// NewCatalog constructs a Catalog. A non-positive ttl selects DefaultCatalogTTL.
func NewCatalog(api PermissionLister, ttl time.Duration) *Catalog {
	if ttl <= 0 {
		ttl = DefaultCatalogTTL
	}
	return &Catalog{api: api, ttl: ttl, now: time.Now}
}

// Permissions returns the cached catalog, fetching it when stale.
func (c *Catalog) Permissions(ctx context.Context) ([]rbac.Permission, error) {
	c.mu.RLock()
	if c.perms != nil && c.now().Sub(c.fetchedAt) < c.ttl {
		perms := c.perms
		c.mu.RUnlock()
		return perms, nil
	}
	c.mu.RUnlock()

	ch := c.group.DoChan("permissions", func() (any, error) {
		perms, err := c.api.ListPermissions(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.perms = perms
		c.fetchedAt = c.now()
		c.mu.Unlock()
		return perms, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]rbac.Permission), nil
	}
}

// Validate fails with ErrInvalidPermission naming the first unknown permission.
func (c *Catalog) Validate(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}
	perms, err := c.Permissions(ctx)
	if err != nil {
		return err
	}
	known := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		known[p.Name] = struct{}{}
	}
	for _, n := range names {
		if _, ok := known[strings.ToLower(strings.TrimSpace(n))]; !ok {
			return shared.NewFieldError(shared.ErrInvalidPermission, "permissions", n)
		}
	}
	return nil
}

// Invalidate drops the cached catalog.
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	c.perms = nil
	c.mu.Unlock()
}

// ByCategory groups permissions for display, keeping catalog order within a category.
func ByCategory(perms []rbac.Permission) map[rbac.Category][]rbac.Permission {
	out := make(map[rbac.Category][]rbac.Permission)
	for _, p := range perms {
		out[p.Category] = append(out[p.Category], p)
	}
	return out
}
