package authcache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeLoader struct {
	mu        sync.Mutex
	roleCalls atomic.Int64
	permCalls atomic.Int64
	roles     []string
	perms     []string
}

func (l *fakeLoader) LoadRoles(ctx context.Context, scope Scope) ([]string, error) {
	l.roleCalls.Add(1)
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.roles...), nil
}

func (l *fakeLoader) LoadPermissions(ctx context.Context, scope Scope) ([]string, error) {
	l.permCalls.Add(1)
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.perms...), nil
}

func (l *fakeLoader) setRoles(roles []string) {
	l.mu.Lock()
	l.roles = roles
	l.mu.Unlock()
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestCache(t *testing.T, loader Loader, clock *fakeClock) (*Cache, *miniredis.Miniredis, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	opts := Options{Prefix: "test"}
	if clock != nil {
		opts.Clock = clock.Now
	}
	cache := New(rdb, loader, opts)

	return cache, mr, func() {
		_ = rdb.Close()
		mr.Close()
	}
}

func testScope() Scope {
	return Scope{UserID: "user-1", EnvironmentID: "env-1", ApplicationID: "app-1"}
}

func TestGetRolesCachesWithinTTL(t *testing.T) {
	loader := &fakeLoader{roles: []string{"admin", "editor"}}
	cache, _, done := newTestCache(t, loader, nil)
	defer done()

	ctx := context.Background()
	first, err := cache.GetRoles(ctx, testScope())
	if err != nil {
		t.Fatalf("get roles failed: %v", err)
	}
	second, err := cache.GetRoles(ctx, testScope())
	if err != nil {
		t.Fatalf("get roles failed: %v", err)
	}

	if got := loader.roleCalls.Load(); got != 1 {
		t.Fatalf("expected one downstream call within TTL, got %d", got)
	}
	if !first.Has("admin") || !second.Has("editor") {
		t.Fatalf("unexpected role sets %v / %v", first.Values(), second.Values())
	}
}

func TestGetRolesReloadsAfterTTL(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)}
	loader := &fakeLoader{roles: []string{"admin"}}
	cache, _, done := newTestCache(t, loader, clock)
	defer done()

	ctx := context.Background()
	if _, err := cache.GetRoles(ctx, testScope()); err != nil {
		t.Fatalf("get roles failed: %v", err)
	}

	clock.advance(16 * time.Minute)
	if _, err := cache.GetRoles(ctx, testScope()); err != nil {
		t.Fatalf("get roles failed: %v", err)
	}
	if got := loader.roleCalls.Load(); got != 2 {
		t.Fatalf("expected second downstream call after TTL expiry, got %d", got)
	}
}

func TestRefreshBypassesCacheAndOverwrites(t *testing.T) {
	loader := &fakeLoader{roles: []string{"admin"}}
	cache, _, done := newTestCache(t, loader, nil)
	defer done()

	ctx := context.Background()
	if _, err := cache.GetRoles(ctx, testScope()); err != nil {
		t.Fatalf("get roles failed: %v", err)
	}

	loader.setRoles([]string{"viewer"})
	refreshed, err := cache.RefreshRoles(ctx, testScope())
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if !refreshed.Has("viewer") || refreshed.Has("admin") {
		t.Fatalf("refresh did not return fresh payload: %v", refreshed.Values())
	}
	if got := loader.roleCalls.Load(); got != 2 {
		t.Fatalf("expected refresh to always call downstream, got %d calls", got)
	}

	// Read-your-own-write: the next lookup observes the refreshed entry
	// without another downstream call.
	after, err := cache.GetRoles(ctx, testScope())
	if err != nil {
		t.Fatalf("get roles failed: %v", err)
	}
	if !after.Has("viewer") {
		t.Fatalf("expected refreshed entry, got %v", after.Values())
	}
	if got := loader.roleCalls.Load(); got != 2 {
		t.Fatalf("expected cached read after refresh, got %d calls", got)
	}
}

func TestPassThroughWhenStoreUnreachable(t *testing.T) {
	loader := &fakeLoader{perms: []string{"doc:read"}}
	cache, mr, done := newTestCache(t, loader, nil)
	defer done()

	mr.Close()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		perms, err := cache.GetPermissions(ctx, testScope())
		if err != nil {
			t.Fatalf("expected pass-through, got error %v", err)
		}
		if !perms.Has("doc:read") {
			t.Fatalf("unexpected permission set %v", perms.Values())
		}
	}
	if got := loader.permCalls.Load(); got != 2 {
		t.Fatalf("expected every call to reach downstream in pass-through mode, got %d", got)
	}
}

func TestNilStoreIsPermanentPassThrough(t *testing.T) {
	loader := &fakeLoader{roles: []string{"admin"}}
	cache := New(nil, loader, Options{})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := cache.GetRoles(ctx, testScope()); err != nil {
			t.Fatalf("get roles failed: %v", err)
		}
	}
	if got := loader.roleCalls.Load(); got != 3 {
		t.Fatalf("expected three downstream calls, got %d", got)
	}
}

func TestClearDropsScopedEntries(t *testing.T) {
	loader := &fakeLoader{roles: []string{"admin"}, perms: []string{"doc:read"}}
	cache, _, done := newTestCache(t, loader, nil)
	defer done()

	ctx := context.Background()
	if _, err := cache.GetRoles(ctx, testScope()); err != nil {
		t.Fatalf("get roles failed: %v", err)
	}
	if _, err := cache.GetPermissions(ctx, testScope()); err != nil {
		t.Fatalf("get permissions failed: %v", err)
	}

	cache.Clear(ctx, testScope())

	if _, err := cache.GetRoles(ctx, testScope()); err != nil {
		t.Fatalf("get roles failed: %v", err)
	}
	if got := loader.roleCalls.Load(); got != 2 {
		t.Fatalf("expected reload after clear, got %d calls", got)
	}
}

func TestClearAllDropsEveryEntry(t *testing.T) {
	loader := &fakeLoader{roles: []string{"admin"}}
	cache, mr, done := newTestCache(t, loader, nil)
	defer done()

	ctx := context.Background()
	other := Scope{UserID: "user-2", EnvironmentID: "env-1", ApplicationID: "app-1"}
	if _, err := cache.GetRoles(ctx, testScope()); err != nil {
		t.Fatalf("get roles failed: %v", err)
	}
	if _, err := cache.GetRoles(ctx, other); err != nil {
		t.Fatalf("get roles failed: %v", err)
	}

	cache.ClearAll(ctx)

	if keys := mr.Keys(); len(keys) != 0 {
		t.Fatalf("expected empty store after clear-all, got %v", keys)
	}
}

func TestScopeKeysNeverCollide(t *testing.T) {
	a := Scope{UserID: "a:b", EnvironmentID: "c", ApplicationID: "d"}
	b := Scope{UserID: "a", EnvironmentID: "b:c", ApplicationID: "d"}
	if a.key("p", kindRoles) == b.key("p", kindRoles) {
		t.Fatalf("scope keys collided: %q", a.key("p", kindRoles))
	}

	c := Scope{UserID: "a", EnvironmentID: "bc", ApplicationID: "d"}
	d := Scope{UserID: "ab", EnvironmentID: "c", ApplicationID: "d"}
	if c.key("p", kindRoles) == d.key("p", kindRoles) {
		t.Fatalf("scope keys collided: %q", c.key("p", kindRoles))
	}

	if a.key("p", kindRoles) == a.key("p", kindPermissions) {
		t.Fatalf("role and permission keys collided")
	}
	if a.key("p", kindRoles) != a.key("p", kindRoles) {
		t.Fatalf("scope key not deterministic")
	}
}

func TestMembershipChecksArePure(t *testing.T) {
	roles := NewRoleSet([]string{"admin", "editor"})
	if !roles.Has("admin") || roles.Has("viewer") {
		t.Fatalf("Has misbehaved")
	}
	if !roles.HasAny("viewer", "editor") || roles.HasAny("viewer", "owner") {
		t.Fatalf("HasAny misbehaved")
	}
	if !roles.HasAll("admin", "editor") || roles.HasAll("admin", "viewer") {
		t.Fatalf("HasAll misbehaved")
	}

	perms := NewPermissionSet([]string{"doc:read"})
	if !perms.Has("doc:read") || perms.Has("doc:write") {
		t.Fatalf("permission Has misbehaved")
	}
	if got := perms.Values(); len(got) != 1 || got[0] != "doc:read" {
		t.Fatalf("unexpected values %v", got)
	}
}
