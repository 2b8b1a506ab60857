package goCtrl

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/MrEthical07/goCtrl/authcache"
	"github.com/MrEthical07/goCtrl/credential"
	"github.com/MrEthical07/goCtrl/masking"
)

// Client is the composition root of the SDK. Build one through [Builder]
// and share it; all methods are safe for concurrent use. One Client owns
// one credential, one audit dispatcher, and one cache view.
type Client struct {
	cfg        Config
	log        *zap.Logger
	metrics    *metricSet
	creds      *credential.Store
	transport  *Transport
	pipeline   Doer
	cache      *authcache.Cache
	masker     *masking.Masker
	disp       *auditDispatcher
	httpClient *http.Client

	closed    atomic.Bool
	closeOnce sync.Once
}

func (c *Client) ready() error {
	if c == nil || c.pipeline == nil {
		return ErrClientNotReady
	}
	if c.closed.Load() {
		return ErrClientClosed
	}
	return nil
}

func (c *Client) scope(userID string) authcache.Scope {
	return authcache.Scope{
		UserID:        userID,
		EnvironmentID: c.cfg.Controller.EnvironmentID,
		ApplicationID: c.cfg.Controller.ApplicationID,
	}
}

// GetRoles returns the role set for userID, cached up to the configured
// TTL.
func (c *Client) GetRoles(ctx context.Context, userID string) (authcache.RoleSet, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	return c.cache.GetRoles(ctx, c.scope(userID))
}

// GetPermissions returns the permission set for userID, cached up to the
// configured TTL.
func (c *Client) GetPermissions(ctx context.Context, userID string) (authcache.PermissionSet, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	return c.cache.GetPermissions(ctx, c.scope(userID))
}

// RefreshRoles bypasses the cache and re-populates it from the controller.
func (c *Client) RefreshRoles(ctx context.Context, userID string) (authcache.RoleSet, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	return c.cache.RefreshRoles(ctx, c.scope(userID))
}

// RefreshPermissions bypasses the cache and re-populates it from the
// controller.
func (c *Client) RefreshPermissions(ctx context.Context, userID string) (authcache.PermissionSet, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	return c.cache.RefreshPermissions(ctx, c.scope(userID))
}

// ClearAuthorization drops the cached roles and permissions for userID.
func (c *Client) ClearAuthorization(ctx context.Context, userID string) {
	if c.ready() != nil {
		return
	}
	c.cache.Clear(ctx, c.scope(userID))
}

// ClearAllAuthorization drops every cached authorization entry written
// under this client's prefix.
func (c *Client) ClearAllAuthorization(ctx context.Context) {
	if c.ready() != nil {
		return
	}
	c.cache.ClearAll(ctx)
}

// HasRole fetches the role set for userID (cache-aside) and checks
// membership. The check itself is pure; only the fetch may touch the
// network.
func (c *Client) HasRole(ctx context.Context, userID, role string) (bool, error) {
	roles, err := c.GetRoles(ctx, userID)
	if err != nil {
		return false, err
	}
	return roles.Has(role), nil
}

// HasAnyRole reports whether userID holds at least one of the given roles.
func (c *Client) HasAnyRole(ctx context.Context, userID string, roles ...string) (bool, error) {
	set, err := c.GetRoles(ctx, userID)
	if err != nil {
		return false, err
	}
	return set.HasAny(roles...), nil
}

// HasAllRoles reports whether userID holds every one of the given roles.
func (c *Client) HasAllRoles(ctx context.Context, userID string, roles ...string) (bool, error) {
	set, err := c.GetRoles(ctx, userID)
	if err != nil {
		return false, err
	}
	return set.HasAll(roles...), nil
}

// HasPermission fetches the permission set for userID and checks
// membership.
func (c *Client) HasPermission(ctx context.Context, userID, permission string) (bool, error) {
	perms, err := c.GetPermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	return perms.Has(permission), nil
}

// HasAnyPermission reports whether userID holds at least one of the given
// permissions.
func (c *Client) HasAnyPermission(ctx context.Context, userID string, permissions ...string) (bool, error) {
	set, err := c.GetPermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	return set.HasAny(permissions...), nil
}

// HasAllPermissions reports whether userID holds every one of the given
// permissions.
func (c *Client) HasAllPermissions(ctx context.Context, userID string, permissions ...string) (bool, error) {
	set, err := c.GetPermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	return set.HasAll(permissions...), nil
}

// CurrentUser fetches the controller's user payload for userID. Never
// cached; user payloads change independently of authorization data.
func (c *Client) CurrentUser(ctx context.Context, userID string) (*UserInfo, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	resp, err := c.pipeline.Do(ctx, Request{
		Method: http.MethodGet,
		Path:   "/api/v1/users/" + url.PathEscape(userID),
	})
	if err != nil {
		return nil, err
	}
	var out UserInfo
	if err := decodeJSON(resp.Body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListRoles fetches one page of the controller's role catalogue.
func (c *Client) ListRoles(ctx context.Context, pageSize, currentPage int) (*RolePage, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	q := url.Values{}
	if pageSize > 0 {
		q.Set("pageSize", fmt.Sprintf("%d", pageSize))
	}
	if currentPage > 0 {
		q.Set("currentPage", fmt.Sprintf("%d", currentPage))
	}
	resp, err := c.pipeline.Do(ctx, Request{
		Method: http.MethodGet,
		Path:   "/api/v1/roles",
		Query:  q,
	})
	if err != nil {
		return nil, err
	}
	var out RolePage
	if err := decodeJSON(resp.Body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Do executes an arbitrary authenticated controller call through the full
// pipeline (credential injection, retry-once, auditing). Escape hatch for
// resource endpoints without a typed helper.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	return c.pipeline.Do(ctx, req)
}

// MetricsSnapshot returns a point-in-time copy of the internal counters.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	return c.metrics.snapshot()
}

// AuditDropped reports how many audit records were discarded because the
// dispatcher buffer was full.
func (c *Client) AuditDropped() uint64 {
	return c.disp.Dropped()
}

// Masker exposes the client's masker so applications can reuse the merged
// ruleset for their own logging.
func (c *Client) Masker() *masking.Masker {
	return c.masker
}

// Close drains the audit dispatcher and releases idle connections.
// Idempotent; calls made after Close return ErrClientClosed.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.disp.Close()
		if c.httpClient != nil {
			c.httpClient.CloseIdleConnections()
		}
	})
}

// controllerLoader adapts the audited pipeline to the cache's Loader
// interface.
type controllerLoader struct {
	doer Doer
}

func (l *controllerLoader) LoadRoles(ctx context.Context, scope authcache.Scope) ([]string, error) {
	resp, err := l.doer.Do(ctx, Request{
		Method: http.MethodGet,
		Path:   "/api/v1/users/" + url.PathEscape(scope.UserID) + "/roles",
	})
	if err != nil {
		return nil, err
	}
	var out rolesResponse
	if err := decodeJSON(resp.Body, &out); err != nil {
		return nil, err
	}
	return out.Roles, nil
}

func (l *controllerLoader) LoadPermissions(ctx context.Context, scope authcache.Scope) ([]string, error) {
	resp, err := l.doer.Do(ctx, Request{
		Method: http.MethodGet,
		Path:   "/api/v1/users/" + url.PathEscape(scope.UserID) + "/permissions",
	})
	if err != nil {
		return nil, err
	}
	var out permissionsResponse
	if err := decodeJSON(resp.Body, &out); err != nil {
		return nil, err
	}
	return out.Permissions, nil
}

// credEvents maps credential lifecycle events onto metric counters.
type credEvents struct {
	m *metricSet
}

func (e credEvents) RefreshSucceeded() { e.m.inc(MetricCredentialRefreshSuccess) }
func (e credEvents) RefreshFailed()    { e.m.inc(MetricCredentialRefreshFailure) }
func (e credEvents) Invalidated()      { e.m.inc(MetricCredentialInvalidated) }

// cacheEvents maps cache lookup outcomes onto metric counters.
type cacheEvents struct {
	m *metricSet
}

func (e cacheEvents) Hit()         { e.m.inc(MetricCacheHit) }
func (e cacheEvents) Miss()        { e.m.inc(MetricCacheMiss) }
func (e cacheEvents) PassThrough() { e.m.inc(MetricCachePassThrough) }
