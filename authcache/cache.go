package authcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrStoreUnavailable marks a Redis round trip that failed. It never
// surfaces to the application; the cache absorbs it into pass-through mode.
var ErrStoreUnavailable = errors.New("authorization cache store unavailable")

// Loader is the source of truth consulted on a cache miss, normally the
// audited controller transport.
type Loader interface {
	LoadRoles(ctx context.Context, scope Scope) ([]string, error)
	LoadPermissions(ctx context.Context, scope Scope) ([]string, error)
}

// Events receives lookup outcome notifications. Implementations must be
// cheap and non-blocking.
type Events interface {
	Hit()
	Miss()
	PassThrough()
}

type nopEvents struct{}

func (nopEvents) Hit()         {}
func (nopEvents) Miss()        {}
func (nopEvents) PassThrough() {}

// Options configures a Cache.
type Options struct {
	Prefix    string        // key prefix, default "goctrl"
	TTL       time.Duration // entry lifetime, default 15m
	OpTimeout time.Duration // per Redis round trip, default 500ms
	Logger    *zap.Logger
	Events    Events
	Clock     func() time.Time // test hook
}

// cacheEntry is the stored representation. Redis expiry is the enforcement
// mechanism; cachedAt/ttlSeconds are kept in the payload so an entry read
// from a store without native expiry (or after a clock jump) is still
// bounded.
type cacheEntry struct {
	Payload    []string  `json:"payload"`
	ScopeKey   string    `json:"scopeKey"`
	CachedAt   time.Time `json:"cachedAt"`
	TTLSeconds int       `json:"ttlSeconds"`
}

// Cache is the cache-aside authorization layer. A nil Redis client is
// allowed and means permanent pass-through. All methods are safe for
// concurrent use.
type Cache struct {
	rdb       redis.Cmdable
	loader    Loader
	prefix    string
	ttl       time.Duration
	opTimeout time.Duration
	log       *zap.Logger
	events    Events
	now       func() time.Time
}

// New builds a Cache over rdb and loader. loader must not be nil.
func New(rdb redis.Cmdable, loader Loader, opts Options) *Cache {
	if opts.Prefix == "" {
		opts.Prefix = "goctrl"
	}
	if opts.TTL <= 0 {
		opts.TTL = 15 * time.Minute
	}
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = 500 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Events == nil {
		opts.Events = nopEvents{}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Cache{
		rdb:       rdb,
		loader:    loader,
		prefix:    opts.Prefix,
		ttl:       opts.TTL,
		opTimeout: opts.OpTimeout,
		log:       opts.Logger.Named("authcache"),
		events:    opts.Events,
		now:       opts.Clock,
	}
}

// GetRoles returns the role set for scope, from cache when fresh, else from
// the loader.
func (c *Cache) GetRoles(ctx context.Context, scope Scope) (RoleSet, error) {
	names, err := c.lookup(ctx, scope.key(c.prefix, kindRoles), func(ctx context.Context) ([]string, error) {
		return c.loader.LoadRoles(ctx, scope)
	})
	if err != nil {
		return nil, err
	}
	return NewRoleSet(names), nil
}

// GetPermissions returns the permission set for scope, from cache when
// fresh, else from the loader.
func (c *Cache) GetPermissions(ctx context.Context, scope Scope) (PermissionSet, error) {
	names, err := c.lookup(ctx, scope.key(c.prefix, kindPermissions), func(ctx context.Context) ([]string, error) {
		return c.loader.LoadPermissions(ctx, scope)
	})
	if err != nil {
		return nil, err
	}
	return NewPermissionSet(names), nil
}

// RefreshRoles bypasses the cache, loads from the controller, and
// overwrites the cached entry regardless of freshness.
func (c *Cache) RefreshRoles(ctx context.Context, scope Scope) (RoleSet, error) {
	names, err := c.loader.LoadRoles(ctx, scope)
	if err != nil {
		return nil, err
	}
	c.write(ctx, scope.key(c.prefix, kindRoles), names)
	return NewRoleSet(names), nil
}

// RefreshPermissions bypasses the cache, loads from the controller, and
// overwrites the cached entry regardless of freshness.
func (c *Cache) RefreshPermissions(ctx context.Context, scope Scope) (PermissionSet, error) {
	names, err := c.loader.LoadPermissions(ctx, scope)
	if err != nil {
		return nil, err
	}
	c.write(ctx, scope.key(c.prefix, kindPermissions), names)
	return NewPermissionSet(names), nil
}

// Clear drops the cached roles and permissions for one scope. Store errors
// are absorbed.
func (c *Cache) Clear(ctx context.Context, scope Scope) {
	if c.rdb == nil {
		return
	}
	cctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	if err := c.rdb.Del(cctx, scope.key(c.prefix, kindRoles), scope.key(c.prefix, kindPermissions)).Err(); err != nil {
		c.log.Debug("cache clear failed", zap.Error(err))
	}
}

// ClearAll drops every authorization entry under this cache's prefix.
// Store errors are absorbed.
func (c *Cache) ClearAll(ctx context.Context) {
	if c.rdb == nil {
		return
	}
	var cursor uint64
	pattern := c.prefix + ":authz:*"
	for {
		cctx, cancel := context.WithTimeout(ctx, c.opTimeout)
		keys, next, err := c.rdb.Scan(cctx, cursor, pattern, 100).Result()
		if err != nil {
			cancel()
			c.log.Debug("cache clear-all scan failed", zap.Error(err))
			return
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(cctx, keys...).Err(); err != nil {
				cancel()
				c.log.Debug("cache clear-all delete failed", zap.Error(err))
				return
			}
		}
		cancel()
		if next == 0 {
			return
		}
		cursor = next
	}
}

// lookup implements cache-aside with fail-open degradation: a store error
// routes the call straight to the loader and skips the re-populate write,
// so one unavailable Redis costs exactly zero extra round trips.
func (c *Cache) lookup(ctx context.Context, key string, load func(context.Context) ([]string, error)) ([]string, error) {
	payload, hit, degraded := c.read(ctx, key)
	if hit {
		c.events.Hit()
		return payload, nil
	}
	if degraded {
		c.events.PassThrough()
	} else {
		c.events.Miss()
	}

	payload, err := load(ctx)
	if err != nil {
		return nil, err
	}
	if !degraded {
		c.write(ctx, key, payload)
	}
	return payload, nil
}

func (c *Cache) read(ctx context.Context, key string) (payload []string, hit, degraded bool) {
	if c.rdb == nil {
		return nil, false, true
	}
	cctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	raw, err := c.rdb.Get(cctx, key).Result()
	if err == redis.Nil {
		return nil, false, false
	}
	if err != nil {
		c.log.Debug("cache read failed, passing through", zap.String("key", key), zap.Error(fmt.Errorf("%w: %v", ErrStoreUnavailable, err)))
		return nil, false, true
	}

	var entry cacheEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		c.log.Debug("cache entry corrupt, treating as miss", zap.String("key", key))
		return nil, false, false
	}
	if c.now().After(entry.CachedAt.Add(time.Duration(entry.TTLSeconds) * time.Second)) {
		return nil, false, false
	}
	if entry.Payload == nil {
		entry.Payload = []string{}
	}
	return entry.Payload, true, false
}

// write is best effort; a failed populate only means the next lookup loads
// again.
func (c *Cache) write(ctx context.Context, key string, payload []string) {
	if c.rdb == nil {
		return
	}
	entry := cacheEntry{
		Payload:    payload,
		ScopeKey:   key,
		CachedAt:   c.now(),
		TTLSeconds: int(c.ttl / time.Second),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	cctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	if err := c.rdb.Set(cctx, key, data, c.ttl).Err(); err != nil {
		c.log.Debug("cache write failed", zap.String("key", key), zap.Error(err))
	}
}
