package goCtrl

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeControllerAPI struct {
	tokenCalls atomic.Int64
	roleCalls  atomic.Int64
	permCalls  atomic.Int64
	srv        *httptest.Server
}

func newFakeControllerAPI(t *testing.T) *fakeControllerAPI {
	t.Helper()
	api := &fakeControllerAPI{}
	api.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/auth/token":
			n := api.tokenCalls.Add(1)
			fmt.Fprintf(w, `{"value":"tok-%d","expiresIn":3600}`, n)
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/roles":
			fmt.Fprintf(w, `{"pageSize":%s,"currentPage":%s,"totalItems":2,"items":[{"name":"admin"},{"name":"editor"}]}`,
				r.URL.Query().Get("pageSize"), r.URL.Query().Get("currentPage"))
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/api/v1/users/"):
			id, sub, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/api/v1/users/"), "/")
			switch sub {
			case "roles":
				api.roleCalls.Add(1)
				fmt.Fprint(w, `{"roles":["admin","editor"]}`)
			case "permissions":
				api.permCalls.Add(1)
				fmt.Fprint(w, `{"permissions":["document:read","document:write"]}`)
			case "":
				fmt.Fprintf(w, `{"userId":%q,"identifier":"alice@example.test","displayName":"Alice"}`, id)
			default:
				http.NotFound(w, r)
			}
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(api.srv.Close)
	return api
}

func newTestClient(t *testing.T, api *fakeControllerAPI, rdb *redis.Client) *Client {
	t.Helper()
	cfg := defaultConfig()
	cfg.Controller.BaseURL = api.srv.URL
	cfg.Controller.EnvironmentID = "env-1"
	cfg.Controller.ApplicationID = "app-1"
	cfg.Controller.ClientID = "client-1"
	cfg.Controller.ClientSecret = "secret-1"

	b := New().WithConfig(cfg).WithHTTPClient(api.srv.Client()).WithAuditSink(NoOpSink{})
	if rdb != nil {
		b = b.WithRedis(rdb)
	}
	client, err := b.Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	t.Cleanup(client.Close)
	return client
}

func TestClientRoleLookupsAreCached(t *testing.T) {
	api := newFakeControllerAPI(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	client := newTestClient(t, api, rdb)

	roles, err := client.GetRoles(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("first lookup failed: %v", err)
	}
	if !roles.Has("admin") || roles.Has("viewer") {
		t.Fatalf("unexpected roles: %v", roles.Values())
	}
	if _, err := client.GetRoles(context.Background(), "u-1"); err != nil {
		t.Fatalf("second lookup failed: %v", err)
	}
	if got := api.roleCalls.Load(); got != 1 {
		t.Fatalf("expected one downstream call, got %d", got)
	}

	snap := client.MetricsSnapshot()
	if snap.Counters[MetricCacheMiss] != 1 || snap.Counters[MetricCacheHit] != 1 {
		t.Fatalf("unexpected cache counters: %+v", snap.Counters)
	}
}

func TestClientMembershipChecks(t *testing.T) {
	api := newFakeControllerAPI(t)
	client := newTestClient(t, api, nil)

	ok, err := client.HasRole(context.Background(), "u-1", "admin")
	if err != nil || !ok {
		t.Fatalf("HasRole(admin) = %v, %v", ok, err)
	}
	ok, err = client.HasAnyRole(context.Background(), "u-1", "viewer", "editor")
	if err != nil || !ok {
		t.Fatalf("HasAnyRole = %v, %v", ok, err)
	}
	ok, err = client.HasAllRoles(context.Background(), "u-1", "admin", "viewer")
	if err != nil || ok {
		t.Fatalf("HasAllRoles should miss viewer: %v, %v", ok, err)
	}
	ok, err = client.HasPermission(context.Background(), "u-1", "document:read")
	if err != nil || !ok {
		t.Fatalf("HasPermission = %v, %v", ok, err)
	}
	ok, err = client.HasAllPermissions(context.Background(), "u-1", "document:read", "document:write")
	if err != nil || !ok {
		t.Fatalf("HasAllPermissions = %v, %v", ok, err)
	}
}

func TestClientWithoutRedisPassesThrough(t *testing.T) {
	api := newFakeControllerAPI(t)
	client := newTestClient(t, api, nil)

	for i := 0; i < 3; i++ {
		if _, err := client.GetRoles(context.Background(), "u-1"); err != nil {
			t.Fatalf("lookup failed: %v", err)
		}
	}
	if got := api.roleCalls.Load(); got != 3 {
		t.Fatalf("every lookup should hit the controller, got %d calls", got)
	}
}

func TestClientRefreshOverwritesCachedEntry(t *testing.T) {
	api := newFakeControllerAPI(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	client := newTestClient(t, api, rdb)

	if _, err := client.GetRoles(context.Background(), "u-1"); err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if _, err := client.RefreshRoles(context.Background(), "u-1"); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if got := api.roleCalls.Load(); got != 2 {
		t.Fatalf("refresh must bypass the cache, got %d calls", got)
	}
}

func TestClientCurrentUser(t *testing.T) {
	api := newFakeControllerAPI(t)
	client := newTestClient(t, api, nil)

	user, err := client.CurrentUser(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("CurrentUser failed: %v", err)
	}
	if user.UserID != "u-1" || user.Identifier != "alice@example.test" {
		t.Fatalf("unexpected user: %+v", user)
	}
}

func TestClientListRoles(t *testing.T) {
	api := newFakeControllerAPI(t)
	client := newTestClient(t, api, nil)

	page, err := client.ListRoles(context.Background(), 10, 1)
	if err != nil {
		t.Fatalf("ListRoles failed: %v", err)
	}
	if page.PageSize != 10 || page.CurrentPage != 1 || len(page.Items) != 2 {
		t.Fatalf("unexpected page: %+v", page)
	}
	if page.Items[0].Name != "admin" {
		t.Fatalf("unexpected items: %+v", page.Items)
	}
}

func TestClientCloseIsTerminal(t *testing.T) {
	api := newFakeControllerAPI(t)
	client := newTestClient(t, api, nil)

	client.Close()
	client.Close() // idempotent

	if _, err := client.GetRoles(context.Background(), "u-1"); !errors.Is(err, ErrClientClosed) {
		t.Fatalf("expected ErrClientClosed, got %v", err)
	}
	if _, err := client.Do(context.Background(), Request{Method: http.MethodGet, Path: "/api/v1/ping"}); !errors.Is(err, ErrClientClosed) {
		t.Fatalf("expected ErrClientClosed from Do, got %v", err)
	}
}

func TestClientSharesOneCredentialAcrossCalls(t *testing.T) {
	api := newFakeControllerAPI(t)
	client := newTestClient(t, api, nil)

	if _, err := client.GetRoles(context.Background(), "u-1"); err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if _, err := client.CurrentUser(context.Background(), "u-1"); err != nil {
		t.Fatalf("CurrentUser failed: %v", err)
	}
	if got := api.tokenCalls.Load(); got != 1 {
		t.Fatalf("expected a single token issuance, got %d", got)
	}
}

func TestBuilderRejectsInvalidConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing baseUrl", func(c *Config) { c.Controller.BaseURL = "" }},
		{"relative baseUrl", func(c *Config) { c.Controller.BaseURL = "controller.test" }},
		{"missing clientSecret", func(c *Config) { c.Controller.ClientSecret = "" }},
		{"missing environmentId", func(c *Config) { c.Controller.EnvironmentID = "" }},
		{"buffer at window", func(c *Config) {
			c.Credential.RefreshWindow = 30 * time.Second
			c.Credential.ExpiryBuffer = 30 * time.Second
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Controller.BaseURL = "https://controller.test"
			cfg.Controller.EnvironmentID = "env-1"
			cfg.Controller.ApplicationID = "app-1"
			cfg.Controller.ClientID = "client-1"
			cfg.Controller.ClientSecret = "secret-1"
			tc.mutate(&cfg)

			if _, err := New().WithConfig(cfg).Build(); !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestBuilderIsSingleUse(t *testing.T) {
	api := newFakeControllerAPI(t)
	cfg := defaultConfig()
	cfg.Controller.BaseURL = api.srv.URL
	cfg.Controller.EnvironmentID = "env-1"
	cfg.Controller.ApplicationID = "app-1"
	cfg.Controller.ClientID = "client-1"
	cfg.Controller.ClientSecret = "secret-1"

	b := New().WithConfig(cfg).WithAuditSink(NoOpSink{})
	client, err := b.Build()
	if err != nil {
		t.Fatalf("first build failed: %v", err)
	}
	t.Cleanup(client.Close)

	if _, err := b.Build(); err == nil {
		t.Fatalf("second build must fail")
	}
}
