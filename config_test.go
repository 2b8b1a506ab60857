package goCtrl

import (
	"testing"
	"time"
)

func TestApplyConfigDefaultsFillsZeroValues(t *testing.T) {
	cfg := Config{}
	applyConfigDefaults(&cfg)

	if cfg.Controller.TokenPath != "/api/v1/auth/token" {
		t.Fatalf("token path default missing: %q", cfg.Controller.TokenPath)
	}
	if cfg.Controller.LogIngestPath != "/api/v1/logs" {
		t.Fatalf("log path default missing: %q", cfg.Controller.LogIngestPath)
	}
	if cfg.Credential.RefreshWindow != 60*time.Second || cfg.Credential.ExpiryBuffer != 30*time.Second {
		t.Fatalf("credential windows wrong: %+v", cfg.Credential)
	}
	if cfg.Cache.TTL != 15*time.Minute {
		t.Fatalf("cache TTL default wrong: %v", cfg.Cache.TTL)
	}
	if cfg.Cache.RedisPrefix != "goctrl" {
		t.Fatalf("prefix default wrong: %q", cfg.Cache.RedisPrefix)
	}
	if cfg.Audit.QueueMaxLen != 10000 {
		t.Fatalf("queue cap default wrong: %d", cfg.Audit.QueueMaxLen)
	}
}

func TestApplyConfigDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := Config{}
	cfg.Cache.TTL = time.Minute
	cfg.Credential.RefreshWindow = 2 * time.Minute
	applyConfigDefaults(&cfg)

	if cfg.Cache.TTL != time.Minute {
		t.Fatalf("explicit TTL overwritten: %v", cfg.Cache.TTL)
	}
	if cfg.Credential.RefreshWindow != 2*time.Minute {
		t.Fatalf("explicit window overwritten: %v", cfg.Credential.RefreshWindow)
	}
}

func TestValidateConfigCatchesBadWindows(t *testing.T) {
	cfg := defaultConfig()
	cfg.Controller.BaseURL = "https://controller.test"
	cfg.Controller.EnvironmentID = "env-1"
	cfg.Controller.ApplicationID = "app-1"
	cfg.Controller.ClientID = "c"
	cfg.Controller.ClientSecret = "s"

	if err := validateConfig(cfg); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cfg.Credential.ExpiryBuffer = cfg.Credential.RefreshWindow
	if err := validateConfig(cfg); err == nil {
		t.Fatalf("buffer equal to window must be rejected")
	}
}
