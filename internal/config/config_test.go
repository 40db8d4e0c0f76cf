package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"10", 10 * time.Second, false},
		{"12h", 12 * time.Hour, false},
		{`"30m"`, 30 * time.Minute, false},
		{" 5s ", 5 * time.Second, false},
		{"", 0, true},
		{"soon", 0, true},
	}
	for _, tt := range tests {
		got, err := parseDuration(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseDuration(%q) err = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseDuration(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("OPSDECK_DB", filepath.Join(dir, "ops.db"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.Env != EnvProd {
		t.Errorf("env = %q", cfg.App.Env)
	}
	if cfg.Auth.SessionTTL.Duration() != 12*time.Hour {
		t.Errorf("session ttl = %v", cfg.Auth.SessionTTL.Duration())
	}
	if cfg.Log.Path != filepath.Join(dir, "ops.log") {
		t.Errorf("log path = %q", cfg.Log.Path)
	}
	if cfg.Invite.Addr != "" {
		t.Errorf("invite endpoint should be off by default, got %q", cfg.Invite.Addr)
	}
	if cfg.Reports.ExpiryHorizonDays != 30 {
		t.Errorf("horizon = %d", cfg.Reports.ExpiryHorizonDays)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("OPSDECK_DB", filepath.Join(t.TempDir(), "ops.db"))
	t.Setenv("OPSDECK_ENV", "local")
	t.Setenv("OPSDECK_SESSION_TTL", "3600")
	t.Setenv("OPSDECK_INVITE_ADDR", "127.0.0.1:8087")
	t.Setenv("OPSDECK_EXPIRY_HORIZON_DAYS", "14")
	t.Setenv("OPSDECK_INVITE_ORIGINS", "https://a.example.com,https://b.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Invite.AllowOrigins) != 2 || cfg.Invite.AllowOrigins[1] != "https://b.example.com" {
		t.Errorf("origins = %v", cfg.Invite.AllowOrigins)
	}
	if cfg.App.Env != EnvLocal || cfg.Auth.SessionTTL.Duration() != time.Hour ||
		cfg.Invite.Addr != "127.0.0.1:8087" || cfg.Reports.ExpiryHorizonDays != 14 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := map[string]string{
		"OPSDECK_ENV":                 "staging",
		"OPSDECK_SESSION_TTL":         "0",
		"OPSDECK_EXPIRY_HORIZON_DAYS": "-1",
	}
	for key, val := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv("OPSDECK_DB", filepath.Join(t.TempDir(), "ops.db"))
			t.Setenv(key, val)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%s", key, val)
			}
		})
	}
}

func TestUsageListsVariables(t *testing.T) {
	u := Usage()
	for _, v := range []string{"OPSDECK_DB", "OPSDECK_INVITE_ADDR"} {
		if !strings.Contains(u, v) {
			t.Errorf("usage missing %s:\n%s", v, u)
		}
	}
}
