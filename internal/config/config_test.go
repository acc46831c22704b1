package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestEnvOr(t *testing.T) {
	key := "AUTOLOGIN_TEST_ENV"
	fallback := "default"

	_ = os.Unsetenv(key)
	if got := envOr(key, fallback); got != fallback {
		t.Errorf("envOr() = %v, want %v", got, fallback)
	}

	t.Setenv(key, "set")
	if got := envOr(key, fallback); got != "set" {
		t.Errorf("envOr() = %v, want %v", got, "set")
	}
}

func TestEnvIntOr(t *testing.T) {
	key := "AUTOLOGIN_TEST_INT"
	fallback := 42

	_ = os.Unsetenv(key)
	if got := envIntOr(key, fallback); got != fallback {
		t.Errorf("envIntOr() = %v, want %v", got, fallback)
	}

	t.Setenv(key, "100")
	if got := envIntOr(key, fallback); got != 100 {
		t.Errorf("envIntOr() = %v, want %v", got, 100)
	}

	t.Setenv(key, "invalid")
	if got := envIntOr(key, fallback); got != fallback {
		t.Errorf("envIntOr() = %v, want %v", got, fallback)
	}
}

func TestEnvBoolOr(t *testing.T) {
	key := "AUTOLOGIN_TEST_BOOL"
	fallback := true

	_ = os.Unsetenv(key)
	if got := envBoolOr(key, fallback); got != fallback {
		t.Errorf("envBoolOr() = %v, want %v", got, fallback)
	}

	tests := []struct {
		val  string
		want bool
	}{
		{"1", true}, {"true", true}, {"yes", true}, {"on", true},
		{"0", false}, {"false", false}, {"no", false}, {"off", false},
		{"garbage", true}, // should return fallback
	}

	for _, tt := range tests {
		t.Setenv(key, tt.val)
		if got := envBoolOr(key, fallback); got != tt.want {
			t.Errorf("envBoolOr(%q) = %v, want %v", tt.val, got, tt.want)
		}
	}
}

func TestEnvDurationOr(t *testing.T) {
	key := "AUTOLOGIN_TEST_DURATION"
	fallback := time.Second

	tests := []struct {
		val  string
		want time.Duration
	}{
		{"", fallback},
		{"250", 250 * time.Millisecond},
		{"2s", 2 * time.Second},
		{"750ms", 750 * time.Millisecond},
		{"-5", fallback},
		{"soon", fallback},
	}
	for _, tt := range tests {
		t.Setenv(key, tt.val)
		if got := envDurationOr(key, fallback); got != tt.want {
			t.Errorf("envDurationOr(%q) = %v, want %v", tt.val, got, tt.want)
		}
	}
}

func TestMaskToken(t *testing.T) {
	tests := []struct {
		token string
		want  string
	}{
		{"", "(none)"},
		{"short", "***"},
		{"very-long-token-secret", "very...cret"},
	}

	for _, tt := range tests {
		if got := MaskToken(tt.token); got != tt.want {
			t.Errorf("MaskToken(%q) = %v, want %v", tt.token, got, tt.want)
		}
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("AUTOLOGIN_CONFIG", filepath.Join(t.TempDir(), "missing.json"))
	for _, k := range []string{"AUTOLOGIN_PORT", "AUTOLOGIN_BIND", "AUTOLOGIN_TARGET", "AUTOLOGIN_RETRY_DELAY", "AUTOLOGIN_MAX_RETRIES"} {
		t.Setenv(k, "")
	}

	cfg := Load()
	if cfg.Port != DefaultPort {
		t.Errorf("default Port = %v, want %v", cfg.Port, DefaultPort)
	}
	if cfg.Bind != "127.0.0.1" {
		t.Errorf("default Bind = %v, want 127.0.0.1", cfg.Bind)
	}
	if cfg.TargetMatch != "cp_login.tekup" {
		t.Errorf("default TargetMatch = %v", cfg.TargetMatch)
	}
	if cfg.MaxRetries != 3 || cfg.RetryDelay != time.Second || cfg.SettleDelay != 500*time.Millisecond {
		t.Errorf("default retry policy = %d/%v/%v", cfg.MaxRetries, cfg.RetryDelay, cfg.SettleDelay)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("AUTOLOGIN_CONFIG", filepath.Join(t.TempDir(), "missing.json"))
	t.Setenv("AUTOLOGIN_PORT", "1234")
	t.Setenv("AUTOLOGIN_RETRY_DELAY", "200ms")

	cfg := Load()
	if cfg.Port != "1234" {
		t.Errorf("env Port = %v, want 1234", cfg.Port)
	}
	if cfg.RetryDelay != 200*time.Millisecond {
		t.Errorf("env RetryDelay = %v", cfg.RetryDelay)
	}
}

func TestLoadConfigFileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"port":"7000","target":"portal.example","maxRetries":5,"settleDelayMs":100}`), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("AUTOLOGIN_CONFIG", path)
	t.Setenv("AUTOLOGIN_PORT", "")
	t.Setenv("AUTOLOGIN_TARGET", "")
	t.Setenv("AUTOLOGIN_MAX_RETRIES", "9")
	t.Setenv("AUTOLOGIN_SETTLE_DELAY", "")

	cfg := Load()
	if cfg.Port != "7000" {
		t.Errorf("file Port = %v, want 7000", cfg.Port)
	}
	if cfg.TargetMatch != "portal.example" {
		t.Errorf("file TargetMatch = %v", cfg.TargetMatch)
	}
	if cfg.MaxRetries != 9 {
		t.Errorf("env should win over file, MaxRetries = %d", cfg.MaxRetries)
	}
	if cfg.SettleDelay != 100*time.Millisecond {
		t.Errorf("file SettleDelay = %v", cfg.SettleDelay)
	}
}

func TestDefaultFileConfig(t *testing.T) {
	fc := DefaultFileConfig()
	if fc.Port != DefaultPort {
		t.Errorf("DefaultFileConfig.Port = %v, want %v", fc.Port, DefaultPort)
	}
	if fc.Headless == nil || *fc.Headless {
		t.Errorf("DefaultFileConfig.Headless should be false so the portal tab is visible")
	}
	if fc.LoginURL != DefaultLoginURL {
		t.Errorf("DefaultFileConfig.LoginURL = %v", fc.LoginURL)
	}
}

func TestInitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	if err := InitFile(path, false); err != nil {
		t.Fatalf("InitFile: %v", err)
	}
	if err := InitFile(path, false); err == nil {
		t.Fatal("expected error when config exists")
	}
	if err := InitFile(path, true); err != nil {
		t.Fatalf("forced InitFile: %v", err)
	}
}

func TestDescribeMasksToken(t *testing.T) {
	cfg := &RuntimeConfig{Bind: "127.0.0.1", Port: "9868", Token: "super-secret-token"}
	out := Describe(cfg)
	if strings.Contains(out, "super-secret-token") {
		t.Fatal("token leaked in config show")
	}
	if !strings.Contains(out, "supe...oken") {
		t.Errorf("masked token missing: %s", out)
	}
}

func TestBaseURL(t *testing.T) {
	cfg := &RuntimeConfig{Bind: "0.0.0.0", Port: "9868"}
	if got := cfg.OptionsURL(); got != "http://127.0.0.1:9868/options.html" {
		t.Errorf("OptionsURL() = %v", got)
	}
}
