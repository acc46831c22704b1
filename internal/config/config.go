package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultTarget   = "cp_login.tekup"
	DefaultLoginURL = "http://cp_login.tekup/"
	DefaultPort     = "9868"
)

type RuntimeConfig struct {
	Bind             string
	Port             string
	CdpURL           string
	Token            string
	StateDir         string
	StoreBackend     string
	KeyringPassword  string
	Headless         bool
	ProfileDir       string
	ChromeBinary     string
	ChromeExtraFlags string
	MaxTabs          int
	LogLevel         string

	TargetMatch string
	LoginURL    string

	MaxRetries  int
	RetryDelay  time.Duration
	SettleDelay time.Duration

	ActionTimeout   time.Duration
	NavigateTimeout time.Duration
	ShutdownTimeout time.Duration
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func envBoolOr(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// envDurationOr accepts Go durations ("1s", "750ms") or plain milliseconds.
func envDurationOr(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	if ms, err := strconv.Atoi(v); err == nil {
		if ms < 0 {
			return fallback
		}
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

func homeDir() string {
	h, _ := os.UserHomeDir()
	return h
}

func defaultStateDir() string {
	return filepath.Join(homeDir(), ".tekup-autologin")
}

func (c *RuntimeConfig) ListenAddr() string {
	return c.Bind + ":" + c.Port
}

// BaseURL is where the settings pages are served.
func (c *RuntimeConfig) BaseURL() string {
	host := c.Bind
	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	return "http://" + host + ":" + c.Port
}

func (c *RuntimeConfig) OptionsURL() string {
	return c.BaseURL() + "/options.html"
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c *RuntimeConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type FileConfig struct {
	Port          string `json:"port"`
	CdpURL        string `json:"cdpUrl,omitempty"`
	Token         string `json:"token,omitempty"`
	StateDir      string `json:"stateDir"`
	Store         string `json:"store,omitempty"`
	ProfileDir    string `json:"profileDir"`
	Headless      *bool  `json:"headless,omitempty"`
	Target        string `json:"target,omitempty"`
	LoginURL      string `json:"loginUrl,omitempty"`
	MaxRetries    *int   `json:"maxRetries,omitempty"`
	RetryDelayMs  int    `json:"retryDelayMs,omitempty"`
	SettleDelayMs int    `json:"settleDelayMs,omitempty"`
	TimeoutSec    int    `json:"timeoutSec,omitempty"`
	NavigateSec   int    `json:"navigateSec,omitempty"`
}

func ConfigPath() string {
	return envOr("AUTOLOGIN_CONFIG", filepath.Join(defaultStateDir(), "config.json"))
}

func Load() *RuntimeConfig {
	cfg := &RuntimeConfig{
		Bind:             envOr("AUTOLOGIN_BIND", "127.0.0.1"),
		Port:             envOr("AUTOLOGIN_PORT", DefaultPort),
		CdpURL:           os.Getenv("CDP_URL"),
		Token:            os.Getenv("AUTOLOGIN_TOKEN"),
		StateDir:         envOr("AUTOLOGIN_STATE_DIR", defaultStateDir()),
		StoreBackend:     envOr("AUTOLOGIN_STORE", "file"),
		KeyringPassword:  os.Getenv("AUTOLOGIN_KEYRING_PASSWORD"),
		Headless:         envBoolOr("AUTOLOGIN_HEADLESS", false),
		ProfileDir:       envOr("AUTOLOGIN_PROFILE", filepath.Join(defaultStateDir(), "chrome-profile")),
		ChromeBinary:     os.Getenv("CHROME_BINARY"),
		ChromeExtraFlags: os.Getenv("CHROME_FLAGS"),
		MaxTabs:          envIntOr("AUTOLOGIN_MAX_TABS", 20),
		LogLevel:         envOr("AUTOLOGIN_LOG_LEVEL", "info"),
		TargetMatch:      envOr("AUTOLOGIN_TARGET", DefaultTarget),
		LoginURL:         envOr("AUTOLOGIN_LOGIN_URL", DefaultLoginURL),
		MaxRetries:       envIntOr("AUTOLOGIN_MAX_RETRIES", 3),
		RetryDelay:       envDurationOr("AUTOLOGIN_RETRY_DELAY", 1000*time.Millisecond),
		SettleDelay:      envDurationOr("AUTOLOGIN_SETTLE_DELAY", 500*time.Millisecond),
		ActionTimeout:    15 * time.Second,
		NavigateTimeout:  30 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		return cfg
	}

	var fc FileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		slog.Warn("ignoring invalid config file", "path", ConfigPath(), "err", err)
		return cfg
	}
	applyFile(cfg, fc)
	return cfg
}

// applyFile overlays file values that are not already set by the environment.
func applyFile(cfg *RuntimeConfig, fc FileConfig) {
	if fc.Port != "" && os.Getenv("AUTOLOGIN_PORT") == "" {
		cfg.Port = fc.Port
	}
	if fc.CdpURL != "" && os.Getenv("CDP_URL") == "" {
		cfg.CdpURL = fc.CdpURL
	}
	if fc.Token != "" && os.Getenv("AUTOLOGIN_TOKEN") == "" {
		cfg.Token = fc.Token
	}
	if fc.StateDir != "" && os.Getenv("AUTOLOGIN_STATE_DIR") == "" {
		cfg.StateDir = fc.StateDir
	}
	if fc.Store != "" && os.Getenv("AUTOLOGIN_STORE") == "" {
		cfg.StoreBackend = fc.Store
	}
	if fc.ProfileDir != "" && os.Getenv("AUTOLOGIN_PROFILE") == "" {
		cfg.ProfileDir = fc.ProfileDir
	}
	if fc.Headless != nil && os.Getenv("AUTOLOGIN_HEADLESS") == "" {
		cfg.Headless = *fc.Headless
	}
	if fc.Target != "" && os.Getenv("AUTOLOGIN_TARGET") == "" {
		cfg.TargetMatch = fc.Target
	}
	if fc.LoginURL != "" && os.Getenv("AUTOLOGIN_LOGIN_URL") == "" {
		cfg.LoginURL = fc.LoginURL
	}
	if fc.MaxRetries != nil && os.Getenv("AUTOLOGIN_MAX_RETRIES") == "" {
		cfg.MaxRetries = *fc.MaxRetries
	}
	if fc.RetryDelayMs > 0 && os.Getenv("AUTOLOGIN_RETRY_DELAY") == "" {
		cfg.RetryDelay = time.Duration(fc.RetryDelayMs) * time.Millisecond
	}
	if fc.SettleDelayMs > 0 && os.Getenv("AUTOLOGIN_SETTLE_DELAY") == "" {
		cfg.SettleDelay = time.Duration(fc.SettleDelayMs) * time.Millisecond
	}
	if fc.TimeoutSec > 0 {
		cfg.ActionTimeout = time.Duration(fc.TimeoutSec) * time.Second
	}
	if fc.NavigateSec > 0 {
		cfg.NavigateTimeout = time.Duration(fc.NavigateSec) * time.Second
	}
}

func DefaultFileConfig() FileConfig {
	h := false
	retries := 3
	return FileConfig{
		Port:          DefaultPort,
		StateDir:      defaultStateDir(),
		Store:         "file",
		ProfileDir:    filepath.Join(defaultStateDir(), "chrome-profile"),
		Headless:      &h,
		Target:        DefaultTarget,
		LoginURL:      DefaultLoginURL,
		MaxRetries:    &retries,
		RetryDelayMs:  1000,
		SettleDelayMs: 500,
		TimeoutSec:    15,
		NavigateSec:   30,
	}
}

// InitFile writes the default config to path. It refuses to overwrite an
// existing file unless force is set.
func InitFile(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, _ := json.MarshalIndent(DefaultFileConfig(), "", "  ")
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Describe renders the effective configuration for `config show`.
func Describe(cfg *RuntimeConfig) string {
	var b strings.Builder
	fmt.Fprintln(&b, "Current configuration:")
	fmt.Fprintf(&b, "  Listen:      %s\n", cfg.ListenAddr())
	fmt.Fprintf(&b, "  CDP URL:     %s\n", cfg.CdpURL)
	fmt.Fprintf(&b, "  Token:       %s\n", MaskToken(cfg.Token))
	fmt.Fprintf(&b, "  State Dir:   %s\n", cfg.StateDir)
	fmt.Fprintf(&b, "  Store:       %s\n", cfg.StoreBackend)
	fmt.Fprintf(&b, "  Profile:     %s\n", cfg.ProfileDir)
	fmt.Fprintf(&b, "  Headless:    %v\n", cfg.Headless)
	fmt.Fprintf(&b, "  Target:      %s\n", cfg.TargetMatch)
	fmt.Fprintf(&b, "  Login URL:   %s\n", cfg.LoginURL)
	fmt.Fprintf(&b, "  Retries:     %d every %v, submit after %v\n", cfg.MaxRetries, cfg.RetryDelay, cfg.SettleDelay)
	fmt.Fprintf(&b, "  Timeouts:    action=%v navigate=%v\n", cfg.ActionTimeout, cfg.NavigateTimeout)
	return b.String()
}

func MaskToken(t string) string {
	if t == "" {
		return "(none)"
	}
	if len(t) <= 8 {
		return "***"
	}
	return t[:4] + "..." + t[len(t)-4:]
}
