package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rayen0001/tekup-auto-login/internal/bridge"
	"github.com/rayen0001/tekup-auto-login/internal/store"
)

const (
	StateActive        = "Active"
	StateDisabled      = "Disabled"
	StateNotConfigured = "Not Configured"
	StateError         = "Error"
)

const (
	IndicatorActive   = "active"
	IndicatorInactive = "inactive"
)

const NotSet = "Not set"

const (
	TestReload = "reload"
	TestOpen   = "open"
)

type Status struct {
	State          string `json:"state"`
	Indicator      string `json:"indicator"`
	MaskedUsername string `json:"maskedUsername"`
	Enabled        bool   `json:"enabled"`
}

// TestResult tells the popup what TestLogin did. Close is set when the
// popup should dismiss itself.
type TestResult struct {
	Close  bool   `json:"close"`
	Action string `json:"action"`
	TabID  string `json:"tabId"`
}

// Tabs is the slice of the browser the popup drives.
type Tabs interface {
	ActiveTab() (bridge.TabInfo, error)
	ReloadTab(ctx context.Context, tabID string) error
	OpenTab(url string) (string, error)
}

type PopupConfig struct {
	Target     string
	LoginURL   string
	OptionsURL string
}

type Popup struct {
	store store.Store
	tabs  Tabs
	cfg   PopupConfig
}

func NewPopup(s store.Store, tabs Tabs, cfg PopupConfig) *Popup {
	return &Popup{store: s, tabs: tabs, cfg: cfg}
}

// Load never fails; a store error is shown as the Error state.
func (p *Popup) Load(ctx context.Context) Status {
	rec, err := p.store.Get(ctx)
	if err != nil {
		slog.Error("error loading settings", "err", err)
		return Status{State: StateError, Indicator: IndicatorInactive, MaskedUsername: NotSet, Enabled: true}
	}
	return statusFor(rec)
}

func statusFor(rec store.Record) Status {
	s := Status{
		Enabled:        rec.IsEnabled(),
		MaskedUsername: MaskUsername(rec.Username),
	}
	switch {
	case !rec.HasCredentials():
		s.State, s.Indicator = StateNotConfigured, IndicatorInactive
		s.MaskedUsername = NotSet
	case s.Enabled:
		s.State, s.Indicator = StateActive, IndicatorActive
	default:
		s.State, s.Indicator = StateDisabled, IndicatorInactive
	}
	return s
}

// Toggle writes enabled and returns the value the switch should show: the
// new value, or the previous one when the write failed.
func (p *Popup) Toggle(ctx context.Context, enabled bool) (bool, error) {
	if err := p.store.Set(ctx, store.Patch{Enabled: &enabled}); err != nil {
		slog.Error("error saving enabled state", "err", err)
		return !enabled, fmt.Errorf("save enabled state: %w", err)
	}
	if enabled {
		slog.Info("auto-login enabled")
	} else {
		slog.Info("auto-login disabled")
	}
	return enabled, nil
}

// TestLogin reloads the active tab when it is on the portal, otherwise it
// opens the login page in a new tab.
func (p *Popup) TestLogin(ctx context.Context) (TestResult, error) {
	tab, err := p.tabs.ActiveTab()
	if err != nil {
		if errors.Is(err, bridge.ErrNoTabs) {
			slog.Error("no active tab found")
		} else {
			slog.Error("error querying tabs", "err", err)
		}
		return TestResult{}, fmt.Errorf("query active tab: %w", err)
	}

	if tab.URL != "" && strings.Contains(tab.URL, p.cfg.Target) {
		if err := p.tabs.ReloadTab(ctx, tab.ID); err != nil {
			slog.Error("error reloading tab", "tab", tab.ID, "err", err)
			return TestResult{}, fmt.Errorf("reload tab: %w", err)
		}
		return TestResult{Close: true, Action: TestReload, TabID: tab.ID}, nil
	}

	id, err := p.tabs.OpenTab(p.cfg.LoginURL)
	if err != nil {
		slog.Error("error creating tab", "err", err)
		return TestResult{}, fmt.Errorf("open login page: %w", err)
	}
	return TestResult{Close: true, Action: TestOpen, TabID: id}, nil
}

func (p *Popup) OpenSettings(ctx context.Context) (string, error) {
	id, err := p.tabs.OpenTab(p.cfg.OptionsURL)
	if err != nil {
		slog.Error("error opening settings", "err", err)
		return "", fmt.Errorf("open settings: %w", err)
	}
	return id, nil
}

// MaskUsername hides the middle of a username for display.
func MaskUsername(u string) string {
	if u == "" {
		return NotSet
	}
	r := []rune(u)
	if len(r) > 4 {
		return string(r[:3]) + "***" + string(r[len(r)-1:])
	}
	if len(r) > 2 {
		r = r[:2]
	}
	return string(r) + "***"
}
