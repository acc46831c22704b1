package monitor

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/rayen0001/tekup-auto-login/internal/store"
)

const (
	ReasonInstall = "install"
	ReasonUpdate  = "update"
)

const markerFile = "installed"

// TabOpener opens a URL in a new tab.
type TabOpener interface {
	OpenTab(url string) (string, error)
}

// DetectInstall compares the marker in stateDir with version and records
// version. It returns ReasonInstall on first run, ReasonUpdate when the
// version changed and "" otherwise.
func DetectInstall(stateDir, version string) (string, error) {
	path := filepath.Join(stateDir, markerFile)
	data, err := os.ReadFile(path)

	var reason string
	switch {
	case errors.Is(err, fs.ErrNotExist):
		reason = ReasonInstall
	case err != nil:
		return "", fmt.Errorf("read install marker: %w", err)
	case strings.TrimSpace(string(data)) != version:
		reason = ReasonUpdate
	default:
		return "", nil
	}

	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return "", fmt.Errorf("create state dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(version+"\n"), 0600); err != nil {
		return "", fmt.Errorf("write install marker: %w", err)
	}
	return reason, nil
}

// OnInstalled opens the options page on first install.
func OnInstalled(reason string, opener TabOpener, optionsURL string) {
	slog.Info("installed or updated", "reason", reason)
	if reason != ReasonInstall {
		return
	}
	if _, err := opener.OpenTab(optionsURL); err != nil {
		slog.Error("open options page", "err", err)
	}
}

// ObserveChanges logs every store change until the returned func is called.
func ObserveChanges(s store.Store) func() {
	return s.Subscribe(func(c store.Change) {
		slog.Info("settings changed", "keys", c.Keys)
		if c.EnabledChanged() {
			if c.New.IsEnabled() {
				slog.Info("auto-login enabled")
			} else {
				slog.Info("auto-login disabled")
			}
		}
	})
}
