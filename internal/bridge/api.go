package bridge

import (
	"context"

	"github.com/rayen0001/tekup-auto-login/internal/dom"
)

// BridgeAPI abstracts browser tab operations for handler testing.
type BridgeAPI interface {
	ListTabs() ([]TabInfo, error)
	ActiveTab() (TabInfo, error)
	OpenTab(url string) (string, error)
	ReloadTab(ctx context.Context, tabID string) error
	Document(tabID string) (dom.Document, error)
}

var _ BridgeAPI = (*Bridge)(nil)
