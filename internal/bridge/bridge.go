package bridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/chromedp/chromedp"
	"github.com/rayen0001/tekup-auto-login/internal/config"
	"github.com/rayen0001/tekup-auto-login/internal/dom"
)

type Bridge struct {
	AllocCtx      context.Context
	AllocCancel   context.CancelFunc
	BrowserCtx    context.Context
	BrowserCancel context.CancelFunc
	Config        *config.RuntimeConfig
	*TabManager

	initMu      sync.Mutex
	initialized bool
}

func New(allocCtx, browserCtx context.Context, cfg *config.RuntimeConfig) *Bridge {
	b := &Bridge{
		AllocCtx:   allocCtx,
		BrowserCtx: browserCtx,
		Config:     cfg,
	}
	if cfg != nil && browserCtx != nil {
		b.TabManager = NewTabManager(browserCtx, cfg)
	}
	return b
}

// EnsureChrome starts (or connects to) the browser once.
func (b *Bridge) EnsureChrome() error {
	b.initMu.Lock()
	defer b.initMu.Unlock()

	if b.initialized || b.BrowserCtx != nil {
		return nil
	}

	allocCtx, allocCancel, browserCtx, browserCancel, err := InitChrome(b.Config)
	if err != nil {
		return fmt.Errorf("failed to initialize chrome: %w", err)
	}

	b.AllocCtx = allocCtx
	b.AllocCancel = allocCancel
	b.BrowserCtx = browserCtx
	b.BrowserCancel = browserCancel
	b.initialized = true

	if b.TabManager == nil {
		b.TabManager = NewTabManager(browserCtx, b.Config)
	}
	if c := chromedp.FromContext(browserCtx); c != nil && c.Target != nil {
		b.RegisterTab(string(c.Target.TargetID), browserCtx)
	}
	return nil
}

func (b *Bridge) Close() {
	if b.BrowserCancel != nil {
		b.BrowserCancel()
	}
	if b.AllocCancel != nil {
		b.AllocCancel()
	}
}

func (b *Bridge) BrowserContext() context.Context {
	return b.BrowserCtx
}

// ActiveTab returns the most recently focused page. Chrome lists page
// targets in activation order.
func (b *Bridge) ActiveTab() (TabInfo, error) {
	targets, err := b.ListTargets()
	if err != nil {
		return TabInfo{}, err
	}
	if len(targets) == 0 {
		return TabInfo{}, ErrNoTabs
	}
	return tabInfo(targets[0]), nil
}

// OpenTab opens url in a new tab. The tab context stays with the tab manager,
// which cancels it when the target goes away.
func (b *Bridge) OpenTab(url string) (string, error) {
	id, _, _, err := b.CreateTab(url)
	return id, err
}

func (b *Bridge) ReloadTab(ctx context.Context, tabID string) error {
	tabCtx, _, err := b.TabContext(tabID)
	if err != nil {
		return err
	}
	runCtx, cancel := context.WithTimeout(tabCtx, b.Config.NavigateTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return ReloadPage(runCtx)
}

// Document returns a live dom.Document for tabID.
func (b *Bridge) Document(tabID string) (dom.Document, error) {
	tabCtx, _, err := b.TabContext(tabID)
	if err != nil {
		return nil, err
	}
	return NewPageDocument(tabCtx, b.Config.ActionTimeout), nil
}
