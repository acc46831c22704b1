package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/rayen0001/tekup-auto-login/internal/config"
)

// ErrNoTabs is returned when an operation needs a tab and none is open.
var ErrNoTabs = errors.New("no tabs open")

type TabEntry struct {
	Ctx    context.Context
	Cancel context.CancelFunc
}

type TabInfo struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Title string `json:"title"`
	Type  string `json:"type"`
}

type TabManager struct {
	browserCtx context.Context
	config     *config.RuntimeConfig
	tabs       map[string]*TabEntry
	mu         sync.RWMutex
}

func NewTabManager(browserCtx context.Context, cfg *config.RuntimeConfig) *TabManager {
	return &TabManager{
		browserCtx: browserCtx,
		config:     cfg,
		tabs:       make(map[string]*TabEntry),
	}
}

// TabContext returns a chromedp context attached to tabID, attaching on first
// use. An empty tabID resolves to the first page target.
func (tm *TabManager) TabContext(tabID string) (context.Context, string, error) {
	if tm == nil {
		return nil, "", fmt.Errorf("no browser connection")
	}
	if tabID == "" {
		targets, err := tm.ListTargets()
		if err != nil {
			return nil, "", fmt.Errorf("list targets: %w", err)
		}
		if len(targets) == 0 {
			return nil, "", ErrNoTabs
		}
		tabID = string(targets[0].TargetID)
	}

	tm.mu.RLock()
	if entry, ok := tm.tabs[tabID]; ok && entry.Ctx != nil {
		tm.mu.RUnlock()
		return entry.Ctx, tabID, nil
	}
	tm.mu.RUnlock()

	tm.mu.Lock()
	defer tm.mu.Unlock()

	if entry, ok := tm.tabs[tabID]; ok && entry.Ctx != nil {
		return entry.Ctx, tabID, nil
	}

	if tm.browserCtx == nil {
		return nil, "", fmt.Errorf("no browser connection")
	}

	ctx, cancel := chromedp.NewContext(tm.browserCtx,
		chromedp.WithTargetID(target.ID(tabID)),
	)
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		return nil, "", fmt.Errorf("tab %s not found: %w", tabID, err)
	}

	tm.tabs[tabID] = &TabEntry{Ctx: ctx, Cancel: cancel}
	return ctx, tabID, nil
}

func (tm *TabManager) CreateTab(url string) (string, context.Context, context.CancelFunc, error) {
	if tm == nil || tm.browserCtx == nil || chromedp.FromContext(tm.browserCtx) == nil {
		return "", nil, nil, fmt.Errorf("no browser context available")
	}

	if tm.config != nil && tm.config.MaxTabs > 0 {
		targets, err := tm.ListTargets()
		if err != nil {
			return "", nil, nil, fmt.Errorf("check tab count: %w", err)
		}
		if len(targets) >= tm.config.MaxTabs {
			return "", nil, nil, fmt.Errorf("tab limit reached (%d/%d), close a tab first", len(targets), tm.config.MaxTabs)
		}
	}

	navURL := "about:blank"
	if url != "" {
		navURL = url
	}

	var targetID target.ID
	createCtx, createCancel := context.WithTimeout(tm.browserCtx, 10*time.Second)
	if err := chromedp.Run(createCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			targetID, err = target.CreateTarget(navURL).Do(ctx)
			return err
		}),
	); err != nil {
		createCancel()
		return "", nil, nil, fmt.Errorf("create target: %w", err)
	}
	createCancel()

	ctx, cancel := chromedp.NewContext(tm.browserCtx,
		chromedp.WithTargetID(targetID),
	)
	ctx, cancel = tm.adopt(string(targetID), ctx, cancel)
	return string(targetID), ctx, cancel, nil
}

// adopt records ctx for tabID unless the tab was attached meanwhile, for
// example by the navigation watcher reacting to the new target. In that case
// ctx is canceled and the existing entry is returned.
func (tm *TabManager) adopt(tabID string, ctx context.Context, cancel context.CancelFunc) (context.Context, context.CancelFunc) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if entry, ok := tm.tabs[tabID]; ok && entry.Ctx != nil {
		cancel()
		return entry.Ctx, entry.Cancel
	}
	tm.tabs[tabID] = &TabEntry{Ctx: ctx, Cancel: cancel}
	return ctx, cancel
}

func (tm *TabManager) ListTargets() ([]*target.Info, error) {
	if tm == nil || tm.browserCtx == nil {
		return nil, fmt.Errorf("no browser connection")
	}
	var targets []*target.Info
	if err := chromedp.Run(tm.browserCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			targets, err = target.GetTargets().Do(ctx)
			return err
		}),
	); err != nil {
		return nil, fmt.Errorf("get targets: %w", err)
	}
	return pageTargets(targets), nil
}

// ListTabs is ListTargets flattened to TabInfo.
func (tm *TabManager) ListTabs() ([]TabInfo, error) {
	targets, err := tm.ListTargets()
	if err != nil {
		return nil, err
	}
	out := make([]TabInfo, 0, len(targets))
	for _, t := range targets {
		out = append(out, tabInfo(t))
	}
	return out, nil
}

func pageTargets(targets []*target.Info) []*target.Info {
	pages := make([]*target.Info, 0, len(targets))
	for _, t := range targets {
		if t.Type == TargetTypePage {
			pages = append(pages, t)
		}
	}
	return pages
}

func tabInfo(t *target.Info) TabInfo {
	return TabInfo{ID: string(t.TargetID), URL: t.URL, Title: t.Title, Type: t.Type}
}

func (tm *TabManager) RegisterTab(tabID string, ctx context.Context) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.tabs[tabID] = &TabEntry{Ctx: ctx}
}

func (tm *TabManager) forget(tabID string) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if entry, ok := tm.tabs[tabID]; ok && entry.Cancel != nil {
		entry.Cancel()
	}
	delete(tm.tabs, tabID)
}

func (tm *TabManager) CleanStaleTabs(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		targets, err := tm.ListTargets()
		if err != nil {
			continue
		}

		alive := make(map[string]bool, len(targets))
		for _, t := range targets {
			alive[string(t.TargetID)] = true
		}

		tm.mu.Lock()
		for id, entry := range tm.tabs {
			if !alive[id] {
				if entry.Cancel != nil {
					entry.Cancel()
				}
				delete(tm.tabs, id)
				slog.Info("cleaned stale tab", "id", id)
			}
		}
		tm.mu.Unlock()
	}
}
