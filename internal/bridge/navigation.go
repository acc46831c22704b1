package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	cdp "github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
)

const (
	StatusLoading  = "loading"
	StatusComplete = "complete"
)

// TabUpdate reports a navigation step in one tab.
type TabUpdate struct {
	TabID  string `json:"tabId"`
	URL    string `json:"url"`
	Status string `json:"status"`
}

type navWatcher struct {
	b       *Bridge
	ctx     context.Context
	updates chan TabUpdate

	mu      sync.Mutex
	watched map[string]bool
	urls    map[string]string
}

// navBuffer bounds the updates queued for the consumer. Further updates are
// dropped until it catches up.
const navBuffer = 64

func newNavWatcher(b *Bridge, ctx context.Context) *navWatcher {
	return &navWatcher{
		b:       b,
		ctx:     ctx,
		updates: make(chan TabUpdate, navBuffer),
		watched: make(map[string]bool),
		urls:    make(map[string]string),
	}
}

// WatchNavigation delivers tab updates to fn until ctx is done. fn runs on a
// single goroutine in event order. A "complete" update is sent when a tab
// fires its load event.
func (b *Bridge) WatchNavigation(ctx context.Context, fn func(TabUpdate)) error {
	if b.BrowserCtx == nil || chromedp.FromContext(b.BrowserCtx) == nil {
		return fmt.Errorf("no browser connection")
	}
	w := newNavWatcher(b, ctx)

	chromedp.ListenBrowser(b.BrowserCtx, w.onBrowserEvent)

	if err := chromedp.Run(b.BrowserCtx, chromedp.ActionFunc(func(c context.Context) error {
		return target.SetDiscoverTargets(true).Do(cdp.WithExecutor(c, chromedp.FromContext(c).Browser))
	})); err != nil {
		return fmt.Errorf("discover targets: %w", err)
	}

	targets, err := b.ListTargets()
	if err != nil {
		return err
	}
	for _, t := range targets {
		w.setURL(string(t.TargetID), t.URL)
		go w.attach(string(t.TargetID))
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case u := <-w.updates:
			fn(u)
		}
	}
}

// onBrowserEvent runs on the chromedp event loop and must not block or issue
// CDP calls itself.
func (w *navWatcher) onBrowserEvent(ev any) {
	if w.ctx.Err() != nil {
		return
	}
	switch e := ev.(type) {
	case *target.EventTargetCreated:
		if e.TargetInfo.Type != TargetTypePage {
			return
		}
		id := string(e.TargetInfo.TargetID)
		w.setURL(id, e.TargetInfo.URL)
		go w.attach(id)
	case *target.EventTargetInfoChanged:
		if e.TargetInfo.Type != TargetTypePage {
			return
		}
		id := string(e.TargetInfo.TargetID)
		if w.setURL(id, e.TargetInfo.URL) {
			w.send(TabUpdate{TabID: id, URL: e.TargetInfo.URL, Status: StatusLoading})
		}
	case *target.EventTargetDestroyed:
		id := string(e.TargetID)
		w.mu.Lock()
		delete(w.watched, id)
		delete(w.urls, id)
		w.mu.Unlock()
		w.b.forget(id)
	}
}

// setURL records the latest URL for a tab and reports whether it changed.
func (w *navWatcher) setURL(id, url string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	changed := w.urls[id] != url
	w.urls[id] = url
	return changed
}

func (w *navWatcher) url(id string) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.urls[id]
}

func (w *navWatcher) attach(id string) {
	w.mu.Lock()
	if w.watched[id] {
		w.mu.Unlock()
		return
	}
	w.watched[id] = true
	w.mu.Unlock()

	tabCtx, _, err := w.b.TabContext(id)
	if err != nil {
		slog.Debug("attach tab", "tabId", id, "err", err)
		w.mu.Lock()
		delete(w.watched, id)
		w.mu.Unlock()
		return
	}

	chromedp.ListenTarget(tabCtx, func(ev any) {
		if _, ok := ev.(*page.EventLoadEventFired); ok {
			go w.loaded(tabCtx, id)
		}
	})
}

func (w *navWatcher) loaded(tabCtx context.Context, id string) {
	url := w.url(id)
	var loc string
	if err := chromedp.Run(tabCtx, chromedp.Location(&loc)); err == nil && loc != "" {
		url = loc
		w.setURL(id, loc)
	}
	w.send(TabUpdate{TabID: id, URL: url, Status: StatusComplete})
}

func (w *navWatcher) send(u TabUpdate) {
	select {
	case w.updates <- u:
	case <-w.ctx.Done():
	default:
		slog.Warn("tab update dropped", "tabId", u.TabID, "status", u.Status)
	}
}
