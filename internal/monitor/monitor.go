// Package monitor watches tab navigation for the portal login page and
// starts autofill attempts there. It also answers runtime messages, runs
// the first-install hook and logs store changes.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/rayen0001/tekup-auto-login/internal/autofill"
	"github.com/rayen0001/tekup-auto-login/internal/bridge"
	"github.com/rayen0001/tekup-auto-login/internal/dom"
)

// Injector starts an autofill attempt on a tab.
type Injector interface {
	Inject(ctx context.Context, tabID string) (*autofill.Attempt, error)
}

// Documents resolves a tab to a live document.
type Documents interface {
	Document(tabID string) (dom.Document, error)
}

// EngineInjector runs the engine against the document of a tab.
type EngineInjector struct {
	Docs   Documents
	Engine *autofill.Engine
}

type releaser interface {
	Release(ctx context.Context) error
}

func (i *EngineInjector) Inject(ctx context.Context, tabID string) (*autofill.Attempt, error) {
	doc, err := i.Docs.Document(tabID)
	if err != nil {
		return nil, fmt.Errorf("open tab %s: %w", tabID, err)
	}
	a := i.Engine.Run(ctx, doc)
	if r, ok := doc.(releaser); ok {
		go func() {
			<-a.Done()
			if err := r.Release(context.WithoutCancel(ctx)); err != nil {
				slog.Debug("release page handles", "tab", tabID, "err", err)
			}
		}()
	}
	return a, nil
}

type running struct {
	attempt *autofill.Attempt
	cancel  context.CancelFunc
}

// Monitor owns at most one attempt per tab.
type Monitor struct {
	ctx      context.Context
	target   string
	injector Injector

	mu      sync.Mutex
	running map[string]*running
}

// New returns a monitor whose attempts live no longer than ctx.
func New(ctx context.Context, target string, inj Injector) *Monitor {
	return &Monitor{
		ctx:      ctx,
		target:   target,
		injector: inj,
		running:  make(map[string]*running),
	}
}

// Matches reports whether url is the portal login page.
func (m *Monitor) Matches(url string) bool {
	return url != "" && m.target != "" && strings.Contains(url, m.target)
}

func (m *Monitor) OnTabUpdated(u bridge.TabUpdate) {
	if u.Status != bridge.StatusComplete || !m.Matches(u.URL) {
		return
	}
	slog.Info("login page detected", "tab", u.TabID)
	if _, err := m.Run(u.TabID); err != nil {
		slog.Error("script injection failed", "tab", u.TabID, "err", err)
	}
}

// Run starts an attempt on tabID. An attempt already running there is
// canceled first.
func (m *Monitor) Run(tabID string) (*autofill.Attempt, error) {
	ctx, cancel := context.WithCancel(m.ctx)
	r := &running{cancel: cancel}

	m.mu.Lock()
	if prev, ok := m.running[tabID]; ok {
		slog.Debug("replacing running attempt", "tab", tabID)
		prev.cancel()
	}
	m.running[tabID] = r
	m.mu.Unlock()

	a, err := m.injector.Inject(ctx, tabID)
	if err != nil {
		m.release(tabID, r)
		return nil, err
	}

	m.mu.Lock()
	r.attempt = a
	m.mu.Unlock()

	go func() {
		<-a.Done()
		m.release(tabID, r)
	}()
	return a, nil
}

func (m *Monitor) release(tabID string, r *running) {
	m.mu.Lock()
	if m.running[tabID] == r {
		delete(m.running, tabID)
	}
	m.mu.Unlock()
	r.cancel()
}

// Active returns the attempt currently running on tabID, if any.
func (m *Monitor) Active(tabID string) *autofill.Attempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.running[tabID]; ok {
		return r.attempt
	}
	return nil
}

// Close cancels every running attempt.
func (m *Monitor) Close() {
	m.mu.Lock()
	rs := make([]*running, 0, len(m.running))
	for id, r := range m.running {
		rs = append(rs, r)
		delete(m.running, id)
	}
	m.mu.Unlock()
	for _, r := range rs {
		r.cancel()
	}
}
