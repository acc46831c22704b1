// Package autofill drives one login attempt: read the stored credentials,
// locate the form, fill it and submit, retrying while the form has not
// rendered yet.
package autofill

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rayen0001/tekup-auto-login/internal/dom"
	"github.com/rayen0001/tekup-auto-login/internal/store"
)

const (
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1000 * time.Millisecond
	DefaultSettleDelay = 500 * time.Millisecond
)

type Config struct {
	MaxRetries  int
	RetryDelay  time.Duration
	SettleDelay time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxRetries:  DefaultMaxRetries,
		RetryDelay:  DefaultRetryDelay,
		SettleDelay: DefaultSettleDelay,
	}
}

// Reporter is told how a submitted or abandoned attempt ended.
type Reporter interface {
	LoginSucceeded(ctx context.Context, username string)
	LoginFailed(ctx context.Context, reason string)
}

type Engine struct {
	store    store.Store
	cfg      Config
	reporter Reporter
}

type Option func(*Engine)

func WithReporter(r Reporter) Option {
	return func(e *Engine) { e.reporter = r }
}

func New(s store.Store, cfg Config, opts ...Option) *Engine {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	e := &Engine{store: s, cfg: cfg}
	for _, o := range opts {
		o(e)
	}
	return e
}


// Run reads the store and, when autofill is allowed, starts an attempt
// against doc. The first search runs before Run returns; retries and the
// delayed submit run on timers. Cancelling ctx stops any pending timer.
func (e *Engine) Run(ctx context.Context, doc dom.Document) *Attempt {
	a := newAttempt(ctx, e, doc)
	a.log.Info("extension loaded, checking for credentials")

	rec, err := e.store.Get(ctx)
	if err != nil {
		a.log.Error("storage error", "err", err)
		a.finish(Result{Outcome: OutcomeStoreError, Err: fmt.Errorf("read store: %w", err)})
		return a
	}

	if !rec.IsEnabled() {
		a.log.Info("auto-login is disabled")
		a.finish(Result{Outcome: OutcomeDisabled})
		return a
	}

	username := strings.TrimSpace(rec.Username)
	if username == "" || rec.Password == "" {
		a.log.Warn("no credentials saved, configure them in the settings")
		a.finish(Result{Outcome: OutcomeNoCredentials})
		return a
	}

	a.creds = credentials{username: username, password: rec.Password}
	a.log.Info("found credentials", "user", Redact(username))
	a.start()
	return a
}

type credentials struct {
	username string
	password string
}

// Redact keeps the first three characters of a username for log lines.
func Redact(username string) string {
	r := []rune(username)
	if len(r) > 3 {
		r = r[:3]
	}
	return string(r) + "***"
}

func newAttemptID() string {
	return uuid.NewString()[:8]
}

func newLogger(id string) *slog.Logger {
	return slog.With("component", "autofill", "attempt", id)
}
