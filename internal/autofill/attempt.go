package autofill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rayen0001/tekup-auto-login/internal/dom"
	"github.com/rayen0001/tekup-auto-login/internal/locator"
)

type State string

const (
	StateSearching State = "searching"
	StateFilled    State = "filled"
	StateDone      State = "done"
)

type Outcome string

const (
	OutcomeSubmitted     Outcome = "submitted"
	OutcomeNotFound      Outcome = "not_found"
	OutcomeNoSubmit      Outcome = "no_submit"
	OutcomeFailed        Outcome = "failed"
	OutcomeDisabled      Outcome = "disabled"
	OutcomeNoCredentials Outcome = "no_credentials"
	OutcomeStoreError    Outcome = "store_error"
	OutcomeCanceled      Outcome = "canceled"
)

const (
	MethodClick = "click"
	MethodForm  = "form"
)

type Result struct {
	Outcome Outcome `json:"outcome"`
	Retries int     `json:"retries"`
	Method  string  `json:"method,omitempty"`
	Err     error   `json:"-"`
}

// Reason is the error text, or "" when the attempt ended cleanly.
func (r Result) Reason() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Attempt is one run of the searching/filled state machine. All mutable
// fields are guarded by mu; timers re-enter through search and submit.
type Attempt struct {
	ID string

	ctx    context.Context
	engine *Engine
	doc    dom.Document
	creds  credentials
	log    *slog.Logger

	mu        sync.Mutex
	state     State
	retries   int
	timer     *time.Timer
	result    Result
	done      chan struct{}
	stopWatch func() bool
}

func newAttempt(ctx context.Context, e *Engine, doc dom.Document) *Attempt {
	id := newAttemptID()
	return &Attempt{
		ID:     id,
		ctx:    ctx,
		engine: e,
		doc:    doc,
		log:    newLogger(id),
		state:  StateSearching,
		done:   make(chan struct{}),
	}
}

func (a *Attempt) Done() <-chan struct{} { return a.done }

// Wait blocks until the attempt reaches a terminal outcome.
func (a *Attempt) Wait() Result {
	<-a.done
	return a.Result()
}

func (a *Attempt) Result() Result {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.result
}

func (a *Attempt) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Attempt) start() {
	a.mu.Lock()
	a.stopWatch = context.AfterFunc(a.ctx, a.cancel)
	a.mu.Unlock()
	a.search()
}

func (a *Attempt) cancel() {
	a.log.Debug("attempt canceled")
	a.finish(Result{Outcome: OutcomeCanceled, Err: a.ctx.Err()})
}

// finish records the terminal result once and stops any pending timer.
func (a *Attempt) finish(r Result) {
	a.mu.Lock()
	if a.state == StateDone {
		a.mu.Unlock()
		return
	}
	a.state = StateDone
	r.Retries = a.retries
	a.result = r
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	stop := a.stopWatch
	a.mu.Unlock()

	if stop != nil {
		stop()
	}
	a.report(r)
	close(a.done)
}

func (a *Attempt) report(r Result) {
	rep := a.engine.reporter
	if rep == nil {
		return
	}
	// the attempt context may already be gone
	ctx := context.WithoutCancel(a.ctx)
	switch r.Outcome {
	case OutcomeSubmitted:
		rep.LoginSucceeded(ctx, a.creds.username)
	case OutcomeNotFound, OutcomeNoSubmit, OutcomeFailed:
		rep.LoginFailed(ctx, failureReason(r))
	}
}

func failureReason(r Result) string {
	switch r.Outcome {
	case OutcomeNotFound:
		return "login fields not found"
	case OutcomeNoSubmit:
		return "could not submit form"
	}
	if r.Err != nil {
		return r.Err.Error()
	}
	return string(r.Outcome)
}

// fail ends the attempt after an error in the fill or submit phase. Errors
// caused by cancellation are reported as such.
func (a *Attempt) fail(err error) {
	if a.ctx.Err() != nil {
		a.cancel()
		return
	}
	a.log.Error("error during auto-login", "err", err)
	a.finish(Result{Outcome: OutcomeFailed, Err: err})
}

func (a *Attempt) search() {
	a.mu.Lock()
	if a.state != StateSearching {
		a.mu.Unlock()
		return
	}
	a.timer = nil
	a.mu.Unlock()

	fields, err := locator.Locate(a.ctx, a.doc)
	if err != nil {
		a.fail(fmt.Errorf("locate fields: %w", err))
		return
	}

	if !fields.Complete() {
		a.log.Warn("login fields not found on page")
		cfg := a.engine.cfg

		a.mu.Lock()
		if a.state != StateSearching {
			a.mu.Unlock()
			return
		}
		if a.retries < cfg.MaxRetries {
			a.retries++
			n := a.retries
			a.timer = time.AfterFunc(cfg.RetryDelay, a.search)
			a.mu.Unlock()
			a.log.Info("retrying", "in", cfg.RetryDelay, "attempt", n, "max", cfg.MaxRetries)
			return
		}
		a.mu.Unlock()

		a.log.Error("max retries reached, check that the tab is on the login page")
		a.finish(Result{Outcome: OutcomeNotFound})
		return
	}

	a.fill(fields)
}

func (a *Attempt) fill(f locator.Fields) {
	defer func() {
		if r := recover(); r != nil {
			a.fail(fmt.Errorf("panic: %v", r))
		}
	}()

	a.mu.Lock()
	if a.state != StateSearching {
		a.mu.Unlock()
		return
	}
	a.state = StateFilled
	a.mu.Unlock()

	ctx := a.ctx
	if err := f.Username.SetValue(ctx, a.creds.username); err != nil {
		a.fail(fmt.Errorf("fill username: %w", err))
		return
	}
	if err := f.Password.SetValue(ctx, a.creds.password); err != nil {
		a.fail(fmt.Errorf("fill password: %w", err))
		return
	}
	if f.Checkbox != nil {
		checked, err := f.Checkbox.Checked(ctx)
		if err != nil {
			a.fail(fmt.Errorf("read checkbox: %w", err))
			return
		}
		if !checked {
			if err := f.Checkbox.Check(ctx); err != nil {
				a.fail(fmt.Errorf("check remember me: %w", err))
				return
			}
		}
	}
	a.log.Info("credentials filled")

	if f.Submit == nil {
		a.submitForm(f.Username)
		return
	}

	disabled, err := f.Submit.Disabled(ctx)
	if err != nil {
		a.fail(fmt.Errorf("read submit state: %w", err))
		return
	}
	if disabled {
		if err := f.Submit.Enable(ctx); err != nil {
			a.fail(fmt.Errorf("enable submit: %w", err))
			return
		}
	}

	a.mu.Lock()
	if a.state != StateFilled {
		a.mu.Unlock()
		return
	}
	a.timer = time.AfterFunc(a.engine.cfg.SettleDelay, func() { a.click(f.Submit) })
	a.mu.Unlock()
}

func (a *Attempt) click(submit dom.Element) {
	defer func() {
		if r := recover(); r != nil {
			a.fail(fmt.Errorf("panic: %v", r))
		}
	}()

	a.mu.Lock()
	if a.state != StateFilled {
		a.mu.Unlock()
		return
	}
	a.timer = nil
	a.mu.Unlock()

	if err := submit.Click(a.ctx); err != nil {
		a.fail(fmt.Errorf("click submit: %w", err))
		return
	}
	a.log.Info("login form submitted")
	a.finish(Result{Outcome: OutcomeSubmitted, Method: MethodClick})
}

func (a *Attempt) submitForm(field dom.Element) {
	a.log.Warn("submit button not found, trying form submit")
	ok, err := field.SubmitForm(a.ctx)
	if err != nil {
		a.fail(fmt.Errorf("submit form: %w", err))
		return
	}
	if !ok {
		a.log.Error("could not submit form")
		a.finish(Result{Outcome: OutcomeNoSubmit, Err: errNoForm})
		return
	}
	a.log.Info("form submitted directly")
	a.finish(Result{Outcome: OutcomeSubmitted, Method: MethodForm})
}

var errNoForm = errors.New("no submit control and no enclosing form")
