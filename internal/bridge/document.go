package bridge

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rayen0001/tekup-auto-login/internal/dom"
)

// Element operations run as functions on the remote node. Events bubble so
// page frameworks listening on the form see the change.
const (
	jsSetValue = `function(v) { this.value = v; this.dispatchEvent(new Event('input', {bubbles: true})); this.dispatchEvent(new Event('change', {bubbles: true})); }`
	jsValue    = `function() { return this.value === undefined ? "" : String(this.value); }`
	jsChecked  = `function() { return !!this.checked; }`
	jsCheck    = `function() { this.checked = true; this.dispatchEvent(new Event('change', {bubbles: true})); }`
	jsDisabled = `function() { return !!this.disabled; }`
	jsEnable   = `function() { this.disabled = false; this.removeAttribute('disabled'); }`
	jsClick    = `function() { this.click(); }`
	jsSubmit   = `function() { const f = this.closest('form'); if (!f) return false; f.submit(); return true; }`
)

// PageDocument is a dom.Document backed by a live tab.
type PageDocument struct {
	tabCtx  context.Context
	timeout time.Duration
}

func NewPageDocument(tabCtx context.Context, timeout time.Duration) *PageDocument {
	return &PageDocument{tabCtx: tabCtx, timeout: timeout}
}

// run executes fn on the tab. It is bounded by the per-action timeout and
// aborted when ctx ends; the tab itself stays attached.
func (d *PageDocument) run(ctx context.Context, fn chromedp.ActionFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if d.timeout > 0 {
		runCtx, cancel = context.WithTimeout(d.tabCtx, d.timeout)
	} else {
		runCtx, cancel = context.WithCancel(d.tabCtx)
	}
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, fn)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (d *PageDocument) QuerySelector(ctx context.Context, selector string) (dom.Element, error) {
	var id string
	err := d.run(ctx, func(c context.Context) error {
		var err error
		id, err = evaluateHandle(c, querySelectorExpr(selector))
		return err
	})
	if err != nil || id == "" {
		return nil, err
	}
	return &pageElement{doc: d, objectID: id}, nil
}

// Release frees the node handles created by QuerySelector.
func (d *PageDocument) Release(ctx context.Context) error {
	return d.run(ctx, releaseObjectGroup)
}

type pageElement struct {
	doc      *PageDocument
	objectID string
}

func (e *pageElement) call(ctx context.Context, fn string, out any, args ...any) error {
	return e.doc.run(ctx, func(c context.Context) error {
		return callFunctionOn(c, e.objectID, fn, out, args...)
	})
}

func (e *pageElement) SetValue(ctx context.Context, v string) error {
	return e.call(ctx, jsSetValue, nil, v)
}

func (e *pageElement) Value(ctx context.Context) (string, error) {
	var v string
	err := e.call(ctx, jsValue, &v)
	return v, err
}

func (e *pageElement) Checked(ctx context.Context) (bool, error) {
	var v bool
	err := e.call(ctx, jsChecked, &v)
	return v, err
}

func (e *pageElement) Check(ctx context.Context) error {
	return e.call(ctx, jsCheck, nil)
}

func (e *pageElement) Disabled(ctx context.Context) (bool, error) {
	var v bool
	err := e.call(ctx, jsDisabled, &v)
	return v, err
}

func (e *pageElement) Enable(ctx context.Context) error {
	return e.call(ctx, jsEnable, nil)
}

func (e *pageElement) Click(ctx context.Context) error {
	return e.call(ctx, jsClick, nil)
}

func (e *pageElement) SubmitForm(ctx context.Context) (bool, error) {
	var ok bool
	err := e.call(ctx, jsSubmit, &ok)
	return ok, err
}

var _ dom.Document = (*PageDocument)(nil)
var _ dom.Element = (*pageElement)(nil)
