package dom

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Event is one dispatched DOM event recorded by HTMLDocument.
type Event struct {
	Target string
	Type   string
}

// HTMLDocument is an in-memory Document over a parsed HTML tree. Mutations
// are applied to the tree and every dispatched event is recorded, which makes
// it usable for offline diagnosis and for tests.
type HTMLDocument struct {
	doc    *goquery.Document
	mu     sync.Mutex
	events []Event
}

func ParseHTML(r io.Reader) (*HTMLDocument, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &HTMLDocument{doc: doc}, nil
}

func ParseHTMLString(s string) (*HTMLDocument, error) {
	return ParseHTML(strings.NewReader(s))
}

// QuerySelector never fails on a bad selector; goquery treats it as matching
// nothing.
func (d *HTMLDocument) QuerySelector(ctx context.Context, selector string) (Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sel := d.doc.Find(selector).First()
	if sel.Length() == 0 {
		return nil, nil
	}
	return &htmlElement{doc: d, sel: sel}, nil
}

// Events returns a copy of the recorded events in dispatch order.
func (d *HTMLDocument) Events() []Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Event, len(d.events))
	copy(out, d.events)
	return out
}

// Count returns how many events of the given type were dispatched at target.
func (d *HTMLDocument) Count(target, typ string) int {
	n := 0
	for _, e := range d.Events() {
		if e.Target == target && e.Type == typ {
			n++
		}
	}
	return n
}

// Find exposes the underlying tree for assertions.
func (d *HTMLDocument) Find(selector string) *goquery.Selection {
	return d.doc.Find(selector)
}

func (d *HTMLDocument) record(target, typ string) {
	d.mu.Lock()
	d.events = append(d.events, Event{Target: target, Type: typ})
	d.mu.Unlock()
}

type htmlElement struct {
	doc *HTMLDocument
	sel *goquery.Selection
}

// Describe renders the element as tag#id[name=...] for event targets.
func Describe(n *html.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(n.Data)
	for _, a := range n.Attr {
		if a.Key == "id" && a.Val != "" {
			b.WriteString("#" + a.Val)
		}
	}
	for _, a := range n.Attr {
		if a.Key == "name" && a.Val != "" {
			b.WriteString(`[name="` + a.Val + `"]`)
		}
	}
	return b.String()
}

func (e *htmlElement) target() string {
	return Describe(e.sel.Get(0))
}

func (e *htmlElement) SetValue(ctx context.Context, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.sel.SetAttr("value", value)
	e.doc.record(e.target(), EventInput)
	e.doc.record(e.target(), EventChange)
	return nil
}

func (e *htmlElement) Value(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	v, _ := e.sel.Attr("value")
	return v, nil
}

func (e *htmlElement) Checked(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, ok := e.sel.Attr("checked")
	return ok, nil
}

func (e *htmlElement) Check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.sel.SetAttr("checked", "checked")
	e.doc.record(e.target(), EventChange)
	return nil
}

func (e *htmlElement) Disabled(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, ok := e.sel.Attr("disabled")
	return ok, nil
}

func (e *htmlElement) Enable(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.sel.RemoveAttr("disabled")
	return nil
}

func (e *htmlElement) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, disabled := e.sel.Attr("disabled"); disabled {
		return nil
	}
	e.doc.record(e.target(), EventClick)
	return nil
}

func (e *htmlElement) SubmitForm(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	form := e.sel.Closest("form")
	if form.Length() == 0 {
		return false, nil
	}
	e.doc.record(Describe(form.Get(0)), EventSubmit)
	return true, nil
}
