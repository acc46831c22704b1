// Package dom defines the page surface the locator and autofill engine act on.
// Live tabs implement it over CDP (see bridge.PageDocument); HTMLDocument
// implements it over a parsed HTML tree.
package dom

import "context"

// Document resolves CSS selectors against the current page.
type Document interface {
	// QuerySelector returns the first match in document order, or nil when
	// nothing matches.
	QuerySelector(ctx context.Context, selector string) (Element, error)
}

// Element is a handle on one form control.
type Element interface {
	// SetValue assigns the value and dispatches bubbling input and change
	// events so page scripts observe it.
	SetValue(ctx context.Context, value string) error
	Value(ctx context.Context) (string, error)
	Checked(ctx context.Context) (bool, error)
	// Check marks a checkbox and dispatches a bubbling change event.
	Check(ctx context.Context) error
	Disabled(ctx context.Context) (bool, error)
	Enable(ctx context.Context) error
	Click(ctx context.Context) error
	// SubmitForm submits the closest enclosing form. It reports false when
	// the element is not inside a form.
	SubmitForm(ctx context.Context) (bool, error)
}

const (
	EventInput  = "input"
	EventChange = "change"
	EventClick  = "click"
	EventSubmit = "submit"
)
