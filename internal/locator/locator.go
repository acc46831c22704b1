// Package locator maps the logical login form roles to page elements by
// walking ordered selector fallback lists.
package locator

import (
	"context"
	"log/slog"

	"github.com/rayen0001/tekup-auto-login/internal/dom"
)

const (
	FieldUsername = "username"
	FieldPassword = "password"
	FieldSubmit   = "submit"
	FieldCheckbox = "checkbox"
)

// Selectors are tried in order; the first match wins. Earlier entries are the
// portal's own ids, later ones are generic guesses.
var (
	UsernameSelectors = []string{
		`#auth_user`,
		`input[name="auth_user"]`,
		`input[name="username"]`,
		`input[type="text"][name*="user"]`,
		`input[placeholder*="username" i]`,
		`input[placeholder*="user" i]`,
	}
	PasswordSelectors = []string{
		`#auth_pass`,
		`input[name="auth_pass"]`,
		`input[name="password"]`,
		`input[type="password"]`,
	}
	SubmitSelectors = []string{
		`#login`,
		`button[type="submit"]`,
		`input[type="submit"]`,
		`button[name="login"]`,
		`button.login-btn`,
	}
	// The last entry matches any checkbox on the page.
	CheckboxSelectors = []string{
		`#remember`,
		`input[type="checkbox"][name*="remember"]`,
		`.checkbox input[type="checkbox"]`,
		`input[type="checkbox"]`,
	}
)

// Field pairs a role with its fallback list.
type Field struct {
	Name      string
	Selectors []string
}

// All lists the roles in lookup order.
var All = []Field{
	{FieldUsername, UsernameSelectors},
	{FieldPassword, PasswordSelectors},
	{FieldSubmit, SubmitSelectors},
	{FieldCheckbox, CheckboxSelectors},
}

// Fields is the per-attempt lookup result. Any handle may be nil.
type Fields struct {
	Username dom.Element
	Password dom.Element
	Submit   dom.Element
	Checkbox dom.Element
}

// Complete reports whether the required username and password were found.
func (f Fields) Complete() bool {
	return f.Username != nil && f.Password != nil
}

// Match records which selector resolved a role.
type Match struct {
	Field    string `json:"field" yaml:"field"`
	Selector string `json:"selector,omitempty" yaml:"selector,omitempty"`
	Found    bool   `json:"found" yaml:"found"`
	Required bool   `json:"required" yaml:"required"`
}

// First returns the first element matched by selectors and the selector that
// matched it. Selector errors are logged and skipped; only a context error
// stops the walk.
func First(ctx context.Context, doc dom.Document, selectors []string) (dom.Element, string, error) {
	for _, sel := range selectors {
		el, err := doc.QuerySelector(ctx, sel)
		if err != nil {
			if ctx.Err() != nil {
				return nil, "", ctx.Err()
			}
			slog.Debug("selector failed", "selector", sel, "err", err)
			continue
		}
		if el != nil {
			return el, sel, nil
		}
	}
	return nil, "", nil
}

// Locate resolves all four roles against doc.
func Locate(ctx context.Context, doc dom.Document) (Fields, error) {
	var f Fields
	for _, field := range All {
		el, _, err := First(ctx, doc, field.Selectors)
		if err != nil {
			return Fields{}, err
		}
		switch field.Name {
		case FieldUsername:
			f.Username = el
		case FieldPassword:
			f.Password = el
		case FieldSubmit:
			f.Submit = el
		case FieldCheckbox:
			f.Checkbox = el
		}
	}
	return f, nil
}

// Probe reports, per role, which selector matched. It does not touch the page.
func Probe(ctx context.Context, doc dom.Document) ([]Match, error) {
	out := make([]Match, 0, len(All))
	for _, field := range All {
		el, sel, err := First(ctx, doc, field.Selectors)
		if err != nil {
			return nil, err
		}
		out = append(out, Match{
			Field:    field.Name,
			Selector: sel,
			Found:    el != nil,
			Required: field.Name == FieldUsername || field.Name == FieldPassword,
		})
	}
	return out, nil
}

// Ready reports whether every required role matched.
func Ready(ms []Match) bool {
	for _, m := range ms {
		if m.Required && !m.Found {
			return false
		}
	}
	return true
}
