// Package settings implements the two user-facing surfaces over the store:
// the options form and the popup status panel.
package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rayen0001/tekup-auto-login/internal/autofill"
	"github.com/rayen0001/tekup-auto-login/internal/store"
)

// ErrCanceled is returned by Clear when the user did not confirm.
var ErrCanceled = errors.New("clear canceled")

const (
	MsgUsernameRequired = "Please enter a username"
	MsgPasswordRequired = "Please enter a password"
	MsgSaved            = "Credentials saved successfully!"
	MsgCleared          = "All data cleared successfully"
	MsgLoadError        = "Error loading saved data"
	MsgSaveError        = "Error saving credentials"
	MsgClearError       = "Error clearing data"
	MsgClearConfirm     = "Are you sure you want to clear all saved credentials?"
)

const (
	NoticeSuccess = "success"
	NoticeError   = "error"
)

// FieldError rejects a form before anything is written. Field names the
// input that should take focus.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// Notice is the transient status line shown under the form.
type Notice struct {
	Text string `json:"text"`
	Kind string `json:"kind"`
}

type Form struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Enabled  bool   `json:"enabled"`
}

// Normalize returns f as Save stores it.
func (f Form) Normalize() Form {
	f.Username = strings.TrimSpace(f.Username)
	return f
}

// DefaultForm is the form after a clear: empty and enabled.
func DefaultForm() Form {
	return Form{Enabled: true}
}

type Options struct {
	store store.Store
}

func NewOptions(s store.Store) *Options {
	return &Options{store: s}
}

func (o *Options) Load(ctx context.Context) (Form, error) {
	rec, err := o.store.Get(ctx)
	if err != nil {
		slog.Error("error loading credentials", "err", err)
		return DefaultForm(), fmt.Errorf("load credentials: %w", err)
	}
	return Form{
		Username: rec.Username,
		Password: rec.Password,
		Enabled:  rec.IsEnabled(),
	}, nil
}

// Save validates f and writes all three keys. The username is trimmed; the
// password is stored as typed.
func (o *Options) Save(ctx context.Context, f Form) error {
	f = f.Normalize()
	username := f.Username
	if username == "" {
		return &FieldError{Field: store.KeyUsername, Message: MsgUsernameRequired}
	}
	if f.Password == "" {
		return &FieldError{Field: store.KeyPassword, Message: MsgPasswordRequired}
	}

	password, enabled := f.Password, f.Enabled
	if err := o.store.Set(ctx, store.Patch{
		Username: &username,
		Password: &password,
		Enabled:  &enabled,
	}); err != nil {
		slog.Error("error saving credentials", "err", err)
		return fmt.Errorf("save credentials: %w", err)
	}
	slog.Info("credentials saved", "user", autofill.Redact(username))
	return nil
}

// Clear erases every key once confirm returns true and returns the form to
// display afterwards. A nil confirm counts as confirmed.
func (o *Options) Clear(ctx context.Context, confirm func() bool) (Form, error) {
	if confirm != nil && !confirm() {
		return Form{}, ErrCanceled
	}
	if err := o.store.Clear(ctx); err != nil {
		slog.Error("error clearing data", "err", err)
		return Form{}, fmt.Errorf("clear credentials: %w", err)
	}
	slog.Info("all credentials cleared")
	return DefaultForm(), nil
}

// SaveNotice maps the result of Save to its status line.
func SaveNotice(err error) Notice {
	var fe *FieldError
	switch {
	case err == nil:
		return Notice{Text: MsgSaved, Kind: NoticeSuccess}
	case errors.As(err, &fe):
		return Notice{Text: fe.Message, Kind: NoticeError}
	default:
		return Notice{Text: MsgSaveError, Kind: NoticeError}
	}
}

// ClearNotice maps the result of Clear to its status line. A canceled
// clear shows nothing.
func ClearNotice(err error) (Notice, bool) {
	switch {
	case err == nil:
		return Notice{Text: MsgCleared, Kind: NoticeSuccess}, true
	case errors.Is(err, ErrCanceled):
		return Notice{}, false
	default:
		return Notice{Text: MsgClearError, Kind: NoticeError}, true
	}
}
