package monitor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rayen0001/tekup-auto-login/internal/autofill"
	"github.com/rayen0001/tekup-auto-login/internal/store"
)

const (
	ActionGetCredentials = "getCredentials"
	ActionLoginSuccess   = "loginSuccess"
	ActionLoginFailed    = "loginFailed"
)

type Message struct {
	Action   string `json:"action"`
	Username string `json:"username,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Relay answers messages from the page side and the settings surfaces.
type Relay struct {
	store store.Store
}

func NewRelay(s store.Store) *Relay {
	return &Relay{store: s}
}

// Handle dispatches msg. Only getCredentials returns a value; unknown
// actions are logged and ignored.
func (r *Relay) Handle(ctx context.Context, msg Message) (any, error) {
	slog.Debug("message received", "action", msg.Action)

	switch msg.Action {
	case ActionGetCredentials:
		rec, err := r.store.Get(ctx)
		if err != nil {
			return nil, fmt.Errorf("read credentials: %w", err)
		}
		return rec, nil
	case ActionLoginSuccess:
		slog.Info("login successful", "user", autofill.Redact(msg.Username))
	case ActionLoginFailed:
		slog.Error("login failed", "err", msg.Error)
	default:
		slog.Warn("unknown action", "action", msg.Action)
	}
	return nil, nil
}

func (r *Relay) LoginSucceeded(ctx context.Context, username string) {
	_, _ = r.Handle(ctx, Message{Action: ActionLoginSuccess, Username: username})
}

func (r *Relay) LoginFailed(ctx context.Context, reason string) {
	_, _ = r.Handle(ctx, Message{Action: ActionLoginFailed, Error: reason})
}

var _ autofill.Reporter = (*Relay)(nil)
