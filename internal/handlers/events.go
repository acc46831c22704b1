package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/rayen0001/tekup-auto-login/internal/settings"
	"github.com/rayen0001/tekup-auto-login/internal/store"
)

// ChangeEvent is what /events streams for each store change. Credentials
// themselves are never sent.
type ChangeEvent struct {
	Keys           []string `json:"keys"`
	Enabled        bool     `json:"enabled"`
	HasCredentials bool     `json:"hasCredentials"`
	MaskedUsername string   `json:"maskedUsername"`
	At             string   `json:"at"`
}

func newChangeEvent(c store.Change) ChangeEvent {
	masked := settings.NotSet
	if c.New.HasCredentials() {
		masked = settings.MaskUsername(c.New.Username)
	}
	return ChangeEvent{
		Keys:           c.Keys,
		Enabled:        c.New.IsEnabled(),
		HasCredentials: c.New.HasCredentials(),
		MaskedUsername: masked,
		At:             time.Now().UTC().Format(time.RFC3339),
	}
}

// HandleEvents upgrades to WebSocket and streams store changes as JSON text
// frames until the client disconnects.
func (h *Handlers) HandleEvents(w http.ResponseWriter, r *http.Request) {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		slog.Error("ws upgrade failed", "err", err)
		return
	}
	defer func() { _ = conn.Close() }()

	events := make(chan ChangeEvent, 16)
	unsubscribe := h.Store.Subscribe(func(c store.Change) {
		select {
		case events <- newChangeEvent(c):
		default:
			slog.Warn("events client too slow, dropping change")
		}
	})
	defer unsubscribe()

	var once sync.Once
	done := make(chan struct{})
	go func() {
		for {
			if _, _, err := wsutil.ReadClientData(conn); err != nil {
				once.Do(func() { close(done) })
				return
			}
		}
	}()

	slog.Debug("events client connected", "remote", r.RemoteAddr)
	ping := time.NewTicker(10 * time.Second)
	defer ping.Stop()

	for {
		select {
		case ev := <-events:
			data, err := json.Marshal(ev)
			if err != nil {
				slog.Error("json encode", "err", err)
				continue
			}
			if err := wsutil.WriteServerText(conn, data); err != nil {
				return
			}
		case <-ping.C:
			if err := wsutil.WriteServerMessage(conn, ws.OpPing, nil); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}
