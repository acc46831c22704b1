// Package handlers provides the HTTP API of the auto-login daemon.
package handlers

import (
	"net/http"

	"github.com/rayen0001/tekup-auto-login/internal/assets"
	"github.com/rayen0001/tekup-auto-login/internal/autofill"
	"github.com/rayen0001/tekup-auto-login/internal/bridge"
	"github.com/rayen0001/tekup-auto-login/internal/config"
	"github.com/rayen0001/tekup-auto-login/internal/monitor"
	"github.com/rayen0001/tekup-auto-login/internal/settings"
	"github.com/rayen0001/tekup-auto-login/internal/store"
)

// Runner starts an autofill attempt on a tab.
type Runner interface {
	Run(tabID string) (*autofill.Attempt, error)
}

type Handlers struct {
	Bridge  bridge.BridgeAPI
	Config  *config.RuntimeConfig
	Store   store.Store
	Options *settings.Options
	Popup   *settings.Popup
	Relay   *monitor.Relay
	Runner  Runner
	Version string
}

func New(b bridge.BridgeAPI, cfg *config.RuntimeConfig, s store.Store, runner Runner, version string) *Handlers {
	return &Handlers{
		Bridge:  b,
		Config:  cfg,
		Store:   s,
		Options: settings.NewOptions(s),
		Popup: settings.NewPopup(s, b, settings.PopupConfig{
			Target:     cfg.TargetMatch,
			LoginURL:   cfg.LoginURL,
			OptionsURL: OptionsPageURL(cfg),
		}),
		Relay:   monitor.NewRelay(s),
		Runner:  runner,
		Version: version,
	}
}

// OptionsPageURL is the options page address. The token travels in the
// fragment so it never reaches server logs.
func OptionsPageURL(cfg *config.RuntimeConfig) string {
	u := cfg.OptionsURL()
	if cfg.Token != "" {
		u += "#token=" + cfg.Token
	}
	return u
}

func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.HandleHealth)
	mux.HandleFunc("GET /tabs", h.HandleTabs)

	mux.HandleFunc("GET /options", h.HandleGetOptions)
	mux.HandleFunc("PUT /options", h.HandleSaveOptions)
	mux.HandleFunc("DELETE /options", h.HandleClearOptions)

	mux.HandleFunc("GET /popup", h.HandlePopup)
	mux.HandleFunc("POST /popup/toggle", h.HandleToggle)
	mux.HandleFunc("POST /popup/test", h.HandleTestLogin)
	mux.HandleFunc("POST /popup/settings", h.HandleOpenSettings)

	mux.HandleFunc("POST /message", h.HandleMessage)
	mux.HandleFunc("POST /autofill", h.HandleAutofill)
	mux.HandleFunc("POST /probe", h.HandleProbe)
	mux.HandleFunc("GET /events", h.HandleEvents)

	mux.HandleFunc("GET /options.html", page(assets.OptionsHTML))
	mux.HandleFunc("GET /popup.html", page(assets.PopupHTML))
}

func page(html string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(html))
	}
}
