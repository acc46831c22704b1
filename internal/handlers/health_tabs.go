package handlers

import (
	"net/http"

	"github.com/rayen0001/tekup-auto-login/internal/bridge"
	"github.com/rayen0001/tekup-auto-login/internal/web"
)

func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":  "ok",
		"version": h.Version,
		"store":   h.Config.StoreBackend,
		"target":  h.Config.TargetMatch,
	}
	tabs, err := h.Bridge.ListTabs()
	if err != nil {
		resp["status"] = "disconnected"
		resp["error"] = err.Error()
	} else {
		resp["tabs"] = len(tabs)
	}
	web.JSON(w, 200, resp)
}

func (h *Handlers) HandleTabs(w http.ResponseWriter, r *http.Request) {
	tabs, err := h.Bridge.ListTabs()
	if err != nil {
		web.Error(w, 500, err)
		return
	}
	if tabs == nil {
		tabs = []bridge.TabInfo{}
	}
	web.JSON(w, 200, map[string]any{"tabs": tabs})
}
