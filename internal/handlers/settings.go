package handlers

import (
	"errors"
	"net/http"

	"github.com/rayen0001/tekup-auto-login/internal/bridge"
	"github.com/rayen0001/tekup-auto-login/internal/settings"
	"github.com/rayen0001/tekup-auto-login/internal/web"
)

func (h *Handlers) HandleGetOptions(w http.ResponseWriter, r *http.Request) {
	form, err := h.Options.Load(r.Context())
	if err != nil {
		web.ErrorCode(w, 500, "store_error", settings.MsgLoadError, true, nil)
		return
	}
	web.JSON(w, 200, form)
}

func (h *Handlers) HandleSaveOptions(w http.ResponseWriter, r *http.Request) {
	var form settings.Form
	if err := web.ReadJSON(r, &form); err != nil {
		web.Error(w, 400, err)
		return
	}

	err := h.Options.Save(r.Context(), form)
	notice := settings.SaveNotice(err)
	var fe *settings.FieldError
	switch {
	case errors.As(err, &fe):
		web.ErrorCode(w, 400, "invalid_field", fe.Message, false, map[string]any{"field": fe.Field})
		return
	case err != nil:
		web.ErrorCode(w, 500, "store_error", notice.Text, true, nil)
		return
	}

	web.JSON(w, 200, map[string]any{"form": form.Normalize(), "notice": notice})
}

// HandleClearOptions requires ?confirm=true, standing in for the browser's
// confirm dialog.
func (h *Handlers) HandleClearOptions(w http.ResponseWriter, r *http.Request) {
	confirmed := r.URL.Query().Get("confirm") == "true"
	form, err := h.Options.Clear(r.Context(), func() bool { return confirmed })
	notice, _ := settings.ClearNotice(err)
	switch {
	case errors.Is(err, settings.ErrCanceled):
		web.ErrorCode(w, 400, "not_confirmed", settings.MsgClearConfirm, false, map[string]any{"confirm": "true"})
		return
	case err != nil:
		web.ErrorCode(w, 500, "store_error", notice.Text, true, nil)
		return
	}
	web.JSON(w, 200, map[string]any{"form": form, "notice": notice})
}

func (h *Handlers) HandlePopup(w http.ResponseWriter, r *http.Request) {
	web.JSON(w, 200, h.Popup.Load(r.Context()))
}

func (h *Handlers) HandleToggle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := web.ReadJSON(r, &req); err != nil {
		web.Error(w, 400, err)
		return
	}
	if req.Enabled == nil {
		web.ErrorCode(w, 400, "missing_field", "enabled is required", false, map[string]any{"field": "enabled"})
		return
	}

	shown, err := h.Popup.Toggle(r.Context(), *req.Enabled)
	if err != nil {
		web.ErrorCode(w, 500, "store_error", err.Error(), true, map[string]any{"enabled": shown})
		return
	}
	web.JSON(w, 200, map[string]any{"enabled": shown, "status": h.Popup.Load(r.Context())})
}

func (h *Handlers) HandleTestLogin(w http.ResponseWriter, r *http.Request) {
	res, err := h.Popup.TestLogin(r.Context())
	if err != nil {
		if errors.Is(err, bridge.ErrNoTabs) {
			web.ErrorCode(w, 404, "no_tabs", "no active tab found", false, nil)
			return
		}
		web.ErrorCode(w, 502, "browser_error", err.Error(), true, nil)
		return
	}
	web.JSON(w, 200, res)
}

func (h *Handlers) HandleOpenSettings(w http.ResponseWriter, r *http.Request) {
	id, err := h.Popup.OpenSettings(r.Context())
	if err != nil {
		web.ErrorCode(w, 502, "browser_error", err.Error(), true, nil)
		return
	}
	web.JSON(w, 200, map[string]string{"tabId": id})
}
