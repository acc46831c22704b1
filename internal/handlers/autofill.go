package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/rayen0001/tekup-auto-login/internal/autofill"
	"github.com/rayen0001/tekup-auto-login/internal/bridge"
	"github.com/rayen0001/tekup-auto-login/internal/dom"
	"github.com/rayen0001/tekup-auto-login/internal/locator"
	"github.com/rayen0001/tekup-auto-login/internal/monitor"
	"github.com/rayen0001/tekup-auto-login/internal/web"
	"gopkg.in/yaml.v3"
)

func (h *Handlers) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var msg monitor.Message
	if err := web.ReadJSON(r, &msg); err != nil {
		web.Error(w, 400, err)
		return
	}
	resp, err := h.Relay.Handle(r.Context(), msg)
	if err != nil {
		web.ErrorCode(w, 500, "store_error", err.Error(), true, nil)
		return
	}
	if resp == nil {
		resp = map[string]any{}
	}
	web.JSON(w, 200, resp)
}

type autofillRequest struct {
	TabID string `json:"tabId"`
	Wait  bool   `json:"wait"`
}

type autofillResponse struct {
	AttemptID string           `json:"attemptId"`
	TabID     string           `json:"tabId"`
	State     autofill.State   `json:"state"`
	Result    *autofill.Result `json:"result,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// HandleAutofill runs the engine on a tab now. With wait it blocks until the
// attempt ends or the client goes away.
func (h *Handlers) HandleAutofill(w http.ResponseWriter, r *http.Request) {
	if h.Runner == nil {
		web.ErrorCode(w, 503, "unavailable", "autofill runner not configured", false, nil)
		return
	}
	var req autofillRequest
	if err := web.ReadJSON(r, &req); err != nil {
		web.Error(w, 400, err)
		return
	}
	if req.TabID == "" {
		tab, err := h.Bridge.ActiveTab()
		if err != nil {
			if errors.Is(err, bridge.ErrNoTabs) {
				web.ErrorCode(w, 404, "no_tabs", "no active tab found", false, nil)
				return
			}
			web.Error(w, 500, err)
			return
		}
		req.TabID = tab.ID
	}

	a, err := h.Runner.Run(req.TabID)
	if err != nil {
		slog.Error("autofill run failed", "tab", req.TabID, "err", err)
		web.ErrorCode(w, 404, "tab_not_found", err.Error(), false, map[string]any{"tabId": req.TabID})
		return
	}

	resp := autofillResponse{AttemptID: a.ID, TabID: req.TabID}
	if req.Wait {
		select {
		case <-a.Done():
		case <-r.Context().Done():
			return
		}
	}
	resp.State = a.State()
	if resp.State == autofill.StateDone {
		res := a.Result()
		resp.Result = &res
		resp.Error = res.Reason()
	}
	web.JSON(w, 200, resp)
}

type probeRequest struct {
	HTML string `json:"html"`
	URL  string `json:"url"`
}

// checkProbeURL limits server-side fetches. Portal hosts are always allowed;
// other hosts only when a token is configured, so every caller that reached
// the handler is authenticated.
func (h *Handlers) checkProbeURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if h.Config.TargetMatch != "" && strings.Contains(u.Hostname(), h.Config.TargetMatch) {
		return nil
	}
	if h.Config.Token != "" {
		return nil
	}
	return fmt.Errorf("url probes outside %s need AUTOLOGIN_TOKEN", h.Config.TargetMatch)
}

func (h *Handlers) HandleProbe(w http.ResponseWriter, r *http.Request) {
	var req probeRequest
	if err := web.ReadJSON(r, &req); err != nil {
		web.Error(w, 400, err)
		return
	}

	var (
		doc *dom.HTMLDocument
		err error
	)
	switch {
	case strings.TrimSpace(req.HTML) != "":
		doc, err = dom.ParseHTMLString(req.HTML)
	case req.URL != "":
		if err := h.checkProbeURL(req.URL); err != nil {
			web.ErrorCode(w, 403, "url_not_allowed", err.Error(), false, map[string]any{"target": h.Config.TargetMatch})
			return
		}
		doc, err = dom.FetchHTML(r.Context(), req.URL, h.Config.NavigateTimeout)
		if err != nil {
			web.ErrorCode(w, 502, "fetch_failed", err.Error(), true, nil)
			return
		}
	default:
		web.ErrorCode(w, 400, "missing_field", "html or url is required", false, nil)
		return
	}
	if err != nil {
		web.Error(w, 400, fmt.Errorf("parse page: %w", err))
		return
	}

	matches, err := locator.Probe(r.Context(), doc)
	if err != nil {
		web.Error(w, 500, err)
		return
	}
	report := probeReport{Ready: locator.Ready(matches), Fields: matches}
	if r.URL.Query().Get("format") == "yaml" {
		data, err := yaml.Marshal(report)
		if err != nil {
			web.Error(w, 500, fmt.Errorf("marshal yaml: %w", err))
			return
		}
		w.Header().Set("Content-Type", "text/yaml; charset=utf-8")
		_, _ = w.Write(data)
		return
	}
	web.JSON(w, 200, report)
}

type probeReport struct {
	Ready  bool            `json:"ready" yaml:"ready"`
	Fields []locator.Match `json:"fields" yaml:"fields"`
}
