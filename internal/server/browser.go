package server

import (
	"encoding/base64"
	"net/http"
	"time"

	"github.com/nextlevelbuilder/goforge/internal/browser"
	"github.com/nextlevelbuilder/goforge/pkg/protocol"
)

// handleBrowser dispatches /v1/browser/{op}. The coordinator serializes
// access to the single page internally.
func (s *Server) handleBrowser(w http.ResponseWriter, r *http.Request) {
	op := r.PathValue("op")

	var req protocol.BrowserRequest
	if !decodeBody(w, r, &req) {
		return
	}

	switch op {
	case "navigate":
		if req.URL == "" {
			badRequest(w, "url is required")
			return
		}
		url, err := s.browser.Navigate(req.URL)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"url": url})

	case "screenshot":
		data, err := s.browser.Screenshot(browser.ScreenshotOptions{
			FullPage: req.FullPage,
			Selector: req.Selector,
			MaxWidth: req.MaxWidth,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"format": "png",
			"data":   base64.StdEncoding.EncodeToString(data),
			"bytes":  len(data),
		})

	case "evaluate":
		if req.Script == "" {
			badRequest(w, "script is required")
			return
		}
		value, err := s.browser.Evaluate(req.Script)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"value": value})

	case "click":
		if req.Selector == "" {
			badRequest(w, "selector is required")
			return
		}
		if err := s.browser.Click(req.Selector); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "clicked"})

	case "type":
		if req.Selector == "" {
			badRequest(w, "selector is required")
			return
		}
		if err := s.browser.Type(req.Selector, req.Text); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "typed"})

	case "wait-for":
		if req.Selector == "" {
			badRequest(w, "selector is required")
			return
		}
		timeout := time.Duration(req.TimeoutMs) * time.Millisecond
		if err := s.browser.WaitFor(req.Selector, req.State, timeout); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})

	case "content":
		content, err := s.browser.Content(req.Format)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"content": content})

	case "console-logs":
		logs := s.browser.Logs(req.Filter, req.Drain)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"logs":  logs,
			"count": len(logs),
		})

	case "close":
		if err := s.browser.Close(); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "closed"})

	default:
		badRequest(w, "unknown browser operation: "+op)
	}
}
