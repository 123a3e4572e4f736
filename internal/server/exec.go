package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nextlevelbuilder/goforge/internal/executor"
	"github.com/nextlevelbuilder/goforge/pkg/protocol"
)

func (s *Server) execRequest(w http.ResponseWriter, r *http.Request) (executor.Request, bool) {
	var req protocol.ExecuteRequest
	if !decodeBody(w, r, &req) {
		return executor.Request{}, false
	}
	if req.Command == "" {
		badRequest(w, "command is required")
		return executor.Request{}, false
	}

	// Policy first: nothing reaches the executor unvalidated.
	if err := s.classifier.ClassifyCommand(req.Command); err != nil {
		writeError(w, err)
		return executor.Request{}, false
	}

	return executor.Request{
		Command:       req.Command,
		WorkingDir:    req.WorkingDir,
		Timeout:       time.Duration(req.TimeoutMs) * time.Millisecond,
		LongOperation: req.LongOperation,
		KeepAlive:     time.Duration(req.KeepAliveInterval) * time.Millisecond,
	}, true
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	req, ok := s.execRequest(w, r)
	if !ok {
		return
	}

	res, err := s.executor.Run(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleExecuteStream streams execution events as server-sent events:
// `data: {type,data,timestamp}\n\n` frames with exactly one terminal
// complete/error event before the stream closes.
func (s *Server) handleExecuteStream(w http.ResponseWriter, r *http.Request) {
	req, ok := s.execRequest(w, r)
	if !ok {
		return
	}

	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		writeJSON(w, http.StatusInternalServerError, protocol.ErrorBody{Error: "streaming unsupported", Kind: "IOError"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events := make(chan protocol.StreamEvent, 64)
	go s.executor.RunStream(r.Context(), req, events)

	for ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			slog.Error("marshal stream event", "error", err)
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Same-host tooling only; the bearer token is the access control.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleExecuteWS is the WebSocket variant of the exec stream: the client
// sends one ExecuteRequest frame and receives StreamEvent frames until the
// terminal one, after which the connection closes.
func (s *Server) handleExecuteWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	var req protocol.ExecuteRequest
	if err := conn.ReadJSON(&req); err != nil {
		conn.WriteJSON(protocol.StreamEvent{
			Type:      protocol.EventError,
			Timestamp: time.Now().UTC(),
			Error:     &protocol.ErrorBody{Error: "invalid request frame: " + err.Error(), Kind: "BadRequest"},
		})
		return
	}
	if err := s.classifier.ClassifyCommand(req.Command); err != nil {
		conn.WriteJSON(protocol.StreamEvent{
			Type:      protocol.EventError,
			Timestamp: time.Now().UTC(),
			Error:     &protocol.ErrorBody{Error: err.Error(), Kind: kindOf(err)},
		})
		return
	}

	events := make(chan protocol.StreamEvent, 64)
	go s.executor.RunStream(r.Context(), executor.Request{
		Command:       req.Command,
		WorkingDir:    req.WorkingDir,
		Timeout:       time.Duration(req.TimeoutMs) * time.Millisecond,
		LongOperation: req.LongOperation,
		KeepAlive:     time.Duration(req.KeepAliveInterval) * time.Millisecond,
	}, events)

	for ev := range events {
		if err := conn.WriteJSON(ev); err != nil {
			slog.Warn("websocket write failed, draining execution", "error", err)
			for range events {
			}
			return
		}
	}
}
