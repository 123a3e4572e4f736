package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/nextlevelbuilder/goforge/internal/executor"
	"github.com/nextlevelbuilder/goforge/internal/files"
	"github.com/nextlevelbuilder/goforge/internal/policy"
	"github.com/nextlevelbuilder/goforge/internal/project"
	"github.com/nextlevelbuilder/goforge/internal/template"
	"github.com/nextlevelbuilder/goforge/pkg/protocol"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// writeError maps an internal error to its wire kind and HTTP status.
// Execution failures carry their structured body instead.
func writeError(w http.ResponseWriter, err error) {
	var execErr *executor.Error
	if errors.As(err, &execErr) {
		writeJSON(w, statusForKind(execErr.Kind()), executor.ErrorBody(err))
		return
	}

	kind := kindOf(err)
	writeJSON(w, statusForKind(kind), protocol.ErrorBody{Error: err.Error(), Kind: kind})
}

func kindOf(err error) string {
	switch {
	case errors.Is(err, policy.ErrCommandBlocked):
		return "CommandBlocked"
	case errors.Is(err, policy.ErrCommandNotAllowed):
		return "CommandNotAllowed"
	case errors.Is(err, template.ErrUnknownTemplate),
		errors.Is(err, template.ErrProjectExists),
		errors.Is(err, template.ErrBadProjectName):
		return template.ErrorKind(err)
	case errors.Is(err, project.ErrBadBranchName):
		return "InvalidBranchName"
	case errors.Is(err, project.ErrNotARepo):
		return "NotARepository"
	default:
		return files.ErrorKind(err)
	}
}

func statusForKind(kind string) int {
	switch kind {
	case "PathTraversal", "Critical", "SystemDirectory", "Credential", "Denied", "CommandBlocked", "CommandNotAllowed", "Protected":
		return http.StatusForbidden
	case "Missing", "UnknownTemplate", "NotARepository":
		return http.StatusNotFound
	case "Exists", "ProjectExists":
		return http.StatusConflict
	case "TooLarge":
		return http.StatusRequestEntityTooLarge
	case "NotDirectory", "InvalidBulkPayload", "InvalidProjectName", "InvalidBranchName", "BadRequest":
		return http.StatusBadRequest
	case "Timeout":
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, protocol.ErrorBody{Error: msg, Kind: "BadRequest"})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<20)).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		badRequest(w, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func extractBearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

// clientLimiter hands out one token bucket per remote IP.
type clientLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// newClientLimiter creates a per-client limiter; rpm <= 0 disables it.
func newClientLimiter(rpm int) *clientLimiter {
	if rpm <= 0 {
		return nil
	}
	return &clientLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(float64(rpm) / 60.0),
		burst:    5,
	}
}

func (l *clientLimiter) allow(remoteAddr string) bool {
	if l == nil {
		return true
	}
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}

	l.mu.Lock()
	limiter, ok := l.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[host] = limiter
	}
	l.mu.Unlock()

	return limiter.Allow()
}
