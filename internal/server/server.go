// Package server is the HTTP boundary of the control plane. Handlers decode
// JSON bodies into pkg/protocol types, call into the services, and map
// errors to their wire kinds. Nothing here makes policy decisions of its
// own — the services do.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/goforge/internal/backup"
	"github.com/nextlevelbuilder/goforge/internal/browser"
	"github.com/nextlevelbuilder/goforge/internal/config"
	"github.com/nextlevelbuilder/goforge/internal/executor"
	"github.com/nextlevelbuilder/goforge/internal/files"
	"github.com/nextlevelbuilder/goforge/internal/policy"
	"github.com/nextlevelbuilder/goforge/internal/project"
	"github.com/nextlevelbuilder/goforge/internal/template"
	"github.com/nextlevelbuilder/goforge/pkg/protocol"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// Server wires every service behind the HTTP mux.
type Server struct {
	cfg        *config.Config
	classifier *policy.Classifier
	files      *files.Service
	backups    *backup.Store
	executor   *executor.Executor
	browser    *browser.Coordinator
	templates  *template.Generator
	inspector  *project.Inspector

	limiter    *clientLimiter
	httpServer *http.Server
	mux        *http.ServeMux
}

// Deps carries the constructed services into the server.
type Deps struct {
	Classifier *policy.Classifier
	Files      *files.Service
	Backups    *backup.Store
	Executor   *executor.Executor
	Browser    *browser.Coordinator
	Templates  *template.Generator
	Inspector  *project.Inspector
}

// New creates a server from config and services.
func New(cfg *config.Config, deps Deps) *Server {
	return &Server{
		cfg:        cfg,
		classifier: deps.Classifier,
		files:      deps.Files,
		backups:    deps.Backups,
		executor:   deps.Executor,
		browser:    deps.Browser,
		templates:  deps.Templates,
		inspector:  deps.Inspector,
		limiter:    newClientLimiter(cfg.Server.RateLimitRPM),
	}
}

// BuildMux creates and caches the mux with all routes registered.
func (s *Server) BuildMux() *http.ServeMux {
	if s.mux != nil {
		return s.mux
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("POST /v1/files/create", s.guard(s.handleFileCreate))
	mux.HandleFunc("POST /v1/files/update", s.guard(s.handleFileUpdate))
	mux.HandleFunc("POST /v1/files/delete", s.guard(s.handleFileDelete))
	mux.HandleFunc("POST /v1/files/read", s.guard(s.handleFileRead))
	mux.HandleFunc("POST /v1/files/list", s.guard(s.handleFileList))
	mux.HandleFunc("GET /v1/backups", s.guard(s.handleBackupList))

	mux.HandleFunc("POST /v1/execute", s.guard(s.handleExecute))
	mux.HandleFunc("POST /v1/execute/stream", s.guard(s.handleExecuteStream))
	mux.HandleFunc("GET /v1/execute/ws", s.guard(s.handleExecuteWS))

	mux.HandleFunc("POST /v1/browser/{op}", s.guard(s.handleBrowser))

	mux.HandleFunc("GET /v1/templates", s.guard(s.handleTemplateList))
	mux.HandleFunc("POST /v1/templates/generate", s.guard(s.handleTemplateGenerate))

	mux.HandleFunc("GET /v1/project/resources", s.guard(s.handleProjectResources))
	mux.HandleFunc("GET /v1/project/analyze", s.guard(s.handleProjectAnalyze))
	mux.HandleFunc("POST /v1/git/branch-workflow", s.guard(s.handleBranchWorkflow))

	s.mux = mux
	return mux
}

// guard tags the request with an ID and applies bearer auth (when
// configured) and rate limiting.
func (s *Server) guard(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		w.Header().Set("X-Request-Id", requestID)

		if token := s.cfg.Server.Token; token != "" {
			if extractBearerToken(r) != token {
				writeJSON(w, http.StatusUnauthorized, protocol.ErrorBody{Error: "unauthorized", Kind: "Unauthorized"})
				return
			}
		}
		if !s.limiter.allow(r.RemoteAddr) {
			slog.Warn("rate limit exceeded", "request_id", requestID, "remote", r.RemoteAddr)
			writeJSON(w, http.StatusTooManyRequests, protocol.ErrorBody{Error: "rate limit exceeded", Kind: "RateLimited"})
			return
		}

		slog.Debug("request", "id", requestID, "method", r.Method, "path", r.URL.Path)
		next(w, r)
	}
}

// Start listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	mux := s.BuildMux()

	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	slog.Info("control plane starting", "addr", addr, "workspace", s.files.Root())

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("control plane server: %w", err)
	}
	return nil
}

// handleHealth reports the policy inventory and backup count.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, protocol.HealthResult{
		Status:        "ok",
		Workspace:     s.files.Root(),
		CriticalFiles: s.classifier.CriticalFiles(),
		ProtectedDirs: s.classifier.ProtectedDirs(),
		BackupCount:   s.backups.Count(),
		Version:       Version,
	})
}
