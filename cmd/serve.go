package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/goforge/internal/backup"
	"github.com/nextlevelbuilder/goforge/internal/browser"
	"github.com/nextlevelbuilder/goforge/internal/config"
	"github.com/nextlevelbuilder/goforge/internal/executor"
	"github.com/nextlevelbuilder/goforge/internal/files"
	"github.com/nextlevelbuilder/goforge/internal/policy"
	"github.com/nextlevelbuilder/goforge/internal/project"
	"github.com/nextlevelbuilder/goforge/internal/server"
	"github.com/nextlevelbuilder/goforge/internal/telemetry"
	"github.com/nextlevelbuilder/goforge/internal/template"
	"github.com/nextlevelbuilder/goforge/internal/watch"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the control plane server",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	}
}

func runServe() {
	setupLogging()

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	workspace, err := filepath.Abs(cfg.WorkspacePath())
	if err != nil {
		slog.Error("failed to resolve workspace", "error", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(workspace, 0755); err != nil {
		slog.Error("failed to create workspace", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		slog.Error("failed to set up telemetry", "error", err)
		os.Exit(1)
	}
	defer shutdownTelemetry(context.Background())

	classifier, err := policy.New(workspace, cfg.Policy)
	if err != nil {
		slog.Error("invalid policy configuration", "error", err)
		os.Exit(1)
	}

	backupDir := cfg.BackupPath()
	if !filepath.IsAbs(backupDir) {
		backupDir = filepath.Join(workspace, backupDir)
	}
	store, err := backup.NewStore(backupDir, cfg.Backup.Retain)
	if err != nil {
		slog.Error("failed to open backup store", "error", err)
		os.Exit(1)
	}
	go store.RunSweeper(ctx, cfg.Backup.SweepSchedule)

	svc := files.NewService(classifier, store, cfg.Workspace.MaxFileSize)
	exec := executor.New(cfg.Executor, workspace)
	bw := browser.New(cfg.Browser)
	defer bw.Close()
	generator := template.NewGenerator(svc)
	inspector := project.NewInspector(workspace, cfg.Resources.Docs)

	sentinel := watch.NewSentinel(classifier, backupDir)
	go sentinel.Run(ctx)

	srv := server.New(cfg, server.Deps{
		Classifier: classifier,
		Files:      svc,
		Backups:    store,
		Executor:   exec,
		Browser:    bw,
		Templates:  generator,
		Inspector:  inspector,
	})
	server.Version = Version

	if err := srv.Start(ctx); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("shutdown complete")
}
