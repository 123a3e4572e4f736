package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.Port != 3001 {
		t.Errorf("port = %d, want 3001", cfg.Server.Port)
	}
	if cfg.Workspace.MaxFileSize != 10<<20 {
		t.Errorf("max file size = %d, want 10 MiB", cfg.Workspace.MaxFileSize)
	}
	if cfg.Backup.Retain != 10 {
		t.Errorf("retain = %d, want 10", cfg.Backup.Retain)
	}
	if got := cfg.Executor.DefaultTimeout(); got != 30*time.Second {
		t.Errorf("default timeout = %v", got)
	}
	if got := cfg.Executor.LongTimeout(); got != 5*time.Minute {
		t.Errorf("long timeout = %v", got)
	}
	if got := cfg.Executor.Grace(); got != 5*time.Second {
		t.Errorf("grace = %v", got)
	}
	if len(cfg.Policy.ProjectPathPatterns) == 0 || len(cfg.Policy.CredentialPatterns) == 0 {
		t.Error("policy defaults must ship non-empty pattern lists")
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json5"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 3001 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
}

func TestLoad_JSON5AndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "forge.config.json5")
	// JSON5: comments and trailing commas are fine.
	content := `{
  // local overrides
  server: { port: 4100, },
  workspace: { root: "/srv/app", },
  backup: { retain: 3 },
}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("FORGE_PORT", "4200")
	t.Setenv("FORGE_TOKEN", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 4200 {
		t.Errorf("env must win over file: port = %d", cfg.Server.Port)
	}
	if cfg.Workspace.Root != "/srv/app" {
		t.Errorf("root = %q", cfg.Workspace.Root)
	}
	if cfg.Backup.Retain != 3 {
		t.Errorf("retain = %d", cfg.Backup.Retain)
	}
	if cfg.Server.Token != "from-env" {
		t.Errorf("token = %q", cfg.Server.Token)
	}
}

func TestExpandHome(t *testing.T) {
	home, _ := os.UserHomeDir()
	if got := ExpandHome("~/ws"); got != home+"/ws" {
		t.Errorf("ExpandHome(~/ws) = %q", got)
	}
	if got := ExpandHome("/abs"); got != "/abs" {
		t.Errorf("ExpandHome(/abs) = %q", got)
	}
}

func TestBackupPath(t *testing.T) {
	cfg := Default()
	if got := cfg.BackupPath(); got != ".file-backups" {
		t.Errorf("BackupPath = %q", got)
	}
	cfg.Backup.Dir = ""
	if got := cfg.BackupPath(); got != ".file-backups" {
		t.Errorf("BackupPath with empty dir = %q", got)
	}
}
