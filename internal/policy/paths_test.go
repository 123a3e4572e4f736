package policy

import (
	"errors"
	"testing"

	"github.com/nextlevelbuilder/goforge/internal/config"
)

func testClassifier(t *testing.T) *Classifier {
	t.Helper()
	c, err := New("/ws", config.Default().Policy)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestClassifyPath_Levels(t *testing.T) {
	c := testClassifier(t)

	tests := []struct {
		name      string
		path      string
		level     Level
		allowed   bool
		protected bool
	}{
		{"project src file", "src/App.tsx", LevelProjectFile, true, false},
		{"project nested", "components/ui/Button.tsx", LevelProjectFile, true, false},
		{"markdown anywhere", "notes/todo.md", LevelProjectFile, true, false},
		{"json anywhere", "data/fixture.json", LevelProjectFile, true, false},
		{"tsconfig", "tsconfig.json", LevelProjectFile, true, false},
		{"critical config", "forge.config.json5", LevelCritical, false, false},
		{"critical server entry", "server.js", LevelCritical, false, false},
		{"node_modules", "node_modules/react/index.js", LevelSystemDirectory, false, false},
		{"git internals", ".git/HEAD", LevelSystemDirectory, false, false},
		{"backup dir", ".file-backups/x.backup", LevelSystemDirectory, false, false},
		{"unlisted system file", "Makefile", LevelSystemFile, true, false},
		{"protected manifest", "package.json", LevelProjectFile, true, true},
		{"absolute inside workspace", "/ws/src/main.ts", LevelProjectFile, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := c.ClassifyPath(tt.path)
			if err != nil {
				t.Fatalf("ClassifyPath(%q): %v", tt.path, err)
			}
			if d.Level != tt.level {
				t.Errorf("level = %v, want %v", d.Level, tt.level)
			}
			if d.Allowed != tt.allowed {
				t.Errorf("allowed = %v, want %v", d.Allowed, tt.allowed)
			}
			if d.Protected != tt.protected {
				t.Errorf("protected = %v, want %v", d.Protected, tt.protected)
			}
		})
	}
}

func TestClassifyPath_Traversal(t *testing.T) {
	c := testClassifier(t)

	for _, path := range []string{
		"../outside.txt",
		"../../etc/passwd",
		"src/../../other/ws/file",
		"/etc/passwd",
		"/ws2/trick.txt",
	} {
		t.Run(path, func(t *testing.T) {
			if _, err := c.ClassifyPath(path); !errors.Is(err, ErrPathTraversal) {
				t.Errorf("ClassifyPath(%q) err = %v, want ErrPathTraversal", path, err)
			}
		})
	}
}

func TestClassifyPath_ProjectAllowlistPrecedesProtectedDirs(t *testing.T) {
	// A configured project pattern wins even when it sits below a broader
	// protected entry, because the allowlist is checked first.
	cfg := config.Default().Policy
	cfg.ProtectedDirs = append(cfg.ProtectedDirs, "src")
	c, err := New("/ws", cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	d, err := c.ClassifyPath("src/index.ts")
	if err != nil {
		t.Fatalf("ClassifyPath: %v", err)
	}
	if d.Level != LevelProjectFile || !d.Allowed {
		t.Errorf("got %v allowed=%v, want PROJECT_FILE allowed", d.Level, d.Allowed)
	}
}

func TestClassifyPath_RequiresBackup(t *testing.T) {
	c := testClassifier(t)

	sys, _ := c.ClassifyPath("Makefile")
	if !sys.RequiresBackup() {
		t.Error("SYSTEM_FILE should require backup")
	}
	prot, _ := c.ClassifyPath("package.json")
	if !prot.RequiresBackup() {
		t.Error("protected file should require backup")
	}
	proj, _ := c.ClassifyPath("src/a.ts")
	if proj.RequiresBackup() {
		t.Error("plain project file should not force backup")
	}
}

func TestClassifyPath_NormalizedForm(t *testing.T) {
	c := testClassifier(t)
	d, err := c.ClassifyPath("src/sub/../app.ts")
	if err != nil {
		t.Fatalf("ClassifyPath: %v", err)
	}
	if d.Normalized != "src/app.ts" {
		t.Errorf("normalized = %q, want src/app.ts", d.Normalized)
	}
	if d.Absolute != "/ws/src/app.ts" {
		t.Errorf("absolute = %q, want /ws/src/app.ts", d.Absolute)
	}
}

func TestIsCredential(t *testing.T) {
	c := testClassifier(t)

	tests := []struct {
		path string
		want bool
	}{
		{".env", true},
		{"config/.env.local", true},
		{"credentials.json", true},
		{"id_rsa", true},
		{"certs/tls.pem", true},
		{"keys/signing.p12", true},
		{"src/secretSauce.ts", true},
		{"lib/passwordInput.tsx", true},
		{"auth/tokenRefresh.ts", true},
		{"src/App.tsx", false},
		{"README.md", false},
		{"package.json", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := c.IsCredential(tt.path); got != tt.want {
				t.Errorf("IsCredential(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}
