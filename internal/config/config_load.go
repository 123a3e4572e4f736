package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/titanous/json5"
)

// Default returns a Config with the shipped policy lists and limits.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         3001,
			RateLimitRPM: 0,
		},
		Workspace: WorkspaceConfig{
			Root:        ".",
			MaxFileSize: 10 << 20,
		},
		Policy: PolicyConfig{
			CriticalFiles: []string{
				"forge.config.json5",
				"server.js",
			},
			ProtectedFiles: []string{
				"package.json",
				"package-lock.json",
				"yarn.lock",
				"pnpm-lock.yaml",
				".gitignore",
				"README.md",
			},
			ProtectedDirs: []string{
				"node_modules",
				".git",
				".file-backups",
			},
			ProjectPathPatterns: []string{
				`^src/`, `^components/`, `^app/`, `^pages/`, `^lib/`,
				`^styles/`, `^public/`, `^config/`, `^middleware/`,
				`^models/`, `^routes/`, `^services/`, `^controllers/`,
				`^hooks/`, `^types/`, `^docs/`, `^__tests__/`,
				`^tsconfig\.json$`, `^tailwind\.config\.[\w.]+$`,
				`^next\.config\.[\w.]+$`, `^vite\.config\.[\w.]+$`,
				`^\.eslintrc(\.[\w.]+)?$`, `^\.prettierrc[\w.]*$`,
				`^jest\.config\.[\w.]+$`, `^postcss\.config\.[\w.]+$`,
				`^babel\.config\.[\w.]+$`,
				`\.(md|txt|json)$`,
			},
			CredentialNames: []string{
				".env", ".env.local", ".env.production", ".env.development",
				"credentials.json", "service-account.json", "id_rsa",
				"id_dsa", "id_ecdsa", "id_ed25519", ".npmrc", ".netrc",
				".htpasswd",
			},
			CredentialPatterns: []string{
				`(?i)secret`, `(?i)password`, `(?i)token`, `(?i)apikey`,
				`(?i)api[-_]key`, `(?i)private[-_]key`,
				`\.pem$`, `\.p12$`, `\.pfx$`, `\.key$`,
			},
		},
		Backup: BackupConfig{
			Dir:           ".file-backups",
			Retain:        10,
			SweepSchedule: "0 * * * *",
		},
		Executor: ExecutorConfig{
			NodeBin:            "node",
			DefaultTimeoutMs:   30000,
			LongTimeoutMs:      300000,
			GraceMs:            5000,
			PostCommandDelayMs: 5000,
			KeepAliveMs:        10000,
			EnvPrefixes:        []string{"FORGE_"},
		},
		Browser: BrowserConfig{
			Headless:        true,
			ViewportWidth:   1280,
			ViewportHeight:  800,
			NavTimeoutMs:    30000,
			ConsoleRingSize: 1000,
		},
		Telemetry: TelemetryConfig{
			Protocol:    "http",
			ServiceName: "goforge",
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars.
// A missing file is not an error: defaults plus env apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays FORGE_* env vars onto the config.
// Env vars take precedence over file values. Secrets only come from env.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	envStr("FORGE_HOST", &c.Server.Host)
	if v := os.Getenv("FORGE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Server.Port = port
		}
	}
	envStr("FORGE_TOKEN", &c.Server.Token)
	envStr("FORGE_WORKSPACE", &c.Workspace.Root)
	envStr("FORGE_BACKUP_DIR", &c.Backup.Dir)
	envStr("FORGE_NODE_BIN", &c.Executor.NodeBin)

	envStr("FORGE_TELEMETRY_ENDPOINT", &c.Telemetry.Endpoint)
	envStr("FORGE_TELEMETRY_PROTOCOL", &c.Telemetry.Protocol)
	envStr("FORGE_TELEMETRY_SERVICE_NAME", &c.Telemetry.ServiceName)
	if v := os.Getenv("FORGE_TELEMETRY_ENABLED"); v != "" {
		c.Telemetry.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("FORGE_TELEMETRY_INSECURE"); v != "" {
		c.Telemetry.Insecure = v == "true" || v == "1"
	}
}

// Save writes the config to a JSON file with owner-only permissions.
func Save(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// ExpandHome replaces a leading ~ with the user home directory.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, _ := os.UserHomeDir()
	if len(path) > 1 && path[1] == '/' {
		return home + path[1:]
	}
	return home
}
