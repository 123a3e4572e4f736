// Package config holds the goforge configuration tree: server binding,
// workspace confinement, policy lists, backup retention, executor limits,
// browser settings and telemetry. Values layer as defaults → JSON5 file →
// FORGE_* environment overrides.
package config

import (
	"sync"
	"time"
)

// Config is the root configuration for the goforge control plane.
type Config struct {
	Server    ServerConfig    `json:"server"`
	Workspace WorkspaceConfig `json:"workspace"`
	Policy    PolicyConfig    `json:"policy"`
	Backup    BackupConfig    `json:"backup"`
	Executor  ExecutorConfig  `json:"executor"`
	Browser   BrowserConfig   `json:"browser"`
	Telemetry TelemetryConfig `json:"telemetry,omitempty"`
	Resources ResourcesConfig `json:"resources,omitempty"`
	mu        sync.RWMutex
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	Token        string `json:"-"` // from env FORGE_TOKEN only
	RateLimitRPM int    `json:"rate_limit_rpm"`
}

// WorkspaceConfig pins the single directory all operations confine to.
type WorkspaceConfig struct {
	Root        string `json:"root"`
	MaxFileSize int64  `json:"max_file_size"`
}

// PolicyConfig is the layered allow/deny model consumed by the classifier.
// Everything here is configuration, not code: the lists ship with defaults
// covering common framework conventions and can be replaced wholesale.
type PolicyConfig struct {
	CriticalFiles       []string `json:"critical_files"`
	ProtectedFiles      []string `json:"protected_files"`
	ProtectedDirs       []string `json:"protected_directories"`
	ProjectPathPatterns []string `json:"project_path_patterns"`
	CredentialNames     []string `json:"credential_names"`
	CredentialPatterns  []string `json:"credential_patterns"`
}

// BackupConfig configures the versioned backup store.
type BackupConfig struct {
	Dir           string `json:"dir"`
	Retain        int    `json:"retain"`
	SweepSchedule string `json:"sweep_schedule"` // cron expression, empty = disabled
}

// ExecutorConfig bounds sandboxed command execution.
type ExecutorConfig struct {
	NodeBin            string   `json:"node_bin"`
	DefaultTimeoutMs   int      `json:"default_timeout_ms"`
	LongTimeoutMs      int      `json:"long_timeout_ms"`
	GraceMs            int      `json:"grace_ms"`
	PostCommandDelayMs int      `json:"post_command_delay_ms"`
	KeepAliveMs        int      `json:"keep_alive_ms"`
	EnvPrefixes        []string `json:"env_prefixes"`
}

// BrowserConfig configures the headless browser coordinator.
type BrowserConfig struct {
	Headless           bool `json:"headless"`
	ViewportWidth      int  `json:"viewport_width"`
	ViewportHeight     int  `json:"viewport_height"`
	NavTimeoutMs       int  `json:"nav_timeout_ms"`
	ScreenshotMaxWidth int  `json:"screenshot_max_width"`
	ConsoleRingSize    int  `json:"console_ring_size"`
}

// TelemetryConfig configures the optional OTLP trace exporter.
type TelemetryConfig struct {
	Enabled     bool   `json:"enabled"`
	Endpoint    string `json:"endpoint,omitempty"`
	Protocol    string `json:"protocol,omitempty"` // "http" (default) or "grpc"
	Insecure    bool   `json:"insecure,omitempty"`
	ServiceName string `json:"service_name,omitempty"`
}

// ResourcesConfig lists doc resources surfaced by /v1/project/resources.
type ResourcesConfig struct {
	Docs map[string]string `json:"docs,omitempty"`
}

// DefaultTimeout returns the executor default timeout as a duration.
func (e ExecutorConfig) DefaultTimeout() time.Duration {
	if e.DefaultTimeoutMs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(e.DefaultTimeoutMs) * time.Millisecond
}

// LongTimeout returns the long-operation timeout as a duration.
func (e ExecutorConfig) LongTimeout() time.Duration {
	if e.LongTimeoutMs <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(e.LongTimeoutMs) * time.Millisecond
}

// Grace returns the SIGTERM→SIGKILL grace period.
func (e ExecutorConfig) Grace() time.Duration {
	if e.GraceMs <= 0 {
		return 5 * time.Second
	}
	return time.Duration(e.GraceMs) * time.Millisecond
}

// KeepAlive returns the keep-alive tick interval.
func (e ExecutorConfig) KeepAlive() time.Duration {
	if e.KeepAliveMs <= 0 {
		return 10 * time.Second
	}
	return time.Duration(e.KeepAliveMs) * time.Millisecond
}

// NavTimeout returns the browser navigation timeout.
func (b BrowserConfig) NavTimeout() time.Duration {
	if b.NavTimeoutMs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(b.NavTimeoutMs) * time.Millisecond
}

// WorkspacePath returns the expanded workspace root.
func (c *Config) WorkspacePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return ExpandHome(c.Workspace.Root)
}

// BackupPath returns the configured backup directory, ".file-backups" when
// none is set. The value is returned as configured: a leading ~ is not
// expanded and a relative dir is not joined to the workspace root here;
// callers resolve a relative dir under the workspace root.
func (c *Config) BackupPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	dir := c.Backup.Dir
	if dir == "" {
		dir = ".file-backups"
	}
	return dir
}
