// Package policy classifies paths and commands against the layered
// allow/deny model. Classification is lexical and side-effect free: the
// classifier never reads the filesystem, so every decision is reproducible
// from the inputs alone. Canonical symlink resolution happens at operation
// time in the files layer.
package policy

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"

	"github.com/nextlevelbuilder/goforge/internal/config"
)

// Level is the protection classification of a workspace path.
type Level int

const (
	LevelCritical Level = iota
	LevelSystemDirectory
	LevelProjectFile
	LevelSystemFile
)

func (l Level) String() string {
	switch l {
	case LevelCritical:
		return "CRITICAL"
	case LevelSystemDirectory:
		return "SYSTEM_DIRECTORY"
	case LevelProjectFile:
		return "PROJECT_FILE"
	case LevelSystemFile:
		return "SYSTEM_FILE"
	}
	return "UNKNOWN"
}

// Decision is the audit-grade output of path classification.
type Decision struct {
	Level      Level
	Allowed    bool
	Protected  bool // basename is in the protected list: mutations need a snapshot
	Reason     string
	Normalized string // workspace-relative, forward-slash
	Absolute   string
}

// RequiresBackup reports whether a mutation of this path must be preceded
// by a snapshot regardless of caller flags.
func (d Decision) RequiresBackup() bool {
	return d.Protected || d.Level == LevelSystemFile
}

var (
	ErrPathTraversal     = errors.New("path resolves outside the workspace")
	ErrCommandBlocked    = errors.New("command matches a blocked pattern")
	ErrCommandNotAllowed = errors.New("command does not match any allowed pattern")
)

// Classifier evaluates paths and commands against the configured policy.
// It is immutable after construction and safe for concurrent use.
type Classifier struct {
	root string // absolute, clean workspace root

	criticalFiles  map[string]bool
	protectedFiles map[string]bool
	protectedDirs  []string
	projectPaths   []*regexp.Regexp

	credentialNames    map[string]bool
	credentialPatterns []*regexp.Regexp

	denyRules  []denyRule
	allowRules []allowRule
	chainRule  *regexp.Regexp
}

// New compiles the policy configuration for the given workspace root.
// Invalid patterns fail construction rather than silently dropping rules.
func New(root string, cfg config.PolicyConfig) (*Classifier, error) {
	c := &Classifier{
		root:            cleanRoot(root),
		criticalFiles:   toSet(cfg.CriticalFiles),
		protectedFiles:  toSet(cfg.ProtectedFiles),
		protectedDirs:   append([]string(nil), cfg.ProtectedDirs...),
		credentialNames: toSet(cfg.CredentialNames),
	}

	for _, p := range cfg.ProjectPathPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("project path pattern %q: %w", p, err)
		}
		c.projectPaths = append(c.projectPaths, re)
	}
	for _, p := range cfg.CredentialPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("credential pattern %q: %w", p, err)
		}
		c.credentialPatterns = append(c.credentialPatterns, re)
	}

	c.denyRules = buildDenyRules(cfg.CriticalFiles)
	c.allowRules = buildAllowRules()
	c.chainRule = chainPattern

	return c, nil
}

// Root returns the absolute workspace root the classifier confines to.
func (c *Classifier) Root() string { return c.root }

// CriticalFiles returns the configured critical basenames, for inventory.
func (c *Classifier) CriticalFiles() []string { return sortedKeys(c.criticalFiles) }

// ProtectedDirs returns the configured protected directory prefixes.
func (c *Classifier) ProtectedDirs() []string {
	return append([]string(nil), c.protectedDirs...)
}

func toSet(names []string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	// Small lists; insertion sort keeps the output stable for inventories.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func cleanRoot(root string) string {
	abs, err := filepath.Abs(root)
	if err != nil {
		return filepath.Clean(root)
	}
	return abs
}
