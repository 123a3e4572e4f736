package policy

import (
	"log/slog"
	"path/filepath"
	"strings"
)

// ClassifyPath resolves a path against the workspace root and assigns its
// protection level. Order matters: the project-path allowlist is checked
// before the protected-directory denylist, so a configured project path
// takes precedence even when it sits below a broader protected entry.
func (c *Classifier) ClassifyPath(path string) (Decision, error) {
	abs, rel, err := c.resolve(path)
	if err != nil {
		return Decision{}, err
	}

	base := filepath.Base(abs)
	normalized := filepath.ToSlash(rel)

	d := Decision{
		Normalized: normalized,
		Absolute:   abs,
		Protected:  c.protectedFiles[base],
	}

	if c.criticalFiles[base] {
		d.Level = LevelCritical
		d.Allowed = false
		d.Reason = "Critical system file cannot be modified"
		return d, nil
	}

	for _, re := range c.projectPaths {
		if re.MatchString(normalized) {
			d.Level = LevelProjectFile
			d.Allowed = true
			d.Reason = "Project file path"
			return d, nil
		}
	}

	for _, dir := range c.protectedDirs {
		prefix := strings.TrimSuffix(filepath.ToSlash(dir), "/")
		if normalized == prefix || strings.HasPrefix(normalized, prefix+"/") {
			d.Level = LevelSystemDirectory
			d.Allowed = false
			d.Reason = "Path is inside protected directory " + prefix
			return d, nil
		}
	}

	d.Level = LevelSystemFile
	d.Allowed = true
	d.Reason = "System file requires careful handling"
	return d, nil
}

// resolve turns an incoming path into (absolute, workspace-relative) form,
// rejecting anything that escapes the root. The check is lexical: symlink
// canonicalization is the files layer's job at operation time.
func (c *Classifier) resolve(path string) (abs, rel string, err error) {
	if filepath.IsAbs(path) {
		abs = filepath.Clean(path)
	} else {
		abs = filepath.Clean(filepath.Join(c.root, path))
	}

	if abs != c.root && !strings.HasPrefix(abs, c.root+string(filepath.Separator)) {
		slog.Warn("security.path_escape", "path", path, "resolved", abs, "workspace", c.root)
		return "", "", ErrPathTraversal
	}

	rel, relErr := filepath.Rel(c.root, abs)
	if relErr != nil {
		return "", "", ErrPathTraversal
	}
	return abs, rel, nil
}
