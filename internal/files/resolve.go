package files

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// canonicalize resolves symlinks in an already-classified absolute path and
// re-validates workspace confinement. Classification is lexical; this is the
// operation-time check that a symlink planted inside the workspace does not
// smuggle the operation outside it.
func (s *Service) canonicalize(abs string) (string, error) {
	rootReal, err := filepath.EvalSymlinks(s.root)
	if err != nil {
		rootReal = s.root
	}

	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("security.path_resolve_failed", "path", abs, "error", err)
			return "", fmt.Errorf("cannot resolve path: %w", err)
		}
		// Target does not exist yet (create): canonicalize the deepest
		// existing ancestor and rebuild the tail, so chained symlinks in
		// intermediate directories cannot escape.
		real, err = resolveThroughAncestors(abs)
		if err != nil {
			return "", fmt.Errorf("cannot resolve path: %w", err)
		}
	}

	if !isInside(real, rootReal) {
		slog.Warn("security.path_escape", "path", abs, "resolved", real, "workspace", rootReal)
		return "", ErrDenied
	}
	return real, nil
}

// isInside checks whether child is inside or equal to parent directory.
func isInside(child, parent string) bool {
	if child == parent {
		return true
	}
	return strings.HasPrefix(child, parent+string(filepath.Separator))
}

// resolveThroughAncestors canonicalizes the deepest existing ancestor of a
// non-existent path, then appends the remaining components.
func resolveThroughAncestors(target string) (string, error) {
	if real, err := filepath.EvalSymlinks(target); err == nil {
		return real, nil
	}

	current := target
	var tail []string
	for {
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		tail = append([]string{filepath.Base(current)}, tail...)
		current = parent

		if realParent, err := filepath.EvalSymlinks(current); err == nil {
			result := realParent
			for _, component := range tail {
				result = filepath.Join(result, component)
			}
			return result, nil
		}
	}
	return filepath.Clean(target), nil
}
