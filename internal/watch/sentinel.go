// Package watch runs the critical-file sentinel: an fsnotify watcher over
// the workspace root directory (not its subdirectories) and the backup
// directory that logs writes, removals and renames of files the policy marks
// critical or protected and of backup-directory entries. It does not tell
// changes made by the control plane apart from external ones; both are
// logged. It is an audit aid, not an
// enforcement point — the control plane cannot stop an external editor, but
// it can leave a trail.
package watch

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/nextlevelbuilder/goforge/internal/policy"
)

// Sentinel watches for external mutations of sensitive paths.
type Sentinel struct {
	classifier *policy.Classifier
	backupDir  string
}

// NewSentinel creates a sentinel for the classifier's workspace.
func NewSentinel(classifier *policy.Classifier, backupDir string) *Sentinel {
	return &Sentinel{classifier: classifier, backupDir: backupDir}
}

// Run blocks until ctx is cancelled. Watcher setup failure is logged, not
// fatal: the control plane works without the sentinel.
func (s *Sentinel) Run(ctx context.Context) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Warn("sentinel disabled: cannot create watcher", "error", err)
		return
	}
	defer watcher.Close()

	if err := watcher.Add(s.classifier.Root()); err != nil {
		slog.Warn("sentinel disabled: cannot watch workspace", "error", err)
		return
	}
	if err := watcher.Add(s.backupDir); err != nil {
		slog.Debug("sentinel: backup dir not watched", "error", err)
	}

	slog.Info("critical-file sentinel running", "workspace", s.classifier.Root())
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			s.inspect(event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("sentinel watch error", "error", err)
		}
	}
}

func (s *Sentinel) inspect(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	// Every write, removal or rename inside the backup directory is logged,
	// including the store's own snapshots and retention prunes.
	if filepath.Dir(event.Name) == s.backupDir {
		slog.Warn("security.out_of_band_change", "path", event.Name, "op", event.Op.String(), "area", "backup")
		return
	}

	d, err := s.classifier.ClassifyPath(event.Name)
	if err != nil {
		return
	}
	if d.Level == policy.LevelCritical || d.Protected {
		slog.Warn("security.out_of_band_change",
			"path", d.Normalized,
			"op", event.Op.String(),
			"level", d.Level.String(),
		)
	}
}
