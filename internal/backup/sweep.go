package backup

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/adhocore/gronx"
)

// RunSweeper re-runs retention over every base name on the configured cron
// schedule. The per-snapshot prune already bounds normal growth; the sweep
// covers blobs that land in the directory out of band (restores, manual
// copies) and runs until ctx is cancelled.
func (s *Store) RunSweeper(ctx context.Context, schedule string) {
	if schedule == "" {
		return
	}
	gron := gronx.New()
	if !gron.IsValid(schedule) {
		slog.Warn("invalid backup sweep schedule, sweeper disabled", "schedule", schedule)
		return
	}

	slog.Info("backup sweeper started", "schedule", schedule)
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case tick := <-ticker.C:
			due, err := gron.IsDue(schedule, tick)
			if err != nil || !due {
				continue
			}
			s.Sweep()
		}
	}
}

// Sweep prunes every base name found in the backup directory once.
func (s *Store) Sweep() {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		slog.Warn("backup sweep: read dir", "error", err)
		return
	}

	seen := make(map[string]bool)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".backup") {
			continue
		}
		base := baseName(e.Name())
		if base == "" || seen[base] {
			continue
		}
		seen[base] = true

		lock := s.lockFor(base)
		lock.Lock()
		if err := s.pruneLocked(base); err != nil {
			slog.Warn("backup sweep: prune", "base", base, "error", err)
		}
		lock.Unlock()
	}
	slog.Debug("backup sweep complete", "bases", len(seen))
}
