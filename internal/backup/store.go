// Package backup implements the versioned backup store: before any mutation
// of a protected or system file, a byte-identical snapshot with an
// integrity-witness sidecar lands in the backup directory. The store owns
// that directory exclusively and is fully reconstructible from enumerating
// it; there is no database and no index file.
package backup

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Snapshot context labels. The label records why the snapshot was taken.
const (
	ContextUpdate          = "update"
	ContextCreateOverwrite = "create-overwrite"
	ContextDelete          = "delete"
	ContextLegacy          = "legacy"
)

var knownContexts = []string{ContextCreateOverwrite, ContextUpdate, ContextDelete, ContextLegacy}

// ErrSnapshotFailed wraps any failure to produce a snapshot. Callers must
// refuse the mutation when they see it: no snapshot, no write.
var ErrSnapshotFailed = errors.New("backup snapshot failed")

// Meta is the sidecar written next to every backup blob.
type Meta struct {
	OriginalPath string    `json:"originalPath"`
	Context      string    `json:"context"`
	Timestamp    time.Time `json:"timestamp"`
	Size         int64     `json:"size"`
	Level        string    `json:"level"`
	MD5          string    `json:"md5"`
}

// Info describes one backup blob in a listing.
type Info struct {
	Name     string
	Size     int64
	Created  time.Time
	Modified time.Time
}

// Store owns the backup directory. Snapshots of the same base name are
// serialized so retention always prunes a consistent view; different base
// names proceed independently.
type Store struct {
	dir    string
	retain int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore creates the backup directory if needed.
func NewStore(dir string, retain int) (*Store, error) {
	if retain <= 0 {
		retain = 10
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}
	return &Store{dir: dir, retain: retain, locks: make(map[string]*sync.Mutex)}, nil
}

// Dir returns the backup directory path.
func (s *Store) Dir() string { return s.dir }

func (s *Store) lockFor(base string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[base]
	if !ok {
		l = &sync.Mutex{}
		s.locks[base] = l
	}
	return l
}

// Snapshot copies the file at absPath into the backup directory and writes
// the metadata sidecar. It returns the backup path, or "" without error when
// the source does not exist (nothing to protect). The copy completes before
// the caller's mutation; any failure here must abort that mutation.
func (s *Store) Snapshot(absPath, context, level string) (string, error) {
	data, err := os.ReadFile(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("%w: read %s: %v", ErrSnapshotFailed, absPath, err)
	}

	base := filepath.Base(absPath)
	lock := s.lockFor(base)
	lock.Lock()
	defer lock.Unlock()

	ts := strings.ReplaceAll(time.Now().UTC().Format("2006-01-02T15:04:05.000000000Z"), ":", "-")
	name := fmt.Sprintf("%s.%s.%s.backup", base, context, ts)
	backupPath := filepath.Join(s.dir, name)

	if err := os.WriteFile(backupPath, data, 0644); err != nil {
		return "", fmt.Errorf("%w: write blob: %v", ErrSnapshotFailed, err)
	}

	sum := md5.Sum(data)
	meta := Meta{
		OriginalPath: absPath,
		Context:      context,
		Timestamp:    time.Now().UTC(),
		Size:         int64(len(data)),
		Level:        level,
		MD5:          hex.EncodeToString(sum[:]),
	}
	metaData, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", fmt.Errorf("%w: encode meta: %v", ErrSnapshotFailed, err)
	}
	if err := os.WriteFile(backupPath+".meta", metaData, 0644); err != nil {
		// A blob without its witness is worse than no blob at all.
		os.Remove(backupPath)
		return "", fmt.Errorf("%w: write meta: %v", ErrSnapshotFailed, err)
	}

	if err := s.pruneLocked(base); err != nil {
		slog.Warn("backup retention prune failed", "base", base, "error", err)
	}

	slog.Info("backup created", "file", base, "context", context, "size", meta.Size)
	return backupPath, nil
}

// ReadMeta loads the sidecar for a backup blob path.
func (s *Store) ReadMeta(backupPath string) (*Meta, error) {
	data, err := os.ReadFile(backupPath + ".meta")
	if err != nil {
		return nil, err
	}
	var m Meta
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode meta: %w", err)
	}
	return &m, nil
}

// List enumerates all backup blobs, newest first.
func (s *Store) List() ([]Info, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	var infos []Info
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".backup") {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		infos = append(infos, Info{
			Name:     e.Name(),
			Size:     fi.Size(),
			Created:  fi.ModTime(),
			Modified: fi.ModTime(),
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Modified.Equal(infos[j].Modified) {
			return infos[i].Name > infos[j].Name
		}
		return infos[i].Modified.After(infos[j].Modified)
	})
	return infos, nil
}

// Count returns the number of backup blobs.
func (s *Store) Count() int {
	infos, err := s.List()
	if err != nil {
		return 0
	}
	return len(infos)
}

// pruneLocked enforces retention for one base name. Caller holds the
// base-name lock.
func (s *Store) pruneLocked(base string) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return err
	}

	type candidate struct {
		name string
		mod  time.Time
	}
	var backups []candidate
	prefix := base + "."
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) || !strings.HasSuffix(e.Name(), ".backup") {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		backups = append(backups, candidate{name: e.Name(), mod: fi.ModTime()})
	}

	sort.Slice(backups, func(i, j int) bool {
		if backups[i].mod.Equal(backups[j].mod) {
			return backups[i].name > backups[j].name
		}
		return backups[i].mod.After(backups[j].mod)
	})

	for _, old := range backups[min(len(backups), s.retain):] {
		os.Remove(filepath.Join(s.dir, old.name))
		os.Remove(filepath.Join(s.dir, old.name+".meta"))
		slog.Debug("backup pruned", "name", old.name)
	}
	return nil
}

// baseName recovers the original base name from a backup blob name by
// locating the context label. Unknown shapes return "".
func baseName(backup string) string {
	trimmed := strings.TrimSuffix(backup, ".backup")
	for _, ctx := range knownContexts {
		marker := "." + ctx + "."
		if i := strings.LastIndex(trimmed, marker); i > 0 {
			return trimmed[:i]
		}
	}
	return ""
}
