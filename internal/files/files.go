// Package files implements the workspace file operations: create, update,
// delete, read and list, each gated by the policy classifier and, for
// mutations of protected or system files, preceded by a snapshot in the
// backup store. The strict step order within one operation is
// classify → credential check → existence check → snapshot → write; a failed
// snapshot aborts the mutation with no partial effects.
package files

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/goforge/internal/backup"
	"github.com/nextlevelbuilder/goforge/internal/policy"
	"github.com/nextlevelbuilder/goforge/pkg/protocol"
)

var (
	ErrExists          = errors.New("file already exists")
	ErrMissing         = errors.New("file does not exist")
	ErrCritical        = errors.New("critical system file cannot be modified")
	ErrSystemDirectory = errors.New("path is inside a protected directory")
	ErrDenied          = errors.New("operation denied by path policy")
	ErrCredential      = errors.New("credential files are not accessible")
	ErrProtected       = errors.New("protected file requires force to delete")
	ErrTooLarge        = errors.New("file exceeds the maximum readable size")
	ErrNotDirectory    = errors.New("path is not a directory")
)

// deniedError picks the taxonomy kind for a classifier refusal.
func deniedError(d policy.Decision) error {
	if d.Level == policy.LevelCritical {
		return fmt.Errorf("%w: %s", ErrCritical, d.Normalized)
	}
	return fmt.Errorf("%w: %s", ErrSystemDirectory, d.Reason)
}

// ErrorKind maps a files/policy/backup error to its stable wire kind.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, policy.ErrPathTraversal):
		return "PathTraversal"
	case errors.Is(err, ErrCritical):
		return "Critical"
	case errors.Is(err, ErrSystemDirectory):
		return "SystemDirectory"
	case errors.Is(err, ErrCredential):
		return "Credential"
	case errors.Is(err, ErrExists):
		return "Exists"
	case errors.Is(err, ErrMissing):
		return "Missing"
	case errors.Is(err, ErrProtected):
		return "Protected"
	case errors.Is(err, ErrTooLarge):
		return "TooLarge"
	case errors.Is(err, ErrNotDirectory):
		return "NotDirectory"
	case errors.Is(err, ErrDenied):
		return "Denied"
	case errors.Is(err, backup.ErrSnapshotFailed):
		return "BackupFailed"
	case errors.Is(err, ErrInvalidBulkPayload):
		return "InvalidBulkPayload"
	default:
		return "IOError"
	}
}

// Service owns the workspace subtree. All paths funnel through the
// classifier before any filesystem access.
type Service struct {
	classifier *policy.Classifier
	backups    *backup.Store
	root       string
	maxRead    int64
	tracer     trace.Tracer
}

// NewService wires the classifier and backup store to a workspace root.
func NewService(classifier *policy.Classifier, backups *backup.Store, maxRead int64) *Service {
	if maxRead <= 0 {
		maxRead = 10 << 20
	}
	return &Service{
		classifier: classifier,
		backups:    backups,
		root:       classifier.Root(),
		maxRead:    maxRead,
		tracer:     otel.Tracer("goforge/files"),
	}
}

// Root returns the confined workspace root.
func (s *Service) Root() string { return s.root }

// Create writes a new file. An existing target fails unless overwrite is
// set, in which case the previous bytes are snapshotted first.
func (s *Service) Create(ctx context.Context, path, content string, overwrite bool) (*protocol.FileResult, error) {
	_, span := s.tracer.Start(ctx, "files.create")
	defer span.End()

	d, err := s.classifier.ClassifyPath(path)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("file.path", d.Normalized),
		attribute.String("policy.level", d.Level.String()),
	)
	if !d.Allowed {
		return nil, deniedError(d)
	}
	if s.classifier.IsCredential(path) {
		slog.Warn("security.credential_blocked", "op", "create", "path", d.Normalized)
		return nil, ErrCredential
	}

	abs, err := s.canonicalize(d.Absolute)
	if err != nil {
		return nil, err
	}

	var backupPath string
	if _, statErr := os.Stat(abs); statErr == nil {
		if !overwrite {
			return nil, fmt.Errorf("%w: %s", ErrExists, d.Normalized)
		}
		backupPath, err = s.backups.Snapshot(abs, backup.ContextCreateOverwrite, d.Level.String())
		if err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return nil, fmt.Errorf("create parent dirs: %w", err)
	}
	if err := os.WriteFile(abs, []byte(content), 0644); err != nil {
		return nil, fmt.Errorf("write file: %w", err)
	}

	slog.Info("✏️ created", "path", d.Normalized, "size", len(content))
	return &protocol.FileResult{
		Path:       d.Normalized,
		Size:       int64(len(content)),
		BackupPath: backupPath,
		Protected:  d.Protected,
		Level:      d.Level.String(),
	}, nil
}

// Update overwrites an existing file. A snapshot is taken when the caller
// asks for one or when the classification forces it; either way the
// snapshot completes before the write.
func (s *Service) Update(ctx context.Context, path, content string, shouldSnapshot bool) (*protocol.FileResult, error) {
	_, span := s.tracer.Start(ctx, "files.update")
	defer span.End()

	d, err := s.classifier.ClassifyPath(path)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("file.path", d.Normalized),
		attribute.String("policy.level", d.Level.String()),
	)
	if !d.Allowed {
		return nil, deniedError(d)
	}
	if s.classifier.IsCredential(path) {
		slog.Warn("security.credential_blocked", "op", "update", "path", d.Normalized)
		return nil, ErrCredential
	}

	abs, err := s.canonicalize(d.Absolute)
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(abs); statErr != nil {
		return nil, fmt.Errorf("%w: %s", ErrMissing, d.Normalized)
	}

	var backupPath string
	if shouldSnapshot || d.RequiresBackup() {
		backupPath, err = s.backups.Snapshot(abs, backup.ContextUpdate, d.Level.String())
		if err != nil {
			return nil, err
		}
	}

	if err := os.WriteFile(abs, []byte(content), 0644); err != nil {
		return nil, fmt.Errorf("write file: %w", err)
	}

	slog.Info("✏️ updated", "path", d.Normalized, "size", len(content))
	return &protocol.FileResult{
		Path:       d.Normalized,
		Size:       int64(len(content)),
		BackupPath: backupPath,
		Protected:  d.Protected,
		Level:      d.Level.String(),
	}, nil
}

// Delete unlinks a file. Protected files require force; every delete is
// preceded by a snapshot so the bytes stay recoverable.
func (s *Service) Delete(ctx context.Context, path string, force bool) (*protocol.FileResult, error) {
	_, span := s.tracer.Start(ctx, "files.delete")
	defer span.End()

	d, err := s.classifier.ClassifyPath(path)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("file.path", d.Normalized),
		attribute.String("policy.level", d.Level.String()),
	)
	if !d.Allowed {
		return nil, deniedError(d)
	}

	abs, err := s.canonicalize(d.Absolute)
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(abs); statErr != nil {
		return nil, fmt.Errorf("%w: %s", ErrMissing, d.Normalized)
	}
	if d.Protected && !force {
		return nil, fmt.Errorf("%w: %s", ErrProtected, d.Normalized)
	}

	backupPath, err := s.backups.Snapshot(abs, backup.ContextDelete, d.Level.String())
	if err != nil {
		return nil, err
	}
	if err := os.Remove(abs); err != nil {
		return nil, fmt.Errorf("delete file: %w", err)
	}

	slog.Info("🗑 deleted", "path", d.Normalized)
	return &protocol.FileResult{
		Path:       d.Normalized,
		BackupPath: backupPath,
		Protected:  d.Protected,
		Level:      d.Level.String(),
	}, nil
}

// Read returns file bytes plus metadata. Critical files stay readable;
// credential files never are.
func (s *Service) Read(ctx context.Context, path string) (*protocol.FileResult, error) {
	_, span := s.tracer.Start(ctx, "files.read")
	defer span.End()

	d, err := s.classifier.ClassifyPath(path)
	if err != nil {
		return nil, err
	}
	if d.Level == policy.LevelSystemDirectory {
		return nil, fmt.Errorf("%w: %s", ErrSystemDirectory, d.Reason)
	}
	if s.classifier.IsCredential(path) {
		slog.Warn("security.credential_blocked", "op", "read", "path", d.Normalized)
		return nil, ErrCredential
	}

	abs, err := s.canonicalize(d.Absolute)
	if err != nil {
		return nil, err
	}
	fi, statErr := os.Stat(abs)
	if statErr != nil {
		return nil, fmt.Errorf("%w: %s", ErrMissing, d.Normalized)
	}
	if fi.Size() > s.maxRead {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, fi.Size())
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	return &protocol.FileResult{
		Path:       d.Normalized,
		Size:       fi.Size(),
		Content:    string(data),
		Protected:  d.Protected,
		Credential: false,
		Level:      d.Level.String(),
		ModTime:    fi.ModTime().UTC().Format("2006-01-02T15:04:05Z"),
	}, nil
}

// ListOptions controls directory listing.
type ListOptions struct {
	Recursive          bool
	IncludeHidden      bool
	IncludeCredentials bool
}

// List walks one level (or recursively) of a directory. Credential entries
// are omitted unless the caller opts in; so are hidden entries.
func (s *Service) List(ctx context.Context, path string, opts ListOptions) (*protocol.ListResult, error) {
	_, span := s.tracer.Start(ctx, "files.list")
	defer span.End()

	d, err := s.classifier.ClassifyPath(path)
	if err != nil {
		return nil, err
	}
	if d.Level == policy.LevelSystemDirectory {
		return nil, fmt.Errorf("%w: %s", ErrSystemDirectory, d.Reason)
	}

	abs, err := s.canonicalize(d.Absolute)
	if err != nil {
		return nil, err
	}
	fi, statErr := os.Stat(abs)
	if statErr != nil {
		return nil, fmt.Errorf("%w: %s", ErrMissing, d.Normalized)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, d.Normalized)
	}

	var entries []protocol.ListEntry
	appendEntry := func(entryPath string, de fs.DirEntry) {
		name := de.Name()
		hidden := strings.HasPrefix(name, ".")
		if hidden && !opts.IncludeHidden {
			return
		}
		if !de.IsDir() && !opts.IncludeCredentials && s.classifier.IsCredential(name) {
			return
		}
		rel, relErr := filepath.Rel(s.root, entryPath)
		if relErr != nil {
			return
		}
		var size int64
		if info, infoErr := de.Info(); infoErr == nil {
			size = info.Size()
		}
		entries = append(entries, protocol.ListEntry{
			Name:       name,
			Path:       filepath.ToSlash(rel),
			Dir:        de.IsDir(),
			Size:       size,
			Hidden:     hidden,
			Credential: !de.IsDir() && s.classifier.IsCredential(name),
		})
	}

	if opts.Recursive {
		err = filepath.WalkDir(abs, func(p string, de fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return nil
			}
			if p == abs {
				return nil
			}
			name := de.Name()
			if de.IsDir() {
				if strings.HasPrefix(name, ".") && !opts.IncludeHidden {
					return filepath.SkipDir
				}
				for _, prot := range s.classifier.ProtectedDirs() {
					if name == prot {
						return filepath.SkipDir
					}
				}
			}
			appendEntry(p, de)
			return nil
		})
		if err != nil {
			return nil, err
		}
	} else {
		dirEntries, readErr := os.ReadDir(abs)
		if readErr != nil {
			return nil, fmt.Errorf("read dir: %w", readErr)
		}
		for _, de := range dirEntries {
			appendEntry(filepath.Join(abs, de.Name()), de)
		}
	}

	slog.Info("📂 listed", "path", d.Normalized, "count", len(entries))
	return &protocol.ListResult{
		Path:    d.Normalized,
		Entries: entries,
		Count:   len(entries),
	}, nil
}
