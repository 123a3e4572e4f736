package files

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextlevelbuilder/goforge/internal/backup"
	"github.com/nextlevelbuilder/goforge/internal/config"
	"github.com/nextlevelbuilder/goforge/internal/policy"
)

func newTestService(t *testing.T) (*Service, string) {
	t.Helper()
	ws := t.TempDir()
	classifier, err := policy.New(ws, config.Default().Policy)
	require.NoError(t, err)
	store, err := backup.NewStore(filepath.Join(ws, ".file-backups"), 10)
	require.NoError(t, err)
	return NewService(classifier, store, 10<<20), ws
}

func seed(t *testing.T, ws, rel, content string) string {
	t.Helper()
	abs := filepath.Join(ws, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0644))
	return abs
}

func TestCreate_NewProjectFile(t *testing.T) {
	svc, ws := newTestService(t)

	res, err := svc.Create(context.Background(), "src/App.tsx", "export {}", false)
	require.NoError(t, err)
	assert.Equal(t, "src/App.tsx", res.Path)
	assert.Equal(t, "PROJECT_FILE", res.Level)
	assert.Empty(t, res.BackupPath)

	data, err := os.ReadFile(filepath.Join(ws, "src/App.tsx"))
	require.NoError(t, err)
	assert.Equal(t, "export {}", string(data))
}

func TestCreate_ExistingWithoutOverwrite(t *testing.T) {
	svc, ws := newTestService(t)
	seed(t, ws, "src/App.txt", "A")

	_, err := svc.Create(context.Background(), "src/App.txt", "B", false)
	assert.ErrorIs(t, err, ErrExists)

	data, _ := os.ReadFile(filepath.Join(ws, "src/App.txt"))
	assert.Equal(t, "A", string(data), "refused create must not mutate")
}

// End-to-end scenario: overwrite a project file with backup. The backup blob
// holds the pre-mutation bytes and its sidecar MD5 witnesses them.
func TestCreate_OverwriteSnapshotsFirst(t *testing.T) {
	svc, ws := newTestService(t)
	seed(t, ws, "src/App.txt", "A")

	res, err := svc.Create(context.Background(), "src/App.txt", "B", true)
	require.NoError(t, err)
	require.NotEmpty(t, res.BackupPath)
	assert.Contains(t, filepath.Base(res.BackupPath), "App.txt.create-overwrite.")

	data, _ := os.ReadFile(filepath.Join(ws, "src/App.txt"))
	assert.Equal(t, "B", string(data))

	blob, err := os.ReadFile(res.BackupPath)
	require.NoError(t, err)
	assert.Equal(t, "A", string(blob))

	store, err := backup.NewStore(filepath.Join(ws, ".file-backups"), 10)
	require.NoError(t, err)
	meta, err := store.ReadMeta(res.BackupPath)
	require.NoError(t, err)
	want := md5.Sum([]byte("A"))
	assert.Equal(t, hex.EncodeToString(want[:]), meta.MD5)
}

// Refused critical write: the file bytes stay untouched.
func TestUpdate_CriticalRefused(t *testing.T) {
	svc, ws := newTestService(t)
	seed(t, ws, "server.js", "original")

	_, err := svc.Update(context.Background(), "server.js", "tampered", false)
	assert.ErrorIs(t, err, ErrCritical)

	data, _ := os.ReadFile(filepath.Join(ws, "server.js"))
	assert.Equal(t, "original", string(data))
}

func TestUpdate_SystemFileForcesBackup(t *testing.T) {
	svc, ws := newTestService(t)
	seed(t, ws, "Makefile", "all:")

	res, err := svc.Update(context.Background(), "Makefile", "all: build", false)
	require.NoError(t, err)
	assert.NotEmpty(t, res.BackupPath, "SYSTEM_FILE update must snapshot even without the flag")
}

func TestUpdate_ProjectFileSkipsBackupUnlessAsked(t *testing.T) {
	svc, ws := newTestService(t)
	seed(t, ws, "src/a.ts", "1")

	res, err := svc.Update(context.Background(), "src/a.ts", "2", false)
	require.NoError(t, err)
	assert.Empty(t, res.BackupPath)

	res, err = svc.Update(context.Background(), "src/a.ts", "3", true)
	require.NoError(t, err)
	assert.NotEmpty(t, res.BackupPath)
}

func TestUpdate_Missing(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Update(context.Background(), "src/nope.ts", "x", false)
	assert.ErrorIs(t, err, ErrMissing)
}

func TestDelete_AlwaysSnapshots(t *testing.T) {
	svc, ws := newTestService(t)
	seed(t, ws, "src/old.ts", "bye")

	res, err := svc.Delete(context.Background(), "src/old.ts", false)
	require.NoError(t, err)
	assert.NotEmpty(t, res.BackupPath)
	assert.Contains(t, filepath.Base(res.BackupPath), ".delete.")
	_, statErr := os.Stat(filepath.Join(ws, "src/old.ts"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestDelete_ProtectedNeedsForce(t *testing.T) {
	svc, ws := newTestService(t)
	seed(t, ws, "package.json", "{}")

	_, err := svc.Delete(context.Background(), "package.json", false)
	assert.ErrorIs(t, err, ErrProtected)
	_, statErr := os.Stat(filepath.Join(ws, "package.json"))
	assert.NoError(t, statErr)

	_, err = svc.Delete(context.Background(), "package.json", true)
	assert.NoError(t, err)
}

// Credential opacity: read, create and update all refuse regardless of level.
func TestCredentialOpacity(t *testing.T) {
	svc, ws := newTestService(t)
	seed(t, ws, ".env", "API_KEY=hunter2")

	_, err := svc.Read(context.Background(), ".env")
	assert.ErrorIs(t, err, ErrCredential)

	_, err = svc.Create(context.Background(), "config/credentials.json", "{}", false)
	assert.ErrorIs(t, err, ErrCredential)

	_, err = svc.Update(context.Background(), ".env", "API_KEY=stolen", false)
	assert.ErrorIs(t, err, ErrCredential)

	data, _ := os.ReadFile(filepath.Join(ws, ".env"))
	assert.Equal(t, "API_KEY=hunter2", string(data))
}

func TestRead(t *testing.T) {
	svc, ws := newTestService(t)
	seed(t, ws, "docs/guide.md", "# Guide")

	res, err := svc.Read(context.Background(), "docs/guide.md")
	require.NoError(t, err)
	assert.Equal(t, "# Guide", res.Content)
	assert.Equal(t, "PROJECT_FILE", res.Level)

	// Critical files stay readable.
	seed(t, ws, "server.js", "boot()")
	res, err = svc.Read(context.Background(), "server.js")
	require.NoError(t, err)
	assert.Equal(t, "boot()", res.Content)
}

func TestRead_TooLarge(t *testing.T) {
	ws := t.TempDir()
	classifier, err := policy.New(ws, config.Default().Policy)
	require.NoError(t, err)
	store, err := backup.NewStore(filepath.Join(ws, ".file-backups"), 10)
	require.NoError(t, err)
	svc := NewService(classifier, store, 16)

	seed(t, ws, "big.txt", strings.Repeat("x", 32))
	_, err = svc.Read(context.Background(), "big.txt")
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestRead_Traversal(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Read(context.Background(), "../../etc/passwd")
	assert.ErrorIs(t, err, policy.ErrPathTraversal)
}

func TestList(t *testing.T) {
	svc, ws := newTestService(t)
	seed(t, ws, "src/a.ts", "1")
	seed(t, ws, "src/b.ts", "2")
	seed(t, ws, "src/.hidden", "3")
	seed(t, ws, "src/.env", "SECRET=1")

	res, err := svc.List(context.Background(), "src", ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count, "hidden and credential entries omitted by default")

	res, err = svc.List(context.Background(), "src", ListOptions{IncludeHidden: true, IncludeCredentials: true})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Count)
}

func TestList_Errors(t *testing.T) {
	svc, ws := newTestService(t)
	seed(t, ws, "src/a.ts", "1")

	_, err := svc.List(context.Background(), "missing-dir", ListOptions{})
	assert.ErrorIs(t, err, ErrMissing)

	_, err = svc.List(context.Background(), "src/a.ts", ListOptions{})
	assert.ErrorIs(t, err, ErrNotDirectory)

	_, err = svc.List(context.Background(), "node_modules", ListOptions{})
	assert.ErrorIs(t, err, ErrSystemDirectory)
}

func TestList_Recursive(t *testing.T) {
	svc, ws := newTestService(t)
	seed(t, ws, "src/a.ts", "1")
	seed(t, ws, "src/sub/b.ts", "2")
	seed(t, ws, "node_modules/pkg/index.js", "3")

	res, err := svc.List(context.Background(), ".", ListOptions{Recursive: true})
	require.NoError(t, err)

	var paths []string
	for _, e := range res.Entries {
		paths = append(paths, e.Path)
	}
	assert.Contains(t, paths, "src/sub/b.ts")
	assert.NotContains(t, paths, "node_modules/pkg/index.js", "protected dirs are skipped")
}

// Symlink confinement: a link pointing outside the workspace must not let
// an operation follow it out.
func TestSymlinkEscapeRefused(t *testing.T) {
	svc, ws := newTestService(t)
	outside := t.TempDir()
	target := filepath.Join(outside, "target.txt")
	require.NoError(t, os.WriteFile(target, []byte("out"), 0644))
	require.NoError(t, os.Symlink(target, filepath.Join(ws, "link.txt")))

	_, err := svc.Read(context.Background(), "link.txt")
	assert.ErrorIs(t, err, ErrDenied)
}
