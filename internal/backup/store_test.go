package backup

import (
	"crypto/md5"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, retain int) (*Store, string) {
	t.Helper()
	ws := t.TempDir()
	s, err := NewStore(filepath.Join(ws, ".file-backups"), retain)
	require.NoError(t, err)
	return s, ws
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestSnapshot_BlobAndMeta(t *testing.T) {
	s, ws := newTestStore(t, 10)
	src := filepath.Join(ws, "App.txt")
	writeFile(t, src, "A")

	backupPath, err := s.Snapshot(src, ContextCreateOverwrite, "SYSTEM_FILE")
	require.NoError(t, err)
	require.NotEmpty(t, backupPath)

	name := filepath.Base(backupPath)
	assert.True(t, strings.HasPrefix(name, "App.txt.create-overwrite."), "name = %s", name)
	assert.True(t, strings.HasSuffix(name, ".backup"))
	assert.NotContains(t, name, ":")

	blob, err := os.ReadFile(backupPath)
	require.NoError(t, err)
	assert.Equal(t, "A", string(blob))

	meta, err := s.ReadMeta(backupPath)
	require.NoError(t, err)
	assert.Equal(t, src, meta.OriginalPath)
	assert.Equal(t, ContextCreateOverwrite, meta.Context)
	assert.Equal(t, int64(1), meta.Size)
	assert.Equal(t, "SYSTEM_FILE", meta.Level)

	want := md5.Sum([]byte("A"))
	assert.Equal(t, hex.EncodeToString(want[:]), meta.MD5)
}

func TestSnapshot_MissingSourceIsNotAnError(t *testing.T) {
	s, ws := newTestStore(t, 10)

	backupPath, err := s.Snapshot(filepath.Join(ws, "ghost.txt"), ContextUpdate, "SYSTEM_FILE")
	require.NoError(t, err)
	assert.Empty(t, backupPath)
	assert.Zero(t, s.Count())
}

func TestSnapshot_Retention(t *testing.T) {
	const retain = 3
	s, ws := newTestStore(t, retain)
	src := filepath.Join(ws, "notes.md")

	var last string
	for i := 0; i < retain+4; i++ {
		writeFile(t, src, strings.Repeat("x", i+1))
		p, err := s.Snapshot(src, ContextUpdate, "PROJECT_FILE")
		require.NoError(t, err)
		last = p
		time.Sleep(2 * time.Millisecond)
	}

	infos, err := s.List()
	require.NoError(t, err)
	assert.Len(t, infos, retain)

	// The newest snapshot survives pruning.
	assert.Equal(t, filepath.Base(last), infos[0].Name)

	// Every surviving blob still has its sidecar.
	for _, info := range infos {
		_, err := os.Stat(filepath.Join(s.Dir(), info.Name+".meta"))
		assert.NoError(t, err, "meta missing for %s", info.Name)
	}
}

func TestSnapshot_RetentionIsPerBaseName(t *testing.T) {
	s, ws := newTestStore(t, 2)

	for i := 0; i < 4; i++ {
		writeFile(t, filepath.Join(ws, "a.txt"), "a")
		_, err := s.Snapshot(filepath.Join(ws, "a.txt"), ContextUpdate, "SYSTEM_FILE")
		require.NoError(t, err)
		writeFile(t, filepath.Join(ws, "b.txt"), "b")
		_, err = s.Snapshot(filepath.Join(ws, "b.txt"), ContextUpdate, "SYSTEM_FILE")
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	infos, err := s.List()
	require.NoError(t, err)
	var a, b int
	for _, info := range infos {
		switch {
		case strings.HasPrefix(info.Name, "a.txt."):
			a++
		case strings.HasPrefix(info.Name, "b.txt."):
			b++
		}
	}
	assert.Equal(t, 2, a)
	assert.Equal(t, 2, b)
}

func TestList_NewestFirst(t *testing.T) {
	s, ws := newTestStore(t, 10)
	src := filepath.Join(ws, "f.txt")

	for i := 0; i < 3; i++ {
		writeFile(t, src, "v")
		_, err := s.Snapshot(src, ContextUpdate, "SYSTEM_FILE")
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	infos, err := s.List()
	require.NoError(t, err)
	require.Len(t, infos, 3)
	for i := 1; i < len(infos); i++ {
		assert.False(t, infos[i].Modified.After(infos[i-1].Modified))
	}
}

func TestBaseName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"App.txt.create-overwrite.2026-01-02T03-04-05.000000000Z.backup", "App.txt"},
		{"App.test.tsx.update.2026-01-02T03-04-05.000000000Z.backup", "App.test.tsx"},
		{"x.delete.2026-01-02T03-04-05.000000000Z.backup", "x"},
		{"strange-file.backup", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, baseName(tt.in), tt.in)
	}
}

func TestSweep(t *testing.T) {
	s, ws := newTestStore(t, 2)
	src := filepath.Join(ws, "doc.md")

	// Simulate out-of-band blobs by snapshotting with a larger store first.
	big, err := NewStore(s.Dir(), 10)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		writeFile(t, src, "v")
		_, err := big.Snapshot(src, ContextUpdate, "PROJECT_FILE")
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}
	require.Equal(t, 5, s.Count())

	s.Sweep()
	assert.Equal(t, 2, s.Count())
}
