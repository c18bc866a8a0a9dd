package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalStorePut(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	store, err := NewLocalStore(LocalConfig{BaseDir: base})
	require.NoError(t, err)

	uri, err := store.Put(context.Background(), "pages/run-1/1-abc.html", "text/html", []byte("<html/>"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(uri, "file://"))

	data, err := os.ReadFile(filepath.Join(base, "pages", "run-1", "1-abc.html"))
	require.NoError(t, err)
	require.Equal(t, "<html/>", string(data))
}

func TestLocalStoreCreatesBaseDir(t *testing.T) {
	t.Parallel()

	base := filepath.Join(t.TempDir(), "nested", "snapshots")
	_, err := NewLocalStore(LocalConfig{BaseDir: base})
	require.NoError(t, err)

	info, err := os.Stat(base)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	t.Parallel()

	store, err := NewLocalStore(LocalConfig{BaseDir: t.TempDir()})
	require.NoError(t, err)

	_, err = store.Put(context.Background(), "../escape.html", "text/html", []byte("x"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "path traversal")
}

func TestLocalStoreRejectsEmptyInputs(t *testing.T) {
	t.Parallel()

	_, err := NewLocalStore(LocalConfig{})
	require.Error(t, err)

	store, err := NewLocalStore(LocalConfig{BaseDir: t.TempDir()})
	require.NoError(t, err)
	_, err = store.Put(context.Background(), "  ", "text/html", []byte("x"))
	require.Error(t, err)
}

func TestLocalStoreCanceledContext(t *testing.T) {
	t.Parallel()

	store, err := NewLocalStore(LocalConfig{BaseDir: t.TempDir()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.Put(ctx, "a.html", "text/html", []byte("x"))
	require.ErrorIs(t, err, context.Canceled)
}

func TestLocalStoreRejectsFileAsBaseDir(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "not_a_dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	_, err := NewLocalStore(LocalConfig{BaseDir: file})
	require.Error(t, err)
}
