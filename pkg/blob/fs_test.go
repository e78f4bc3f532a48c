package blob

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestFSStoreListAndRead(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "papers", "reports", "a.txt"), "alpha")
	writeFile(t, filepath.Join(root, "papers", "reports", "b.md"), "beta")
	writeFile(t, filepath.Join(root, "papers", "other.txt"), "gamma")
	writeFile(t, filepath.Join(root, "images", "x.txt"), "not this bucket")

	store, err := NewFSStore(root)
	require.NoError(t, err)

	ctx := context.Background()

	all, err := store.List(ctx, "papers", "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "other.txt", all[0].Key)
	assert.Equal(t, "reports/a.txt", all[1].Key)
	assert.Equal(t, "reports/b.md", all[2].Key)

	filtered, err := store.List(ctx, "papers", "reports/")
	require.NoError(t, err)
	require.Len(t, filtered, 2)

	data, err := store.Read(ctx, filtered[0])
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(data))
}

func TestFSStoreContentType(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "docs", "report.pdf"), "%PDF-1.4")

	store, err := NewFSStore(root)
	require.NoError(t, err)

	objects, err := store.List(context.Background(), "docs", "")
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, "application/pdf", objects[0].ContentType)
}

func TestFSStoreMissingBucket(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.List(context.Background(), "nope", "")
	assert.Error(t, err)
}

func TestNewFSStoreRejectsFiles(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "not-a-dir")
	writeFile(t, file, "x")

	_, err := NewFSStore(file)
	assert.Error(t, err)
}
