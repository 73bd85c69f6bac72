package input

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.md")
	write(t, path, "\ufeffline one\r\nline two\r\n")

	got, err := ReadAll(path)
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two", got)
}

func TestReadDirectory(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "b.txt"), "second")
	write(t, filepath.Join(dir, "a.md"), "first")
	write(t, filepath.Join(dir, "sub", "c.MD"), "third")
	write(t, filepath.Join(dir, "empty.txt"), "  \n")
	write(t, filepath.Join(dir, "image.png"), "binary")
	write(t, filepath.Join(dir, ".git", "notes.txt"), "hidden")

	docs, err := Read(dir)
	require.NoError(t, err)
	var names []string
	for _, d := range docs {
		rel, _ := filepath.Rel(dir, d.Path)
		names = append(names, filepath.ToSlash(rel))
	}
	assert.Equal(t, []string{"a.md", "b.txt", "empty.txt", "sub/c.MD"}, names)
	assert.Equal(t, "first\n\nsecond\n\nthird", Join(docs))
}

func TestReadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Read(filepath.Join(dir, "missing.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	write(t, filepath.Join(dir, "only.png"), "x")
	_, err = Read(dir)
	assert.ErrorIs(t, err, ErrNoInput)

	bad := filepath.Join(t.TempDir(), "bad.txt")
	write(t, bad, string([]byte{0xff, 0xfe, 0xfd}))
	_, err = Read(bad)
	assert.ErrorContains(t, err, "UTF-8")
}
