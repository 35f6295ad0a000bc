package fsutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStat(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file is not an error", func(t *testing.T) {
		info, err := Stat(filepath.Join(dir, "nope.txt"))
		require.NoError(t, err)
		assert.False(t, info.Exists)
	})

	t.Run("existing file", func(t *testing.T) {
		path := filepath.Join(dir, "a.txt")
		require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))
		mtime := time.Now().Add(-time.Hour).Truncate(time.Second)
		require.NoError(t, os.Chtimes(path, mtime, mtime))

		info, err := Stat(path)
		require.NoError(t, err)
		assert.True(t, info.Exists)
		assert.False(t, info.IsDir)
		assert.Equal(t, int64(5), info.Size)
		assert.True(t, info.ModTime.Equal(mtime))
		assert.False(t, info.CTime.IsZero())
	})

	t.Run("path through a regular file is missing", func(t *testing.T) {
		file := filepath.Join(dir, "plain")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

		info, err := Stat(filepath.Join(file, "child.txt"))
		require.NoError(t, err)
		assert.False(t, info.Exists)
	})

	t.Run("directory", func(t *testing.T) {
		info, err := Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.Exists)
		assert.True(t, info.IsDir)
	})
}

func TestMkdirAllIdempotent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b", "c")

	require.NoError(t, MkdirAll(dir))
	require.NoError(t, MkdirAll(dir))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.js")
	require.NoError(t, WriteFile(path, []byte("x")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))
}

func TestExpand(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := Expand("~", "assets")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "assets"), got)

	got, err = Expand("/srv/../srv/www")
	require.NoError(t, err)
	assert.Equal(t, "/srv/www", got)
}

func TestCommonPath(t *testing.T) {
	assert.Equal(t, "", CommonPath())
	assert.Equal(t, "/srv/app/", CommonPath("/srv/app/a.coffee"))
	assert.Equal(t, "/srv/app/", CommonPath("/srv/app/src/a.coffee", "/srv/app/pub/a.js"))
	assert.Equal(t, "/", CommonPath("/src/a.coffee", "/pub/a.js"))
}
