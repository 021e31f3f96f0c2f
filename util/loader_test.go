package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0o600))
	}
}

func TestLoadDirectoryImages(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "b.png", "a.jpg", "c.WEBP", "notes.txt")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.jpg"), 0o700))

	images, err := LoadDirectoryImageFiles(dir)
	require.NoError(t, err)
	require.Len(t, images, 3)

	assert.Equal(t, filepath.Join(dir, "a.jpg"), images[0].Path)
	assert.Equal(t, filepath.Join(dir, "b.png"), images[1].Path)
	assert.Equal(t, filepath.Join(dir, "c.WEBP"), images[2].Path)
	assert.Equal(t, []byte("a.jpg"), images[0].Data)
}

func TestLoadImageFiles(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "frames")
	require.NoError(t, os.Mkdir(sub, 0o700))
	writeFiles(t, sub, "2.bmp", "1.jpeg")
	writeFiles(t, dir, "single.dat")

	images, err := LoadImageFiles(filepath.Join(dir, "single.dat"), sub)
	require.NoError(t, err)
	require.Len(t, images, 3)
	assert.Equal(t, filepath.Join(dir, "single.dat"), images[0].Path)
	assert.Equal(t, filepath.Join(sub, "1.jpeg"), images[1].Path)
	assert.Equal(t, filepath.Join(sub, "2.bmp"), images[2].Path)

	_, err = LoadImageFiles(filepath.Join(dir, "missing.png"))
	assert.Error(t, err)
}

func TestIsImagePath(t *testing.T) {
	assert.True(t, IsImagePath("cab.JPG"))
	assert.True(t, IsImagePath("/tmp/x.webp"))
	assert.False(t, IsImagePath("model.onnx"))
	assert.False(t, IsImagePath("noext"))
}
