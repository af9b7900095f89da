package attachment

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenPathDetectsMetadata(t *testing.T) {
	dir := t.TempDir()

	txt := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(txt, []byte("hello"), 0o644))
	f, err := OpenPath(txt)
	require.NoError(t, err)
	require.Equal(t, "notes.txt", f.Name)
	require.EqualValues(t, 5, f.Size)
	require.Equal(t, "text/plain", f.MimeType)

	rc, err := f.Open()
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	require.Equal(t, "hello", string(data))

	png := filepath.Join(dir, "blob")
	require.NoError(t, os.WriteFile(png, []byte("\x89PNG\r\n\x1a\n0000"), 0o644))
	f, err = OpenPath(png)
	require.NoError(t, err)
	require.Equal(t, "image/png", f.MimeType)
}

func TestOpenPathErrors(t *testing.T) {
	_, err := OpenPath(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)

	_, err = OpenPath(t.TempDir())
	require.Error(t, err)
}
