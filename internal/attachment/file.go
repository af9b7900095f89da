package attachment

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const defaultMimeType = "application/octet-stream"

// File is a user-selected file about to be attached.
type File struct {
	Name     string
	Size     int64
	MimeType string
	// Open returns the file content; the uploader closes it.
	Open func() (io.ReadCloser, error)
}

// OpenPath describes the file at path. The MIME type comes from the extension,
// falling back to sniffing the first 512 bytes.
func OpenPath(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, err
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("%s is a directory", path)
	}
	mt, err := detectMimeType(path)
	if err != nil {
		return File{}, err
	}
	return File{
		Name:     filepath.Base(path),
		Size:     info.Size(),
		MimeType: mt,
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

func detectMimeType(path string) (string, error) {
	if byExt := mime.TypeByExtension(filepath.Ext(path)); byExt != "" {
		if mt, _, err := mime.ParseMediaType(byExt); err == nil {
			return mt, nil
		}
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", err
	}
	mt, _, err := mime.ParseMediaType(http.DetectContentType(head[:n]))
	if err != nil {
		return defaultMimeType, nil
	}
	return mt, nil
}

// FileSpec limits which files may be attached to one message.
type FileSpec struct {
	MaxSizeMB int
	MaxFiles  int
	// Accept holds MIME patterns ("image/*", "*/*", "application/pdf") or
	// extensions (".csv").
	Accept []string
}

func (s FileSpec) maxBytes() int64 {
	return int64(s.MaxSizeMB) * 1024 * 1024
}

// Accepts reports whether f matches one of the accept patterns. An empty list
// accepts everything.
func (s FileSpec) Accepts(f File) bool {
	if len(s.Accept) == 0 {
		return true
	}
	mt := strings.ToLower(strings.TrimSpace(f.MimeType))
	if mt == "" {
		mt = defaultMimeType
	}
	for _, pattern := range s.Accept {
		pattern = strings.ToLower(strings.TrimSpace(pattern))
		if strings.HasPrefix(pattern, ".") {
			if strings.EqualFold(filepath.Ext(f.Name), pattern) {
				return true
			}
			continue
		}
		if ok, err := doublestar.Match(pattern, mt); err == nil && ok {
			return true
		}
	}
	return false
}
