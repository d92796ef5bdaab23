package catalog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// LocalFileStore writes uploaded images under a base directory with
// generated names, keeping the original extension.
type LocalFileStore struct {
	Dir string
}

// Save implements FileStore. The returned path is relative to Dir and is
// what gets recorded on the image row.
func (fs LocalFileStore) Save(filename string, content io.Reader) (string, error) {
	if fs.Dir == "" {
		return "", fmt.Errorf("upload dir not configured")
	}
	if err := os.MkdirAll(fs.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	name := uuid.NewString() + filepath.Ext(filename)
	dst, err := os.Create(filepath.Join(fs.Dir, name))
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer dst.Close()
	if _, err := io.Copy(dst, content); err != nil {
		return "", fmt.Errorf("write upload file: %w", err)
	}
	return name, nil
}
