package fsutil

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// OSFileSystem implements ports.FileSystem on the local filesystem.
type OSFileSystem struct{}

// NewOSFileSystem creates the default filesystem adapter.
func NewOSFileSystem() *OSFileSystem {
	return &OSFileSystem{}
}

// Open opens a file for reading.
func (*OSFileSystem) Open(path string) (io.ReadCloser, error) {
	return os.Open(filepath.Clean(path))
}

// ReadAll reads a whole file into memory.
func (*OSFileSystem) ReadAll(path string) ([]byte, error) {
	return os.ReadFile(filepath.Clean(path))
}

// Enumerate lists all regular files under root, recursively.
func (*OSFileSystem) Enumerate(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
