package ports

import "io"

// FileSystem abstracts the file access used by the staging and
// verification paths, so tests and hosts can substitute backends.
type FileSystem interface {
	// Open opens a file for reading.
	Open(path string) (io.ReadCloser, error)

	// ReadAll reads a whole file into memory.
	ReadAll(path string) ([]byte, error)

	// Enumerate lists all regular files under root, recursively.
	Enumerate(root string) ([]string, error)
}

// ByteCache is a bounded name-to-bytes store consulted on the read path of
// a read-only crate.
type ByteCache interface {
	// TryGet returns the cached bytes for a name, if present.
	TryGet(name string) ([]byte, bool)

	// Insert stores bytes under a name, evicting older entries to make
	// room. Returns whether the entry was inserted (or already present
	// with identical bytes).
	Insert(name string, data []byte) bool
}
