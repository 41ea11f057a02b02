package values

import (
	"fmt"
	"path"
	"strings"
)

// EntryName is the canonical, forward-slash-separated, relative name of a
// crate entry. Two entry names refer to the same entry iff their canonical
// forms are byte-equal, so all comparisons happen on the normalized string.
type EntryName struct {
	name string
}

// NewEntryName normalizes a platform-specific path into an entry name.
// Backslash and native separators both collapse to forward slashes, the
// result is cleaned, and absolute or root-escaping paths are rejected.
func NewEntryName(p string) (EntryName, error) {
	normalized := normalize(p)
	if normalized == "" || normalized == "." {
		return EntryName{}, fmt.Errorf("empty entry name from path %q", p)
	}
	if path.IsAbs(normalized) || hasVolumePrefix(normalized) {
		return EntryName{}, fmt.Errorf("absolute paths not allowed in entry name %q", p)
	}
	if normalized == ".." || strings.HasPrefix(normalized, "../") {
		return EntryName{}, fmt.Errorf("path traversal not allowed in entry name %q", p)
	}
	return EntryName{name: normalized}, nil
}

// EntryNameFromFile derives the entry name of a file relative to root.
// When the file does not live under root, the bare file name is used.
func EntryNameFromFile(file, root string) (EntryName, error) {
	f := normalize(file)
	r := normalize(root)

	switch {
	case r == "" || r == ".":
		return NewEntryName(f)
	case f == r:
		return NewEntryName(path.Base(f))
	case strings.HasPrefix(f, r+"/"):
		return NewEntryName(strings.TrimPrefix(f, r+"/"))
	default:
		return NewEntryName(path.Base(f))
	}
}

// Prefixed returns a copy of the entry name with a destination sub-path
// prepended, normalizing the joined result.
func (e EntryName) Prefixed(destination string) (EntryName, error) {
	if destination == "" {
		return e, nil
	}
	return NewEntryName(path.Join(normalize(destination), e.name))
}

// String returns the canonical form.
func (e EntryName) String() string {
	return e.name
}

// IsZero reports whether the entry name is unset.
func (e EntryName) IsZero() bool {
	return e.name == ""
}

func normalize(p string) string {
	return path.Clean(strings.ReplaceAll(p, `\`, "/"))
}

// hasVolumePrefix catches Windows-style drive prefixes ("C:/...") that
// path.IsAbs does not consider absolute.
func hasVolumePrefix(p string) bool {
	return len(p) >= 2 && p[1] == ':' &&
		(('a' <= p[0] && p[0] <= 'z') || ('A' <= p[0] && p[0] <= 'Z'))
}
