// Package container implements the zip-compatible archive adapter backing
// a crate. The two well-known members (manifest, signatures) and the
// embedded signer certificates live under the protected dot-prefixed
// ".crate/" namespace; every other member is an embedded original file
// named by its canonical entry name.
package container

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/cratesign/cratesign/crate/entities"
	"github.com/cratesign/cratesign/fsutil"
)

// Reserved member names.
const (
	ManifestMember   = ".crate/manifest.yaml"
	SignaturesMember = ".crate/signatures.yaml"
	certMemberPrefix = ".crate/certs/"
)

// DefaultProtectedPatterns reserves the container's own namespace.
var DefaultProtectedPatterns = []string{".crate/**"}

// CertMember returns the member name embedding the certificate with the
// given fingerprint.
func CertMember(fingerprint string) string {
	return certMemberPrefix + fingerprint
}

// Archive is a read handle over an opened container.
type Archive struct {
	reader  *zip.Reader
	closer  io.Closer
	members map[string]*zip.File
}

// OpenFile opens a container from disk.
func OpenFile(path string) (*Archive, error) {
	rc, err := zip.OpenReader(filepath.Clean(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &entities.NotFoundError{Kind: "container", Name: path}
		}
		return nil, fmt.Errorf("opening container %q: %w", path, err)
	}
	return newArchive(&rc.Reader, rc), nil
}

// OpenBytes opens a container from an in-memory buffer.
func OpenBytes(data []byte) (*Archive, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("opening container from memory: %w", err)
	}
	return newArchive(r, nil), nil
}

func newArchive(r *zip.Reader, closer io.Closer) *Archive {
	members := make(map[string]*zip.File, len(r.File))
	for _, f := range r.File {
		members[f.Name] = f
	}
	return &Archive{reader: r, closer: closer, members: members}
}

// Has reports whether a member exists.
func (a *Archive) Has(name string) bool {
	_, ok := a.members[name]
	return ok
}

// Member reads a whole member into memory, guarded by limit.
func (a *Archive) Member(name string, limit int64) ([]byte, error) {
	rc, err := a.MemberReader(name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	data, err := fsutil.ReadAllLimited(rc, limit)
	if err != nil {
		return nil, fmt.Errorf("reading member %q: %w", name, err)
	}
	return data, nil
}

// MemberReader opens a member for streaming.
func (a *Archive) MemberReader(name string) (io.ReadCloser, error) {
	f, ok := a.members[name]
	if !ok {
		return nil, &entities.NotFoundError{Kind: "member", Name: name}
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("opening member %q: %w", name, err)
	}
	return rc, nil
}

// Close releases the underlying file handle, if any.
func (a *Archive) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

// Rewrite rebuilds the container at path: staged removals are dropped
// first, then every member in writes is written (overwriting a
// pre-existing copy), and all remaining members are carried over
// unchanged. The new archive is assembled in a temporary file and renamed
// into place, so from the caller's perspective the update either
// completes or the old container is left intact. A missing container is
// created. Returns the removal names that were not present.
func Rewrite(path string, removals []string, writes map[string][]byte) ([]string, error) {
	var existing *zip.ReadCloser
	if _, err := os.Stat(path); err == nil {
		existing, err = zip.OpenReader(path)
		if err != nil {
			return nil, fmt.Errorf("opening container for update: %w", err)
		}
		defer func() { _ = existing.Close() }()
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("stat container: %w", err)
	}

	skip := make(map[string]struct{}, len(removals)+len(writes))
	present := make(map[string]struct{})
	for _, name := range removals {
		skip[name] = struct{}{}
	}
	for name := range writes {
		skip[name] = struct{}{}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".crate-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp container: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	zw := zip.NewWriter(tmp)

	if existing != nil {
		for _, f := range existing.File {
			present[f.Name] = struct{}{}
			if _, skipped := skip[f.Name]; skipped {
				continue
			}
			if err := copyMember(zw, f); err != nil {
				_ = zw.Close()
				_ = tmp.Close()
				return nil, err
			}
		}
	}

	names := make([]string, 0, len(writes))
	for name := range writes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			_ = zw.Close()
			_ = tmp.Close()
			return nil, fmt.Errorf("creating member %q: %w", name, err)
		}
		if _, err := w.Write(writes[name]); err != nil {
			_ = zw.Close()
			_ = tmp.Close()
			return nil, fmt.Errorf("writing member %q: %w", name, err)
		}
	}

	if err := zw.Close(); err != nil {
		_ = tmp.Close()
		return nil, fmt.Errorf("finalizing container: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("closing temp container: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return nil, fmt.Errorf("committing container: %w", err)
	}

	var missing []string
	for _, name := range removals {
		if _, ok := present[name]; !ok {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing, nil
}

func copyMember(zw *zip.Writer, f *zip.File) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("opening member %q: %w", f.Name, err)
	}
	defer func() { _ = rc.Close() }()

	w, err := zw.Create(f.Name)
	if err != nil {
		return fmt.Errorf("recreating member %q: %w", f.Name, err)
	}
	if _, err := io.Copy(w, rc); err != nil {
		return fmt.Errorf("copying member %q: %w", f.Name, err)
	}
	return nil
}
