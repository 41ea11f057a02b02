package entities

import (
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/cratesign/cratesign/crate/values"
)

// Entry is one named unit tracked by the manifest: a canonical entry name
// and the digest of its content.
type Entry struct {
	Name   string
	Digest values.Digest
}

// Manifest is the entry-name to content-digest map of a crate, plus the
// crate-wide flags. It is the structure signatures are computed over.
//
// Invariants:
//   - No duplicate entry names; a colliding add fails without mutating state.
//   - Deleting a non-existent name fails.
//   - Names matching a protected pattern are reserved for the container.
//
// The entry map is internally synchronized so ingestion and verification
// workers can add and read entries concurrently.
type Manifest struct {
	mu      sync.RWMutex
	entries map[string]values.Digest

	// StoreOriginalFiles embeds the original file bytes in the container
	// alongside their digests.
	StoreOriginalFiles bool

	// UpdatedBy is an optional provenance tag carried in the serialized
	// manifest. It participates in the signed bytes, so it must be set
	// before signing.
	UpdatedBy string

	protected []string // doublestar patterns, fixed at construction/parse
}

// NewManifest creates an empty manifest reserving the given doublestar
// patterns. The protected set is per-instance configuration; crates in the
// same process never share it.
func NewManifest(protectedPatterns ...string) *Manifest {
	return &Manifest{
		entries:   make(map[string]values.Digest),
		protected: append([]string(nil), protectedPatterns...),
	}
}

// AddEntry records a digest for a new entry name.
func (m *Manifest) AddEntry(name values.EntryName, d values.Digest) error {
	key := name.String()
	if pattern, ok := m.protectedMatch(key); ok {
		return &ProtectedNameError{Name: key, Pattern: pattern}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[key]; exists {
		return &DuplicateEntryError{Name: key}
	}
	m.entries[key] = d
	return nil
}

// DeleteEntry removes an entry by name.
func (m *Manifest) DeleteEntry(name values.EntryName) error {
	key := name.String()
	if pattern, ok := m.protectedMatch(key); ok {
		return &ProtectedNameError{Name: key, Pattern: pattern}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[key]; !exists {
		return &NotFoundError{Kind: "entry", Name: key}
	}
	delete(m.entries, key)
	return nil
}

// Digest returns the recorded digest for an entry name.
func (m *Manifest) Digest(name string) (values.Digest, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.entries[name]
	return d, ok
}

// Has reports whether an entry name is recorded.
func (m *Manifest) Has(name string) bool {
	_, ok := m.Digest(name)
	return ok
}

// Len returns the number of recorded entries.
func (m *Manifest) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Entries returns a snapshot of all entries, sorted lexicographically by
// name. The serialized manifest uses the same ordering so the exported
// byte stream is deterministic regardless of insertion order.
func (m *Manifest) Entries() []Entry {
	m.mu.RLock()
	out := make([]Entry, 0, len(m.entries))
	for name, d := range m.entries {
		out = append(out, Entry{Name: name, Digest: d})
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ProtectedEntryNames returns the reserved name patterns.
func (m *Manifest) ProtectedEntryNames() []string {
	return append([]string(nil), m.protected...)
}

// IsProtected reports whether a name matches a reserved pattern.
func (m *Manifest) IsProtected(name string) bool {
	_, ok := m.protectedMatch(name)
	return ok
}

// ProtectedPattern returns the reserved pattern a name matches, if any.
func (m *Manifest) ProtectedPattern(name string) (string, bool) {
	return m.protectedMatch(name)
}

func (m *Manifest) protectedMatch(name string) (string, bool) {
	for _, pattern := range m.protected {
		if ok, err := doublestar.Match(pattern, name); err == nil && ok {
			return pattern, true
		}
	}
	return "", false
}

// RestoreManifest rebuilds a manifest from deserialized container state.
// Used by the codec on load; not part of the mutation API.
func RestoreManifest(
	entries map[string]values.Digest,
	storeOriginalFiles bool,
	updatedBy string,
	protectedPatterns []string,
) *Manifest {
	if entries == nil {
		entries = make(map[string]values.Digest)
	}
	return &Manifest{
		entries:            entries,
		StoreOriginalFiles: storeOriginalFiles,
		UpdatedBy:          updatedBy,
		protected:          append([]string(nil), protectedPatterns...),
	}
}
