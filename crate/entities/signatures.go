package entities

import (
	"sort"
	"sync"
)

// SignatureEntry pairs a signer certificate fingerprint with the detached
// signature it produced over the manifest bytes.
type SignatureEntry struct {
	Fingerprint string
	Signature   []byte
}

// Signatures maps certificate fingerprints to detached signatures, one per
// signer of the current manifest bytes. One signature entry implies one
// embedded certificate member under the same fingerprint.
type Signatures struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewSignatures creates an empty signature set.
func NewSignatures() *Signatures {
	return &Signatures{entries: make(map[string][]byte)}
}

// RestoreSignatures rebuilds the set from deserialized container state.
func RestoreSignatures(entries map[string][]byte) *Signatures {
	if entries == nil {
		entries = make(map[string][]byte)
	}
	return &Signatures{entries: entries}
}

// Add records a signature for a fingerprint. Re-signing with the same
// certificate overwrites the prior entry; a crate can be signed, mutated
// further and re-signed.
func (s *Signatures) Add(fingerprint string, sig []byte) {
	cp := make([]byte, len(sig))
	copy(cp, sig)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[fingerprint] = cp
}

// Get returns the signature recorded for a fingerprint.
func (s *Signatures) Get(fingerprint string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sig, ok := s.entries[fingerprint]
	if !ok {
		return nil, false
	}
	cp := make([]byte, len(sig))
	copy(cp, sig)
	return cp, true
}

// Len returns the number of signers.
func (s *Signatures) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Entries returns a snapshot sorted by fingerprint, matching the
// serialized ordering.
func (s *Signatures) Entries() []SignatureEntry {
	s.mu.RLock()
	out := make([]SignatureEntry, 0, len(s.entries))
	for fp, sig := range s.entries {
		cp := make([]byte, len(sig))
		copy(cp, sig)
		out = append(out, SignatureEntry{Fingerprint: fp, Signature: cp})
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Fingerprint < out[j].Fingerprint })
	return out
}
