// Package codec implements the serialization contract for manifest and
// signature documents: a compact YAML document with a fixed, versioned
// field layout. Encoding is hand-written so the exported byte stream is
// deterministic (entries sorted lexicographically, binary values carried
// as base64 strings) and therefore stable under sign/verify round trips;
// decoding goes through goccy/go-yaml into explicit DTOs, with the
// base64 decoded by the codec itself.
package codec

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strconv"

	"github.com/Masterminds/semver/v3"
	"github.com/goccy/go-yaml"

	"github.com/cratesign/cratesign/crate/entities"
	"github.com/cratesign/cratesign/crate/values"
)

// FormatVersion is written into every exported document.
const FormatVersion = "1.0.0"

// formatConstraint accepts any document this codec can read.
const formatConstraint = "^1"

// Hash and signature bytes travel as quoted base64 strings and are
// decoded by the codec itself, keeping binary data out of the YAML type
// system.
type manifestDoc struct {
	Version             string            `yaml:"version"`
	StoreOriginalFiles  bool              `yaml:"storeOriginalFiles"`
	UpdatedBy           string            `yaml:"updatedBy"`
	ProtectedEntryNames []string          `yaml:"protectedEntryNames"`
	Entries             map[string]string `yaml:"entries"`
}

type signaturesDoc struct {
	Version string            `yaml:"version"`
	Entries map[string]string `yaml:"entries"`
}

// ExportManifest serializes a manifest to its canonical byte form. The
// output is deterministic for equal manifest state regardless of entry
// insertion order; signatures are computed over exactly these bytes.
func ExportManifest(m *entities.Manifest) []byte {
	var buf bytes.Buffer
	writeField(&buf, "version", FormatVersion)
	if m.StoreOriginalFiles {
		buf.WriteString("storeOriginalFiles: true\n")
	}
	if m.UpdatedBy != "" {
		writeField(&buf, "updatedBy", m.UpdatedBy)
	}
	if protected := m.ProtectedEntryNames(); len(protected) > 0 {
		buf.WriteString("protectedEntryNames:\n")
		for _, pattern := range protected {
			fmt.Fprintf(&buf, "  - %s\n", strconv.Quote(pattern))
		}
	}
	if entries := m.Entries(); len(entries) > 0 {
		buf.WriteString("entries:\n")
		for _, e := range entries {
			writeBase64Entry(&buf, e.Name, e.Digest.Bytes())
		}
	}
	return buf.Bytes()
}

// ParseManifest deserializes a manifest document. The protected patterns
// recorded in the document are extended with extraProtected so the
// loading crate's own reserved names always apply.
func ParseManifest(data []byte, extraProtected ...string) (*entities.Manifest, error) {
	var doc manifestDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding manifest document: %w", err)
	}
	if err := checkVersion(doc.Version); err != nil {
		return nil, fmt.Errorf("manifest document: %w", err)
	}

	entryMap := make(map[string]values.Digest, len(doc.Entries))
	for name, encoded := range doc.Entries {
		raw, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("manifest entry %q: %w", name, err)
		}
		d, err := values.NewDigest(values.AlgorithmSHA512, raw)
		if err != nil {
			return nil, fmt.Errorf("manifest entry %q: %w", name, err)
		}
		entryMap[name] = d
	}

	protected := mergePatterns(doc.ProtectedEntryNames, extraProtected)
	return entities.RestoreManifest(entryMap, doc.StoreOriginalFiles, doc.UpdatedBy, protected), nil
}

// ExportSignatures serializes the signature set, sorted by fingerprint.
func ExportSignatures(s *entities.Signatures) []byte {
	var buf bytes.Buffer
	writeField(&buf, "version", FormatVersion)
	if entries := s.Entries(); len(entries) > 0 {
		buf.WriteString("entries:\n")
		for _, e := range entries {
			writeBase64Entry(&buf, e.Fingerprint, e.Signature)
		}
	}
	return buf.Bytes()
}

// ParseSignatures deserializes a signatures document.
func ParseSignatures(data []byte) (*entities.Signatures, error) {
	var doc signaturesDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding signatures document: %w", err)
	}
	if err := checkVersion(doc.Version); err != nil {
		return nil, fmt.Errorf("signatures document: %w", err)
	}

	entries := make(map[string][]byte, len(doc.Entries))
	for fingerprint, encoded := range doc.Entries {
		raw, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("signature entry %q: %w", fingerprint, err)
		}
		entries[fingerprint] = raw
	}
	return entities.RestoreSignatures(entries), nil
}

func checkVersion(v string) error {
	parsed, err := semver.NewVersion(v)
	if err != nil {
		return fmt.Errorf("invalid format version %q: %w", v, err)
	}
	constraint, err := semver.NewConstraint(formatConstraint)
	if err != nil {
		return fmt.Errorf("invalid format constraint: %w", err)
	}
	if !constraint.Check(parsed) {
		return fmt.Errorf("unsupported format version %q (want %s)", v, formatConstraint)
	}
	return nil
}

func writeField(buf *bytes.Buffer, key, value string) {
	fmt.Fprintf(buf, "%s: %s\n", key, strconv.Quote(value))
}

// writeBase64Entry emits one sorted map entry with the value base64
// encoded, keeping hash and signature bytes binary-safe through the
// round trip.
func writeBase64Entry(buf *bytes.Buffer, key string, value []byte) {
	fmt.Fprintf(buf, "  %s: %s\n",
		strconv.Quote(key), strconv.Quote(base64.StdEncoding.EncodeToString(value)))
}

func mergePatterns(stored, extra []string) []string {
	seen := make(map[string]struct{}, len(stored)+len(extra))
	out := make([]string, 0, len(stored)+len(extra))
	for _, p := range append(append([]string(nil), stored...), extra...) {
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
