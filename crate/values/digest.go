package values

import (
	"bytes"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"strings"
)

// AlgorithmSHA512 identifies the content digest algorithm used for crate
// entries. The digest length is fixed; manifests store the raw bytes.
const AlgorithmSHA512 = "sha512"

// SHA512Size is the fixed digest length in bytes.
const SHA512Size = 64

// Digest is a fixed-length content hash. The zero value is invalid.
type Digest struct {
	algorithm string
	value     []byte
}

// NewDigest creates a digest from an algorithm and raw hash bytes.
func NewDigest(algorithm string, value []byte) (Digest, error) {
	if algorithm != AlgorithmSHA512 {
		return Digest{}, fmt.Errorf("unsupported digest algorithm: %s", algorithm)
	}
	if len(value) != SHA512Size {
		return Digest{}, fmt.Errorf("invalid %s digest length: expected %d bytes, got %d",
			algorithm, SHA512Size, len(value))
	}
	d := Digest{algorithm: algorithm, value: make([]byte, len(value))}
	copy(d.value, value)
	return d, nil
}

// ParseDigest parses the canonical "algorithm:hex" form.
func ParseDigest(s string) (Digest, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return Digest{}, fmt.Errorf("invalid digest format: %s", s)
	}
	raw, err := hex.DecodeString(parts[1])
	if err != nil {
		return Digest{}, fmt.Errorf("invalid digest hex: %w", err)
	}
	return NewDigest(parts[0], raw)
}

// String returns the canonical "algorithm:hex" form.
func (d Digest) String() string {
	return fmt.Sprintf("%s:%s", d.algorithm, hex.EncodeToString(d.value))
}

// Algorithm returns the hash algorithm.
func (d Digest) Algorithm() string {
	return d.algorithm
}

// Bytes returns a copy of the raw hash bytes.
func (d Digest) Bytes() []byte {
	out := make([]byte, len(d.value))
	copy(out, d.value)
	return out
}

// Equal reports byte-for-byte equality with another digest.
func (d Digest) Equal(other Digest) bool {
	return d.algorithm == other.algorithm && bytes.Equal(d.value, other.value)
}

// IsZero reports whether the digest is unset.
func (d Digest) IsZero() bool {
	return d.algorithm == "" && len(d.value) == 0
}

// Fingerprint returns the stable lookup key of a certificate: the
// hex-encoded SHA-256 of its DER encoding. Signatures are keyed by it and
// the signer certificate is embedded in the container under it.
func Fingerprint(cert *x509.Certificate) string {
	sum := sha256.Sum256(cert.Raw)
	return hex.EncodeToString(sum[:])
}
