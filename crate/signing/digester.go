package signing

import (
	"crypto/sha512"
	"io"

	"github.com/cratesign/cratesign/crate/values"
)

// SHA512Digester implements ports.Digester by streaming the input through
// SHA-512, yielding the fixed 64-byte digest recorded in manifests.
type SHA512Digester struct{}

// NewSHA512Digester creates the default content digester.
func NewSHA512Digester() SHA512Digester {
	return SHA512Digester{}
}

// Digest hashes the stream.
func (SHA512Digester) Digest(r io.Reader) (values.Digest, error) {
	h := sha512.New()
	if _, err := io.Copy(h, r); err != nil {
		return values.Digest{}, err
	}
	return values.NewDigest(values.AlgorithmSHA512, h.Sum(nil))
}
