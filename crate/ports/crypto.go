// Package ports declares the capability interfaces the crate core
// consumes. Cryptographic primitives and filesystem access are delegated
// to adapters; the core never implements them itself.
package ports

import (
	"io"

	"github.com/cratesign/cratesign/crate/values"
)

// Digester computes the fixed-length content hash used for manifest
// entries, streaming the input through the digest function.
type Digester interface {
	Digest(r io.Reader) (values.Digest, error)
}

// Signer produces a detached signature over a message using a private key
// bound at construction, with a fixed digest and padding scheme.
type Signer interface {
	SignMessage(message io.Reader) ([]byte, error)
}

// Verifier checks a detached signature against a message using a public
// key bound at construction. A failed check is an error from this port;
// the crate surfaces it to callers as a boolean outcome.
type Verifier interface {
	VerifySignature(signature []byte, message io.Reader) error
}

// SignerVerifier combines both capabilities over one key pair.
type SignerVerifier interface {
	Signer
	Verifier
}
