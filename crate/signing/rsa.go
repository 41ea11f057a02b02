// Package signing provides the cryptographic capability adapters the
// crate core consumes through its ports: content digesting and detached
// RSA signing/verification, built on the sigstore signature library.
package signing

import (
	"bytes"
	"crypto"
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"io"

	"github.com/sigstore/sigstore/pkg/signature"
)

// Crates sign the manifest bytes with RSA PKCS#1 v1.5 over SHA-512.
const hashFunc = crypto.SHA512

// RSASignerVerifier implements ports.SignerVerifier for a private key.
type RSASignerVerifier struct {
	sv signature.SignerVerifier
}

// NewRSASignerVerifier binds a signer/verifier to a private key.
func NewRSASignerVerifier(key *rsa.PrivateKey) (*RSASignerVerifier, error) {
	sv, err := signature.LoadRSAPKCS1v15SignerVerifier(key, hashFunc)
	if err != nil {
		return nil, fmt.Errorf("loading RSA signer: %w", err)
	}
	return &RSASignerVerifier{sv: sv}, nil
}

// SignMessage produces a detached signature over the message stream.
func (s *RSASignerVerifier) SignMessage(message io.Reader) ([]byte, error) {
	return s.sv.SignMessage(message)
}

// VerifySignature checks a detached signature over the message stream.
func (s *RSASignerVerifier) VerifySignature(sig []byte, message io.Reader) error {
	return s.sv.VerifySignature(bytes.NewReader(sig), message)
}

// RSAVerifier implements ports.Verifier for a public key.
type RSAVerifier struct {
	v signature.Verifier
}

// NewRSAVerifier binds a verifier to a public key.
func NewRSAVerifier(pub *rsa.PublicKey) (*RSAVerifier, error) {
	v, err := signature.LoadRSAPKCS1v15Verifier(pub, hashFunc)
	if err != nil {
		return nil, fmt.Errorf("loading RSA verifier: %w", err)
	}
	return &RSAVerifier{v: v}, nil
}

// NewCertificateVerifier binds a verifier to a certificate's public key.
func NewCertificateVerifier(cert *x509.Certificate) (*RSAVerifier, error) {
	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("unsupported certificate key type %T", cert.PublicKey)
	}
	return NewRSAVerifier(pub)
}

// VerifySignature checks a detached signature over the message stream.
func (r *RSAVerifier) VerifySignature(sig []byte, message io.Reader) error {
	return r.v.VerifySignature(bytes.NewReader(sig), message)
}
