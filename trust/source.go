package trust

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
)

// Source is the certificate-loading capability consumed by the trust
// configuration. Backends are substitutable (PEM files, in-memory test
// fixtures) without touching the verification engine.
type Source interface {
	Certificates() ([]*x509.Certificate, error)
}

// PEMFileSource loads all CERTIFICATE blocks from a PEM file.
type PEMFileSource struct {
	Path string
}

// Certificates parses every certificate in the file.
func (s PEMFileSource) Certificates() ([]*x509.Certificate, error) {
	data, err := os.ReadFile(filepath.Clean(s.Path))
	if err != nil {
		return nil, fmt.Errorf("reading certificate file %q: %w", s.Path, err)
	}
	certs, err := ParsePEMCertificates(data)
	if err != nil {
		return nil, fmt.Errorf("certificate file %q: %w", s.Path, err)
	}
	return certs, nil
}

// StaticSource serves a fixed certificate set from memory.
type StaticSource []*x509.Certificate

// Certificates returns the fixed set.
func (s StaticSource) Certificates() ([]*x509.Certificate, error) {
	return append([]*x509.Certificate(nil), s...), nil
}

// ParsePEMCertificates decodes every CERTIFICATE block in a PEM buffer.
func ParsePEMCertificates(data []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parsing certificate: %w", err)
		}
		certs = append(certs, cert)
	}
	if len(certs) == 0 {
		return nil, fmt.Errorf("no certificates found")
	}
	return certs, nil
}
