package trust_test

import (
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cratesign/cratesign/trust"
)

func pemEncode(certs ...*x509.Certificate) []byte {
	var out []byte
	for _, cert := range certs {
		out = append(out, pem.EncodeToMemory(&pem.Block{
			Type:  "CERTIFICATE",
			Bytes: cert.Raw,
		})...)
	}
	return out
}

func writePEM(t *testing.T, dir, name string, certs ...*x509.Certificate) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, pemEncode(certs...), 0o600))
	return path
}

func TestParsePEMCertificates(t *testing.T) {
	t.Parallel()

	ca := newCA(t, "root")
	inter := newIntermediate(t, "issuing", ca)

	t.Run("single", func(t *testing.T) {
		certs, err := trust.ParsePEMCertificates(pemEncode(ca.cert))
		require.NoError(t, err)
		require.Len(t, certs, 1)
		assert.True(t, certs[0].Equal(ca.cert))
	})

	t.Run("bundle", func(t *testing.T) {
		certs, err := trust.ParsePEMCertificates(pemEncode(ca.cert, inter.cert))
		require.NoError(t, err)
		assert.Len(t, certs, 2)
	})

	t.Run("non-certificate blocks skipped", func(t *testing.T) {
		data := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: []byte{0x01}})
		data = append(data, pemEncode(ca.cert)...)
		certs, err := trust.ParsePEMCertificates(data)
		require.NoError(t, err)
		assert.Len(t, certs, 1)
	})

	t.Run("empty fails", func(t *testing.T) {
		_, err := trust.ParsePEMCertificates([]byte("not pem at all"))
		assert.Error(t, err)
	})
}

func TestPEMFileSource(t *testing.T) {
	t.Parallel()

	ca := newCA(t, "root")
	dir := t.TempDir()
	path := writePEM(t, dir, "root.pem", ca.cert)

	certs, err := trust.PEMFileSource{Path: path}.Certificates()
	require.NoError(t, err)
	require.Len(t, certs, 1)
	assert.True(t, certs[0].Equal(ca.cert))

	_, err = trust.PEMFileSource{Path: filepath.Join(dir, "absent.pem")}.Certificates()
	assert.Error(t, err)
}

func TestStaticSource(t *testing.T) {
	t.Parallel()

	ca := newCA(t, "root")
	certs, err := trust.StaticSource{ca.cert}.Certificates()
	require.NoError(t, err)
	require.Len(t, certs, 1)
	assert.True(t, certs[0].Equal(ca.cert))
}
