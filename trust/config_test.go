package trust_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cratesign/cratesign/trust"
)

func TestParseDocument(t *testing.T) {
	t.Parallel()

	t.Run("full document", func(t *testing.T) {
		doc, err := trust.ParseDocument([]byte(`{
			"selfSignedRoot": "root.pem",
			"intermediates": ["inter.pem"],
			"customRoots": ["custom-a.pem", "custom-b.pem"],
			"allowExpired": true
		}`))
		require.NoError(t, err)
		assert.Equal(t, "root.pem", doc.SelfSignedRoot)
		assert.Equal(t, []string{"inter.pem"}, doc.Intermediates)
		assert.Len(t, doc.CustomRoots, 2)
		assert.True(t, doc.AllowExpired)
	})

	t.Run("empty document", func(t *testing.T) {
		doc, err := trust.ParseDocument([]byte(`{}`))
		require.NoError(t, err)
		assert.Empty(t, doc.SelfSignedRoot)
		assert.False(t, doc.AllowExpired)
	})

	t.Run("unknown field rejected", func(t *testing.T) {
		_, err := trust.ParseDocument([]byte(`{"rootCerts": ["x.pem"]}`))
		assert.Error(t, err)
	})

	t.Run("wrong type rejected", func(t *testing.T) {
		_, err := trust.ParseDocument([]byte(`{"intermediates": "inter.pem"}`))
		assert.Error(t, err)
	})

	t.Run("invalid json rejected", func(t *testing.T) {
		_, err := trust.ParseDocument([]byte(`{`))
		assert.Error(t, err)
	})
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	ca := newCA(t, "pinned")
	inter := newIntermediate(t, "issuing", ca)
	custom := newCA(t, "custom")

	dir := t.TempDir()
	rootPath := writePEM(t, dir, "root.pem", ca.cert)
	interPath := writePEM(t, dir, "inter.pem", inter.cert)
	customPath := writePEM(t, dir, "custom.pem", custom.cert)

	docPath := filepath.Join(dir, "trust.json")
	doc := fmt.Sprintf(`{
		"selfSignedRoot": %q,
		"intermediates": [%q],
		"customRoots": [%q],
		"allowExpired": true
	}`, rootPath, interPath, customPath)
	require.NoError(t, os.WriteFile(docPath, []byte(doc), 0o600))

	cfg, err := trust.LoadConfig(docPath)
	require.NoError(t, err)

	require.NotNil(t, cfg.SelfSignedRoot)
	assert.True(t, cfg.SelfSignedRoot.Equal(ca.cert))
	require.Len(t, cfg.Intermediates, 1)
	assert.True(t, cfg.Intermediates[0].Equal(inter.cert))
	require.Len(t, cfg.CustomRoots, 1)
	assert.True(t, cfg.CustomRoots[0].Equal(custom.cert))
	assert.True(t, cfg.AllowExpired)
}

func TestLoadConfig_MissingCertificateFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	docPath := filepath.Join(dir, "trust.json")
	doc := fmt.Sprintf(`{"selfSignedRoot": %q}`, filepath.Join(dir, "absent.pem"))
	require.NoError(t, os.WriteFile(docPath, []byte(doc), 0o600))

	_, err := trust.LoadConfig(docPath)
	assert.Error(t, err)
}

func TestLoadConfig_MissingDocument(t *testing.T) {
	t.Parallel()

	_, err := trust.LoadConfig(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}
