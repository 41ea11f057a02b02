package values_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cratesign/cratesign/crate/values"
)

func TestNewEntryName(t *testing.T) {
	t.Parallel()

	t.Run("backslash separators normalize", func(t *testing.T) {
		name, err := values.NewEntryName(`a\b\c.txt`)
		require.NoError(t, err)
		assert.Equal(t, "a/b/c.txt", name.String())
	})

	t.Run("forward slashes preserved", func(t *testing.T) {
		name, err := values.NewEntryName("a/b/c.txt")
		require.NoError(t, err)
		assert.Equal(t, "a/b/c.txt", name.String())
	})

	t.Run("redundant segments cleaned", func(t *testing.T) {
		name, err := values.NewEntryName("a//b/./c.txt")
		require.NoError(t, err)
		assert.Equal(t, "a/b/c.txt", name.String())
	})

	t.Run("equal canonical forms are byte-equal", func(t *testing.T) {
		a, err := values.NewEntryName(`docs\readme.md`)
		require.NoError(t, err)
		b, err := values.NewEntryName("docs/readme.md")
		require.NoError(t, err)
		assert.Equal(t, a.String(), b.String())
	})

	t.Run("absolute path rejected", func(t *testing.T) {
		_, err := values.NewEntryName("/etc/passwd")
		assert.Error(t, err)
	})

	t.Run("drive prefix rejected", func(t *testing.T) {
		_, err := values.NewEntryName(`C:\windows\system32`)
		assert.Error(t, err)
	})

	t.Run("traversal rejected", func(t *testing.T) {
		_, err := values.NewEntryName("../outside.txt")
		assert.Error(t, err)

		_, err = values.NewEntryName("a/../../outside.txt")
		assert.Error(t, err)
	})

	t.Run("empty rejected", func(t *testing.T) {
		_, err := values.NewEntryName("")
		assert.Error(t, err)

		_, err = values.NewEntryName(".")
		assert.Error(t, err)
	})
}

func TestEntryNameFromFile(t *testing.T) {
	t.Parallel()

	t.Run("relative to root", func(t *testing.T) {
		name, err := values.EntryNameFromFile("/data/crate/sub/a.txt", "/data/crate")
		require.NoError(t, err)
		assert.Equal(t, "sub/a.txt", name.String())
	})

	t.Run("backslash file under backslash root", func(t *testing.T) {
		name, err := values.EntryNameFromFile(`data\crate\a.txt`, `data\crate`)
		require.NoError(t, err)
		assert.Equal(t, "a.txt", name.String())
	})

	t.Run("outside root falls back to base name", func(t *testing.T) {
		name, err := values.EntryNameFromFile("/elsewhere/b.txt", "/data/crate")
		require.NoError(t, err)
		assert.Equal(t, "b.txt", name.String())
	})

	t.Run("empty root keeps relative path", func(t *testing.T) {
		name, err := values.EntryNameFromFile("sub/c.txt", "")
		require.NoError(t, err)
		assert.Equal(t, "sub/c.txt", name.String())
	})
}

func TestEntryName_Prefixed(t *testing.T) {
	t.Parallel()

	name, err := values.NewEntryName("a.txt")
	require.NoError(t, err)

	prefixed, err := name.Prefixed("payload/files")
	require.NoError(t, err)
	assert.Equal(t, "payload/files/a.txt", prefixed.String())

	same, err := name.Prefixed("")
	require.NoError(t, err)
	assert.Equal(t, "a.txt", same.String())
}
