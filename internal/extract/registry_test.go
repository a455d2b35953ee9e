package extract

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tsawhneybuilds/exploprd/internal/util"
)

func writeTempFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestRegistryUnsupportedType(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Extract("/tmp/whatever.bin", "application/octet-stream")
	require.True(t, errors.Is(err, util.ErrUnsupportedFormat))
}

func TestRegistryPlainText(t *testing.T) {
	reg := NewRegistry()
	path := writeTempFile(t, "note.txt", []byte("  product requirements live here\n"))
	text, err := reg.Extract(path, ContentTypePlain)
	require.NoError(t, err)
	require.Equal(t, "product requirements live here", text)
}

func TestRegistryEmptyPlainText(t *testing.T) {
	reg := NewRegistry()
	path := writeTempFile(t, "blank.txt", []byte("   \n\t "))
	_, err := reg.Extract(path, ContentTypePlain)
	require.True(t, errors.Is(err, util.ErrEmptyText))
}

func TestRegistrySupported(t *testing.T) {
	reg := NewRegistry()
	require.True(t, reg.Supported(ContentTypePDF))
	require.True(t, reg.Supported(ContentTypeDocx))
	require.True(t, reg.Supported(ContentTypePlain))
	require.False(t, reg.Supported("image/png"))
}

func TestDocxExtraction(t *testing.T) {
	docXML := `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>First paragraph.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Second </w:t></w:r><w:r><w:t>paragraph.</w:t></w:r></w:p>
  </w:body>
</w:document>`

	path := filepath.Join(t.TempDir(), "doc.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	entry, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = entry.Write([]byte(docXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	reg := NewRegistry()
	text, err := reg.Extract(path, ContentTypeDocx)
	require.NoError(t, err)
	require.Equal(t, "First paragraph.\nSecond paragraph.", text)
}

func TestDocxWithoutDocumentXMLIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hollow.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	entry, err := zw.Create("word/styles.xml")
	require.NoError(t, err)
	_, err = entry.Write([]byte("<styles/>"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	reg := NewRegistry()
	_, err = reg.Extract(path, ContentTypeDocx)
	require.True(t, errors.Is(err, util.ErrEmptyText))
}
