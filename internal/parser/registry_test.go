package parser

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryForPath(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		path string
		want any
	}{
		{"doc.pdf", &PDFParser{}},
		{"表格.XLSX", &XLSXParser{}},
		{"公告.docx", &DOCXParser{}},
		{"notes.txt", &TextParser{}},
		{"readme.md", &TextParser{}},
	}
	for _, tt := range tests {
		p, err := r.ForPath(tt.path)
		require.NoError(t, err, tt.path)
		assert.IsType(t, tt.want, p, tt.path)
	}

	_, err := r.ForPath("image.png")
	require.Error(t, err)
	assert.False(t, r.Supports("image.png"))
	assert.True(t, r.Supports("doc.pdf"))
}

func TestRegistryFormats(t *testing.T) {
	formats := NewRegistry().Formats()
	assert.Contains(t, formats, "pdf")
	assert.Contains(t, formats, "xlsx")
	assert.Contains(t, formats, "docx")
	assert.Contains(t, formats, "txt")
}

func TestTextParser(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("  实验小学施教区：中山路以东。\n"), 0o644))

	text, err := (&TextParser{}).Parse(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "实验小学施教区：中山路以东。", text)
}

func TestTextParserEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(path, []byte("   \n"), 0o644))
	_, err := (&TextParser{}).Parse(context.Background(), path)
	require.Error(t, err)
}

func writeDocx(t *testing.T, paragraphs []string) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("word/document.xml")
	require.NoError(t, err)

	doc := `<?xml version="1.0"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`
	for _, p := range paragraphs {
		doc += `<w:p><w:r><w:t>` + p + `</w:t></w:r></w:p>`
	}
	doc += `</w:body></w:document>`
	_, err = f.Write([]byte(doc))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	path := filepath.Join(t.TempDir(), "doc.docx")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestDOCXParser(t *testing.T) {
	path := writeDocx(t, []string{"实验小学施教区：", "中山路以东，解放路以北。"})

	text, err := (&DOCXParser{}).Parse(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "实验小学施教区：\n中山路以东，解放路以北。", text)
}

func TestDOCXParserMissingDocumentXML(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, err := zw.Create("other.xml")
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	path := filepath.Join(t.TempDir(), "bad.docx")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	_, err = (&DOCXParser{}).Parse(context.Background(), path)
	require.Error(t, err)
}
