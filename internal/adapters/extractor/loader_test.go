package extractor

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/contractrag/internal/domain/entities"
)

const documentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Master Services Agreement</w:t></w:r></w:p>
    <w:p><w:r><w:t xml:space="preserve">Payment terms: </w:t></w:r><w:r><w:t>net 30 days.</w:t></w:r></w:p>
    <w:p></w:p>
    <w:tbl>
      <w:tr>
        <w:tc><w:p><w:r><w:t>Clause</w:t></w:r></w:p></w:tc>
        <w:tc><w:p><w:r><w:t>Standard</w:t></w:r></w:p></w:tc>
      </w:tr>
      <w:tr>
        <w:tc><w:p><w:r><w:t>Liability</w:t></w:r></w:p></w:tc>
        <w:tc><w:p><w:r><w:t>12 months fees</w:t></w:r></w:p></w:tc>
      </w:tr>
    </w:tbl>
    <w:p><w:r><w:t>Governing law:</w:t><w:tab/><w:t>Delaware</w:t></w:r></w:p>
  </w:body>
</w:document>`

func buildDOCX(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestExtract_DOCX(t *testing.T) {
	text, err := New().Extract(context.Background(), buildDOCX(t, documentXML), "acme_msa.docx")
	require.NoError(t, err)

	assert.Equal(t, strings.Join([]string{
		"Master Services Agreement",
		"Payment terms: net 30 days.",
		"Clause | Standard",
		"Liability | 12 months fees",
		"Governing law:\tDelaware",
	}, "\n"), text)
}

// buildPDF writes a one-page PDF showing text in Helvetica, with a
// correct cross-reference table.
func buildPDF(t *testing.T, text string) []byte {
	t.Helper()
	content := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestExtract_PDF(t *testing.T) {
	data := buildPDF(t, "Payment terms: net 30 days.")

	text, err := New().Extract(context.Background(), data, "acme_rfq.pdf")
	require.NoError(t, err)
	assert.Contains(t, text, "Payment terms: net 30 days.")

	path := filepath.Join(t.TempDir(), "acme_rfq.pdf")
	require.NoError(t, os.WriteFile(path, data, 0644))

	doc, err := New().LoadFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, entities.DocumentTypeRFQ, doc.Type)
	assert.Contains(t, doc.Content, "net 30 days")
}

func TestExtract_DOCXWithoutDocument(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, err := zw.Create("word/styles.xml")
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = New().Extract(context.Background(), buf.Bytes(), "empty.docx")
	assert.ErrorIs(t, err, entities.ErrExtraction)
}

func TestExtract_CorruptFiles(t *testing.T) {
	e := New()
	_, err := e.Extract(context.Background(), []byte("not a zip"), "broken.docx")
	assert.ErrorIs(t, err, entities.ErrExtraction)

	_, err = e.Extract(context.Background(), []byte("not a pdf"), "broken.pdf")
	assert.ErrorIs(t, err, entities.ErrExtraction)
}

func TestExtract_PlainTextDropsInvalidUTF8(t *testing.T) {
	text, err := New().Extract(context.Background(), []byte("net \xff30 days"), "terms.txt")
	require.NoError(t, err)
	assert.Equal(t, "net 30 days", text)
}

func TestExtract_UnknownExtensionReadAsText(t *testing.T) {
	text, err := New().Extract(context.Background(), []byte("scope of work"), "notes.rtf")
	require.NoError(t, err)
	assert.Equal(t, "scope of work", text)
}

func TestExtract_Clip(t *testing.T) {
	e := &Extractor{maxRunes: 5}
	text, err := e.Extract(context.Background(), []byte("héllo wörld"), "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "héllo", text)

	full, err := New().Extract(context.Background(), []byte(strings.Repeat("a", MaxRunes+10)), "big.txt")
	require.NoError(t, err)
	assert.Len(t, full, MaxRunes)
}

func TestExtract_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().Extract(ctx, []byte("x"), "a.txt")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "acme_sow.txt")
	require.NoError(t, os.WriteFile(path, []byte("Hello World"), 0644))

	doc, err := New().LoadFile(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "Hello World", doc.Content)
	assert.Equal(t, "acme_sow.txt", doc.Name)
	assert.Equal(t, entities.DocumentTypeSOW, doc.Type)
	assert.Len(t, doc.ID, 16)

	again, err := New().LoadFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, again.ID)
}

func TestLoadFile_Nonexistent(t *testing.T) {
	_, err := New().LoadFile(context.Background(), "/nonexistent/file.txt")
	assert.Error(t, err)
}

func TestSupports(t *testing.T) {
	e := New()
	assert.True(t, e.Supports("A.PDF"))
	assert.True(t, e.Supports("b.docx"))
	assert.True(t, e.Supports("c.txt"))
	assert.False(t, e.Supports("d.exe"))
	assert.False(t, e.Supports("noext"))
}
