// Package extractor turns uploaded PDF, DOCX and plain text files into text.
// Extraction is best effort; the result is clipped to MaxRunes.
package extractor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/0xcro3dile/contractrag/internal/domain/entities"
	"github.com/0xcro3dile/contractrag/internal/domain/ports"
)

var _ ports.TextExtractor = (*Extractor)(nil)

// MaxRunes caps the text kept from any single file.
const MaxRunes = 250_000

// Extractor dispatches on the file extension. Unknown extensions are read
// as UTF-8 text with invalid bytes dropped.
type Extractor struct {
	maxRunes int
}

// New creates an extractor with the default clip.
func New() *Extractor {
	return &Extractor{maxRunes: MaxRunes}
}

// SupportedExtensions lists the extensions with a dedicated decoder.
func (e *Extractor) SupportedExtensions() []string {
	return []string{".pdf", ".docx", ".txt", ".md", ".markdown"}
}

// Supports reports whether filename has a dedicated decoder.
func (e *Extractor) Supports(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, s := range e.SupportedExtensions() {
		if s == ext {
			return true
		}
	}
	return false
}

// Extract returns the text of data. Corrupt PDF or DOCX payloads fail
// with entities.ErrExtraction.
func (e *Extractor) Extract(ctx context.Context, data []byte, filename string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var (
		text string
		err  error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		text, err = extractPDF(data)
	case ".docx":
		text, err = extractDOCX(data)
	default:
		text = strings.ToValidUTF8(string(data), "")
	}
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", entities.ErrExtraction, filename, err)
	}

	return clip(text, e.maxRunes), nil
}

// clip keeps at most limit runes.
func clip(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
