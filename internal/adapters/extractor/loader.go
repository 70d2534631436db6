package extractor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/0xcro3dile/contractrag/internal/domain/entities"
)

// LoadFile reads and extracts a document from disk. The document ID is
// derived from the path, and the type is inferred from the file name.
func (e *Extractor) LoadFile(ctx context.Context, path string) (*entities.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	text, err := e.Extract(ctx, data, path)
	if err != nil {
		return nil, err
	}

	name := filepath.Base(path)
	return &entities.Document{
		ID:        generateDocID(path),
		Name:      name,
		Type:      entities.InferDocumentType(name),
		Content:   text,
		CreatedAt: info.ModTime(),
	}, nil
}

// generateDocID creates a deterministic ID for a document path.
func generateDocID(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	hash := sha256.Sum256([]byte(path))
	return hex.EncodeToString(hash[:8])
}
