// Package entities contains core business entities.
// These are the enterprise business rules - pure domain objects with no external dependencies.
package entities

import (
	"path/filepath"
	"strings"
	"time"
)

// DocumentType tags what kind of contract a document is.
type DocumentType string

const (
	DocumentTypeSOW   DocumentType = "SOW"
	DocumentTypeMSA   DocumentType = "MSA"
	DocumentTypeRFQ   DocumentType = "RFQ"
	DocumentTypeOther DocumentType = "OTHER"
)

// ParseDocumentType normalizes a user supplied tag. Unknown tags map to OTHER.
func ParseDocumentType(s string) DocumentType {
	switch DocumentType(strings.ToUpper(strings.TrimSpace(s))) {
	case DocumentTypeSOW:
		return DocumentTypeSOW
	case DocumentTypeMSA:
		return DocumentTypeMSA
	case DocumentTypeRFQ:
		return DocumentTypeRFQ
	default:
		return DocumentTypeOther
	}
}

// InferDocumentType guesses the type from a filename such as "acme_msa_2024.pdf".
func InferDocumentType(filename string) DocumentType {
	base := strings.ToLower(strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename)))
	fields := strings.FieldsFunc(base, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	for _, f := range fields {
		switch f {
		case "sow", "statement":
			return DocumentTypeSOW
		case "msa", "master":
			return DocumentTypeMSA
		case "rfq", "rfp":
			return DocumentTypeRFQ
		}
	}
	return DocumentTypeOther
}

// Document represents an ingested source text (SOW, MSA, ...).
// Immutable once stored; it only exists as the source of its chunks.
type Document struct {
	ID        string
	Name      string
	Type      DocumentType
	Content   string
	CreatedAt time.Time
}

// Chunk is a contiguous slice of a document's text and its embedding.
type Chunk struct {
	ID         string
	DocumentID string
	Content    string
	Index      int               // Position in document
	Embedding  []float32         // Populated by the embedding adapter
	Metadata   map[string]string // document_type, filename, total_chunks
}

// Chunk metadata keys.
const (
	MetaDocumentType = "document_type"
	MetaFilename     = "filename"
	MetaTotalChunks  = "total_chunks"
)

// Filename returns the originating filename, falling back to the document ID.
func (c Chunk) Filename() string {
	if name := c.Metadata[MetaFilename]; name != "" {
		return name
	}
	return c.DocumentID
}

// QueryResult is one ranked hit of a similarity search.
type QueryResult struct {
	Chunk Chunk
	Score float64 // Cosine similarity
}

// CorpusStats summarizes the knowledge store.
type CorpusStats struct {
	ChunkCount    int   `json:"chunkCount"`
	DocumentCount int   `json:"documentCount"`
	ApproxBytes   int64 `json:"approxBytes"`
}
