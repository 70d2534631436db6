package entities

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInferDocumentType(t *testing.T) {
	tests := []struct {
		filename string
		want     DocumentType
	}{
		{"acme_msa_2024.pdf", DocumentTypeMSA},
		{"Globex-SOW-phase2.docx", DocumentTypeSOW},
		{"rfq.txt", DocumentTypeRFQ},
		{"notes.txt", DocumentTypeOther},
		{"/tmp/uploads/master_services.pdf", DocumentTypeMSA},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.want, InferDocumentType(tt.filename))
		})
	}
}

func TestParseDocumentType(t *testing.T) {
	assert.Equal(t, DocumentTypeSOW, ParseDocumentType(" sow "))
	assert.Equal(t, DocumentTypeMSA, ParseDocumentType("MSA"))
	assert.Equal(t, DocumentTypeOther, ParseDocumentType("invoice"))
}

func TestParseRiskLevel(t *testing.T) {
	lvl, ok := ParseRiskLevel("HIGH")
	assert.True(t, ok)
	assert.Equal(t, RiskHigh, lvl)

	_, ok = ParseRiskLevel("critical")
	assert.False(t, ok)
}

func TestChunk_Filename(t *testing.T) {
	c := Chunk{DocumentID: "doc-1"}
	assert.Equal(t, "doc-1", c.Filename())

	c.Metadata = map[string]string{MetaFilename: "msa.pdf"}
	assert.Equal(t, "msa.pdf", c.Filename())
}

func TestErrors_Unwrap(t *testing.T) {
	ingestErr := &IngestionError{DocumentID: "d", ChunkCount: 3, Err: ErrModelUnavailable}
	assert.ErrorIs(t, ingestErr, ErrModelUnavailable)
	assert.Contains(t, ingestErr.Error(), "3 chunks")

	malformed := &MalformedOutputError{Raw: "nope", Err: errors.New("no json")}
	assert.ErrorIs(t, malformed, ErrMalformedModelOutput)

	analysisErr := &AnalysisError{State: StateValidatingResponse, Err: malformed}
	assert.ErrorIs(t, analysisErr, ErrMalformedModelOutput)

	var target *MalformedOutputError
	assert.ErrorAs(t, analysisErr, &target)
	assert.Equal(t, "nope", target.Raw)
}
