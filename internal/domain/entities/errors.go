package entities

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration covers bad chunk sizes and vector dimension mismatches.
	// Never retried.
	ErrConfiguration = errors.New("configuration error")

	// ErrModelUnavailable means an embedding or generative model could not be reached.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrMalformedModelOutput means the model response could not be parsed, even after repair.
	ErrMalformedModelOutput = errors.New("malformed model output")

	// ErrInvalidInput indicates missing or blank caller input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrEmptyDocument is returned when a document has no text to ingest.
	ErrEmptyDocument = errors.New("document has no text")

	// ErrDuplicateDocument means a document with the same ID is already
	// stored. Stored documents are never replaced.
	ErrDuplicateDocument = errors.New("document already stored")

	// ErrExtraction means an uploaded file could not be turned into text.
	ErrExtraction = errors.New("text extraction failed")
)

// IngestionError is a batch-level ingestion failure. Nothing from the batch was stored.
type IngestionError struct {
	DocumentID string
	ChunkCount int // chunks that would have been added
	Err        error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingesting document %s (%d chunks): %v", e.DocumentID, e.ChunkCount, e.Err)
}

func (e *IngestionError) Unwrap() error { return e.Err }

// MalformedOutputError keeps the raw model text for operator diagnosis.
type MalformedOutputError struct {
	Raw string
	Err error
}

func (e *MalformedOutputError) Error() string {
	if e.Err == nil {
		return ErrMalformedModelOutput.Error()
	}
	return fmt.Sprintf("%v: %v", ErrMalformedModelOutput, e.Err)
}

func (e *MalformedOutputError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrMalformedModelOutput}
	}
	return []error{ErrMalformedModelOutput, e.Err}
}

// AnalysisError is the single structured failure of an analysis request.
type AnalysisError struct {
	State AnalysisState   // stage that failed
	Trace []AnalysisState // states visited, ending in StateFailed
	Err   error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis failed while %s: %v", e.State, e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }
