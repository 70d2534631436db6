package embedding

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/0xcro3dile/contractrag/internal/domain/entities"
	"github.com/0xcro3dile/contractrag/internal/domain/ports"
)

var _ ports.EmbeddingService = (*Handle)(nil)

// Loader constructs the underlying model. It runs at most once per successful load.
type Loader func(ctx context.Context) (ports.EmbeddingService, error)

// ErrHandleClosed is returned after the last reference is released.
var ErrHandleClosed = errors.New("embedding handle closed")

// Handle owns a single embedding model instance. The model is loaded lazily
// on first use and shared by every holder of the handle. Holders call
// Retain/Release; when the count drops to zero the model is closed.
//
// A failed load is not cached, so the next call tries again.
type Handle struct {
	dimensions int
	load       Loader

	mu   sync.Mutex
	svc  ports.EmbeddingService
	refs int
}

// NewHandle creates a handle with one reference held by the caller.
func NewHandle(dimensions int, load Loader) *Handle {
	return &Handle{dimensions: dimensions, load: load, refs: 1}
}

// Retain adds a reference and returns the handle for chaining.
func (h *Handle) Retain() *Handle {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.refs > 0 {
		h.refs++
	}
	return h
}

// Release drops a reference, closing the model with the last one.
func (h *Handle) Release() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.refs == 0 {
		return nil
	}
	h.refs--
	if h.refs > 0 || h.svc == nil {
		return nil
	}
	svc := h.svc
	h.svc = nil
	if c, ok := svc.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Loaded reports whether the model has been constructed.
func (h *Handle) Loaded() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.svc != nil
}

// Dimensions returns the configured vector length.
func (h *Handle) Dimensions() int {
	return h.dimensions
}

// Embed embeds one text through the shared model.
func (h *Handle) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := h.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts and checks every vector has the configured length.
func (h *Handle) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	svc, err := h.model(ctx)
	if err != nil {
		return nil, err
	}

	vecs, err := svc.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("embedding model returned %d vectors for %d texts", len(vecs), len(texts))
	}
	for i, v := range vecs {
		if len(v) != h.dimensions {
			return nil, fmt.Errorf("%w: embedding %d has %d dimensions, want %d",
				entities.ErrConfiguration, i, len(v), h.dimensions)
		}
	}
	return vecs, nil
}

// model returns the loaded service. The lock is held during loading so
// concurrent first callers share one load.
func (h *Handle) model(ctx context.Context) (ports.EmbeddingService, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.refs == 0 {
		return nil, fmt.Errorf("%w: %w", entities.ErrModelUnavailable, ErrHandleClosed)
	}
	if h.svc != nil {
		return h.svc, nil
	}

	svc, err := h.load(ctx)
	if err != nil {
		if errors.Is(err, entities.ErrModelUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: loading embedding model: %w", entities.ErrModelUnavailable, err)
	}
	h.svc = svc
	return svc, nil
}
