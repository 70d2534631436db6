// Package chunker splits document text into overlapping segments for embedding.
package chunker

import (
	"fmt"
	"iter"
	"unicode"

	"github.com/0xcro3dile/contractrag/internal/domain/entities"
)

// Defaults sized for contract clauses.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Segment is one chunk of text. Start and End are rune offsets into the source.
type Segment struct {
	Index int
	Start int
	End   int
	Text  string
}

// Splitter cuts text into segments of at most Size runes.
// Neighbouring segments share up to Overlap runes.
type Splitter struct {
	size    int
	overlap int
}

// New validates the sizes. overlap must be strictly smaller than size,
// otherwise splitting could not make progress.
func New(size, overlap int) (*Splitter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", entities.ErrConfiguration, size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: chunk overlap must not be negative, got %d", entities.ErrConfiguration, overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("%w: chunk overlap %d must be smaller than chunk size %d", entities.ErrConfiguration, overlap, size)
	}
	return &Splitter{size: size, overlap: overlap}, nil
}

// Split lazily yields the segments of text. The sequence can be ranged over
// any number of times.
//
// Segments follow a fixed schedule of nominal starts spaced Size-Overlap
// apart. A segment may start up to Overlap runes early and end anywhere
// between the next nominal start and Start+Size, and both cuts prefer
// whitespace. Without whitespace the cuts fall on the schedule. This keeps
// full coverage and at most ceil(len/(Size-Overlap)) segments.
func (s *Splitter) Split(text string) iter.Seq[Segment] {
	return func(yield func(Segment) bool) {
		runes := []rune(text)
		n := len(runes)
		if n == 0 {
			return
		}

		step := s.size - s.overlap
		prevStart := -1
		for index, nominal := 0, 0; ; index, nominal = index+1, nominal+step {
			start := nominal
			if index > 0 {
				lo := max(nominal-s.overlap, prevStart+1, 0)
				start = lastBoundary(runes, lo, nominal)
			}

			end := start + s.size
			if end >= n {
				end = n
			} else {
				end = lastBoundary(runes, nominal+step, end)
			}

			if !yield(Segment{Index: index, Start: start, End: end, Text: string(runes[start:end])}) {
				return
			}
			if end == n {
				return
			}
			prevStart = start
		}
	}
}

// lastBoundary returns the largest word boundary in [lo, hi], or hi if there is none.
func lastBoundary(runes []rune, lo, hi int) int {
	for j := hi; j >= lo; j-- {
		if isBoundary(runes, j) {
			return j
		}
	}
	return hi
}

func isBoundary(runes []rune, j int) bool {
	if j <= 0 || j >= len(runes) {
		return true
	}
	return unicode.IsSpace(runes[j-1]) || unicode.IsSpace(runes[j])
}
