// Package tokens measures prompt sizes.
package tokens

import (
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"github.com/0xcro3dile/contractrag/internal/domain/ports"
)

var (
	_ ports.TokenCounter = (*Counter)(nil)
	_ ports.TokenCounter = Estimator{}
)

// Encoding is the BPE used for counting.
const Encoding = "cl100k_base"

// Counter counts tokens with tiktoken.
type Counter struct {
	encoding *tiktoken.Tiktoken
}

// NewCounter loads the cl100k_base encoding. The BPE ranks are fetched
// on first use and cached by tiktoken-go, so this can fail offline.
func NewCounter() (*Counter, error) {
	encoding, err := tiktoken.GetEncoding(Encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to get tiktoken encoding: %w", err)
	}
	return &Counter{encoding: encoding}, nil
}

// CountTokens returns the exact token count of text.
func (c *Counter) CountTokens(text string) int {
	return len(c.encoding.Encode(text, nil, nil))
}

// Estimator approximates four runes per token. Used when the encoding
// cannot be loaded.
type Estimator struct{}

// CountTokens returns a rough token count, at least one for non-empty text.
func (Estimator) CountTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}

// New returns a tiktoken counter, falling back to Estimator.
func New(logger *slog.Logger) ports.TokenCounter {
	counter, err := NewCounter()
	if err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("tiktoken unavailable, estimating tokens from length", "error", err)
		return Estimator{}
	}
	return counter
}
