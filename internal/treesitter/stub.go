//go:build !cgo

package treesitter

import (
	"context"

	"github.com/rohankatakam/changeminer/internal/errors"
	"github.com/rohankatakam/changeminer/internal/models"
)

// Extractor is unavailable without cgo
type Extractor struct{}

// NewExtractor creates an extractor that always fails
func NewExtractor() *Extractor { return &Extractor{} }

// IsAvailable reports whether tree-sitter extraction is compiled in
func IsAvailable() bool { return false }

// Extract fails for supported languages; build with CGO_ENABLED=1
func (e *Extractor) Extract(ctx context.Context, path string, source []byte) ([]models.MethodDescriptor, error) {
	if _, ok := DetectLanguage(path); !ok {
		return nil, nil
	}
	return nil, errors.ConfigErrorf("method extraction for %s requires a cgo build", path)
}
