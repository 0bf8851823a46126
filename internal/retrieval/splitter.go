package retrieval

import (
	"context"
	"errors"
	"unicode/utf8"

	"github.com/cloudwego/eino-ext/components/document/transformer/splitter/recursive"
	"github.com/cloudwego/eino/components/document"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// paragraph, then line, then word boundaries
var defaultSeparators = []string{"\n\n", "\n", " "}

// NewSplitter builds the recursive chunker used at ingestion time. Sizes are
// measured in characters and overlap must be smaller than size.
func NewSplitter(ctx context.Context, size, overlap int) (document.Transformer, error) {
	if size <= 0 {
		return nil, errors.New("chunk size must be positive")
	}
	if overlap < 0 || overlap >= size {
		return nil, errors.New("chunk overlap must be in [0, size)")
	}
	return recursive.NewSplitter(ctx, &recursive.Config{
		ChunkSize:   size,
		OverlapSize: overlap,
		Separators:  defaultSeparators,
		LenFunc:     utf8.RuneCountInString,
		KeepType:    recursive.KeepTypeEnd,
	})
}
