package summarize

import (
	"fmt"
	"slices"
	"strings"

	"github.com/maraichr/reviewlens/pkg/models"
)

// DefaultChunkSize is the number of reviews summarized per completion call.
const DefaultChunkSize = 20

// Chunk partitions items into contiguous groups of size, preserving order.
// The last group may be shorter. Empty input yields no groups. Chunk panics
// if size is less than 1.
func Chunk[T any](items []T, size int) [][]T {
	if size < 1 {
		panic(fmt.Sprintf("summarize: chunk size must be positive, got %d", size))
	}
	return slices.Collect(slices.Chunk(items, size))
}

// RenderChunk formats a chunk's reviews as one prompt body: one
// identifier-prefixed line per review, separated by blank lines.
func RenderChunk(chunk []models.Review) string {
	lines := make([]string, len(chunk))
	for i, r := range chunk {
		lines[i] = fmt.Sprintf("리뷰 %s: %s", r.ID, r.Content)
	}
	return strings.Join(lines, "\n\n")
}
