// Package chunker splits document text into fixed-size overlapping segments
// suitable for embedding. Sizes are measured in runes so multi-byte text
// never splits mid-character.
package chunker

import "fmt"

// Chunk is one segment of a document, with its rune offset for provenance.
type Chunk struct {
	Index  int    // ordinal position in the document (0, 1, 2...)
	Offset int    // rune offset of the chunk start in the source text
	Text   string // segment content
}

// Chunker produces overlapping fixed-size chunks.
type Chunker struct {
	size    int
	overlap int
}

// New creates a Chunker. Requires 0 < overlap < size.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap <= 0 || overlap >= size {
		return nil, fmt.Errorf("overlap must be in (0, size), got overlap=%d size=%d", overlap, size)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Split cuts text into ordered chunks covering every rune at least once.
// Consecutive chunks overlap by exactly the configured overlap; the final
// chunk may be shorter than the target size. Empty text yields no chunks.
func (c *Chunker) Split(text string) []Chunk {
	if text == "" {
		return nil
	}

	runes := []rune(text)
	step := c.size - c.overlap

	var chunks []Chunk
	for start := 0; ; start += step {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, Chunk{
			Index:  len(chunks),
			Offset: start,
			Text:   string(runes[start:end]),
		})
		if end == len(runes) {
			break
		}
	}
	return chunks
}
