// Package indexer orchestrates the build-time pipeline: library documents
// are outlined, chunked, embedded, and inserted into the vector index.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bull/campaign-scribe/internal/chunker"
	"github.com/bull/campaign-scribe/internal/library"
	"github.com/bull/campaign-scribe/internal/markdown"
	"github.com/bull/campaign-scribe/internal/vectorindex"
)

// Embedder is the embedding surface the pipeline needs.
// Implemented by embedding.Embedder.
type Embedder interface {
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// IndexResult contains statistics about an indexing operation.
type IndexResult struct {
	TotalDocs      int
	TotalChunks    int
	SuccessfulDocs int
	FailedDocs     []FailedDoc
	Duration       time.Duration
}

// FailedDoc represents a document that failed to index.
type FailedDoc struct {
	ID     string
	Reason string
}

// Pipeline orchestrates the full indexing process from loading to persistence.
type Pipeline struct {
	library   *library.Library
	chunker   *chunker.Chunker
	extractor *markdown.Extractor
	embedder  Embedder
	index     *vectorindex.Index
	indexPath string
	logger    *slog.Logger
}

// NewPipeline creates an indexing pipeline with the given components.
// The index is persisted to indexPath after a successful run.
func NewPipeline(
	lib *library.Library,
	ch *chunker.Chunker,
	extractor *markdown.Extractor,
	embedder Embedder,
	index *vectorindex.Index,
	indexPath string,
	logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		library:   lib,
		chunker:   ch,
		extractor: extractor,
		embedder:  embedder,
		index:     index,
		indexPath: indexPath,
		logger:    logger,
	}
}

// IndexAll indexes every document in the library and persists the index.
// Unreadable or unembeddable documents are recorded and skipped; the run
// continues with the rest.
func (p *Pipeline) IndexAll(ctx context.Context) (*IndexResult, error) {
	start := time.Now()
	result := &IndexResult{}

	ids, err := p.library.List()
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	result.TotalDocs = len(ids)
	p.logger.Info("Starting indexing", "documents", len(ids))

	for _, id := range ids {
		chunks, err := p.processDocument(ctx, id)
		if err != nil {
			p.logger.Warn("Failed to index document", "document", id, "error", err)
			result.FailedDocs = append(result.FailedDocs, FailedDoc{
				ID:     id,
				Reason: err.Error(),
			})
			continue
		}
		result.SuccessfulDocs++
		result.TotalChunks += chunks
	}

	if err := p.index.Save(p.indexPath); err != nil {
		return nil, fmt.Errorf("persist index: %w", err)
	}

	result.Duration = time.Since(start)
	p.logger.Info("Indexing complete",
		"successful", result.SuccessfulDocs,
		"failed", len(result.FailedDocs),
		"chunks", result.TotalChunks,
		"duration", result.Duration,
	)

	return result, nil
}

// processDocument handles the full pipeline for a single document.
// Returns the number of chunks inserted for the document.
func (p *Pipeline) processDocument(ctx context.Context, id string) (int, error) {
	doc, err := p.library.Load(id)
	if err != nil {
		return 0, fmt.Errorf("load: %w", err)
	}

	// Markdown documents get a section label per chunk for citations.
	outline := &markdown.Outline{}
	if doc.IsMarkdown() {
		outline, err = p.extractor.Extract([]byte(doc.Text))
		if err != nil {
			return 0, fmt.Errorf("outline: %w", err)
		}
	}

	chunks := p.chunker.Split(doc.Text)
	if len(chunks) == 0 {
		p.logger.Debug("Skipping empty document", "document", id)
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	embeddings, err := p.embedder.GenerateEmbeddings(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embeddings: %w", err)
	}

	for i, ch := range chunks {
		entry := vectorindex.Entry{
			ChunkID:    uuid.New().String(),
			DocumentID: doc.ID,
			Position:   ch.Index,
			Section:    outline.SectionAt(ch.Offset),
			Category:   string(doc.Category),
			Text:       ch.Text,
			Vector:     embeddings[i],
		}
		if err := p.index.Insert(entry); err != nil {
			return 0, fmt.Errorf("insert chunk %d: %w", ch.Index, err)
		}
	}

	p.logger.Info("Indexed document", "document", id, "chunks", len(chunks))
	return len(chunks), nil
}
