// Package rag answers natural-language questions against the indexed
// library: embed the question, find the nearest chunks, assemble a bounded
// context string with source references for citation.
package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bull/campaign-scribe/internal/vectorindex"
)

// ErrNoResults is returned only when the index holds no entries at all.
// Low-relevance results are still returned; thresholding is a non-goal.
var ErrNoResults = errors.New("vector index is empty")

// DefaultTopK is the number of chunks retrieved when the caller passes 0.
const DefaultTopK = 5

// DefaultMaxContextChars bounds the assembled context string.
const DefaultMaxContextChars = 6000

// Embedder turns text into vectors. Implemented by embedding.Embedder.
type Embedder interface {
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// Completer produces free-text answers. Implemented by generation.Client.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// SourceRef cites one retrieved chunk.
type SourceRef struct {
	ChunkID    string
	DocumentID string
	Position   int
	Section    string
	Distance   float64
	Text       string
}

// Context is the assembled retrieval result handed to a generation call.
type Context struct {
	Text    string
	Sources []SourceRef
}

// Service is the RAG query service.
type Service struct {
	embedder        Embedder
	index           *vectorindex.Index
	completer       Completer
	topK            int
	maxContextChars int
	logger          *slog.Logger
}

// NewService creates a Service. completer may be nil when only Retrieve is
// used. Zero topK/maxContextChars select the defaults.
func NewService(embedder Embedder, index *vectorindex.Index, completer Completer, topK, maxContextChars int, logger *slog.Logger) *Service {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if maxContextChars <= 0 {
		maxContextChars = DefaultMaxContextChars
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		embedder:        embedder,
		index:           index,
		completer:       completer,
		topK:            topK,
		maxContextChars: maxContextChars,
		logger:          logger,
	}
}

// Retrieve embeds the question and returns the nearest chunks as one context
// string plus ordered source references. Chunks are deduplicated by document
// (the nearest chunk per document wins) and the context is truncated at the
// configured bound, always keeping at least one chunk. An empty category
// means no filter.
func (s *Service) Retrieve(ctx context.Context, question string, k int, category string) (*Context, error) {
	if s.index.Len() == 0 {
		return nil, ErrNoResults
	}
	if k <= 0 {
		k = s.topK
	}

	vectors, err := s.embedder.GenerateEmbeddings(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	var match func(*vectorindex.Entry) bool
	if category != "" {
		match = func(e *vectorindex.Entry) bool { return e.Category == category }
	}

	// Over-fetch so document dedup still yields k distinct sources.
	results, err := s.index.QueryFiltered(vectors[0], k*3, match)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	var (
		parts   []string
		sources []SourceRef
		seen    = make(map[string]bool)
		total   int
	)
	for _, r := range results {
		if seen[r.Entry.DocumentID] {
			continue
		}
		seen[r.Entry.DocumentID] = true

		part := formatChunk(&r.Entry)
		if len(sources) > 0 && total+len(part) > s.maxContextChars {
			break
		}
		parts = append(parts, part)
		total += len(part)
		sources = append(sources, SourceRef{
			ChunkID:    r.Entry.ChunkID,
			DocumentID: r.Entry.DocumentID,
			Position:   r.Entry.Position,
			Section:    r.Entry.Section,
			Distance:   r.Distance,
			Text:       r.Entry.Text,
		})
		if len(sources) == k {
			break
		}
	}

	s.logger.Debug("Retrieved context", "question_chars", len(question),
		"sources", len(sources), "context_chars", total)

	return &Context{
		Text:    strings.Join(parts, "\n\n"),
		Sources: sources,
	}, nil
}

// answerSystemPrompt mirrors the tone of the tool: rules answers only, cited.
const answerSystemPrompt = "You are a tabletop RPG game assistant. Answer the " +
	"user's question using only the rules excerpts provided. Cite the source " +
	"document and section for every claim. If the excerpts do not settle the " +
	"question, say so."

// Answer retrieves context for the question and asks the generation model
// for a cited answer.
func (s *Service) Answer(ctx context.Context, question string, k int) (string, *Context, error) {
	if s.completer == nil {
		return "", nil, fmt.Errorf("no generation client configured")
	}

	retrieved, err := s.Retrieve(ctx, question, k, "")
	if err != nil {
		return "", nil, err
	}

	user := fmt.Sprintf("%s\n\nRelevant rules:\n%s", question, retrieved.Text)
	answer, err := s.completer.Complete(ctx, answerSystemPrompt, user)
	if err != nil {
		return "", nil, fmt.Errorf("generate answer: %w", err)
	}
	return answer, retrieved, nil
}

// formatChunk renders one chunk for the context string with its provenance
// header, e.g. "rules/core.md [Combat > Attacks]".
func formatChunk(e *vectorindex.Entry) string {
	if e.Section == "" {
		return fmt.Sprintf("%s\n%s", e.DocumentID, e.Text)
	}
	return fmt.Sprintf("%s [%s]\n%s", e.DocumentID, e.Section, e.Text)
}
