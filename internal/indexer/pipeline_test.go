package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/campaign-scribe/internal/chunker"
	"github.com/bull/campaign-scribe/internal/library"
	"github.com/bull/campaign-scribe/internal/markdown"
	"github.com/bull/campaign-scribe/internal/vectorindex"
)

// fakeEmbedder returns deterministic vectors: one per text, dimension 3.
type fakeEmbedder struct {
	calls int
	fail  map[int]bool // fail the nth call
}

func (f *fakeEmbedder) GenerateEmbeddings(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.fail[f.calls] {
		return nil, errors.New("embedding provider down")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(len(texts[i])), float32(i), 1}
	}
	return out, nil
}

func writeDoc(t *testing.T, root, rel, content string) {
	t.Helper()
	abs := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
}

func newPipeline(t *testing.T, root string, embedder Embedder) (*Pipeline, *vectorindex.Index, string) {
	t.Helper()
	ch, err := chunker.New(100, 20)
	require.NoError(t, err)
	idx := vectorindex.New(vectorindex.Cosine)
	indexPath := filepath.Join(t.TempDir(), "index.json")
	p := NewPipeline(library.New(root), ch, markdown.NewExtractor(), embedder, idx, indexPath, nil)
	return p, idx, indexPath
}

func TestIndexAll_BuildsAndPersists(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "rules/combat.md", "# Combat\n\nInitiative and attack rolls explained in detail.")
	writeDoc(t, root, "adventures/heist.txt", "The crew cases the warehouse by the docks.")

	p, idx, indexPath := newPipeline(t, root, &fakeEmbedder{})
	result, err := p.IndexAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalDocs)
	assert.Equal(t, 2, result.SuccessfulDocs)
	assert.Empty(t, result.FailedDocs)
	assert.Equal(t, idx.Len(), result.TotalChunks)
	assert.Greater(t, idx.Len(), 0)

	// Entries carry provenance.
	hits, err := idx.Query([]float32{1, 0, 1}, idx.Len())
	require.NoError(t, err)
	byDoc := map[string]int{}
	for _, h := range hits {
		byDoc[h.Entry.DocumentID]++
		assert.NotEmpty(t, h.Entry.ChunkID)
		assert.NotEmpty(t, h.Entry.Text)
	}
	assert.Contains(t, byDoc, "rules/combat.md")
	assert.Contains(t, byDoc, "adventures/heist.txt")

	// Markdown chunks are labeled with their section.
	for _, h := range hits {
		if h.Entry.DocumentID == "rules/combat.md" {
			assert.Equal(t, "Combat", h.Entry.Section)
			assert.Equal(t, "rule", h.Entry.Category)
		}
		if h.Entry.DocumentID == "adventures/heist.txt" {
			assert.Empty(t, h.Entry.Section, "plain text has no outline")
			assert.Equal(t, "adventure", h.Entry.Category)
		}
	}

	// Index was persisted and round-trips.
	loaded, err := vectorindex.Load(indexPath)
	require.NoError(t, err)
	assert.Equal(t, idx.Len(), loaded.Len())
}

func TestIndexAll_FailedDocumentIsSkipped(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "a.md", "# First\n\nFirst document body.")
	writeDoc(t, root, "b.md", "# Second\n\nSecond document body.")

	// First embedding call fails; a.md sorts first, so it is the casualty.
	p, idx, _ := newPipeline(t, root, &fakeEmbedder{fail: map[int]bool{1: true}})
	result, err := p.IndexAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalDocs)
	assert.Equal(t, 1, result.SuccessfulDocs)
	require.Len(t, result.FailedDocs, 1)
	assert.Equal(t, "a.md", result.FailedDocs[0].ID)
	assert.Contains(t, result.FailedDocs[0].Reason, "embedding")
	assert.Greater(t, idx.Len(), 0, "surviving document is indexed")
}

func TestIndexAll_EmptyDocumentYieldsNoChunks(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "empty.txt", "")
	writeDoc(t, root, "real.txt", "Actual content worth indexing.")

	p, idx, _ := newPipeline(t, root, &fakeEmbedder{})
	result, err := p.IndexAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.SuccessfulDocs, "empty document is not an error")
	assert.Equal(t, idx.Len(), result.TotalChunks)
}
