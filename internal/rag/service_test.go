package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/campaign-scribe/internal/vectorindex"
)

// fakeEmbedder returns a fixed vector for any input.
type fakeEmbedder struct {
	vector []float32
	err    error
}

func (f *fakeEmbedder) GenerateEmbeddings(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, nil
}

// fakeCompleter records the prompt and returns a canned answer.
type fakeCompleter struct {
	lastUser string
	answer   string
}

func (f *fakeCompleter) Complete(_ context.Context, _, user string) (string, error) {
	f.lastUser = user
	return f.answer, nil
}

func buildIndex(t *testing.T, entries ...vectorindex.Entry) *vectorindex.Index {
	t.Helper()
	idx := vectorindex.New(vectorindex.Euclidean)
	for _, e := range entries {
		require.NoError(t, idx.Insert(e))
	}
	return idx
}

func TestRetrieve_EmptyIndex(t *testing.T) {
	svc := NewService(&fakeEmbedder{vector: []float32{0, 0}}, vectorindex.New(vectorindex.Cosine), nil, 0, 0, nil)

	_, err := svc.Retrieve(context.Background(), "how does stealth work?", 3, "")
	assert.True(t, errors.Is(err, ErrNoResults))
}

func TestRetrieve_NearestFirstWithSources(t *testing.T) {
	idx := buildIndex(t,
		vectorindex.Entry{ChunkID: "c-far", DocumentID: "rules/gear.md", Category: "rule",
			Section: "Gear", Text: "gear text", Vector: []float32{0.9, 0}},
		vectorindex.Entry{ChunkID: "c-near", DocumentID: "rules/combat.md", Category: "rule",
			Section: "Combat > Attacks", Text: "attack text", Vector: []float32{0.1, 0}},
	)
	svc := NewService(&fakeEmbedder{vector: []float32{0, 0}}, idx, nil, 0, 0, nil)

	got, err := svc.Retrieve(context.Background(), "attacks?", 2, "")
	require.NoError(t, err)

	require.Len(t, got.Sources, 2)
	assert.Equal(t, "c-near", got.Sources[0].ChunkID)
	assert.Equal(t, "c-far", got.Sources[1].ChunkID)

	// Context is nearest-first and carries provenance headers.
	nearPos := strings.Index(got.Text, "rules/combat.md [Combat > Attacks]")
	farPos := strings.Index(got.Text, "rules/gear.md [Gear]")
	require.GreaterOrEqual(t, nearPos, 0)
	require.GreaterOrEqual(t, farPos, 0)
	assert.Less(t, nearPos, farPos)
}

func TestRetrieve_DeduplicatesByDocument(t *testing.T) {
	idx := buildIndex(t,
		vectorindex.Entry{ChunkID: "c1", DocumentID: "rules/core.md", Category: "rule",
			Text: "nearest core chunk", Vector: []float32{0.1, 0}},
		vectorindex.Entry{ChunkID: "c2", DocumentID: "rules/core.md", Category: "rule",
			Text: "second core chunk", Vector: []float32{0.2, 0}},
		vectorindex.Entry{ChunkID: "c3", DocumentID: "rules/gear.md", Category: "rule",
			Text: "gear chunk", Vector: []float32{0.3, 0}},
	)
	svc := NewService(&fakeEmbedder{vector: []float32{0, 0}}, idx, nil, 0, 0, nil)

	got, err := svc.Retrieve(context.Background(), "q", 3, "")
	require.NoError(t, err)

	require.Len(t, got.Sources, 2, "same-document chunk deduplicated")
	assert.Equal(t, "c1", got.Sources[0].ChunkID, "nearest chunk per document wins")
	assert.Equal(t, "c3", got.Sources[1].ChunkID)
}

func TestRetrieve_CategoryFilter(t *testing.T) {
	idx := buildIndex(t,
		vectorindex.Entry{ChunkID: "r", DocumentID: "rules/core.md", Category: "rule",
			Text: "rule", Vector: []float32{0.1, 0}},
		vectorindex.Entry{ChunkID: "a", DocumentID: "adventures/heist.md", Category: "adventure",
			Text: "adventure", Vector: []float32{0.5, 0}},
	)
	svc := NewService(&fakeEmbedder{vector: []float32{0, 0}}, idx, nil, 0, 0, nil)

	got, err := svc.Retrieve(context.Background(), "q", 5, "adventure")
	require.NoError(t, err)
	require.Len(t, got.Sources, 1)
	assert.Equal(t, "a", got.Sources[0].ChunkID)
}

func TestRetrieve_BoundedContext(t *testing.T) {
	long := strings.Repeat("x", 400)
	idx := buildIndex(t,
		vectorindex.Entry{ChunkID: "c1", DocumentID: "d1", Category: "rule", Text: long, Vector: []float32{0.1, 0}},
		vectorindex.Entry{ChunkID: "c2", DocumentID: "d2", Category: "rule", Text: long, Vector: []float32{0.2, 0}},
		vectorindex.Entry{ChunkID: "c3", DocumentID: "d3", Category: "rule", Text: long, Vector: []float32{0.3, 0}},
	)
	svc := NewService(&fakeEmbedder{vector: []float32{0, 0}}, idx, nil, 5, 500, nil)

	got, err := svc.Retrieve(context.Background(), "q", 3, "")
	require.NoError(t, err)
	assert.Len(t, got.Sources, 1, "bound admits only the nearest chunk")
	assert.Contains(t, got.Text, "d1")
}

func TestRetrieve_AlwaysReturnsAtLeastOneChunk(t *testing.T) {
	huge := strings.Repeat("y", 2000)
	idx := buildIndex(t,
		vectorindex.Entry{ChunkID: "c1", DocumentID: "d1", Category: "rule", Text: huge, Vector: []float32{0.1, 0}},
	)
	svc := NewService(&fakeEmbedder{vector: []float32{0, 0}}, idx, nil, 5, 100, nil)

	got, err := svc.Retrieve(context.Background(), "q", 1, "")
	require.NoError(t, err)
	require.Len(t, got.Sources, 1, "first chunk is kept even over the bound")
}

func TestAnswer_UsesRetrievedContext(t *testing.T) {
	idx := buildIndex(t,
		vectorindex.Entry{ChunkID: "c1", DocumentID: "rules/stealth.md", Category: "rule",
			Section: "Stealth", Text: "sneak quietly", Vector: []float32{0.1, 0}},
	)
	completer := &fakeCompleter{answer: "Roll Stealth vs Perception."}
	svc := NewService(&fakeEmbedder{vector: []float32{0, 0}}, idx, completer, 0, 0, nil)

	answer, retrieved, err := svc.Answer(context.Background(), "how to sneak?", 1)
	require.NoError(t, err)

	assert.Equal(t, "Roll Stealth vs Perception.", answer)
	assert.Contains(t, completer.lastUser, "how to sneak?")
	assert.Contains(t, completer.lastUser, "sneak quietly")
	require.Len(t, retrieved.Sources, 1)
	assert.Equal(t, "rules/stealth.md", retrieved.Sources[0].DocumentID)
}

func TestRetrieve_EmbedderFailurePropagates(t *testing.T) {
	idx := buildIndex(t,
		vectorindex.Entry{ChunkID: "c1", DocumentID: "d1", Category: "rule", Text: "t", Vector: []float32{0.1, 0}},
	)
	svc := NewService(&fakeEmbedder{err: errors.New("boom")}, idx, nil, 0, 0, nil)

	_, err := svc.Retrieve(context.Background(), "q", 1, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embed question")
}
