package vectorindex

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(id string, vec ...float32) Entry {
	return Entry{
		ChunkID:    id,
		DocumentID: "rules/core.md",
		Category:   "rule",
		Text:       "text for " + id,
		Vector:     vec,
	}
}

func TestInsert_DimensionEstablishedByFirst(t *testing.T) {
	idx := New(Cosine)

	require.NoError(t, idx.Insert(entry("a", 1, 0, 0)))
	assert.Equal(t, 3, idx.Dimension())

	err := idx.Insert(entry("b", 1, 0))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDimensionMismatch))

	err = idx.Insert(Entry{ChunkID: "c"})
	assert.True(t, errors.Is(err, ErrDimensionMismatch), "empty vector must be rejected")

	assert.Equal(t, 1, idx.Len())
}

func TestQuery_OrderingByDistance(t *testing.T) {
	idx := New(Euclidean)
	// Distances from origin: far=0.9, near=0.1, mid=0.5
	require.NoError(t, idx.Insert(entry("far", 0.9, 0)))
	require.NoError(t, idx.Insert(entry("near", 0.1, 0)))
	require.NoError(t, idx.Insert(entry("mid", 0.5, 0)))

	results, err := idx.Query([]float32{0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "near", results[0].Entry.ChunkID)
	assert.Equal(t, "mid", results[1].Entry.ChunkID)
	assert.Less(t, results[0].Distance, results[1].Distance)
}

func TestQuery_TiesBreakByInsertionOrder(t *testing.T) {
	idx := New(Euclidean)
	// Both at distance 1 from origin; "first" was inserted earlier.
	require.NoError(t, idx.Insert(entry("first", 1, 0)))
	require.NoError(t, idx.Insert(entry("second", 0, 1)))

	results, err := idx.Query([]float32{0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "first", results[0].Entry.ChunkID)
	assert.Equal(t, "second", results[1].Entry.ChunkID)
}

func TestQuery_EmptyAndSmallIndex(t *testing.T) {
	idx := New(Cosine)

	results, err := idx.Query([]float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results, "empty index yields empty result")

	require.NoError(t, idx.Insert(entry("only", 1, 0)))
	results, err = idx.Query([]float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Len(t, results, 1, "fewer than k entries returns what exists")
}

func TestQuery_DimensionMismatch(t *testing.T) {
	idx := New(Cosine)
	require.NoError(t, idx.Insert(entry("a", 1, 0, 0)))

	_, err := idx.Query([]float32{1, 0}, 1)
	assert.True(t, errors.Is(err, ErrDimensionMismatch))
}

func TestQueryFiltered_Category(t *testing.T) {
	idx := New(Euclidean)
	rule := entry("rule-chunk", 0.1, 0)
	adventure := Entry{ChunkID: "adv-chunk", DocumentID: "adventures/heist.md",
		Category: "adventure", Text: "heist", Vector: []float32{0.2, 0}}
	require.NoError(t, idx.Insert(rule))
	require.NoError(t, idx.Insert(adventure))

	results, err := idx.QueryFiltered([]float32{0, 0}, 5, func(e *Entry) bool {
		return e.Category == "adventure"
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "adv-chunk", results[0].Entry.ChunkID)
}

func TestCosineDistance(t *testing.T) {
	idx := New(Cosine)
	require.NoError(t, idx.Insert(entry("same", 2, 0)))       // same direction
	require.NoError(t, idx.Insert(entry("orthogonal", 0, 3))) // 90 degrees

	results, err := idx.Query([]float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "same", results[0].Entry.ChunkID)
	assert.InDelta(t, 0.0, results[0].Distance, 1e-9)
	assert.InDelta(t, 1.0, results[1].Distance, 1e-9)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	idx := New(Cosine)
	require.NoError(t, idx.Insert(Entry{
		ChunkID: "c1", DocumentID: "rules/core.md", Position: 0,
		Section: "Combat > Attacks", Category: "rule",
		Text: "attack rolls", Vector: []float32{0.25, -0.5, 0.125},
	}))
	require.NoError(t, idx.Insert(Entry{
		ChunkID: "c2", DocumentID: "adventures/heist.md", Position: 3,
		Category: "adventure", Text: "the vault", Vector: []float32{1, 0, 0},
	}))

	path := filepath.Join(t.TempDir(), "index.json")
	require.NoError(t, idx.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, idx.Metric(), loaded.Metric())
	assert.Equal(t, idx.Dimension(), loaded.Dimension())
	assert.Equal(t, idx.Len(), loaded.Len())

	query := []float32{0.2, -0.4, 0.1}
	want, err := idx.Query(query, 10)
	require.NoError(t, err)
	got, err := loaded.Query(query, 10)
	require.NoError(t, err)

	require.Equal(t, len(want), len(got))
	for i := range want {
		assert.Equal(t, want[i].Entry, got[i].Entry)
		assert.InDelta(t, want[i].Distance, got[i].Distance, 1e-12)
	}
}

func TestLoad_CorruptData(t *testing.T) {
	dir := t.TempDir()

	cases := []struct {
		name    string
		content string
	}{
		{"not json", "this is not json{{{"},
		{"unknown metric", `{"metric":"manhattan","dimension":2,"entries":[]}`},
		{"dimension mismatch", `{"metric":"cosine","dimension":3,"entries":[{"chunk_id":"a","vector":[1,2]}]}`},
		{"zero dimension with entries", `{"metric":"cosine","dimension":0,"entries":[{"chunk_id":"a","vector":[1]}]}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(dir, tc.name+".json")
			require.NoError(t, os.WriteFile(path, []byte(tc.content), 0o644))

			_, err := Load(path)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrCorruptIndex), "got %v", err)
		})
	}
}

func TestLoad_MissingFileIsNotCorrupt(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrCorruptIndex), "missing file is an I/O error, not corruption")
}

func TestSave_EmptyIndexRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, New(Euclidean).Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0, loaded.Len())
	assert.Equal(t, Euclidean, loaded.Metric())
}
