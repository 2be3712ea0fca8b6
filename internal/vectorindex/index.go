// Package vectorindex implements an exact nearest-neighbor index over chunk
// embeddings. A linear scan is deliberate: one campaign's worth of rulebook
// text is a few thousand vectors, and correctness beats throughput here.
package vectorindex

import (
	"fmt"
	"math"
	"sort"
)

// Metric is the distance function, fixed at index creation.
type Metric string

const (
	Cosine    Metric = "cosine"
	Euclidean Metric = "euclidean"
)

// ParseMetric validates a metric name from configuration.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case Cosine, Euclidean:
		return Metric(s), nil
	}
	return "", fmt.Errorf("unknown distance metric %q", s)
}

// Entry is one indexed chunk: embedding vector plus provenance metadata.
type Entry struct {
	ChunkID    string    `json:"chunk_id"`
	DocumentID string    `json:"document_id"`
	Position   int       `json:"position"` // chunk ordinal within the document
	Section    string    `json:"section,omitempty"`
	Category   string    `json:"category"` // rule or adventure
	Text       string    `json:"text"`
	Vector     []float32 `json:"vector"`
}

// Result is a query hit, nearest-first by Distance.
type Result struct {
	Entry    Entry
	Distance float64
}

// Index holds all entries in insertion order. Dimensionality is established
// by the first insert and enforced afterwards.
type Index struct {
	metric  Metric
	dim     int
	entries []Entry
}

// New creates an empty index with the given metric.
func New(metric Metric) *Index {
	return &Index{metric: metric}
}

// Metric returns the index's distance function.
func (x *Index) Metric() Metric { return x.metric }

// Dimension returns the established vector dimensionality, 0 when empty.
func (x *Index) Dimension() int { return x.dim }

// Len returns the number of entries.
func (x *Index) Len() int { return len(x.entries) }

// Insert adds an entry. The first insert fixes the index dimensionality;
// subsequent inserts with a different vector length fail with
// ErrDimensionMismatch.
func (x *Index) Insert(e Entry) error {
	if len(e.Vector) == 0 {
		return fmt.Errorf("%w: empty vector", ErrDimensionMismatch)
	}
	if x.dim == 0 {
		x.dim = len(e.Vector)
	} else if len(e.Vector) != x.dim {
		return fmt.Errorf("%w: got %d, index has %d", ErrDimensionMismatch, len(e.Vector), x.dim)
	}
	x.entries = append(x.entries, e)
	return nil
}

// Query returns the k entries nearest to vec, nearest-first. Ties break by
// insertion order (earlier wins). Returns fewer than k when the index is
// small, and an empty result on an empty index.
func (x *Index) Query(vec []float32, k int) ([]Result, error) {
	return x.QueryFiltered(vec, k, nil)
}

// QueryFiltered is Query restricted to entries accepted by match.
// A nil match accepts everything.
func (x *Index) QueryFiltered(vec []float32, k int, match func(*Entry) bool) ([]Result, error) {
	if len(x.entries) == 0 || k <= 0 {
		return nil, nil
	}
	if len(vec) != x.dim {
		return nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimensionMismatch, len(vec), x.dim)
	}

	results := make([]Result, 0, len(x.entries))
	for i := range x.entries {
		e := &x.entries[i]
		if match != nil && !match(e) {
			continue
		}
		results = append(results, Result{Entry: *e, Distance: x.distance(e.Vector, vec)})
	}

	// Stable sort keeps insertion order among equal distances.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})

	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

func (x *Index) distance(a, b []float32) float64 {
	switch x.metric {
	case Euclidean:
		var sum float64
		for i := range a {
			d := float64(a[i]) - float64(b[i])
			sum += d * d
		}
		return math.Sqrt(sum)
	default: // cosine
		var dot, na, nb float64
		for i := range a {
			dot += float64(a[i]) * float64(b[i])
			na += float64(a[i]) * float64(a[i])
			nb += float64(b[i]) * float64(b[i])
		}
		if na == 0 || nb == 0 {
			return 1
		}
		return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
	}
}
