package chunker

import (
	"strings"
	"testing"
)

func TestNew_Validation(t *testing.T) {
	cases := []struct {
		name    string
		size    int
		overlap int
		wantErr bool
	}{
		{"valid", 100, 20, false},
		{"zero size", 0, 0, true},
		{"negative size", -5, 1, true},
		{"zero overlap", 100, 0, true},
		{"overlap equals size", 100, 100, true},
		{"overlap exceeds size", 100, 150, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.size, tc.overlap)
			if tc.wantErr && err == nil {
				t.Errorf("New(%d, %d): expected error", tc.size, tc.overlap)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("New(%d, %d): unexpected error %v", tc.size, tc.overlap, err)
			}
		})
	}
}

func TestSplit_EmptyText(t *testing.T) {
	c, _ := New(100, 20)
	if chunks := c.Split(""); len(chunks) != 0 {
		t.Errorf("Expected no chunks for empty text, got %d", len(chunks))
	}
}

func TestSplit_ShortText(t *testing.T) {
	c, _ := New(100, 20)
	chunks := c.Split("short document")

	if len(chunks) != 1 {
		t.Fatalf("Expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Text != "short document" {
		t.Errorf("Chunk text mismatch: %q", chunks[0].Text)
	}
	if chunks[0].Index != 0 || chunks[0].Offset != 0 {
		t.Errorf("Unexpected index/offset: %d/%d", chunks[0].Index, chunks[0].Offset)
	}
}

// TestSplit_CoverageAndOverlap checks the chunking invariants: full coverage,
// exact overlap between consecutive chunks, and the size bound.
func TestSplit_CoverageAndOverlap(t *testing.T) {
	const size, overlap = 50, 10
	c, _ := New(size, overlap)

	for _, length := range []int{1, 49, 50, 51, 90, 137, 400} {
		text := strings.Repeat("abcdefghij", (length+9)/10)[:length]
		chunks := c.Split(text)

		runes := []rune(text)
		covered := make([]bool, len(runes))
		for i, ch := range chunks {
			if ch.Index != i {
				t.Errorf("len=%d chunk %d has index %d", length, i, ch.Index)
			}
			chunkRunes := []rune(ch.Text)
			if len(chunkRunes) > size {
				t.Errorf("len=%d chunk %d exceeds size: %d", length, i, len(chunkRunes))
			}
			for j := range chunkRunes {
				covered[ch.Offset+j] = true
			}
			// Exact overlap with predecessor (last chunk excepted only in length)
			if i > 0 {
				prev := chunks[i-1]
				prevEnd := prev.Offset + len([]rune(prev.Text))
				if prevEnd-ch.Offset != overlap {
					t.Errorf("len=%d chunks %d/%d overlap by %d, want %d",
						length, i-1, i, prevEnd-ch.Offset, overlap)
				}
			}
		}
		for j, ok := range covered {
			if !ok {
				t.Fatalf("len=%d rune %d not covered", length, j)
			}
		}
	}
}

func TestSplit_MultiByteRunes(t *testing.T) {
	c, _ := New(4, 1)
	chunks := c.Split("héllo wörld")

	var rebuilt []rune
	for i, ch := range chunks {
		r := []rune(ch.Text)
		if i == 0 {
			rebuilt = append(rebuilt, r...)
		} else {
			rebuilt = append(rebuilt, r[1:]...) // drop the overlapping rune
		}
	}
	if string(rebuilt) != "héllo wörld" {
		t.Errorf("Chunks do not reassemble original: %q", string(rebuilt))
	}
}
