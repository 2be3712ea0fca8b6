package vectorindex

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// indexFile is the on-disk representation of the full index.
type indexFile struct {
	Metric    Metric  `json:"metric"`
	Dimension int     `json:"dimension"`
	Entries   []Entry `json:"entries"`
}

// Save serializes the full entry set to path. The write goes to a temp file
// in the same directory followed by an atomic rename, so a crash mid-save
// never leaves a truncated index behind.
func (x *Index) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	data, err := json.Marshal(indexFile{
		Metric:    x.metric,
		Dimension: x.dim,
		Entries:   x.entries,
	})
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".index-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp index: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace index: %w", err)
	}
	return nil
}

// Load deserializes an index from path. Malformed or internally inconsistent
// data fails with ErrCorruptIndex.
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read index %s: %w", path, err)
	}

	var f indexFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptIndex, err)
	}

	if _, err := ParseMetric(string(f.Metric)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptIndex, err)
	}
	if f.Dimension < 0 || (len(f.Entries) > 0 && f.Dimension == 0) {
		return nil, fmt.Errorf("%w: invalid dimension %d", ErrCorruptIndex, f.Dimension)
	}
	for i, e := range f.Entries {
		if len(e.Vector) != f.Dimension {
			return nil, fmt.Errorf("%w: entry %d has %d dimensions, header says %d",
				ErrCorruptIndex, i, len(e.Vector), f.Dimension)
		}
	}

	return &Index{
		metric:  f.Metric,
		dim:     f.Dimension,
		entries: f.Entries,
	}, nil
}
