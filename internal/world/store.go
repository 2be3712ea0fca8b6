package world

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Store owns the canonical in-memory world state and is the sole writer of
// the persisted file. Not safe for concurrent use; the tool is single-operator.
type Store struct {
	path   string
	strict bool
	logger *slog.Logger
	state  State
	now    func() time.Time // injectable clock for tests
}

// NewStore creates a Store persisting to path. Strict mode rejects state
// files missing any category key; lax mode defaults them to empty.
func NewStore(path string, strict bool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		path:   path,
		strict: strict,
		logger: logger,
		state:  NewState(),
		now:    time.Now,
	}
}

// Load reads the persisted state. A missing file is a fresh campaign and
// loads as empty. Malformed JSON or a schema violation resets to an empty
// state and returns ErrStateCorruption so the caller can decide whether to
// proceed with the default or abort; the loss is logged either way.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.state = NewState()
			return nil
		}
		return fmt.Errorf("read world state: %w", err)
	}

	state, err := decodeState(data, s.strict)
	if err != nil {
		s.logger.Error("World state failed to load, falling back to empty state",
			"path", s.path, "error", err)
		s.state = NewState()
		return fmt.Errorf("%w: %v", ErrStateCorruption, err)
	}

	s.state = state
	return nil
}

// decodeState parses and validates the persisted JSON.
func decodeState(data []byte, strict bool) (State, error) {
	var raw map[string]map[string]*Entity
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	state := NewState()
	for key, entities := range raw {
		cat, err := ParseCategory(key)
		if err != nil {
			return nil, fmt.Errorf("top-level key %q: %w", key, err)
		}
		for name, e := range entities {
			if e == nil || e.Name == "" {
				return nil, fmt.Errorf("category %s: entity %q missing name", cat, name)
			}
			for attr, v := range e.Attributes {
				if !ValidAttributeValue(v) {
					return nil, fmt.Errorf("category %s: entity %q attribute %q has unsupported type %T",
						cat, name, attr, v)
				}
			}
			if e.Attributes == nil {
				e.Attributes = make(map[string]any)
			}
			// Hand-edited files may carry display-name keys; normalize so
			// Get and Upsert address the same entry.
			key := Slug(name)
			if key == "" {
				return nil, fmt.Errorf("category %s: entity key %q normalizes to nothing", cat, name)
			}
			state[cat][key] = e
		}
	}

	if strict {
		for _, c := range Categories {
			if _, ok := raw[string(c)]; !ok {
				return nil, fmt.Errorf("missing required category key %q", c)
			}
		}
	}

	return state, nil
}

// Save writes the whole state as JSON: temp file in the target directory,
// then atomic rename. A crash mid-save never leaves a partial file.
func (s *Store) Save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode world state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".world-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write world state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close world state: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace world state: %w", err)
	}
	return nil
}

// Get returns the entity with the given display name (or slug), or false.
func (s *Store) Get(cat Category, name string) (*Entity, bool) {
	e, ok := s.state[cat][Slug(name)]
	return e, ok
}

// Upsert merges attrs into the named entity, creating it if absent. New keys
// are added, existing keys overwritten, other attributes untouched. The
// entity's updated_at timestamp is refreshed. In-memory only; call Save to
// persist.
func (s *Store) Upsert(cat Category, name string, attrs map[string]any) (*Entity, error) {
	key := Slug(name)
	if key == "" {
		return nil, fmt.Errorf("%w: empty entity name", ErrInvalidUpdate)
	}
	for attr, v := range attrs {
		if !ValidAttributeValue(v) {
			return nil, fmt.Errorf("%w: attribute %q has unsupported type %T", ErrInvalidUpdate, attr, v)
		}
	}

	e, ok := s.state[cat][key]
	if !ok {
		e = &Entity{Name: name, Attributes: make(map[string]any)}
		s.state[cat][key] = e
	}
	for attr, v := range attrs {
		e.Attributes[attr] = v
	}
	e.UpdatedAt = s.now()
	return e, nil
}

// Delete removes an entity. Deletion is always an explicit operator action;
// nothing in the merge pipeline deletes.
func (s *Store) Delete(cat Category, name string) bool {
	key := Slug(name)
	if _, ok := s.state[cat][key]; !ok {
		return false
	}
	delete(s.state[cat], key)
	return true
}

// Entities returns the entities of one category sorted by key.
func (s *Store) Entities(cat Category) []*Entity {
	keys := make([]string, 0, len(s.state[cat]))
	for k := range s.state[cat] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*Entity, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.state[cat][k])
	}
	return out
}

// Update is one pending attribute merge, used by ApplyAll.
type Update struct {
	Category   Category
	Name       string
	Attributes map[string]any
}

// ApplyAll validates every update, then applies them in order. If any update
// is invalid, no state changes at all. This is the all-or-nothing half of
// the session merge.
func (s *Store) ApplyAll(updates []Update) error {
	for i, u := range updates {
		if _, err := ParseCategory(string(u.Category)); err != nil {
			return fmt.Errorf("%w: update %d: %v", ErrInvalidUpdate, i, err)
		}
		if Slug(u.Name) == "" {
			return fmt.Errorf("%w: update %d: empty entity name", ErrInvalidUpdate, i)
		}
		for attr, v := range u.Attributes {
			if !ValidAttributeValue(v) {
				return fmt.Errorf("%w: update %d: attribute %q has unsupported type %T",
					ErrInvalidUpdate, i, attr, v)
			}
		}
	}

	for _, u := range updates {
		if _, err := s.Upsert(u.Category, u.Name, u.Attributes); err != nil {
			// Unreachable after validation above; surface it anyway.
			return err
		}
	}
	return nil
}
