// Package library is the document store: rulebook and adventure text kept as
// plain files under a single directory tree.
package library

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Category classifies a source document.
type Category string

const (
	CategoryRule      Category = "rule"
	CategoryAdventure Category = "adventure"
)

// Document is one immutable source file loaded from the library.
type Document struct {
	ID       string // slash-separated path relative to the library root
	Path     string // absolute path on disk
	Category Category
	Text     string
}

// IsMarkdown reports whether the document should get a heading outline.
func (d *Document) IsMarkdown() bool {
	return strings.EqualFold(filepath.Ext(d.ID), ".md")
}

// Library scans and loads documents from a root directory.
// Files under adventures/ are adventures; everything else is rules material.
type Library struct {
	root string
}

// New creates a Library rooted at dir.
func New(dir string) *Library {
	return &Library{root: dir}
}

// List returns the relative paths of all .md and .txt documents, sorted.
func (l *Library) List() ([]string, error) {
	var paths []string
	err := filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".md" && ext != ".txt" {
			return nil
		}
		rel, err := filepath.Rel(l.root, path)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan library %s: %w", l.root, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// Load reads a single document by its relative path.
func (l *Library) Load(rel string) (*Document, error) {
	abs := filepath.Join(l.root, filepath.FromSlash(rel))
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read document %s: %w", rel, err)
	}
	return &Document{
		ID:       rel,
		Path:     abs,
		Category: categoryOf(rel),
		Text:     string(data),
	}, nil
}

// categoryOf derives the document category from the leading path element.
func categoryOf(rel string) Category {
	first, _, found := strings.Cut(rel, "/")
	if found && first == "adventures" {
		return CategoryAdventure
	}
	return CategoryRule
}
