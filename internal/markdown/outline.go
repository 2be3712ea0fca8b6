// Package markdown extracts heading outlines from markdown documents so that
// chunks can carry a section label for citations.
package markdown

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/toc"
)

// Section is one H1/H2 heading with its position in the source.
type Section struct {
	Path   string // hierarchy, e.g. "Combat > Attacks"
	Offset int    // rune offset of the heading line in the source
}

// Outline is the ordered list of sections of one document.
type Outline struct {
	sections []Section
}

// Extractor parses markdown and builds heading outlines.
type Extractor struct {
	parser goldmark.Markdown
}

// NewExtractor creates an Extractor configured with the goldmark parser.
func NewExtractor() *Extractor {
	md := goldmark.New(
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
	)
	return &Extractor{parser: md}
}

// Extract builds the outline of a markdown document. Documents without
// headings yield an empty outline; SectionAt then returns "".
func (e *Extractor) Extract(source []byte) (*Outline, error) {
	reader := text.NewReader(source)
	doc := e.parser.Parser().Parse(reader)

	tree, err := toc.Inspect(doc, source,
		toc.MinDepth(1),
		toc.MaxDepth(2), // H1 and H2 are enough granularity for citations
		toc.Compact(true),
	)
	if err != nil {
		return nil, fmt.Errorf("inspect TOC: %w", err)
	}

	outline := &Outline{}
	collectSections(doc, source, tree.Items, nil, &outline.sections)
	sort.Slice(outline.sections, func(i, j int) bool {
		return outline.sections[i].Offset < outline.sections[j].Offset
	})
	return outline, nil
}

// SectionAt returns the path of the nearest section starting at or before the
// given rune offset, or "" when the offset precedes every heading.
func (o *Outline) SectionAt(runeOffset int) string {
	path := ""
	for _, s := range o.sections {
		if s.Offset > runeOffset {
			break
		}
		path = s.Path
	}
	return path
}

// Len returns the number of sections in the outline.
func (o *Outline) Len() int {
	return len(o.sections)
}

// collectSections recursively walks TOC items, recording each heading with
// its ancestor titles joined into a path.
func collectSections(doc ast.Node, source []byte, items toc.Items, ancestors []string, out *[]Section) {
	for _, item := range items {
		currentPath := append(ancestors, string(item.Title))

		headerNode := findHeaderByID(doc, string(item.ID))
		if headerNode == nil {
			continue
		}

		// Lines() covers the heading text; back up over the "## " marker so
		// a chunk starting exactly at the heading line falls inside it.
		byteOffset := headerNode.Lines().At(0).Start
		if level := headerNode.(*ast.Heading).Level; byteOffset >= level+1 {
			byteOffset -= level + 1
		} else {
			byteOffset = 0
		}
		*out = append(*out, Section{
			Path:   strings.Join(currentPath, " > "),
			Offset: utf8.RuneCount(source[:byteOffset]),
		})

		if len(item.Items) > 0 {
			collectSections(doc, source, item.Items, currentPath, out)
		}
	}
}

// findHeaderByID locates a heading node by its auto-generated ID.
func findHeaderByID(node ast.Node, id string) ast.Node {
	var found ast.Node
	ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering && n.Kind() == ast.KindHeading {
			heading := n.(*ast.Heading)
			headingID, ok := heading.AttributeString("id")
			if ok && string(headingID.([]byte)) == id {
				found = n
				return ast.WalkStop, nil
			}
		}
		return ast.WalkContinue, nil
	})
	return found
}
