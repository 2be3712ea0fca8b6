// Package world models the persistent campaign world: named entities grouped
// by category, each with a free-form attribute map.
package world

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Category groups world entities. The four categories are fixed; they form
// the top-level keys of the persisted state file.
type Category string

const (
	CategoryNPC      Category = "npc"
	CategoryLocation Category = "location"
	CategoryFaction  Category = "faction"
	CategoryFlag     Category = "flag"
)

// Categories lists all known categories in persistence order.
var Categories = []Category{CategoryNPC, CategoryLocation, CategoryFaction, CategoryFlag}

// ParseCategory validates a category name from external input.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Categories {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// Entity is one named thing in the world. Attribute values are strings,
// numbers or booleans; JSON round-trips numbers as float64.
type Entity struct {
	Name       string         `json:"name"`
	Attributes map[string]any `json:"attributes"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// State is the whole world: category -> entity key -> entity.
// Entity keys are slugs of the display name.
type State map[Category]map[string]*Entity

// NewState returns a State with all category maps present.
func NewState() State {
	s := make(State, len(Categories))
	for _, c := range Categories {
		s[c] = make(map[string]*Entity)
	}
	return s
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// Slug lower-cases a name and replaces non-alphanumerics, yielding a stable
// entity key ("Mama Wells" -> "mama_wells").
func Slug(name string) string {
	return strings.Trim(slugRe.ReplaceAllString(strings.ToLower(name), "_"), "_")
}

// ValidAttributeValue reports whether v is one of the permitted attribute
// value kinds. JSON decoding produces string, bool, or float64.
func ValidAttributeValue(v any) bool {
	switch v.(type) {
	case string, bool, float64, int, int64, float32:
		return true
	}
	return false
}
