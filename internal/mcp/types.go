// Package mcp exposes the campaign assistant over the Model Context Protocol.
package mcp

import "time"

// SearchRulesInput defines the input parameters for the search_rules tool.
type SearchRulesInput struct {
	// Query is the semantic search query.
	Query string `json:"query" jsonschema:"required,description=The semantic search query for finding relevant rules or adventure text"`
	// MaxResults is the maximum number of chunks to return.
	MaxResults int `json:"max_results,omitempty" jsonschema:"minimum=1,maximum=20,default=5,description=Maximum number of chunks to return"`
	// Category restricts the search to one document category.
	Category string `json:"category,omitempty" jsonschema:"enum=rule,enum=adventure,description=Restrict results to rule or adventure documents"`
}

// SearchRulesOutput contains the search results.
type SearchRulesOutput struct {
	// Results is the list of matching chunks with provenance.
	Results []RuleHit `json:"results"`
	// Message provides informational context (e.g., "index is empty").
	Message string `json:"message,omitempty"`
}

// RuleHit is a single retrieved chunk.
type RuleHit struct {
	// Document is the source document path (e.g., "rules/combat.md").
	Document string `json:"document"`
	// Section is the heading path within the document, if any.
	Section string `json:"section,omitempty"`
	// Distance is the vector distance of the match (smaller is closer).
	Distance float64 `json:"distance"`
	// Text is the chunk content.
	Text string `json:"text"`
}

// AskRulesInput defines the input parameters for the ask_rules tool.
type AskRulesInput struct {
	// Question is the natural-language rules question.
	Question string `json:"question" jsonschema:"required,description=The natural-language rules question to answer"`
	// MaxSources is the maximum number of source chunks to ground the answer on.
	MaxSources int `json:"max_sources,omitempty" jsonschema:"minimum=1,maximum=20,default=5,description=Maximum number of source chunks to ground the answer on"`
}

// AskRulesOutput contains the generated answer and its sources.
type AskRulesOutput struct {
	// Answer is the generated, cited answer.
	Answer string `json:"answer"`
	// Sources lists the chunks the answer was grounded on.
	Sources []RuleHit `json:"sources"`
}

// GetEntityInput defines the input parameters for the get_entity tool.
type GetEntityInput struct {
	// Category is the entity category: npc, location, faction, or flag.
	Category string `json:"category" jsonschema:"required,enum=npc,enum=location,enum=faction,enum=flag,description=The entity category"`
	// Name is the entity's display name or slug.
	Name string `json:"name" jsonschema:"required,description=The entity display name or slug"`
}

// GetEntityOutput contains the requested entity, if it exists.
type GetEntityOutput struct {
	// Found indicates whether the entity exists.
	Found bool `json:"found"`
	// Entity is the matching entity when found.
	Entity *EntityView `json:"entity,omitempty"`
}

// EntityView is the tool-facing rendering of a world-state entity.
type EntityView struct {
	// Name is the entity display name.
	Name string `json:"name"`
	// Category is the entity category.
	Category string `json:"category"`
	// Attributes is the entity's current attribute map.
	Attributes map[string]any `json:"attributes"`
	// UpdatedAt is when the entity was last modified.
	UpdatedAt time.Time `json:"updated_at"`
}

// ListEntitiesInput defines the input parameters for the list_entities tool.
type ListEntitiesInput struct {
	// Category optionally restricts the listing to one category.
	Category string `json:"category,omitempty" jsonschema:"enum=npc,enum=location,enum=faction,enum=flag,description=Restrict the listing to one category"`
}

// ListEntitiesOutput contains the world-state listing.
type ListEntitiesOutput struct {
	// Entities is the sorted entity listing.
	Entities []EntityView `json:"entities"`
	// Count is the total number of entities returned.
	Count int `json:"count"`
}
