package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/campaign-scribe/internal/rag"
	"github.com/bull/campaign-scribe/internal/world"
)

// makeSearchHandler creates the search_rules tool handler.
// Retrieval flow:
// 1. Embed the query
// 2. Nearest-neighbor search over the chunk index, optionally category-filtered
// 3. Deduplicate by source document (nearest chunk per document wins)
// 4. Return up to MaxResults chunks with provenance
func makeSearchHandler(svc *rag.Service) func(
	context.Context, *mcp.CallToolRequest, SearchRulesInput,
) (*mcp.CallToolResult, SearchRulesOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SearchRulesInput) (
		*mcp.CallToolResult, SearchRulesOutput, error,
	) {
		retrieved, err := svc.Retrieve(ctx, input.Query, input.MaxResults, input.Category)
		if err != nil {
			if errors.Is(err, rag.ErrNoResults) {
				return nil, SearchRulesOutput{
					Results: []RuleHit{},
					Message: "The index is empty. Run the indexer over the library first.",
				}, nil
			}
			return nil, SearchRulesOutput{}, fmt.Errorf("search failed: %w", err)
		}

		return nil, SearchRulesOutput{Results: toHits(retrieved)}, nil
	}
}

// makeAskHandler creates the ask_rules tool handler. Retrieves context for
// the question and generates a cited answer.
func makeAskHandler(svc *rag.Service) func(
	context.Context, *mcp.CallToolRequest, AskRulesInput,
) (*mcp.CallToolResult, AskRulesOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input AskRulesInput) (
		*mcp.CallToolResult, AskRulesOutput, error,
	) {
		answer, retrieved, err := svc.Answer(ctx, input.Question, input.MaxSources)
		if err != nil {
			if errors.Is(err, rag.ErrNoResults) {
				return nil, AskRulesOutput{
					Answer:  "The index is empty, so there is nothing to answer from. Run the indexer over the library first.",
					Sources: []RuleHit{},
				}, nil
			}
			return nil, AskRulesOutput{}, fmt.Errorf("answer failed: %w", err)
		}

		return nil, AskRulesOutput{Answer: answer, Sources: toHits(retrieved)}, nil
	}
}

// makeGetEntityHandler creates the get_entity tool handler.
func makeGetEntityHandler(store *world.Store) func(
	context.Context, *mcp.CallToolRequest, GetEntityInput,
) (*mcp.CallToolResult, GetEntityOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input GetEntityInput) (
		*mcp.CallToolResult, GetEntityOutput, error,
	) {
		cat, err := world.ParseCategory(input.Category)
		if err != nil {
			return nil, GetEntityOutput{}, err
		}

		e, ok := store.Get(cat, input.Name)
		if !ok {
			return nil, GetEntityOutput{Found: false}, nil
		}
		view := toView(cat, e)
		return nil, GetEntityOutput{Found: true, Entity: &view}, nil
	}
}

// makeListEntitiesHandler creates the list_entities tool handler. Without a
// category it lists the whole world state, category by category.
func makeListEntitiesHandler(store *world.Store) func(
	context.Context, *mcp.CallToolRequest, ListEntitiesInput,
) (*mcp.CallToolResult, ListEntitiesOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ListEntitiesInput) (
		*mcp.CallToolResult, ListEntitiesOutput, error,
	) {
		cats := world.Categories
		if input.Category != "" {
			cat, err := world.ParseCategory(input.Category)
			if err != nil {
				return nil, ListEntitiesOutput{}, err
			}
			cats = []world.Category{cat}
		}

		views := make([]EntityView, 0)
		for _, cat := range cats {
			for _, e := range store.Entities(cat) {
				views = append(views, toView(cat, e))
			}
		}

		return nil, ListEntitiesOutput{Entities: views, Count: len(views)}, nil
	}
}

func toHits(c *rag.Context) []RuleHit {
	hits := make([]RuleHit, 0, len(c.Sources))
	for _, src := range c.Sources {
		hits = append(hits, RuleHit{
			Document: src.DocumentID,
			Section:  src.Section,
			Distance: src.Distance,
			Text:     src.Text,
		})
	}
	return hits
}

func toView(cat world.Category, e *world.Entity) EntityView {
	attrs := e.Attributes
	if attrs == nil {
		attrs = map[string]any{} // non-nil for JSON marshaling
	}
	return EntityView{
		Name:       e.Name,
		Category:   string(cat),
		Attributes: attrs,
		UpdatedAt:  e.UpdatedAt,
	}
}
