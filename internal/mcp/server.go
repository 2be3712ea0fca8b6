package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/campaign-scribe/internal/rag"
	"github.com/bull/campaign-scribe/internal/world"
)

// Server wraps the MCP server with dependencies.
type Server struct {
	server *mcp.Server
	rag    *rag.Service
	world  *world.Store
}

// Config holds server dependencies.
type Config struct {
	RAG   *rag.Service
	World *world.Store
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(cfg *Config) *Server {
	impl := &mcp.Implementation{
		Name:    "campaign-scribe",
		Version: "v0.1.0",
	}

	server := mcp.NewServer(impl, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_rules",
		Description: "Search the campaign library semantically. Returns the most relevant rule or adventure excerpts with document and section provenance.",
	}, makeSearchHandler(cfg.RAG))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ask_rules",
		Description: "Ask a natural-language rules question. Returns a generated answer grounded in the library, with the source excerpts it cites.",
	}, makeAskHandler(cfg.RAG))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_entity",
		Description: "Look up one campaign world-state entity (NPC, location, faction, or flag) by name.",
	}, makeGetEntityHandler(cfg.World))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_entities",
		Description: "List campaign world-state entities, optionally restricted to one category.",
	}, makeListEntitiesHandler(cfg.World))

	return &Server{
		server: server,
		rag:    cfg.RAG,
		world:  cfg.World,
	}
}

// Run starts the server with stdio transport (blocks until client disconnects).
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server instance.
// Used by transport handlers that need to wrap the server.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}
