package mcp

import (
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// HTTPHandlerOptions configures the HTTP transport behavior.
type HTTPHandlerOptions struct {
	// Stateless disables session management. The scribe tools are plain
	// request/response lookups, so stateless is safe when a client asks for
	// it. Default: false (stateful).
	Stateless bool
}

// NewHTTPHandler exposes the scribe server over Streamable HTTP, serving the
// same tools as the stdio transport to remote clients. It is mounted at /mcp
// next to the landing page and health check:
//
//	mux := http.NewServeMux()
//	mux.HandleFunc("/", mcp.NewLandingHandler())
//	mux.HandleFunc("/health", mcp.NewHealthHandler(index, worldCheck))
//	mux.Handle("/mcp", mcp.NewHTTPHandler(server, nil))
//	http.ListenAndServe(":8080", mux)
//
// Every request is served by the same underlying server instance; the index
// and world store are loaded once at startup.
func NewHTTPHandler(server *Server, opts *HTTPHandlerOptions) http.Handler {
	if opts == nil {
		opts = &HTTPHandlerOptions{}
	}

	sdkOpts := &mcp.StreamableHTTPOptions{
		Stateless: opts.Stateless,
	}

	return mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return server.MCPServer()
	}, sdkOpts)
}
