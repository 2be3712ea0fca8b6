// Package main provides the MCP server entry point for the campaign assistant.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/bull/campaign-scribe/internal/config"
	"github.com/bull/campaign-scribe/internal/embedding"
	"github.com/bull/campaign-scribe/internal/generation"
	mcpserver "github.com/bull/campaign-scribe/internal/mcp"
	"github.com/bull/campaign-scribe/internal/rag"
	"github.com/bull/campaign-scribe/internal/vectorindex"
	"github.com/bull/campaign-scribe/internal/world"
)

func main() {
	// Load .env file if present (local development), ignore if missing
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Create context that cancels on SIGTERM/SIGINT
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	configPath := getEnv("SCRIBE_CONFIG", "scribe.yaml")
	port := getEnv("PORT", "8080")

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Load the persisted index; a missing index serves an empty one so the
	// tools can explain themselves instead of the server refusing to start.
	index, err := vectorindex.Load(cfg.IndexPath())
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Fatalf("failed to load index: %v", err)
		}
		metric, merr := vectorindex.ParseMetric(cfg.Retrieval.Metric)
		if merr != nil {
			log.Fatalf("invalid metric: %v", merr)
		}
		index = vectorindex.New(metric)
		log.Printf("no index at %s, serving empty index", cfg.IndexPath())
	}

	// World state: a corrupt file degrades health but the store still serves
	// the empty fallback.
	store := world.NewStore(cfg.WorldStatePath(), cfg.World.Strict, slog.Default())
	worldErr := store.Load()
	if worldErr != nil && !errors.Is(worldErr, world.ErrStateCorruption) {
		log.Fatalf("failed to load world state: %v", worldErr)
	}

	// Initialize OpenAI-backed clients
	client, err := embedding.NewClient()
	if err != nil {
		log.Fatalf("failed to create embedding client: %v", err)
	}
	embedder := embedding.NewEmbedder(client, cfg.Embedding.Model,
		cfg.Embedding.BatchSize, cfg.Embedding.MaxInputChars)
	completer := generation.NewClient(client.Client(), cfg.Generation.Model,
		cfg.Generation.Temperature, cfg.Generation.MaxTokens, slog.Default())

	ragService := rag.NewService(embedder, index, completer,
		cfg.Retrieval.TopK, cfg.Retrieval.MaxContextChars, slog.Default())

	// Create MCP server
	server := mcpserver.NewServer(&mcpserver.Config{
		RAG:   ragService,
		World: store,
	})

	// Create HTTP server with multiple endpoints
	mux := http.NewServeMux()

	mux.HandleFunc("/", mcpserver.NewLandingHandler())
	mux.HandleFunc("/health", mcpserver.NewHealthHandler(index, func() error {
		return worldErr
	}))
	mux.Handle("/mcp", mcpserver.NewHTTPHandler(server, nil))

	// Check if running in server mode (HTTP) or stdio mode (local development)
	serverMode := getEnv("SERVER_MODE", "false") == "true"

	if serverMode {
		// HTTP mode: serve MCP over HTTP for remote clients
		addr := "0.0.0.0:" + port
		log.Printf("Starting HTTP server on %s (MCP at /mcp, health at /health)", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Fatalf("HTTP server error: %v", err)
		}
	} else {
		// Stdio mode: run MCP server over stdin/stdout for local clients
		// Also start HTTP health endpoint in background for local testing
		go func() {
			addr := "0.0.0.0:" + port
			log.Printf("Starting health server on %s", addr)
			if err := http.ListenAndServe(addr, mux); err != nil {
				log.Printf("Health server error: %v", err)
			}
		}()

		log.Println("Starting Campaign Scribe MCP Server (stdio mode)...")
		if err := server.Run(ctx); err != nil {
			log.Printf("server error: %v", err)
			os.Exit(1)
		}
	}
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
