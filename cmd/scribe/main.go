// Package main provides the scribe CLI: indexing, rules search, session
// processing, and world-state management for a single campaign.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/bull/campaign-scribe/internal/chunker"
	"github.com/bull/campaign-scribe/internal/config"
	"github.com/bull/campaign-scribe/internal/embedding"
	"github.com/bull/campaign-scribe/internal/generation"
	"github.com/bull/campaign-scribe/internal/indexer"
	"github.com/bull/campaign-scribe/internal/library"
	"github.com/bull/campaign-scribe/internal/markdown"
	"github.com/bull/campaign-scribe/internal/rag"
	"github.com/bull/campaign-scribe/internal/session"
	"github.com/bull/campaign-scribe/internal/vectorindex"
	"github.com/bull/campaign-scribe/internal/world"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "scribe",
	Short: "Campaign assistant for a single tabletop RPG operator",
	Long: `Scribe indexes your rulebooks and adventures for semantic search,
answers rules questions with citations, extracts world-state changes from
session transcripts, and keeps the campaign world state on disk.

Environment variables:
  OPENAI_API_KEY OpenAI API key for embeddings and generation (required
                 for index, search, ask, and session commands)`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "scribe.yaml", "config file path")
	rootCmd.AddCommand(indexCmd, searchCmd, askCmd, sessionCmd, worldCmd)
	sessionCmd.AddCommand(sessionProcessCmd)
	worldCmd.AddCommand(worldGetCmd, worldSetCmd, worldDeleteCmd, worldListCmd)

	searchCmd.Flags().IntP("top", "k", 0, "number of results (default from config)")
	searchCmd.Flags().String("category", "", "restrict to a document category (rule or adventure)")
	askCmd.Flags().IntP("top", "k", 0, "number of source chunks (default from config)")
	sessionProcessCmd.Flags().String("id", "", "transcript identifier (default: file name)")
}

func main() {
	// Load .env if present (local development), ignore if missing.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Rebuild the vector index from the library",
	Long: `Reads every markdown and text document under the library directory,
splits them into overlapping chunks, embeds the chunks, and writes a fresh
index file. The previous index is replaced atomically on success.`,
	RunE: runIndex,
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	metric, err := vectorindex.ParseMetric(cfg.Retrieval.Metric)
	if err != nil {
		return err
	}

	embedder, _, err := newEmbedder(cfg)
	if err != nil {
		return err
	}

	ch, err := chunker.New(cfg.Chunker.Size, cfg.Chunker.Overlap)
	if err != nil {
		return err
	}

	fmt.Printf("Indexing %s into %s...\n", cfg.LibraryDir, cfg.IndexPath())

	pipeline := indexer.NewPipeline(
		library.New(cfg.LibraryDir),
		ch,
		markdown.NewExtractor(),
		embedder,
		vectorindex.New(metric),
		cfg.IndexPath(),
		slog.Default(),
	)
	result, err := pipeline.IndexAll(ctx)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("Index complete!")
	fmt.Printf("  Documents: %d/%d\n", result.SuccessfulDocs, result.TotalDocs)
	fmt.Printf("  Chunks: %d\n", result.TotalChunks)
	fmt.Printf("  Duration: %s\n", result.Duration.Round(time.Millisecond))

	if len(result.FailedDocs) > 0 {
		fmt.Println()
		fmt.Println("Failed documents:")
		for _, failed := range result.FailedDocs {
			fmt.Printf("  - %s: %s\n", failed.ID, failed.Reason)
		}
	}
	return nil
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the indexed library",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	k, _ := cmd.Flags().GetInt("top")
	category, _ := cmd.Flags().GetString("category")

	svc, _, err := newRAGService(false)
	if err != nil {
		return err
	}

	retrieved, err := svc.Retrieve(ctx, strings.Join(args, " "), k, category)
	if err != nil {
		if errors.Is(err, rag.ErrNoResults) {
			return fmt.Errorf("the index is empty; run 'scribe index' first")
		}
		return err
	}

	for i, src := range retrieved.Sources {
		header := src.DocumentID
		if src.Section != "" {
			header += " [" + src.Section + "]"
		}
		fmt.Printf("%d. %s (distance %.4f)\n", i+1, header, src.Distance)
		fmt.Println(indent(snippet(src.Text, 300), "   "))
		fmt.Println()
	}
	return nil
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a rules question and get a cited answer",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	k, _ := cmd.Flags().GetInt("top")

	svc, _, err := newRAGService(true)
	if err != nil {
		return err
	}

	answer, retrieved, err := svc.Answer(ctx, strings.Join(args, " "), k)
	if err != nil {
		if errors.Is(err, rag.ErrNoResults) {
			return fmt.Errorf("the index is empty; run 'scribe index' first")
		}
		return err
	}

	fmt.Println(answer)
	fmt.Println()
	fmt.Println("Sources:")
	for _, src := range retrieved.Sources {
		header := src.DocumentID
		if src.Section != "" {
			header += " [" + src.Section + "]"
		}
		fmt.Printf("  - %s\n", header)
	}
	return nil
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Process session transcripts",
}

var sessionProcessCmd = &cobra.Command{
	Use:   "process <transcript-file>",
	Short: "Extract world-state changes from a transcript and merge them",
	Long: `Runs one transcript through extraction and merge. The merge is
all-or-nothing: if any extracted event is malformed, the world state is
left untouched. On success a summary artifact is written next to the
world state and a session recap is printed.`,
	Args: cobra.ExactArgs(1),
	RunE: runSessionProcess,
}

func runSessionProcess(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read transcript: %w", err)
	}

	id, _ := cmd.Flags().GetString("id")
	if id == "" {
		id = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
	}

	store, err := openWorld(cfg)
	if err != nil {
		return err
	}

	client, err := embedding.NewClient()
	if err != nil {
		return err
	}
	chat := generation.NewClient(client.Client(), cfg.Generation.Model,
		cfg.Generation.Temperature, cfg.Generation.MaxTokens, slog.Default())

	// Rule context is optional and needs a readable index.
	var rules session.RuleRetriever
	if cfg.Session.UseRuleContext {
		index, err := vectorindex.Load(cfg.IndexPath())
		if err != nil {
			return fmt.Errorf("rule context requires an index: %w", err)
		}
		embedder := embedding.NewEmbedder(client, cfg.Embedding.Model,
			cfg.Embedding.BatchSize, cfg.Embedding.MaxInputChars)
		rules = rag.NewService(embedder, index, nil,
			cfg.Retrieval.TopK, cfg.Retrieval.MaxContextChars, slog.Default())
	}

	processor := session.NewProcessor(chat, store, rules,
		cfg.SummariesDir(), cfg.Session.ChunkChars, slog.Default())

	summary, err := processor.Process(ctx, id, string(data))
	if err != nil {
		return err
	}

	fmt.Printf("Merged %d event(s) from %s\n", len(summary.Events), summary.TranscriptID)
	fmt.Println()
	fmt.Println(summary.Recap)
	return nil
}

var worldCmd = &cobra.Command{
	Use:   "world",
	Short: "Inspect and edit the campaign world state",
}

var worldGetCmd = &cobra.Command{
	Use:   "get <category> <name>",
	Short: "Show one entity",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, store, err := openWorldCategory(args[0])
		if err != nil {
			return err
		}
		e, ok := store.Get(cat, args[1])
		if !ok {
			return fmt.Errorf("no %s named %q", cat, args[1])
		}
		return printJSON(e)
	},
}

var worldSetCmd = &cobra.Command{
	Use:   "set <category> <name> <attr=value>...",
	Short: "Merge attributes into an entity, creating it if absent",
	Long: `Values are parsed as booleans or numbers when they look like one,
otherwise kept as strings. Existing attributes not named are untouched.`,
	Args: cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, store, err := openWorldCategory(args[0])
		if err != nil {
			return err
		}
		attrs := make(map[string]any, len(args)-2)
		for _, pair := range args[2:] {
			key, raw, ok := strings.Cut(pair, "=")
			if !ok || key == "" {
				return fmt.Errorf("expected attr=value, got %q", pair)
			}
			attrs[key] = parseAttrValue(raw)
		}
		e, err := store.Upsert(cat, args[1], attrs)
		if err != nil {
			return err
		}
		if err := store.Save(); err != nil {
			return err
		}
		return printJSON(e)
	},
}

var worldDeleteCmd = &cobra.Command{
	Use:   "delete <category> <name>",
	Short: "Remove an entity",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, store, err := openWorldCategory(args[0])
		if err != nil {
			return err
		}
		if !store.Delete(cat, args[1]) {
			return fmt.Errorf("no %s named %q", cat, args[1])
		}
		if err := store.Save(); err != nil {
			return err
		}
		fmt.Printf("Deleted %s %q\n", cat, args[1])
		return nil
	},
}

var worldListCmd = &cobra.Command{
	Use:   "list [category]",
	Short: "List entities, optionally of one category",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		store, err := openWorld(cfg)
		if err != nil {
			return err
		}

		cats := world.Categories
		if len(args) == 1 {
			cat, err := world.ParseCategory(args[0])
			if err != nil {
				return err
			}
			cats = []world.Category{cat}
		}

		for _, cat := range cats {
			entities := store.Entities(cat)
			if len(entities) == 0 {
				continue
			}
			fmt.Printf("%s:\n", cat)
			for _, e := range entities {
				fmt.Printf("  %s (updated %s)\n", e.Name, e.UpdatedAt.Format("2006-01-02"))
			}
		}
		return nil
	},
}

// newEmbedder builds the embedding stack from config.
func newEmbedder(cfg *config.Config) (*embedding.Embedder, *embedding.Client, error) {
	client, err := embedding.NewClient()
	if err != nil {
		return nil, nil, err
	}
	embedder := embedding.NewEmbedder(client, cfg.Embedding.Model,
		cfg.Embedding.BatchSize, cfg.Embedding.MaxInputChars)
	return embedder, client, nil
}

// newRAGService loads the persisted index and wires a query service.
// withCompleter also wires the generation client for answer synthesis.
func newRAGService(withCompleter bool) (*rag.Service, *config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	index, err := vectorindex.Load(cfg.IndexPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("no index at %s; run 'scribe index' first", cfg.IndexPath())
		}
		return nil, nil, err
	}

	embedder, client, err := newEmbedder(cfg)
	if err != nil {
		return nil, nil, err
	}

	var completer rag.Completer
	if withCompleter {
		completer = generation.NewClient(client.Client(), cfg.Generation.Model,
			cfg.Generation.Temperature, cfg.Generation.MaxTokens, slog.Default())
	}

	svc := rag.NewService(embedder, index, completer,
		cfg.Retrieval.TopK, cfg.Retrieval.MaxContextChars, slog.Default())
	return svc, cfg, nil
}

// openWorld loads the world store, refusing to run on a corrupt state file
// so a bad merge can never silently start from scratch.
func openWorld(cfg *config.Config) (*world.Store, error) {
	store := world.NewStore(cfg.WorldStatePath(), cfg.World.Strict, slog.Default())
	if err := store.Load(); err != nil {
		if errors.Is(err, world.ErrStateCorruption) {
			return nil, fmt.Errorf("world state at %s is corrupt; fix or remove it before continuing: %w",
				cfg.WorldStatePath(), err)
		}
		return nil, err
	}
	return store, nil
}

func openWorldCategory(category string) (world.Category, *world.Store, error) {
	cat, err := world.ParseCategory(category)
	if err != nil {
		return "", nil, err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return "", nil, err
	}
	store, err := openWorld(cfg)
	if err != nil {
		return "", nil, err
	}
	return cat, store, nil
}

// parseAttrValue keeps CLI input typed: bools and numbers stay typed, the
// rest is a string.
func parseAttrValue(raw string) any {
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func snippet(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i := range lines {
		lines[i] = prefix + lines[i]
	}
	return strings.Join(lines, "\n")
}
