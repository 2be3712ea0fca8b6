// Package config loads the scribe configuration from a YAML file with
// sensible defaults for a single local campaign.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	Size    int `yaml:"size"`    // target chunk size in runes
	Overlap int `yaml:"overlap"` // overlap between consecutive chunks in runes
}

// EmbeddingConfig configures the OpenAI embedding client.
type EmbeddingConfig struct {
	Model         string `yaml:"model"`
	BatchSize     int    `yaml:"batch_size"`
	MaxInputChars int    `yaml:"max_input_chars"`
}

// GenerationConfig configures the chat-completion client.
type GenerationConfig struct {
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"` // prompt truncation budget
}

// RetrievalConfig configures RAG queries.
type RetrievalConfig struct {
	TopK            int    `yaml:"top_k"`
	MaxContextChars int    `yaml:"max_context_chars"`
	Metric          string `yaml:"metric"` // cosine or euclidean
}

// WorldConfig configures the world state store.
type WorldConfig struct {
	Strict bool `yaml:"strict"` // reject state files missing category keys
}

// SessionConfig configures transcript processing.
type SessionConfig struct {
	ChunkChars     int  `yaml:"chunk_chars"`      // transcript chunk size for extraction
	UseRuleContext bool `yaml:"use_rule_context"` // augment extraction with RAG context
}

// Config is the root configuration for the scribe tool.
type Config struct {
	DataDir    string `yaml:"data_dir"`    // world state, index, summaries live here
	LibraryDir string `yaml:"library_dir"` // source rulebooks and adventures

	Chunker    ChunkerConfig    `yaml:"chunker"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	World      WorldConfig      `yaml:"world"`
	Session    SessionConfig    `yaml:"session"`
}

// Load reads a config from path. A missing file returns the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	applyDefaults(cfg)
	return cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		DataDir:    "data",
		LibraryDir: "library",
		Chunker:    ChunkerConfig{Size: 1200, Overlap: 200},
		Embedding: EmbeddingConfig{
			Model:         "text-embedding-3-small",
			BatchSize:     500,
			MaxInputChars: 8000,
		},
		Generation: GenerationConfig{
			Model:       "gpt-4o-mini",
			Temperature: 0.3,
			MaxTokens:   16000,
		},
		Retrieval: RetrievalConfig{
			TopK:            5,
			MaxContextChars: 6000,
			Metric:          "cosine",
		},
		Session: SessionConfig{ChunkChars: 12000},
	}
}

func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.DataDir == "" {
		cfg.DataDir = def.DataDir
	}
	if cfg.LibraryDir == "" {
		cfg.LibraryDir = def.LibraryDir
	}
	if cfg.Chunker.Size == 0 {
		cfg.Chunker.Size = def.Chunker.Size
	}
	if cfg.Chunker.Overlap == 0 {
		cfg.Chunker.Overlap = def.Chunker.Overlap
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = def.Embedding.Model
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = def.Embedding.BatchSize
	}
	if cfg.Embedding.MaxInputChars == 0 {
		cfg.Embedding.MaxInputChars = def.Embedding.MaxInputChars
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = def.Generation.Model
	}
	if cfg.Generation.Temperature == 0 {
		cfg.Generation.Temperature = def.Generation.Temperature
	}
	if cfg.Generation.MaxTokens == 0 {
		cfg.Generation.MaxTokens = def.Generation.MaxTokens
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = def.Retrieval.TopK
	}
	if cfg.Retrieval.MaxContextChars == 0 {
		cfg.Retrieval.MaxContextChars = def.Retrieval.MaxContextChars
	}
	if cfg.Retrieval.Metric == "" {
		cfg.Retrieval.Metric = def.Retrieval.Metric
	}
	if cfg.Session.ChunkChars == 0 {
		cfg.Session.ChunkChars = def.Session.ChunkChars
	}
}

// IndexPath returns the location of the persisted vector index.
func (c *Config) IndexPath() string {
	return filepath.Join(c.DataDir, "index.json")
}

// WorldStatePath returns the location of the persisted world state.
func (c *Config) WorldStatePath() string {
	return filepath.Join(c.DataDir, "world_state.json")
}

// SummariesDir returns the directory session summaries are written to.
func (c *Config) SummariesDir() string {
	return filepath.Join(c.DataDir, "session_summaries")
}
