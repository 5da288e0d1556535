// Package config provides configuration for the FinLite backend.
// Values come from built-in defaults, an optional YAML file, and
// FINLITE_* environment variable overrides, in increasing precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/claracenn/finlite/internal/logging"
)

// Config represents the complete FinLite backend configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Server     ServerConfig     `yaml:"server" json:"server"`
	Retrieval  RetrievalConfig  `yaml:"retrieval" json:"retrieval"`
	Index      IndexConfig      `yaml:"index" json:"index"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Generation GenerationConfig `yaml:"generation" json:"generation"`
	History    HistoryConfig    `yaml:"history" json:"history"`
	Formulas   FormulasConfig   `yaml:"formulas" json:"formulas"`
}

// ServerConfig configures the HTTP edge.
type ServerConfig struct {
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// RetrievalConfig configures hybrid retrieval and the answerability gate.
type RetrievalConfig struct {
	// K is the default number of snippets selected per query.
	K int `yaml:"k" json:"k"`

	// BM25TopMult is the candidate fanout multiplier: the BM25 stage keeps
	// max(k*BM25TopMult, min(N, 50)) candidates.
	BM25TopMult int `yaml:"bm25_top_mult" json:"bm25_top_mult"`

	// WeightBM25 is the fusion weight for the normalized BM25 signal.
	WeightBM25 float64 `yaml:"weight_bm25" json:"weight_bm25"`

	// WeightEmbed is the fusion weight for the normalized similarity signal.
	WeightEmbed float64 `yaml:"weight_embed" json:"weight_embed"`

	// AnswerabilityThreshold is the fused-score gate: queries whose best
	// evidence score falls below it are refused.
	AnswerabilityThreshold float64 `yaml:"answerability_threshold" json:"answerability_threshold"`

	// EvidenceOverlapThreshold is the coverage gate applied after ranking.
	EvidenceOverlapThreshold float64 `yaml:"evidence_overlap_threshold" json:"evidence_overlap_threshold"`
}

// IndexConfig configures the persistent vector index.
type IndexConfig struct {
	// Path is the index file location. Absolute paths are used as-is;
	// relative paths resolve under the per-user state directory in packaged
	// mode, or relative to the working directory otherwise.
	Path string `yaml:"path" json:"path"`

	// Packaged indicates a single-file deployment where only per-user
	// directories are writable.
	Packaged bool `yaml:"packaged" json:"packaged"`
}

// EmbeddingsConfig configures the embedding encoder.
type EmbeddingsConfig struct {
	// Provider selects the encoder backend: "ollama", "static", or empty
	// for auto-detection (Ollama if reachable, static otherwise).
	Provider string `yaml:"provider" json:"provider"`

	// Model is the embedding model identity.
	Model string `yaml:"model" json:"model"`

	// Host is the Ollama API endpoint (default: http://localhost:11434).
	Host string `yaml:"host" json:"host"`

	// Dimensions is the embedding dimension (0 = auto-detect from encoder).
	Dimensions int `yaml:"dimensions" json:"dimensions"`

	// BatchSize is texts per embedding request.
	BatchSize int `yaml:"batch_size" json:"batch_size"`

	// CacheSize is the query-embedding LRU cache size.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// GenParams are per-mode generation parameters.
type GenParams struct {
	MaxTokens   int      `yaml:"max_tokens" json:"max_tokens"`
	Stop        []string `yaml:"stop" json:"stop"`
	Temperature float64  `yaml:"temperature" json:"temperature"`
}

// GenerationConfig configures the generative model.
type GenerationConfig struct {
	// Model is the generation model identity.
	Model string `yaml:"model" json:"model"`

	// Host is the Ollama API endpoint (default: http://localhost:11434).
	Host string `yaml:"host" json:"host"`

	// DetailedWordLimit caps the answer length stated in detailed prompts.
	DetailedWordLimit int `yaml:"detailed_word_limit" json:"detailed_word_limit"`

	// Params are the concise-mode generation parameters.
	Params GenParams `yaml:"params" json:"params"`

	// ParamsDetailed are the detailed-mode generation parameters.
	ParamsDetailed GenParams `yaml:"params_detailed" json:"params_detailed"`
}

// HistoryConfig configures the interaction log.
type HistoryConfig struct {
	// LogJSONL is the interaction log path. Empty resolves to
	// ~/.finlite/history.jsonl.
	LogJSONL string `yaml:"log_jsonl" json:"log_jsonl"`
}

// FormulasConfig configures the formula template registry.
type FormulasConfig struct {
	// Path is the JSON file holding predefined formula templates.
	// Empty disables the registry.
	Path string `yaml:"path" json:"path"`
}

// Default generation stop sequences. The post-processor splits on the same
// markers, so generation that runs past a stop is still trimmed.
var defaultStop = []string{"\nQuestion:", "\nSelected range"}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Server: ServerConfig{
			Host:     "127.0.0.1",
			Port:     8000,
			LogLevel: "info",
		},
		Retrieval: RetrievalConfig{
			K:                        5,
			BM25TopMult:              5,
			WeightBM25:               0.5,
			WeightEmbed:              0.5,
			AnswerabilityThreshold:   0.15,
			EvidenceOverlapThreshold: 0.15,
		},
		Index: IndexConfig{
			Path:     "finlite.index",
			Packaged: false,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "", // auto-detect: Ollama -> static
			Model:      "nomic-embed-text",
			Host:       "",
			Dimensions: 0, // auto-detect from encoder
			BatchSize:  32,
			CacheSize:  1000,
		},
		Generation: GenerationConfig{
			Model:             "qwen2.5:3b",
			Host:              "",
			DetailedWordLimit: 200,
			Params: GenParams{
				MaxTokens:   200,
				Stop:        defaultStop,
				Temperature: 0.2,
			},
			ParamsDetailed: GenParams{
				MaxTokens:   400,
				Stop:        defaultStop,
				Temperature: 0.2,
			},
		},
		History: HistoryConfig{
			LogJSONL: "",
		},
		Formulas: FormulasConfig{
			Path: "fin_formula.json",
		},
	}
}

// Load reads configuration from the given YAML file path, merged over
// defaults, then applies environment overrides. A missing file is not an
// error when path is empty; an explicit path that does not exist is.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnv applies FINLITE_* environment variable overrides.
func (c *Config) applyEnv() {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setFloat := func(key string, dst *float64) {
		if v := os.Getenv(key); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				*dst = f
			}
		}
	}
	setBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	setString("FINLITE_HOST", &c.Server.Host)
	setInt("FINLITE_PORT", &c.Server.Port)
	setString("FINLITE_LOG_LEVEL", &c.Server.LogLevel)

	setInt("FINLITE_K", &c.Retrieval.K)
	setInt("FINLITE_BM25_TOP_MULT", &c.Retrieval.BM25TopMult)
	setFloat("FINLITE_WEIGHT_BM25", &c.Retrieval.WeightBM25)
	setFloat("FINLITE_WEIGHT_EMBED", &c.Retrieval.WeightEmbed)
	setFloat("FINLITE_ANSWERABILITY_THRESHOLD", &c.Retrieval.AnswerabilityThreshold)
	setFloat("FINLITE_EVIDENCE_OVERLAP_THRESHOLD", &c.Retrieval.EvidenceOverlapThreshold)

	setString("FINLITE_INDEX_PATH", &c.Index.Path)
	setBool("FINLITE_PACKAGED", &c.Index.Packaged)

	setString("FINLITE_EMBEDDING_PROVIDER", &c.Embeddings.Provider)
	setString("FINLITE_EMBEDDING_MODEL", &c.Embeddings.Model)
	setString("FINLITE_OLLAMA_HOST", &c.Embeddings.Host)
	setInt("FINLITE_EMBEDDING_DIMENSIONS", &c.Embeddings.Dimensions)

	setString("FINLITE_GENERATION_MODEL", &c.Generation.Model)
	setString("FINLITE_GENERATION_HOST", &c.Generation.Host)
	setInt("FINLITE_DETAILED_WORD_LIMIT", &c.Generation.DetailedWordLimit)

	setString("FINLITE_LOG_JSONL", &c.History.LogJSONL)
	setString("FINLITE_FORMULA_PATH", &c.Formulas.Path)
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Retrieval.K <= 0 {
		return fmt.Errorf("retrieval.k must be positive, got %d", c.Retrieval.K)
	}
	if c.Retrieval.BM25TopMult <= 0 {
		return fmt.Errorf("retrieval.bm25_top_mult must be positive, got %d", c.Retrieval.BM25TopMult)
	}
	if c.Retrieval.WeightBM25 < 0 || c.Retrieval.WeightEmbed < 0 {
		return fmt.Errorf("retrieval weights must be non-negative")
	}
	if c.Retrieval.AnswerabilityThreshold < 0 || c.Retrieval.AnswerabilityThreshold > 1 {
		return fmt.Errorf("answerability_threshold must be in [0,1], got %g", c.Retrieval.AnswerabilityThreshold)
	}
	if c.Retrieval.EvidenceOverlapThreshold < 0 || c.Retrieval.EvidenceOverlapThreshold > 1 {
		return fmt.Errorf("evidence_overlap_threshold must be in [0,1], got %g", c.Retrieval.EvidenceOverlapThreshold)
	}
	if c.Index.Path == "" {
		return fmt.Errorf("index.path must not be empty")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	return nil
}

// ResolveIndexPath resolves the configured index path per the lifecycle
// rules: absolute paths are used as-is; in packaged mode relative paths
// resolve under the per-user state directory; otherwise they resolve
// relative to the working directory.
func (c *Config) ResolveIndexPath() string {
	if filepath.IsAbs(c.Index.Path) {
		return c.Index.Path
	}
	if c.Index.Packaged {
		return filepath.Join(logging.StateDir(), filepath.Base(c.Index.Path))
	}
	return c.Index.Path
}

// ResolveHistoryPath resolves the interaction log path, defaulting to
// ~/.finlite/history.jsonl.
func (c *Config) ResolveHistoryPath() string {
	if c.History.LogJSONL != "" {
		return c.History.LogJSONL
	}
	return filepath.Join(logging.StateDir(), "history.jsonl")
}
