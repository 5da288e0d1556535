package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, 5, cfg.Retrieval.K)
	assert.Equal(t, 5, cfg.Retrieval.BM25TopMult)
	assert.InDelta(t, 0.5, cfg.Retrieval.WeightBM25, 1e-9)
	assert.InDelta(t, 0.5, cfg.Retrieval.WeightEmbed, 1e-9)
	assert.InDelta(t, 0.15, cfg.Retrieval.AnswerabilityThreshold, 1e-9)
	assert.InDelta(t, 0.15, cfg.Retrieval.EvidenceOverlapThreshold, 1e-9)
	assert.Equal(t, 200, cfg.Generation.DetailedWordLimit)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Retrieval.K)
}

func TestLoad_MissingExplicitFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
retrieval:
  k: 7
  weight_bm25: 0.8
  weight_embed: 0.2
generation:
  detailed_word_limit: 120
index:
  path: /var/lib/finlite/custom.index
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Retrieval.K)
	assert.InDelta(t, 0.8, cfg.Retrieval.WeightBM25, 1e-9)
	assert.Equal(t, 120, cfg.Generation.DetailedWordLimit)
	assert.Equal(t, "/var/lib/finlite/custom.index", cfg.Index.Path)

	// Untouched sections keep defaults.
	assert.Equal(t, 5, cfg.Retrieval.BM25TopMult)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("retrieval:\n  k: 7\n"), 0o644))

	t.Setenv("FINLITE_K", "9")
	t.Setenv("FINLITE_ANSWERABILITY_THRESHOLD", "0.3")
	t.Setenv("FINLITE_EMBEDDING_MODEL", "custom-model")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9, cfg.Retrieval.K)
	assert.InDelta(t, 0.3, cfg.Retrieval.AnswerabilityThreshold, 1e-9)
	assert.Equal(t, "custom-model", cfg.Embeddings.Model)
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero k", func(c *Config) { c.Retrieval.K = 0 }},
		{"zero fanout", func(c *Config) { c.Retrieval.BM25TopMult = 0 }},
		{"negative weight", func(c *Config) { c.Retrieval.WeightBM25 = -1 }},
		{"threshold above one", func(c *Config) { c.Retrieval.AnswerabilityThreshold = 1.5 }},
		{"empty index path", func(c *Config) { c.Index.Path = "" }},
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestResolveIndexPath(t *testing.T) {
	cfg := NewConfig()

	cfg.Index.Path = "/abs/path/vectors.index"
	assert.Equal(t, "/abs/path/vectors.index", cfg.ResolveIndexPath())

	cfg.Index.Path = "rel.index"
	cfg.Index.Packaged = false
	assert.Equal(t, "rel.index", cfg.ResolveIndexPath())

	cfg.Index.Packaged = true
	resolved := cfg.ResolveIndexPath()
	assert.True(t, filepath.IsAbs(resolved))
	assert.Equal(t, "rel.index", filepath.Base(resolved))
	assert.Contains(t, resolved, ".finlite")
}

func TestResolveHistoryPath(t *testing.T) {
	cfg := NewConfig()

	assert.Contains(t, cfg.ResolveHistoryPath(), "history.jsonl")

	cfg.History.LogJSONL = "/tmp/custom.jsonl"
	assert.Equal(t, "/tmp/custom.jsonl", cfg.ResolveHistoryPath())
}
