package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Equal(t, "*", cfg.Server.CORSOrigins)
	assert.Equal(t, "./dog-images", cfg.Gallery.Dir)
	assert.Equal(t, "dir", cfg.Gallery.Source)
	assert.Equal(t, "Xenova/clip-vit-base-patch32", cfg.Embedding.Model)
	assert.Equal(t, 224, cfg.Embedding.InputSize)
	assert.Equal(t, 5, cfg.Match.TopK)
	assert.Equal(t, 30*time.Second, cfg.Match.Timeout)
	assert.Equal(t, 70, cfg.Enrichment.MinScore)
	assert.Equal(t, 99, cfg.Enrichment.MaxScore)
	assert.False(t, cfg.Database.Redis.Enabled)
}

func TestLoadFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  port: "8080"
gallery:
  dir: /srv/dogs
  workers: 8
embedding:
  model: clip-large
  dimensions: 768
match:
  top_k: 3
  timeout: 5s
database:
  redis:
    enabled: true
    addr: redis:6379
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "/srv/dogs", cfg.Gallery.Dir)
	assert.Equal(t, 8, cfg.Gallery.Workers)
	assert.Equal(t, "clip-large", cfg.Embedding.Model)
	assert.Equal(t, 768, cfg.Embedding.Dimensions)
	assert.Equal(t, 3, cfg.Match.TopK)
	assert.Equal(t, 5*time.Second, cfg.Match.Timeout)
	assert.True(t, cfg.Database.Redis.Enabled)
	assert.Equal(t, "redis:6379", cfg.Database.Redis.Addr)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("PETMATCH_SERVER_PORT", "9999")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "9999", cfg.Server.Port)
}

func TestValidate(t *testing.T) {
	base, err := Load("")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero topK", func(c *Config) { c.Match.TopK = 0 }},
		{"max below default", func(c *Config) { c.Match.MaxTopK = 1; c.Match.TopK = 5 }},
		{"inverted score range", func(c *Config) { c.Enrichment.MinScore = 90; c.Enrichment.MaxScore = 80 }},
		{"unknown source", func(c *Config) { c.Gallery.Source = "ftp" }},
		{"minio source disabled", func(c *Config) { c.Gallery.Source = "minio" }},
		{"es ranker disabled", func(c *Config) { c.Match.Ranker = "elasticsearch" }},
		{"unknown ranker", func(c *Config) { c.Match.Ranker = "annoy" }},
		{"zero input size", func(c *Config) { c.Embedding.InputSize = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
	assert.NoError(t, base.Validate())
}
