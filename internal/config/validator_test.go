package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	spanerrors "github.com/standardbeagle/spanidx/internal/errors"
	"github.com/standardbeagle/spanidx/internal/types"
)

func TestValidateAndSetDefaults(t *testing.T) {
	cfg := &Config{}

	validator := NewValidator()
	require.NoError(t, validator.ValidateAndSetDefaults(cfg))

	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, "default", cfg.Store.Index)
	assert.Equal(t, int64(types.DefaultMaxContentSize), cfg.Spans.MaxContentSize)
	assert.Equal(t, types.DefaultLineSpanThreshold, cfg.Spans.LineSpanThreshold)
	assert.GreaterOrEqual(t, cfg.Upload.Concurrency, 1)
	assert.LessOrEqual(t, cfg.Upload.Concurrency, types.DefaultUploadConcurrency)
	assert.Equal(t, 100, cfg.Search.MaxResults)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name  string
		field string
		edit  func(*Config)
	}{
		{"unknown backend", "store", func(c *Config) { c.Store.Backend = "postgres" }},
		{"index with spaces", "store", func(c *Config) { c.Store.Index = "my index" }},
		{"negative content size", "spans", func(c *Config) { c.Spans.MaxContentSize = -1 }},
		{"huge content size", "spans", func(c *Config) { c.Spans.MaxContentSize = 1 << 30 }},
		{"negative threshold", "spans", func(c *Config) { c.Spans.LineSpanThreshold = -2 }},
		{"negative concurrency", "upload.concurrency", func(c *Config) { c.Upload.Concurrency = -1 }},
		{"negative debounce", "upload.watch_debounce_ms", func(c *Config) { c.Upload.WatchDebounceMs = -1 }},
		{"negative max results", "search", func(c *Config) { c.Search.MaxResults = -5 }},
		{"threshold above one", "search", func(c *Config) { c.Search.SuggestThreshold = 1.5 }},
		{"bad glob", "pattern", func(c *Config) { c.Exclude = []string{"src/[a"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.edit(cfg)

			err := ValidateConfig(cfg)
			require.Error(t, err)

			var cfgErr *spanerrors.ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestValidateNormalizesBackend(t *testing.T) {
	cfg := Default()
	cfg.Store.Backend = "SQLite"
	require.NoError(t, ValidateConfig(cfg))
	assert.Equal(t, BackendSQLite, cfg.Store.Backend)
}
