package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 2048, cfg.Render.PreviewSize)
	assert.True(t, cfg.GPU.Enabled)
	assert.NotEmpty(t, cfg.StorePath)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"log level", func(c *Config) { c.LogLevel = "trace" }},
		{"preview size", func(c *Config) { c.Render.PreviewSize = 0 }},
		{"batch workers", func(c *Config) { c.Batch.Workers = -1 }},
		{"batch format", func(c *Config) { c.Batch.Format = "WEBP" }},
		{"port low", func(c *Config) { c.Server.Port = 0 }},
		{"port high", func(c *Config) { c.Server.Port = 70000 }},
		{"timeout", func(c *Config) { c.Server.TimeoutSec = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestValidateAcceptsLowercaseFormat(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Batch.Format = "tiff"
	require.NoError(t, cfg.Validate())
}
