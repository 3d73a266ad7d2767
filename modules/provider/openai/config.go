package openai

import "time"

const (
	defaultBaseURL   = "https://api.openai.com/v1"
	defaultModel     = "text-embedding-3-small"
	defaultDimension = 1536
	defaultTimeout   = 30 * time.Second
)

// Config holds the YAML-decoded configuration for the embeddings provider.
type Config struct {
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`

	// Dimension is the fixed embedding dimension D. Vectors of any other
	// length are rejected.
	Dimension int `yaml:"dimension"`
}

// defaults fills in zero-value fields with sensible defaults.
func (c *Config) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.Dimension == 0 {
		c.Dimension = defaultDimension
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
}
