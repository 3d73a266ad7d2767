// Package openai implements the provider.openai module, backing the
// embedding capability with an OpenAI-compatible /v1/embeddings endpoint.
package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/engram-dev/engram/internal/core"
	"github.com/engram-dev/engram/internal/provider"
)

func init() {
	core.RegisterModule(&OpenAI{})
}

// Interface guards.
var (
	_ core.Module       = (*OpenAI)(nil)
	_ core.Configurable = (*OpenAI)(nil)
	_ core.Provisioner  = (*OpenAI)(nil)
	_ core.Validator    = (*OpenAI)(nil)
	_ provider.Embedder = (*OpenAI)(nil)
)

// OpenAI is the provider.openai module. It implements provider.Embedder
// over the embeddings endpoint of any OpenAI-compatible server.
type OpenAI struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

// ModuleInfo implements core.Module.
func (o *OpenAI) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "provider.openai",
		New: func() core.Module { return &OpenAI{} },
	}
}

// Configure implements core.Configurable.
func (o *OpenAI) Configure(node *yaml.Node) error {
	if err := node.Decode(&o.config); err != nil {
		return err
	}
	o.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (o *OpenAI) Provision(ctx *core.AppContext) error {
	o.config.defaults()
	o.logger = ctx.Logger

	if o.config.APIKey == "" {
		if envKey, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
			o.config.APIKey = envKey
		}
	}

	o.client = &http.Client{Timeout: o.config.Timeout}

	ctx.RegisterService("provider.embedder", o)
	return nil
}

// Validate implements core.Validator.
func (o *OpenAI) Validate() error {
	if o.config.Model == "" {
		return errors.New("provider.openai: model must not be empty")
	}
	if o.config.Dimension <= 0 {
		return fmt.Errorf("provider.openai: dimension must be positive, got %d", o.config.Dimension)
	}
	return nil
}

// Embed implements provider.Embedder.
func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := o.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch implements provider.Embedder. Every returned vector is checked
// against the configured dimension; a mismatch would silently corrupt
// similarity math downstream.
func (o *OpenAI) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vecs, err := o.requestEmbeddings(ctx, texts)
	if err != nil {
		return nil, provider.MapEmbedErr(err)
	}

	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d inputs", provider.ErrEmbedFailed, len(vecs), len(texts))
	}
	for i, vec := range vecs {
		if len(vec) != o.config.Dimension {
			return nil, fmt.Errorf("%w: embedding %d has dimension %d, want %d",
				provider.ErrEmbedFailed, i, len(vec), o.config.Dimension)
		}
	}
	return vecs, nil
}

// Dimension implements provider.Embedder.
func (o *OpenAI) Dimension() int {
	return o.config.Dimension
}
