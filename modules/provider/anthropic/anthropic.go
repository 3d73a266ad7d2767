// Package anthropic implements the provider.anthropic module, backing the
// summarization capability with the Anthropic Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"gopkg.in/yaml.v3"

	"github.com/engram-dev/engram/internal/core"
	"github.com/engram-dev/engram/internal/memory"
	"github.com/engram-dev/engram/internal/provider"
)

func init() {
	core.RegisterModule(&Anthropic{})
}

// Interface guards.
var (
	_ core.Module         = (*Anthropic)(nil)
	_ core.Configurable   = (*Anthropic)(nil)
	_ core.Provisioner    = (*Anthropic)(nil)
	_ core.Validator      = (*Anthropic)(nil)
	_ provider.Summarizer = (*Anthropic)(nil)
)

// Anthropic is the provider.anthropic module. It implements
// provider.Summarizer using the Anthropic Messages API.
type Anthropic struct {
	config Config
	client *sdkanthropic.Client
	logger *slog.Logger
}

// ModuleInfo implements core.Module.
func (a *Anthropic) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "provider.anthropic",
		New: func() core.Module { return &Anthropic{} },
	}
}

// Configure implements core.Configurable.
func (a *Anthropic) Configure(node *yaml.Node) error {
	if err := node.Decode(&a.config); err != nil {
		return err
	}
	a.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (a *Anthropic) Provision(ctx *core.AppContext) error {
	a.config.defaults()
	a.logger = ctx.Logger

	// Resolve API key: config takes precedence over environment variable.
	apiKey := a.config.APIKey
	if apiKey == "" {
		if envKey, ok := os.LookupEnv("ANTHROPIC_API_KEY"); ok {
			apiKey = envKey
		}
	}

	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if a.config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(a.config.BaseURL))
	}
	// The engine retries by reprocessing the window on the next trigger;
	// SDK-level retries would stretch the run past its timeout.
	opts = append(opts, option.WithMaxRetries(0))

	client := sdkanthropic.NewClient(opts...)
	a.client = &client

	ctx.RegisterService("provider.summarizer", a)
	return nil
}

// Validate implements core.Validator.
func (a *Anthropic) Validate() error {
	if a.config.Model == "" {
		return errors.New("provider.anthropic: model must not be empty")
	}
	if a.client == nil {
		return errors.New("provider.anthropic: client not initialized (Provision not called)")
	}
	return nil
}

// Summarize implements provider.Summarizer. It folds the seed board and the
// new messages through a structured prompt and parses the model's JSON
// answer into a SummaryUpdate.
func (a *Anthropic) Summarize(ctx context.Context, seed memory.SummaryBoard, msgs []memory.Message) (memory.SummaryUpdate, error) {
	params := sdkanthropic.MessageNewParams{
		Model:     sdkanthropic.Model(a.config.Model),
		MaxTokens: int64(a.config.MaxTokens),
		System: []sdkanthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []sdkanthropic.MessageParam{
			sdkanthropic.NewUserMessage(
				sdkanthropic.NewTextBlock(buildPrompt(seed, msgs)),
			),
		},
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return memory.SummaryUpdate{}, provider.MapSummarizeErr(err)
	}

	var content string
	for _, block := range msg.Content {
		if v, ok := block.AsAny().(sdkanthropic.TextBlock); ok {
			if content != "" {
				content += "\n"
			}
			content += v.Text
		}
	}

	update, err := parseUpdate(content)
	if err != nil {
		return memory.SummaryUpdate{}, fmt.Errorf("%w: %v", provider.ErrSummarizeFailed, err)
	}
	return update, nil
}
