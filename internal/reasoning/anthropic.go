package reasoning

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicConfig contains configuration for the Anthropic-backed
// collaborator.
type AnthropicConfig struct {
	// APIKey is the Anthropic API key. If empty, uses ANTHROPIC_API_KEY.
	APIKey string
	// Model is the Claude model to use; empty selects a default.
	Model anthropic.Model
	// Timeout bounds each Complete call. Zero means 30 seconds.
	Timeout time.Duration
	// MaxTokens caps the response size. Zero means 2048.
	MaxTokens int
}

// AnthropicCollaborator implements Collaborator against the Anthropic
// Messages API. Each Complete call is one request with no tool use and no
// conversation state.
type AnthropicCollaborator struct {
	client    anthropic.Client
	model     anthropic.Model
	timeout   time.Duration
	maxTokens int64
}

// NewAnthropic creates an Anthropic-backed collaborator.
func NewAnthropic(cfg AnthropicConfig) (*AnthropicCollaborator, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable is not set")
	}

	model := cfg.Model
	if model == "" {
		model = anthropic.ModelClaudeSonnet4_20250514
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	maxTokens := int64(cfg.MaxTokens)
	if maxTokens == 0 {
		maxTokens = 2048
	}

	return &AnthropicCollaborator{
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		timeout:   timeout,
		maxTokens: maxTokens,
	}, nil
}

// Model returns the configured model name.
func (a *AnthropicCollaborator) Model() anthropic.Model {
	return a.model
}

// Complete sends one instruction and returns the text of the response.
func (a *AnthropicCollaborator) Complete(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic message: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			text += variant.Text
		}
	}
	if text == "" {
		return "", fmt.Errorf("anthropic message: empty response")
	}
	return text, nil
}
