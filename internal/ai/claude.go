// Package ai explains configuration drift using Claude.
package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	opserrors "github.com/yairfalse/ilmari/internal/errors"
	"github.com/yairfalse/ilmari/pkg/types"
)

// DefaultModel is used when claude.model is empty
const DefaultModel = "claude-sonnet-4-20250514"

const maxTokens = 1024

// ClaudeClient sends drift to the Anthropic Messages API
type ClaudeClient struct {
	client anthropic.Client
	model  string
}

// Options configure a ClaudeClient
type Options struct {
	APIKey     string
	Model      string
	HTTPClient *http.Client
	// BaseURL overrides the API endpoint
	BaseURL string
}

// NewClaudeClient builds a client. A missing API key is a configuration error.
func NewClaudeClient(opts Options) (*ClaudeClient, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, opserrors.ConfigurationError("--explain needs a Claude API key").
			WithSolutions(
				"Set claude.api_key in config.yaml",
				"Or export ANTHROPIC_API_KEY",
			)
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(0),
	}
	if opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}

	return &ClaudeClient{
		client: anthropic.NewClient(reqOpts...),
		model:  opts.Model,
	}, nil
}

// Explain summarises the drift of device
func (c *ClaudeClient) Explain(ctx context.Context, device string, changes []types.Change) (string, error) {
	if len(changes) == 0 {
		return "", nil
	}

	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: maxTokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(BuildPrompt(device, changes))),
		},
	})
	if err != nil {
		return "", fmt.Errorf("claude request failed: %w", err)
	}

	var parts []string
	for _, block := range msg.Content {
		if block.Type == "text" && strings.TrimSpace(block.Text) != "" {
			parts = append(parts, strings.TrimSpace(block.Text))
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("claude returned no text")
	}
	return strings.Join(parts, "\n\n"), nil
}
