// Package anthropic provides a parser.Completer backed by the Anthropic
// Messages API.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/calweave/calweave/parser"
)

// Options configures the Anthropic completer (model id, temperature, API
// key). Extend via functional options to preserve stability.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	APIKey      string
}

// Completer wraps the Anthropic Messages API behind the parser.Completer
// interface.
type Completer struct {
	client *anthropic.Client
	opts   Options
}

var _ parser.Completer = (*Completer)(nil)

// NewCompleter creates a new Anthropic completer using the official client.
func NewCompleter(optFns ...func(o *Options)) *Completer {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.1,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Completer{
		client: &client,
		opts:   opts,
	}
}

// NewCompleterFromClient creates a new Anthropic completer from an existing
// client.
func NewCompleterFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Completer {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.1,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Completer{
		client: client,
		opts:   opts,
	}
}

// WithModel overrides the model id.
func WithModel(model anthropic.Model) func(o *Options) {
	return func(o *Options) { o.Model = model }
}

// WithTemperature overrides the sampling temperature.
func WithTemperature(temperature float64) func(o *Options) {
	return func(o *Options) { o.Temperature = temperature }
}

// WithAPIKey sets an explicit API key instead of the environment default.
func WithAPIKey(apiKey string) func(o *Options) {
	return func(o *Options) { o.APIKey = apiKey }
}

// Complete implements parser.Completer.
func (c *Completer) Complete(ctx context.Context, system, user string, maxTokens int) (string, error) {
	params := anthropic.MessageNewParams{
		Model:       c.opts.Model,
		MaxTokens:   int64(maxTokens),
		Temperature: anthropic.Float(c.opts.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic api error: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}
	return sb.String(), nil
}
