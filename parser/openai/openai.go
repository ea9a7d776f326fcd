// Package openai provides a parser.Completer backed by the OpenAI Chat
// Completions API.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"

	"github.com/calweave/calweave/parser"
)

// Options configure the OpenAI completer. Fields mirror a subset of Chat
// Completion parameters intentionally kept minimal; extend via functional
// options without breaking callers.
type Options struct {
	Model       string
	Temperature float64
}

// Completer wraps the OpenAI Chat Completions API behind the
// parser.Completer interface.
type Completer struct {
	client *openai.Client
	opts   Options
}

var _ parser.Completer = (*Completer)(nil)

// NewCompleter creates a new OpenAI completer using the official client.
func NewCompleter(optFns ...func(o *Options)) *Completer {
	client := openai.NewClient()
	return NewCompleterFromClient(&client, optFns...)
}

// NewCompleterFromClient creates a new OpenAI completer from an existing
// client.
func NewCompleterFromClient(client *openai.Client, optFns ...func(o *Options)) *Completer {
	opts := Options{
		Model:       openai.ChatModelGPT4oMini,
		Temperature: 0.1,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Completer{client: client, opts: opts}
}

// WithModel overrides the model id.
func WithModel(model string) func(o *Options) {
	return func(o *Options) { o.Model = model }
}

// WithTemperature overrides the sampling temperature.
func WithTemperature(temperature float64) func(o *Options) {
	return func(o *Options) { o.Temperature = temperature }
}

// Complete implements parser.Completer.
func (c *Completer) Complete(ctx context.Context, system, user string, maxTokens int) (string, error) {
	messages := []openai.ChatCompletionMessageParamUnion{}
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	messages = append(messages, openai.UserMessage(user))

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               c.opts.Model,
		Messages:            messages,
		Temperature:         openai.Float(c.opts.Temperature),
		MaxCompletionTokens: openai.Int(int64(maxTokens)),
	})
	if err != nil {
		return "", fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
