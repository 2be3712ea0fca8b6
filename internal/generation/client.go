// Package generation wraps OpenAI chat completions for the answer and
// session-extraction paths.
package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
)

const (
	// DefaultModel is the chat model used for answers and extraction.
	DefaultModel = "gpt-4o-mini"

	// DefaultMaxTokens is the prompt truncation budget.
	DefaultMaxTokens = 16000
)

// ErrGenerationService marks a provider failure that survived retries.
var ErrGenerationService = errors.New("generation service failure")

// Client calls the chat-completion API with bounded retry. It shares the
// OpenAI client with the embedding package.
type Client struct {
	client      *openai.Client
	model       string
	temperature float64
	maxTokens   int
	logger      *slog.Logger
}

// NewClient creates a generation client. Zero model/maxTokens select defaults.
func NewClient(oai *openai.Client, model string, temperature float64, maxTokens int, logger *slog.Logger) *Client {
	if model == "" {
		model = DefaultModel
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		client:      oai,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		logger:      logger,
	}
}

// Complete sends a system+user prompt and returns the assistant text.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	return c.complete(ctx, system, user, false)
}

// CompleteJSON is Complete with the JSON-object response format, for
// structured extraction. The returned string is the raw JSON document.
func (c *Client) CompleteJSON(ctx context.Context, system, user string) (string, error) {
	return c.complete(ctx, system, user, true)
}

func (c *Client) complete(ctx context.Context, system, user string, jsonMode bool) (string, error) {
	user = c.truncate(user)

	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Model:       openai.ChatModel(c.model),
		Temperature: openai.Float(c.temperature),
	}
	if jsonMode {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{
				Type: "json_object",
			},
		}
	}

	var content string
	operation := func() error {
		resp, err := c.client.Chat.Completions.New(ctx, params)
		if err != nil {
			if isTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		if len(resp.Choices) == 0 {
			return backoff.Permanent(fmt.Errorf("empty completion response"))
		}
		content = resp.Choices[0].Message.Content
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationService, err)
	}
	return content, nil
}

// truncate bounds the prompt to the token budget, estimating 4 chars/token.
// The cut backs up to a rune boundary so the provider never sees broken UTF-8.
func (c *Client) truncate(content string) string {
	maxChars := c.maxTokens * 4
	if len(content) <= maxChars {
		return content
	}
	cut := maxChars
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	c.logger.Warn("Truncating prompt content",
		"from_chars", len(content), "to_chars", cut, "est_tokens", c.maxTokens)
	return content[:cut]
}

// isTransient reports whether the error is worth retrying: rate limits,
// server-side failures, or network timeouts.
func isTransient(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}
