// Package llm runs single-turn completions against OpenAI-compatible and
// Anthropic streaming APIs and tracks their token usage.
package llm

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/go-resty/resty/v2"
)

const maxErrorBody = 4 << 10

// Binding is a resolved provider + model pair.
type Binding struct {
	Provider  string // config name, used in errors and usage records
	API       string // APIOpenAI or APIAnthropic
	Model     string
	APIKey    string
	BaseURL   string
	System    string
	MaxTokens int
	Purpose   string // usage bucket, e.g. "ai" or "ocr"
}

// Completer runs single-turn, non-interactive requests against one binding
// and reports token usage.
type Completer struct {
	binding Binding
	dialect dialect
	http    *resty.Client
	usage   *UsageTracker
}

// NewCompleter binds a model. usage may be nil.
func NewCompleter(binding Binding, usage *UsageTracker) *Completer {
	return &Completer{
		binding: binding,
		dialect: dialectFor(binding.API),
		http:    resty.New(),
		usage:   usage,
	}
}

// Complete sends prompt as a single user message and returns the full answer.
func (c *Completer) Complete(ctx context.Context, text string) (string, error) {
	return c.run(ctx, prompt{text: text})
}

// CompleteWithImages sends prompt together with images.
func (c *Completer) CompleteWithImages(ctx context.Context, text string, images []ImageData) (string, error) {
	return c.run(ctx, prompt{text: text, images: images})
}

func (c *Completer) run(ctx context.Context, p prompt) (string, error) {
	b := c.binding
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(c.dialect.headers(b.APIKey)).
		SetBody(c.dialect.body(b, p)).
		SetDoNotParseResponse(true).
		Post(c.dialect.endpoint(b.BaseURL))
	if err != nil {
		return "", fmt.Errorf("chat %s/%s: %w", b.Provider, b.Model, err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(body, maxErrorBody))
		return "", &APIError{Provider: b.Provider, StatusCode: resp.StatusCode(), Body: string(msg)}
	}

	out, err := readCompletion(body, c.dialect.decode)
	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return "", fmt.Errorf("read stream %s/%s: %w", b.Provider, b.Model, err)
	}
	if !out.Usage.empty() {
		c.usage.Record(UsageRecord{
			Purpose:      b.Purpose,
			Provider:     b.Provider,
			Model:        b.Model,
			InputTokens:  out.Usage.InputTokens,
			OutputTokens: out.Usage.OutputTokens,
		})
	}
	return out.Text, nil
}
