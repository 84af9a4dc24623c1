package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// anthropicDialect speaks the Messages API.
type anthropicDialect struct{}

const (
	anthropicBaseURL          = "https://api.anthropic.com"
	anthropicAPIVersion       = "2023-06-01"
	anthropicDefaultMaxTokens = 1024
)

type anthropicRequest struct {
	Model     string             `json:"model"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
	MaxTokens int                `json:"max_tokens"`
	Stream    bool               `json:"stream"`
}

type anthropicMessage struct {
	Role    string           `json:"role"`
	Content []anthropicBlock `json:"content"`
}

type anthropicBlock struct {
	Type   string                `json:"type"`
	Text   string                `json:"text,omitempty"`
	Source *anthropicImageSource `json:"source,omitempty"`
}

type anthropicImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// anthropicFrame covers every streamed event the bot reads.
type anthropicFrame struct {
	Message struct {
		Usage struct {
			InputTokens int `json:"input_tokens"`
		} `json:"usage"`
	} `json:"message"`
	Delta struct {
		Type       string `json:"type"`
		Text       string `json:"text"`
		StopReason string `json:"stop_reason"`
	} `json:"delta"`
	Usage struct {
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (anthropicDialect) endpoint(baseURL string) string {
	if baseURL == "" {
		baseURL = anthropicBaseURL
	}
	return strings.TrimRight(baseURL, "/") + "/v1/messages"
}

func (anthropicDialect) headers(apiKey string) map[string]string {
	return map[string]string{
		"x-api-key":         apiKey,
		"anthropic-version": anthropicAPIVersion,
	}
}

func (anthropicDialect) body(b Binding, p prompt) any {
	maxTokens := b.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTokens
	}
	// Images go before the instruction text.
	blocks := make([]anthropicBlock, 0, len(p.images)+1)
	for _, img := range p.images {
		blocks = append(blocks, anthropicBlock{
			Type:   "image",
			Source: &anthropicImageSource{Type: "base64", MediaType: img.mime(), Data: img.Base64},
		})
	}
	blocks = append(blocks, anthropicBlock{Type: "text", Text: p.text})
	return anthropicRequest{
		Model:     b.Model,
		System:    b.System,
		Messages:  []anthropicMessage{{Role: "user", Content: blocks}},
		MaxTokens: maxTokens,
		Stream:    true,
	}
}

func (anthropicDialect) decode(f sseFrame) ([]chunk, error) {
	switch f.event {
	case "message_start", "content_block_delta", "message_delta":
	case "error":
		return nil, fmt.Errorf("anthropic stream error: %s", f.data)
	default:
		return nil, nil
	}

	var fr anthropicFrame
	if err := json.Unmarshal([]byte(f.data), &fr); err != nil {
		return nil, fmt.Errorf("parse %s: %w", f.event, err)
	}
	switch f.event {
	case "message_start":
		return []chunk{{kind: chunkUsage, usage: Usage{InputTokens: fr.Message.Usage.InputTokens}}}, nil
	case "content_block_delta":
		if fr.Delta.Type != "text_delta" {
			return nil, nil
		}
		return []chunk{{kind: chunkText, text: fr.Delta.Text}}, nil
	default:
		return []chunk{
			{kind: chunkUsage, usage: Usage{OutputTokens: fr.Usage.OutputTokens}},
			{kind: chunkStop, text: fr.Delta.StopReason},
		}, nil
	}
}
