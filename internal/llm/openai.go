package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// openAIDialect speaks the chat completions API shared by OpenAI, DeepSeek
// and other compatible providers.
type openAIDialect struct{}

const openAIBaseURL = "https://api.openai.com"

type openAIRequest struct {
	Model         string               `json:"model"`
	Messages      []openAIMessage      `json:"messages"`
	MaxTokens     int                  `json:"max_tokens,omitempty"`
	Stream        bool                 `json:"stream"`
	StreamOptions *openAIStreamOptions `json:"stream_options,omitempty"`
}

type openAIStreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string, or []openAIPart with images
}

type openAIPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

type openAIImageURL struct {
	URL string `json:"url"`
}

type openAIChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (openAIDialect) endpoint(baseURL string) string {
	if baseURL == "" {
		baseURL = openAIBaseURL
	}
	return strings.TrimRight(baseURL, "/") + "/v1/chat/completions"
}

func (openAIDialect) headers(apiKey string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + apiKey}
}

func (openAIDialect) body(b Binding, p prompt) any {
	req := openAIRequest{
		Model:         b.Model,
		MaxTokens:     b.MaxTokens,
		Stream:        true,
		StreamOptions: &openAIStreamOptions{IncludeUsage: true},
	}
	if b.System != "" {
		req.Messages = append(req.Messages, openAIMessage{Role: "system", Content: b.System})
	}
	user := openAIMessage{Role: "user", Content: p.text}
	if len(p.images) > 0 {
		parts := []openAIPart{{Type: "text", Text: p.text}}
		for _, img := range p.images {
			parts = append(parts, openAIPart{
				Type:     "image_url",
				ImageURL: &openAIImageURL{URL: "data:" + img.mime() + ";base64," + img.Base64},
			})
		}
		user.Content = parts
	}
	req.Messages = append(req.Messages, user)
	return req
}

// decode reads one chunk. The usage chunk comes after the finish_reason
// chunk and has no choices.
func (openAIDialect) decode(f sseFrame) ([]chunk, error) {
	var c openAIChunk
	if err := json.Unmarshal([]byte(f.data), &c); err != nil {
		return nil, fmt.Errorf("parse chunk: %w", err)
	}
	var out []chunk
	if c.Usage != nil {
		out = append(out, chunk{kind: chunkUsage, usage: Usage{
			InputTokens:  c.Usage.PromptTokens,
			OutputTokens: c.Usage.CompletionTokens,
		}})
	}
	if len(c.Choices) == 0 {
		return out, nil
	}
	if text := c.Choices[0].Delta.Content; text != "" {
		out = append(out, chunk{kind: chunkText, text: text})
	}
	if reason := c.Choices[0].FinishReason; reason != "" {
		out = append(out, chunk{kind: chunkStop, text: reason})
	}
	return out, nil
}
