package llm

import (
	"fmt"
	"strings"
)

// API names accepted in Binding.API.
const (
	APIOpenAI    = "openai"
	APIAnthropic = "anthropic"
)

// dialect is one provider's wire format for a streamed single-turn chat.
type dialect interface {
	endpoint(baseURL string) string
	headers(apiKey string) map[string]string
	body(b Binding, p prompt) any
	decode(f sseFrame) ([]chunk, error)
}

func dialectFor(api string) dialect {
	if strings.EqualFold(api, APIAnthropic) {
		return anthropicDialect{}
	}
	return openAIDialect{}
}

// APIError is a non-200 answer from a provider.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api error (status %d): %s", e.Provider, e.StatusCode, e.Body)
}

// IsRateLimit returns true if this is a rate limit error.
func (e *APIError) IsRateLimit() bool { return e.StatusCode == 429 }

// IsAuth returns true if this is an authentication error.
func (e *APIError) IsAuth() bool { return e.StatusCode == 401 || e.StatusCode == 403 }
