package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// UsageRecord tracks a single LLM call's token usage.
type UsageRecord struct {
	Timestamp    time.Time `json:"timestamp"`
	Purpose      string    `json:"purpose"` // "ai" | "ocr"
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	InputTokens  int       `json:"inputTokens"`
	OutputTokens int       `json:"outputTokens"`
}

// UsageTracker records and aggregates token usage.
type UsageTracker struct {
	mu        sync.Mutex
	logPath   string
	totals    UsageTotals
	byPurpose map[string]int
}

type UsageTotals struct {
	Calls        int            `json:"calls"`
	ByPurpose    map[string]int `json:"byPurpose,omitempty"`
	InputTokens  int            `json:"inputTokens"`
	OutputTokens int            `json:"outputTokens"`
	EstCostUSD   float64        `json:"estCostUSD"`
}

// NewUsageTracker keeps totals in memory and, when dataDir is set, appends
// every record to dataDir/usage/usage.jsonl.
func NewUsageTracker(dataDir string) *UsageTracker {
	t := &UsageTracker{byPurpose: make(map[string]int)}
	if dataDir == "" {
		return t
	}
	dir := filepath.Join(dataDir, "usage")
	if err := os.MkdirAll(dir, 0755); err != nil {
		slog.Warn("usage log disabled", "dir", dir, "error", err)
		return t
	}
	t.logPath = filepath.Join(dir, "usage.jsonl")
	return t
}

// Record logs a usage record and updates totals.
func (t *UsageTracker) Record(rec UsageRecord) {
	if t == nil {
		return
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.totals.Calls++
	t.byPurpose[rec.Purpose]++
	t.totals.InputTokens += rec.InputTokens
	t.totals.OutputTokens += rec.OutputTokens
	t.totals.EstCostUSD += estimateCost(rec.Provider, rec.Model, rec.InputTokens, rec.OutputTokens)

	if t.logPath == "" {
		return
	}
	f, err := os.OpenFile(t.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	defer f.Close()

	data, _ := json.Marshal(rec)
	data = append(data, '\n')
	f.Write(data)
}

// Totals returns aggregated usage.
func (t *UsageTracker) Totals() UsageTotals {
	t.mu.Lock()
	defer t.mu.Unlock()
	totals := t.totals
	totals.ByPurpose = make(map[string]int, len(t.byPurpose))
	for k, v := range t.byPurpose {
		totals.ByPurpose[k] = v
	}
	return totals
}

// Status returns a human-readable usage summary.
func (t *UsageTracker) Status() string {
	totals := t.Totals()
	return fmt.Sprintf("Calls: %d | Tokens: %d in / %d out | Est. cost: $%.4f",
		totals.Calls, totals.InputTokens, totals.OutputTokens, totals.EstCostUSD)
}

// estimateCost gives a rough USD cost estimate.
func estimateCost(provider, model string, input, output int) float64 {
	// Per-1M token pricing (approximate, 2025 rates)
	var inPer1M, outPer1M float64
	switch {
	case provider == "anthropic" && strings.Contains(model, "opus"):
		inPer1M, outPer1M = 15.0, 75.0
	case provider == "anthropic" && strings.Contains(model, "sonnet"):
		inPer1M, outPer1M = 3.0, 15.0
	case provider == "anthropic" && strings.Contains(model, "haiku"):
		inPer1M, outPer1M = 0.25, 1.25
	case provider == "openai" && strings.Contains(model, "gpt-4o-mini"):
		inPer1M, outPer1M = 0.15, 0.6
	case provider == "openai" && strings.Contains(model, "gpt-4o"):
		inPer1M, outPer1M = 2.5, 10.0
	case provider == "openai" && strings.Contains(model, "gpt-4"):
		inPer1M, outPer1M = 30.0, 60.0
	case strings.Contains(model, "deepseek"):
		inPer1M, outPer1M = 0.14, 0.28
	default:
		inPer1M, outPer1M = 1.0, 3.0 // conservative default
	}
	return (float64(input)/1_000_000)*inPer1M + (float64(output)/1_000_000)*outPer1M
}
