package bot

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/lhdbsbz/deskbot/internal/kb"
	"github.com/lhdbsbz/deskbot/internal/prompts"
)

const (
	maxSearchHits  = 3
	maxSummaryRune = 80
)

func formatSearch(r *prompts.Replies, hits []kb.Entry) string {
	if len(hits) == 0 {
		return r.SearchNotFound
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, r.SearchHeaderFmt, len(hits))
	for i, h := range hits {
		if i == maxSearchHits {
			break
		}
		sb.WriteString("\n")
		fmt.Fprintf(&sb, r.SearchHitFmt, h.Code, h.Title, summarize(h.Description))
	}
	if more := len(hits) - maxSearchHits; more > 0 {
		sb.WriteString("\n")
		fmt.Fprintf(&sb, r.SearchMoreFmt, more)
	}
	return sb.String()
}

func formatAdvice(r *prompts.Replies, e kb.Entry) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, r.CodeTitleFmt, e.Code, e.Title)
	if d := strings.TrimSpace(e.Description); d != "" {
		sb.WriteString("\n")
		sb.WriteString(d)
	}
	if len(e.Steps) > 0 {
		sb.WriteString("\n\n")
		sb.WriteString(r.CodeStepsTitle)
		for i, step := range e.Steps {
			sb.WriteString("\n")
			sb.WriteString(strconv.Itoa(i + 1))
			sb.WriteString(". ")
			sb.WriteString(strings.TrimSpace(step))
		}
	}
	return sb.String()
}

// summarize keeps the first line of s, cut to maxSummaryRune runes.
func summarize(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	if utf8.RuneCountInString(s) <= maxSummaryRune {
		return s
	}
	return string([]rune(s)[:maxSummaryRune-1]) + "…"
}
