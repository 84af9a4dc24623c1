package intent

import (
	"regexp"
	"strings"
)

// message is the per-call state the rules match against.
type message struct {
	Input
	triggered bool
	cleaned   string
}

// addressed reports whether the bot was spoken to: a direct chat or a
// trigger phrase.
func (m *message) addressed() bool { return m.Direct || m.triggered }

type rule struct {
	kind  Kind
	match func(m *message) (Intent, bool)
}

// rules are evaluated in order. Narrow commands come first so the broad AI
// fallback never shadows them. Every rule except the explicit read command
// on a pending image requires the bot to be addressed.
var rules = []rule{
	{kind: KindSearch, match: matchSearch},
	{kind: KindCodeLookup, match: matchCodeLookup},
	{kind: KindPaymentCheck, match: matchPaymentCheck},
	{kind: KindOCR, match: matchOCR},
	{kind: KindAIChat, match: matchAIChat},
}

var (
	searchPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?is)^(?:search(?:\s+for)?|find|look\s*up)[\s:]+(.+)$`),
		regexp.MustCompile(`(?s)^ค้นหา[\s:]*(.+)$`),
	}

	codeMarkerPattern = regexp.MustCompile(`(?i)(?:\bcode|\berror|รหัส|#)\s*[:#]?\s*(\d{3,5})\b`)
	codeOnlyPattern   = regexp.MustCompile(`^\d{3,5}$`)

	paymentPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)check.{0,12}?pay(?:ment)?.{0,12}?status`),
		regexp.MustCompile(`(?i)check.{0,12}?payment`),
		regexp.MustCompile(`(?i)payment.{0,12}?status`),
		regexp.MustCompile(`(?:เช็ค|เช็ก|ตรวจสอบ|ตรวจ).{0,12}?(?:ชำระ|จ่าย|โอน)`),
		regexp.MustCompile(`สถานะ.{0,12}?(?:ชำระ|จ่าย|โอน)`),
	}
	attemptIDPattern = regexp.MustCompile(`\d{5,}`)

	readCommandPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^(?:please\s+|pls\s+)?(?:read|ocr|scan)(?:\s+(?:it|this|that|text|image|pic|picture|photo|the\s+(?:image|picture|photo|text)))?(?:\s+(?:please|pls))?[\s.!?]*$`),
		regexp.MustCompile(`^(?:ช่วย)?อ่าน(?:รูป|ภาพ|ข้อความ)?(?:นี้|นี่)?(?:ให้)?(?:หน่อย|ที)?(?:ครับ|ค่ะ|คะ|จ้า)?[\s.!?]*$`),
	}
)

func matchSearch(m *message) (Intent, bool) {
	if !m.addressed() {
		return nil, false
	}
	for _, re := range searchPatterns {
		sub := re.FindStringSubmatch(m.cleaned)
		if sub == nil {
			continue
		}
		query := strings.TrimSpace(sub[1])
		// "search for" on its own: "for" is part of the command, not a query.
		if query == "" || strings.EqualFold(query, "for") {
			continue
		}
		return Search{Query: query}, true
	}
	return nil, false
}

func matchCodeLookup(m *message) (Intent, bool) {
	if !m.addressed() {
		return nil, false
	}
	if sub := codeMarkerPattern.FindStringSubmatch(m.cleaned); sub != nil {
		return CodeLookup{Code: sub[1]}, true
	}
	if codeOnlyPattern.MatchString(m.cleaned) {
		return CodeLookup{Code: m.cleaned}, true
	}
	return nil, false
}

func matchPaymentCheck(m *message) (Intent, bool) {
	if !m.addressed() || !anyMatch(paymentPatterns, m.cleaned) {
		return nil, false
	}
	return PaymentCheck{AttemptID: attemptIDPattern.FindString(m.cleaned)}, true
}

func matchOCR(m *message) (Intent, bool) {
	readCommand := IsReadCommand(m.cleaned)
	if m.PendingImage && (m.addressed() || readCommand) {
		return OCRRequest{}, true
	}
	// Triggered read command in a group or room with nothing to read: still an
	// OCR request, so the orchestrator finds the cache empty and stays quiet
	// instead of sending the command to the AI. Direct chats fall through to
	// AIChat.
	if readCommand && m.triggered && !m.Direct {
		return OCRRequest{}, true
	}
	return nil, false
}

func matchAIChat(m *message) (Intent, bool) {
	if !m.addressed() {
		return nil, false
	}
	if m.triggered {
		return AIChat{Prompt: m.cleaned}, true
	}
	return AIChat{Prompt: strings.TrimSpace(m.Text)}, true
}

// IsReadCommand reports whether text is an explicit "read the image" command.
func IsReadCommand(text string) bool {
	return anyMatch(readCommandPatterns, strings.TrimSpace(text))
}

func anyMatch(patterns []*regexp.Regexp, s string) bool {
	for _, re := range patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
