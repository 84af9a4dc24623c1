// Package intent decides which pipeline handles an inbound text message.
//
// Classification is deterministic: an ordered list of rules is evaluated
// against the message and the first one that matches wins. Nothing here
// touches shared state; whether an image is pending is passed in by the
// caller (from a cache peek, never a consume).
package intent

// Kind names an intent variant. Used for logging and switch statements.
type Kind string

const (
	KindSearch       Kind = "search"
	KindCodeLookup   Kind = "code_lookup"
	KindPaymentCheck Kind = "payment_check"
	KindOCR          Kind = "ocr_request"
	KindAIChat       Kind = "ai_chat"
	KindIgnore       Kind = "ignore"
)

// Intent is one of Search, CodeLookup, PaymentCheck, OCRRequest, AIChat or
// Ignore.
type Intent interface {
	Kind() Kind
}

// Search looks the query up in the knowledge base.
type Search struct {
	Query string
}

// CodeLookup fetches the knowledge-base entry with exactly this code.
type CodeLookup struct {
	Code string
}

// PaymentCheck asks the payment gateway about an attempt. AttemptID is empty
// when the user did not supply a reference number.
type PaymentCheck struct {
	AttemptID string
}

// OCRRequest runs text extraction on the conversation's pending image. The
// image itself is claimed by the orchestrator when the request executes.
type OCRRequest struct{}

// AIChat sends Prompt to the language model.
type AIChat struct {
	Prompt string
}

// Ignore means the message produces no effect at all.
type Ignore struct{}

func (Search) Kind() Kind       { return KindSearch }
func (CodeLookup) Kind() Kind   { return KindCodeLookup }
func (PaymentCheck) Kind() Kind { return KindPaymentCheck }
func (OCRRequest) Kind() Kind   { return KindOCR }
func (AIChat) Kind() Kind       { return KindAIChat }
func (Ignore) Kind() Kind       { return KindIgnore }

// HasAttemptID reports whether the user supplied a reference number.
func (p PaymentCheck) HasAttemptID() bool { return p.AttemptID != "" }
