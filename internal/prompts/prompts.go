package prompts

// Replies holds every user-facing text the bot sends for a locale.
// Fields ending in Fmt are fmt format strings.
type Replies struct {
	ImageStoredFmt string // %s read command incl. trigger; group/room notice after an image upload
	ReadCommand    string // the words that ask the bot to read a pending image

	SearchNotFound  string
	SearchHeaderFmt string // %d total hits
	SearchHitFmt    string // %s code, %s title, %s summary
	SearchMoreFmt   string // %d remaining hits
	SearchApology   string
	CodeNotFoundFmt string // %s code
	CodeTitleFmt    string // %s code, %s title
	CodeStepsTitle  string
	CodeApology     string

	PaymentAskReference string
	PaymentSuccessFmt   string // %s attempt id, %s status
	PaymentFailureFmt   string // %s attempt id, %s status
	PaymentNotFoundFmt  string // %s attempt id
	PaymentApology      string

	OCRResultFmt string // %s extracted text
	OCRNoText    string
	OCRApology   string

	AIAck        string
	AIApology    string
	EmptyPrompt  string
	SystemPrompt string // default system prompt for the language model
}

// Get returns replies for the given locale. Only "en" uses English; empty or
// unknown defaults to Thai ("th").
func Get(locale string) *Replies {
	if locale == "en" {
		return RepliesEN
	}
	return RepliesTH
}
