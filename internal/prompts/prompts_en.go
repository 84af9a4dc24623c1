package prompts

// RepliesEN is the English reply set.
var RepliesEN = &Replies{
	ImageStoredFmt: "Got your image 📷 Send \"%s\" within 2 minutes and I'll read the text in it.",
	ReadCommand:    "read it",

	SearchNotFound:  "Nothing matched your search. Try different keywords.",
	SearchHeaderFmt: "Found %d result(s):",
	SearchHitFmt:    "• [%s] %s\n  %s",
	SearchMoreFmt:   "...and %d more. Try a narrower search.",
	SearchApology:   "Sorry, search is temporarily unavailable. Please try again.",
	CodeNotFoundFmt: "No entry found for code %s.",
	CodeTitleFmt:    "🔧 [%s] %s",
	CodeStepsTitle:  "Suggested steps:",
	CodeApology:     "Sorry, the code lookup is unavailable right now.",

	PaymentAskReference: "Please send the payment reference number (at least 5 digits), e.g. \"check payment status 574981\".",
	PaymentSuccessFmt:   "✅ Payment %s succeeded (status: %s).",
	PaymentFailureFmt:   "❌ Payment %s did not go through (status: %s).",
	PaymentNotFoundFmt:  "No payment found with reference %s. Please double-check the number.",
	PaymentApology:      "Sorry, I can't check payment status right now.",

	OCRResultFmt: "📝 Text in the image:\n%s",
	OCRNoText:    "I couldn't find any text in that image.",
	OCRApology:   "Sorry, I couldn't read that image right now.",

	AIAck:        "Working on it... ⏳",
	AIApology:    "Sorry, the AI assistant can't answer right now.",
	EmptyPrompt:  "Hi! How can I help?",
	SystemPrompt: "You are a customer support assistant. Reply in the user's language, concisely, politely and to the point.",
}
