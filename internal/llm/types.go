package llm

// ImageData is an inline image attached to a prompt.
type ImageData struct {
	Base64 string `json:"base64"`
	MIME   string `json:"mime,omitempty"` // defaults to image/png
}

func (img ImageData) mime() string {
	if img.MIME == "" {
		return "image/png"
	}
	return img.MIME
}

// Usage tracks token consumption.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func (u Usage) empty() bool { return u.InputTokens == 0 && u.OutputTokens == 0 }

// Completion is a fully read answer.
type Completion struct {
	Text       string
	Usage      Usage
	StopReason string
}

// prompt is one single-turn request: text plus optional images.
type prompt struct {
	text   string
	images []ImageData
}
