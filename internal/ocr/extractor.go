// Package ocr extracts text from images with a vision-capable language model.
package ocr

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/lhdbsbz/deskbot/internal/llm"
)

// NoTextMarker is what the model is asked to answer when an image has no text.
const NoTextMarker = "NO_TEXT"

// Instruction is sent with every image.
const Instruction = "Transcribe all text visible in this image exactly as written, " +
	"keeping the original language and line breaks. Do not translate, summarize or comment. " +
	"If the image contains no readable text, answer with " + NoTextMarker + " only."

var ErrEmptyImage = errors.New("empty image")

// Vision is the part of llm.Completer the extractor needs.
type Vision interface {
	CompleteWithImages(ctx context.Context, prompt string, images []llm.ImageData) (string, error)
}

// Extractor turns image bytes into text.
type Extractor struct {
	vision Vision
}

func NewExtractor(vision Vision) *Extractor {
	return &Extractor{vision: vision}
}

// DetectText returns the text found in image, or "" when there is none.
func (e *Extractor) DetectText(ctx context.Context, image []byte) (string, error) {
	if len(image) == 0 {
		return "", ErrEmptyImage
	}
	mime := http.DetectContentType(image)
	if !strings.HasPrefix(mime, "image/") {
		return "", fmt.Errorf("detect text: unsupported content type %s", mime)
	}

	out, err := e.vision.CompleteWithImages(ctx, Instruction, []llm.ImageData{{
		Base64: base64.StdEncoding.EncodeToString(image),
		MIME:   mime,
	}})
	if err != nil {
		return "", fmt.Errorf("detect text: %w", err)
	}
	out = strings.TrimSpace(out)
	if out == "" || strings.EqualFold(strings.Trim(out, " .`\"'"), NoTextMarker) {
		return "", nil
	}
	return out, nil
}
