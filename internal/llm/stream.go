package llm

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

const maxFrameBytes = 1 << 20

// sseFrame is one server-sent event: its name (may be empty) and the data
// lines joined with "\n".
type sseFrame struct {
	event string
	data  string
}

type chunkKind int

const (
	chunkText chunkKind = iota
	chunkUsage
	chunkStop
)

// chunk is everything a completion needs from a stream frame.
type chunk struct {
	kind  chunkKind
	text  string // chunkText: delta, chunkStop: stop reason
	usage Usage
}

// frameDecoder maps a provider frame to chunks. Frames the provider uses for
// bookkeeping map to nothing.
type frameDecoder func(sseFrame) ([]chunk, error)

type accumulator struct {
	text  strings.Builder
	usage Usage
	stop  string
}

func (a *accumulator) add(chunks []chunk) {
	for _, c := range chunks {
		switch c.kind {
		case chunkText:
			a.text.WriteString(c.text)
		case chunkUsage:
			// Anthropic reports input and output tokens in separate frames.
			a.usage.InputTokens += c.usage.InputTokens
			a.usage.OutputTokens += c.usage.OutputTokens
		case chunkStop:
			a.stop = c.text
		}
	}
}

func (a *accumulator) completion() Completion {
	return Completion{Text: strings.TrimSpace(a.text.String()), Usage: a.usage, StopReason: a.stop}
}

// readCompletion decodes an event stream until EOF or a "[DONE]" frame.
// It runs on the caller's goroutine; cancelling the request context makes
// the underlying read fail.
func readCompletion(r io.Reader, decode frameDecoder) (Completion, error) {
	var (
		acc   accumulator
		event string
		data  []string
	)
	// flush handles the buffered frame and reports whether the stream ended.
	flush := func() (bool, error) {
		if len(data) == 0 {
			event = ""
			return false, nil
		}
		f := sseFrame{event: event, data: strings.Join(data, "\n")}
		event, data = "", data[:0]
		if f.data == "[DONE]" {
			return true, nil
		}
		chunks, err := decode(f)
		if err != nil {
			return false, err
		}
		acc.add(chunks)
		return false, nil
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxFrameBytes)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			done, err := flush()
			if err != nil {
				return Completion{}, err
			}
			if done {
				return acc.completion(), nil
			}
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(line[len("data:"):], " "))
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(line[len("event:"):])
		}
	}
	if err := sc.Err(); err != nil {
		return Completion{}, fmt.Errorf("read stream: %w", err)
	}
	if _, err := flush(); err != nil {
		return Completion{}, err
	}
	return acc.completion(), nil
}
