package stream

import (
	"bufio"
	"bytes"
	"io"

	"github.com/bytedance/sonic"

	"github.com/simplegpt/backend/pkg/logx"
)

const (
	dataPrefix   = "data:"
	doneSentinel = "[DONE]"
	finishStop   = "stop"
)

// Delta is the incremental part of a streamed choice.
type Delta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// Choice is one entry of a streamed frame.
type Choice struct {
	Index        int     `json:"index"`
	Delta        Delta   `json:"delta"`
	FinishReason *string `json:"finish_reason"`
}

// Frame is the JSON payload of a `data:` line.
type Frame struct {
	ID      string   `json:"id,omitempty"`
	Object  string   `json:"object,omitempty"`
	Created int64    `json:"created,omitempty"`
	Model   string   `json:"model,omitempty"`
	Choices []Choice `json:"choices"`
}

// Content returns the first choice's delta content.
func (f *Frame) Content() string {
	if len(f.Choices) == 0 {
		return ""
	}
	return f.Choices[0].Delta.Content
}

// FinishReason returns the first choice's finish reason, or "".
func (f *Frame) FinishReason() string {
	if len(f.Choices) == 0 || f.Choices[0].FinishReason == nil {
		return ""
	}
	return *f.Choices[0].FinishReason
}

// EventReader parses newline-delimited `data:` frames.
type EventReader struct {
	reader *bufio.Reader
	done   bool
}

// NewEventReader wraps r.
func NewEventReader(r io.Reader) *EventReader {
	return &EventReader{reader: bufio.NewReader(r)}
}

// Next returns the next non-empty delta. The stream ends at `[DONE]`, after
// the fragment of a frame whose finish_reason is "stop", or at EOF.
func (s *EventReader) Next() (string, error) {
	for !s.done {
		line, err := s.reader.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return "", err
		}
		if err == io.EOF {
			s.done = true
			if len(line) == 0 {
				break
			}
		}

		fragment, stop := s.handleLine(line)
		if stop {
			s.done = true
		}
		if fragment != "" {
			return fragment, nil
		}
	}
	return "", io.EOF
}

// handleLine applies the per-frame rules and reports the fragment to yield
// and whether the stream must terminate.
func (s *EventReader) handleLine(line []byte) (string, bool) {
	line = bytes.TrimRight(line, "\r\n")
	if !bytes.HasPrefix(line, []byte(dataPrefix)) {
		// Blank separators, comments and other SSE fields carry no text.
		return "", false
	}

	payload := bytes.TrimPrefix(line[len(dataPrefix):], []byte(" "))
	if string(payload) == doneSentinel {
		return "", true
	}

	var frame Frame
	if err := sonic.Unmarshal(payload, &frame); err != nil {
		logx.Warn().Err(err).Int("bytes", len(payload)).Msg("skipping malformed stream frame")
		return "", false
	}

	return frame.Content(), frame.FinishReason() == finishStop
}
