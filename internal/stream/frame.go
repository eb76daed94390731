package stream

import (
	"fmt"
	"io"

	"github.com/bytedance/sonic"
)

// WriteFrame writes one `data:` event carrying content.
func WriteFrame(w io.Writer, content string, finishReason string) error {
	choice := Choice{Delta: Delta{Content: content}}
	if finishReason != "" {
		choice.FinishReason = &finishReason
	}

	payload, err := sonic.Marshal(Frame{Object: "chat.completion.chunk", Choices: []Choice{choice}})
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}

	if _, err := fmt.Fprintf(w, "%s %s\n\n", dataPrefix, payload); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// WriteDone writes the terminating sentinel.
func WriteDone(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "%s %s\n\n", dataPrefix, doneSentinel); err != nil {
		return fmt.Errorf("write done: %w", err)
	}
	return nil
}
