package stream

import (
	"io"
	"unicode/utf8"
)

const rawChunkSize = 4096

// RawReader decodes a continuous UTF-8 byte stream. A multi-byte rune split
// across reads is held back until its remaining bytes arrive.
type RawReader struct {
	r       io.Reader
	buf     []byte
	pending []byte
	done    bool
	err     error
}

// NewRawReader wraps r.
func NewRawReader(r io.Reader) *RawReader {
	return &RawReader{r: r, buf: make([]byte, rawChunkSize)}
}

// Next returns the next non-empty run of decoded text.
func (s *RawReader) Next() (string, error) {
	if s.err != nil {
		return "", s.err
	}
	for !s.done {
		n, err := s.r.Read(s.buf)
		if n > 0 {
			s.pending = append(s.pending, s.buf[:n]...)
			if text := s.takeComplete(); text != "" {
				switch {
				case err == io.EOF:
					s.done = true
					if len(s.pending) > 0 {
						text += string(s.pending)
						s.pending = nil
					}
				case err != nil:
					// Reported on the next call, after the text read with it.
					s.err = err
				}
				return text, nil
			}
		}
		if err == io.EOF {
			s.done = true
			break
		}
		if err != nil {
			s.err = err
			return "", err
		}
	}

	if len(s.pending) > 0 {
		// Truncated rune at end of stream, string conversion yields U+FFFD.
		text := string(s.pending)
		s.pending = nil
		return text, nil
	}
	return "", io.EOF
}

// takeComplete removes and returns the longest prefix of pending that does
// not end inside a multi-byte rune.
func (s *RawReader) takeComplete() string {
	cut := len(s.pending)
	// A rune is at most utf8.UTFMax bytes, so only the tail needs checking.
	for i := 1; i <= utf8.UTFMax && i <= len(s.pending); i++ {
		b := s.pending[len(s.pending)-i]
		if !utf8.RuneStart(b) {
			continue
		}
		if !utf8.FullRune(s.pending[len(s.pending)-i:]) {
			cut = len(s.pending) - i
		}
		break
	}

	text := string(s.pending[:cut])
	s.pending = append(s.pending[:0], s.pending[cut:]...)
	return text
}
