// Package stream turns streamed chat responses into ordered text fragments.
//
// Two wire formats are understood: raw UTF-8 text terminated by connection close,
// and newline-delimited `data: {...}` events terminated by `data: [DONE]` or a
// `finish_reason` of "stop".
package stream

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
)

// Format names a streaming wire format.
type Format string

const (
	FormatRaw    Format = "raw"
	FormatEvents Format = "events"
)

// HeaderFormat is the response header announcing the stream format.
const HeaderFormat = "X-Stream-Format"

// ParseFormat validates a configured format name. Empty means raw.
func ParseFormat(v string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(v))) {
	case "", FormatRaw:
		return FormatRaw, nil
	case FormatEvents:
		return FormatEvents, nil
	}
	return "", fmt.Errorf("unknown stream format %q", v)
}

// Reader yields fragments in arrival order. Next returns io.EOF once the
// stream has ended; after that every call returns io.EOF again.
type Reader interface {
	Next() (string, error)
}

// ReadCloser is a Reader backed by a closable transport.
type ReadCloser interface {
	Reader
	io.Closer
}

// NewReader picks the reader matching format.
func NewReader(format Format, r io.Reader) Reader {
	if format == FormatEvents {
		return NewEventReader(r)
	}
	return NewRawReader(r)
}

// Fragments exposes r as a single-use sequence. Iteration stops after the
// first error; io.EOF is not reported.
func Fragments(r Reader) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for {
			fragment, err := r.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield("", err)
				return
			}
			if !yield(fragment, nil) {
				return
			}
		}
	}
}

// Collect drains r and returns the concatenated text. Text read before a
// failure is returned together with the error.
func Collect(r Reader) (string, error) {
	var b strings.Builder
	for fragment, err := range Fragments(r) {
		if err != nil {
			return b.String(), err
		}
		b.WriteString(fragment)
	}
	return b.String(), nil
}

type readCloser struct {
	Reader
	closer io.Closer
}

func (rc readCloser) Close() error {
	return rc.closer.Close()
}

// WithCloser attaches closer to r.
func WithCloser(r Reader, closer io.Closer) ReadCloser {
	return readCloser{Reader: r, closer: closer}
}
