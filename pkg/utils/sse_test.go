package utils

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/simplegpt/backend/internal/stream"
)

func TestFragmentWriterRaw(t *testing.T) {
	rec := httptest.NewRecorder()
	SetupStreamHeaders(rec, stream.FormatRaw)

	out := NewFragmentWriter(rec, rec, stream.FormatRaw)
	for _, f := range []string{"Hel", "lo"} {
		if err := out.Write(f); err != nil {
			t.Fatalf("Write err: %v", err)
		}
	}
	if err := out.Finish(); err != nil {
		t.Fatalf("Finish err: %v", err)
	}

	if got := rec.Body.String(); got != "Hello" {
		t.Fatalf("unexpected body %q", got)
	}
	if !rec.Flushed {
		t.Fatal("expected flush")
	}
	if got := rec.Header().Get(stream.HeaderFormat); got != "raw" {
		t.Fatalf("unexpected format header %q", got)
	}
}

func TestFragmentWriterEvents(t *testing.T) {
	rec := httptest.NewRecorder()
	out := NewFragmentWriter(rec, rec, stream.FormatEvents)
	out.Write("Hi")
	out.Finish()

	body := rec.Body.String()
	if !strings.HasSuffix(body, "data: [DONE]\n\n") {
		t.Fatalf("missing done sentinel: %q", body)
	}

	text, err := stream.Collect(stream.NewEventReader(strings.NewReader(body)))
	if err != nil {
		t.Fatalf("Collect err: %v", err)
	}
	if text != "Hi" {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestRespondJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondJSON(rec, http.StatusCreated, map[string]string{"ok": "yes"})

	if rec.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"ok":"yes"}` {
		t.Fatalf("unexpected body %q", got)
	}
}
