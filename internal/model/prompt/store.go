package prompt

import "strings"

// Store exposes preset retrieval for HTTP handlers.
type Store interface {
	List() []Prompt
	FindByID(id string) (Prompt, bool)
}

// MemoryStore implements Store with an in-memory slice.
type MemoryStore struct {
	items []Prompt
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied presets.
func NewMemoryStore(items []Prompt) *MemoryStore {
	return &MemoryStore{items: append([]Prompt(nil), items...)}
}

// List returns the preset list.
func (s *MemoryStore) List() []Prompt {
	return append([]Prompt(nil), s.items...)
}

// FindByID looks up a preset by identifier.
func (s *MemoryStore) FindByID(id string) (Prompt, bool) {
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Prompt{}, false
}

// Resolve turns a configured value into system message text: a preset id
// yields that preset's content, anything else is used verbatim. Empty
// falls back to the default preset.
func Resolve(s Store, value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		value = DefaultID
	}
	if p, ok := s.FindByID(value); ok {
		return p.Content
	}
	return value
}
