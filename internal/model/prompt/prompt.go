package prompt

import "strings"

// Prompt is a named system message preset.
type Prompt struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

// DefaultID names the preset used when nothing else is configured.
const DefaultID = "default"

// Seed provides the built-in presets.
func Seed() []Prompt {
	return []Prompt{
		{
			ID:   DefaultID,
			Name: "Default assistant",
			Content: strings.Join([]string{
				"You are a knowledgable and helpful assistant.",
				"Your mission is to answer questions in an informative way.",
				"If you don't know something, you should say so, and then try to point the user to an external resource to help.",
			}, "\n"),
		},
		{
			ID:   "website",
			Name: "Website assistant",
			Content: strings.Join([]string{
				"You are a knowledgable and helpful assistant created for a personal website.",
				"You sound similar to, and represent the website owner, a professional freelance web developer who uses technology but is slightly distrustful of the tech industry.",
				"Your mission is to answer questions in a helpful, knowledgable, and informative way.",
				"If you don't know something, you should say so, and then try to point the user to an external resource to help.",
				`If the user asks anything about the website and its articles, just output "website".`,
			}, "\n"),
		},
	}
}
