// Package openai talks to OpenAI-compatible chat, image and model endpoints.
package openai

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/simplegpt/backend/internal/service/ai"
	"github.com/simplegpt/backend/internal/stream"
)

// Config configures a Client.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Client implements ai.ChatProvider, ai.ImageGenerator and ai.ModelLister.
type Client struct {
	config     Config
	httpClient *http.Client
}

// New creates a new OpenAI-compatible client with the given configuration.
// Streaming requests are bounded by their context only, so Timeout applies
// to the non-streaming calls.
func New(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.openai.com/v1"
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{},
	}
}

// APIError is a non-2xx answer from the provider.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.Status, e.Body)
}

// chatRequest is the OpenAI chat completions request body.
type chatRequest struct {
	Model       string           `json:"model"`
	Messages    []requestMessage `json:"messages"`
	Temperature float32          `json:"temperature"`
	TopP        float32          `json:"top_p"`
	N           int              `json:"n"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
	Stream      bool             `json:"stream,omitempty"`
}

// requestMessage carries either a plain string or a list of content parts.
type requestMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     *string   `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

// chatResponse is the OpenAI chat completions response body.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type modelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

type imageRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model,omitempty"`
	N      int    `json:"n"`
	Size   string `json:"size,omitempty"`
}

type imageResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
}

// Complete sends a chat completion request and returns the first choice.
func (c *Client) Complete(ctx context.Context, req ai.Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	resp, err := c.do(ctx, http.MethodPost, "/chat/completions", buildChatRequest(req, false))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var chatResp chatResponse
	if err := decode(resp.Body, &chatResp); err != nil {
		return "", err
	}
	if len(chatResp.Choices) == 0 {
		return "", ai.ErrNoResponse
	}
	return chatResp.Choices[0].Message.Content, nil
}

// Stream sends a streaming chat completion request. The returned reader
// yields delta contents until [DONE] or a stop finish reason.
func (c *Client) Stream(ctx context.Context, req ai.Request) (stream.ReadCloser, error) {
	resp, err := c.do(ctx, http.MethodPost, "/chat/completions", buildChatRequest(req, true))
	if err != nil {
		return nil, err
	}
	return stream.WithCloser(stream.NewEventReader(resp.Body), resp.Body), nil
}

// ListModels returns the provider's model ids, sorted.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	resp, err := c.do(ctx, http.MethodGet, "/models", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var models modelsResponse
	if err := decode(resp.Body, &models); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(models.Data))
	for _, m := range models.Data {
		ids = append(ids, m.ID)
	}
	slices.Sort(ids)
	return ids, nil
}

// GenerateImage requests generated images and returns their URLs.
func (c *Client) GenerateImage(ctx context.Context, req ai.ImageRequest) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	n := req.N
	if n <= 0 {
		n = 1
	}
	resp, err := c.do(ctx, http.MethodPost, "/images/generations", imageRequest{
		Prompt: req.Prompt,
		Model:  req.Model,
		N:      n,
		Size:   req.Size,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var images imageResponse
	if err := decode(resp.Body, &images); err != nil {
		return nil, err
	}

	var urls []string
	for _, img := range images.Data {
		if img.URL != "" {
			urls = append(urls, img.URL)
		}
	}
	if len(urls) == 0 {
		return nil, ai.ErrNoResponse
	}
	return urls, nil
}

// do sends the request and returns the response when the status is 2xx.
func (c *Client) do(ctx context.Context, method, path string, payload any) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		data, err := sonic.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	return resp, nil
}

func decode(r io.Reader, v any) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if err := sonic.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

func buildChatRequest(req ai.Request, streaming bool) chatRequest {
	n := req.N
	if n <= 0 {
		n = 1
	}
	return chatRequest{
		Model:       req.Model,
		Messages:    toRequestMessages(req.Messages),
		Temperature: req.Temperature,
		TopP:        req.TopP,
		N:           n,
		MaxTokens:   req.MaxTokens,
		Stream:      streaming,
	}
}

// toRequestMessages formats messages for the API. A message with images
// gets one image_url part per image followed by a single text part.
func toRequestMessages(messages []ai.Message) []requestMessage {
	out := make([]requestMessage, 0, len(messages))
	for _, msg := range messages {
		if len(msg.Images) == 0 {
			out = append(out, requestMessage{Role: string(msg.Role), Content: msg.Text})
			continue
		}

		parts := make([]contentPart, 0, len(msg.Images)+1)
		for _, img := range msg.Images {
			parts = append(parts, contentPart{
				Type:     "image_url",
				ImageURL: &imageURL{URL: img.URL, Detail: string(img.Detail)},
			})
		}
		text := msg.Text
		parts = append(parts, contentPart{Type: "text", Text: &text})
		out = append(out, requestMessage{Role: string(msg.Role), Content: parts})
	}
	return out
}
