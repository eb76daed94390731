// Package client is a typed HTTP client for the chat backend.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/simplegpt/backend/internal/model/chat"
	"github.com/simplegpt/backend/internal/stream"
)

// ErrEmptyResponse is returned when an envelope has neither data nor error.
var ErrEmptyResponse = errors.New("empty response envelope")

// EnvelopeError is an in-band error reported by the backend.
type EnvelopeError struct {
	Status           int
	Code             string
	Message          string
	ValidationErrors []chat.ValidationError
}

func (e *EnvelopeError) Error() string {
	if len(e.ValidationErrors) > 0 {
		return fmt.Sprintf("%s: %s (%s: %s)", e.Code, e.Message, e.ValidationErrors[0].Field, e.ValidationErrors[0].Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// StatusError is a non-2xx answer without a decodable envelope.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Body)
}

// Config configures a Client.
type Config struct {
	BaseURL string
	// Timeout bounds non-streaming calls. Streams end with their context.
	Timeout time.Duration
}

// Client calls the backend proxy.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// New creates a client for the backend at cfg.BaseURL.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:3000"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		timeout:    cfg.Timeout,
		httpClient: &http.Client{},
	}
}

// Models lists the provider models.
func (c *Client) Models(ctx context.Context) ([]string, error) {
	var out chat.ModelsResponse
	if err := c.call(ctx, http.MethodGet, "/models", nil, &out); err != nil {
		return nil, err
	}
	if out.Error != nil {
		return nil, &EnvelopeError{Code: out.Error.Code, Message: out.Error.Message}
	}
	return out.Models, nil
}

// Chat sends a whole-message request.
func (c *Client) Chat(ctx context.Context, req chat.ChatRequest) (*chat.ChatMessage, error) {
	var out chat.ChatResponse
	if err := c.call(ctx, http.MethodPost, "/chat", req, &out); err != nil {
		return nil, err
	}
	if out.Error != nil {
		return nil, &EnvelopeError{Code: out.Error.Code, Message: out.Error.Message, ValidationErrors: out.ValidationErrors}
	}
	if out.Data == nil {
		return nil, ErrEmptyResponse
	}
	return out.Data, nil
}

// GenerateImage requests an image for prompt.
func (c *Client) GenerateImage(ctx context.Context, req chat.ImageGenerationRequest) (*chat.Image, error) {
	var out chat.ImageGenerationResponse
	if err := c.call(ctx, http.MethodPost, "/image", req, &out); err != nil {
		return nil, err
	}
	if out.Error != nil {
		return nil, &EnvelopeError{Code: out.Error.Code, Message: out.Error.Message, ValidationErrors: out.ValidationErrors}
	}
	if out.Data == nil {
		return nil, ErrEmptyResponse
	}
	return out.Data, nil
}

// UploadConfig reports whether the backend accepts uploads.
func (c *Client) UploadConfig(ctx context.Context) (*chat.ImageUploadConfig, error) {
	var out chat.ImageUploadConfig
	if err := c.call(ctx, http.MethodGet, "/config/upload", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Upload sends body as the multipart field "image".
func (c *Client) Upload(ctx context.Context, filename string, body io.Reader) (*chat.ImageUpload, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", filename)
	if err != nil {
		return nil, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, body); err != nil {
		return nil, fmt.Errorf("reading %s: %w", filename, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing form: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", &buf)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	var out chat.ImageUploadResponse
	if err := decode(resp, &out); err != nil {
		return nil, err
	}
	if out.Error != nil {
		return nil, &EnvelopeError{Status: resp.StatusCode, Code: out.Error.Code, Message: out.Error.Message}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Status: resp.StatusCode}
	}
	if out.Data == nil {
		return nil, ErrEmptyResponse
	}
	return out.Data, nil
}

// Stream opens POST /chat-stream. The reader matches the X-Stream-Format
// header of the response; a JSON body means the request was rejected.
func (c *Client) Stream(ctx context.Context, req chat.ChatRequest) (stream.ReadCloser, error) {
	resp, err := c.send(ctx, http.MethodPost, "/chat-stream", req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 || isJSON(resp.Header.Get("Content-Type")) {
		defer resp.Body.Close()
		var out chat.ChatResponse
		if err := decode(resp, &out); err != nil {
			return nil, err
		}
		if out.Error != nil {
			return nil, &EnvelopeError{Status: resp.StatusCode, Code: out.Error.Code, Message: out.Error.Message, ValidationErrors: out.ValidationErrors}
		}
		return nil, ErrEmptyResponse
	}

	format, err := stream.ParseFormat(resp.Header.Get(stream.HeaderFormat))
	if err != nil {
		resp.Body.Close()
		return nil, err
	}
	return stream.WithCloser(stream.NewReader(format, resp.Body), resp.Body), nil
}

// call sends a JSON request bounded by the client timeout and decodes the envelope.
func (c *Client) call(ctx context.Context, method, path string, payload, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.send(ctx, method, path, payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decode(resp, out)
}

func (c *Client) send(ctx context.Context, method, path string, payload any) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		data, err := sonic.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	return resp, nil
}

// decode reads a JSON envelope. Non-JSON error bodies become a StatusError.
func decode(resp *http.Response, out any) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if err := sonic.Unmarshal(data, out); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
		}
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "application/json"
}
