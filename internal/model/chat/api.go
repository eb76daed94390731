package chat

// ServerError is the in-band error of a response envelope.
type ServerError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationError points at the request field that failed validation.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ChatRequest is the body of POST /chat and POST /chat-stream.
type ChatRequest struct {
	Messages      []ChatMessage `json:"messages"`
	SystemMessage string        `json:"systemMessage,omitempty"`
	Model         string        `json:"model,omitempty"`
}

// ChatResponse is the envelope returned by POST /chat.
type ChatResponse struct {
	Data             *ChatMessage      `json:"data,omitempty"`
	Error            *ServerError      `json:"error,omitempty"`
	ValidationErrors []ValidationError `json:"validationErrors,omitempty"`
}

// Image is a generated image reference.
type Image struct {
	URL string `json:"url"`
}

// ImageGenerationRequest is the body of POST /image.
type ImageGenerationRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model,omitempty"`
}

// ImageGenerationResponse is the envelope returned by POST /image.
type ImageGenerationResponse struct {
	Data             *Image            `json:"data,omitempty"`
	Error            *ServerError      `json:"error,omitempty"`
	ValidationErrors []ValidationError `json:"validationErrors,omitempty"`
}

// ModelsResponse is returned by GET /models.
type ModelsResponse struct {
	Models []string     `json:"models"`
	Error  *ServerError `json:"error,omitempty"`
}

// ImageUploadConfig is returned by GET /config/upload.
type ImageUploadConfig struct {
	Enabled bool `json:"enabled"`
}

// ImageUpload describes a stored upload.
type ImageUpload struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ImageUploadResponse is the envelope returned by POST /upload.
type ImageUploadResponse struct {
	Data  *ImageUpload `json:"data,omitempty"`
	Error *ServerError `json:"error,omitempty"`
}
