package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ============================================================================
// Claude Backend
// ============================================================================

const (
	anthropicBaseURL = "https://api.anthropic.com"
	anthropicVersion = "2023-06-01"
	claudeMaxTokens  = 2048
)

// ClaudeBackend drives Anthropic's Claude models through the Messages API.
type ClaudeBackend struct {
	BaseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewClaudeBackend creates a Claude backend for the given model alias.
func NewClaudeBackend(apiKey, model string) (*ClaudeBackend, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	return &ClaudeBackend{
		BaseURL: anthropicBaseURL,
		apiKey:  apiKey,
		model:   ResolveModel(model, "claude"),
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}, nil
}

// claudeContent is one content block in a Messages API request.
type claudeContent struct {
	Type   string        `json:"type"`
	Text   string        `json:"text,omitempty"`
	Source *claudeSource `json:"source,omitempty"`
}

// claudeSource carries an inline base64 image.
type claudeSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type claudeMessage struct {
	Role    string          `json:"role"`
	Content []claudeContent `json:"content"`
}

type claudeRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	Messages  []claudeMessage `json:"messages"`
}

type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Generate submits the prompt and optional image to the Messages API.
func (b *ClaudeBackend) Generate(ctx context.Context, prompt string, img *Payload) (string, error) {
	// Step 1: assemble the content blocks, image first.
	var content []claudeContent
	if img != nil {
		content = append(content, claudeContent{
			Type: "image",
			Source: &claudeSource{
				Type:      "base64",
				MediaType: img.MIME,
				Data:      img.Base64,
			},
		})
	}
	content = append(content, claudeContent{Type: "text", Text: prompt})

	payload := claudeRequest{
		Model:     b.model,
		MaxTokens: claudeMaxTokens,
		Messages:  []claudeMessage{{Role: "user", Content: content}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	// Step 2: send the request.
	url := b.BaseURL + "/v1/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", b.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := b.client.Do(req)
	if err != nil {
		return "", classifyErr(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", classifyErr(err)
	}

	// Step 3: map non-200 statuses to classified errors.
	if resp.StatusCode != http.StatusOK {
		return "", classifyStatus(resp.StatusCode, string(respBody))
	}

	// Step 4: decode and concatenate the text blocks.
	var parsed claudeResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if parsed.Error != nil {
		return "", &ServiceError{
			Category: CategoryTransient,
			Message:  fmt.Sprintf("%s: %s", parsed.Error.Type, parsed.Error.Message),
		}
	}

	var sb strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", &ServiceError{
			Category: CategoryTransient,
			Message:  "empty response from model",
		}
	}
	return text, nil
}

// Name returns the provider label used in logs.
func (b *ClaudeBackend) Name() string {
	return "claude/" + b.model
}

// Close is a no-op; the backend holds no persistent connection state.
func (b *ClaudeBackend) Close() error {
	return nil
}
