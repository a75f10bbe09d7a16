package vision

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// ============================================================================
// Gemini Backend
// ============================================================================

// GeminiBackend drives Google's Gemini models through the official SDK.
type GeminiBackend struct {
	client *genai.Client
	model  *genai.GenerativeModel
	name   string
}

// NewGeminiBackend creates a Gemini backend for the given model alias.
func NewGeminiBackend(ctx context.Context, apiKey, model string) (*GeminiBackend, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	name := ResolveModel(model, "gemini")
	m := client.GenerativeModel(name)
	m.SetTemperature(0.4)
	m.SetMaxOutputTokens(2048)

	return &GeminiBackend{client: client, model: m, name: name}, nil
}

// Generate submits the prompt and optional image to the model.
func (b *GeminiBackend) Generate(ctx context.Context, prompt string, img *Payload) (string, error) {
	// Build the parts list; the image precedes the prompt so instructions
	// like "describe ONLY the largest person" bind to it.
	var parts []genai.Part
	if img != nil {
		parts = append(parts, genai.ImageData(geminiImageFormat(img.MIME), img.Data))
	}
	parts = append(parts, genai.Text(prompt))

	resp, err := b.model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", classifyErr(err)
	}

	text := collectText(resp)
	if text == "" {
		return "", &ServiceError{
			Category: CategoryTransient,
			Message:  "empty response from model",
		}
	}
	return text, nil
}

// Name returns the provider label used in logs.
func (b *GeminiBackend) Name() string {
	return "gemini/" + b.name
}

// Close releases the underlying SDK client.
func (b *GeminiBackend) Close() error {
	return b.client.Close()
}

// collectText concatenates the text parts of the first candidate.
func collectText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return strings.TrimSpace(sb.String())
}

// geminiImageFormat maps a MIME type to the bare format tag the SDK expects.
func geminiImageFormat(mime string) string {
	return strings.TrimPrefix(mime, "image/")
}
