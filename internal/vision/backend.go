package vision

import (
	"context"
)

// Backend is a single multimodal provider. Implementations send one prompt
// (plus an optional image) and return the raw response text; retry, JSON
// extraction and call accounting live in Client.
type Backend interface {
	// Generate submits a text prompt, with img attached when non-nil, and
	// returns the model's text output.
	Generate(ctx context.Context, prompt string, img *Payload) (string, error)

	// Name identifies the provider for logging.
	Name() string

	// Close releases provider resources.
	Close() error
}
