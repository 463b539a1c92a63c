package llm

import "context"

// Provider is the capability interface all generation backends implement.
type Provider interface {
	// Generate performs a non-streaming completion over the conversation
	// turns and returns the assistant text.
	Generate(ctx context.Context, turns []Turn) (string, error)

	// ModelInfo returns static metadata about the provider/model.
	ModelInfo() ModelMeta
}
