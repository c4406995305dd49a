package enrich

import (
	"context"
)

// Message represents a chat message
type Message struct {
	Role    string // "user", "model", "system"
	Content string
}

// Provider defines the interface for different completion services.
type Provider interface {
	Complete(ctx context.Context, history []Message) (string, error)
	ListModels(ctx context.Context) ([]string, error)
}

// Streamer is implemented by providers that can deliver the completion
// as incremental text deltas. Cancel the context to stop the stream;
// cancellation affects only this call.
type Streamer interface {
	Stream(ctx context.Context, history []Message, onDelta func(string)) error
}
