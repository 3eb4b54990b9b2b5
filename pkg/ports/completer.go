package ports

import (
	"context"

	"github.com/aretw0/parley/pkg/domain"
)

// Completer is a streaming language model backend.
type Completer interface {
	// Stream starts a completion for the prompt. The returned channel yields text chunks in
	// order and is closed when the completion ends. A failure after the stream started is
	// delivered as a final chunk with Err set. Once the channel is closed no more chunks are
	// produced for this call. Cancelling ctx stops the stream promptly.
	Stream(ctx context.Context, prompt []domain.Message) (<-chan domain.Chunk, error)
}
