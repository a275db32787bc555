// Package embedding provides text embedding through a remote model.
package embedding

import "context"

// Embedder produces one vector per text. Implementations must return vectors
// of the same length for every call so the store's dimension stays uniform.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// Dimensions is the requested output size, or 0 when the model decides.
	Dimensions() int
	ModelName() string
	Close() error
}
