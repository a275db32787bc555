package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"sync"

	"github.com/hyperjump/ragbase/internal/vector"
)

// MockEmbedder is a deterministic embedder for tests. It returns a fixed-dimension
// vector derived from the text hash so that the same text always gets the same
// embedding. Vectors registered with Set take precedence.
type MockEmbedder struct {
	dimensions int
	Err        error

	mu     sync.Mutex
	fixed  map[string][]float32
	calls  int
}

// NewMockEmbedder returns an embedder that produces deterministic embeddings of the given dimensions.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 8
	}
	return &MockEmbedder{dimensions: dimensions, fixed: make(map[string][]float32)}
}

// Set makes Embed return vec for text.
func (e *MockEmbedder) Set(text string, vec []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fixed[text] = append([]float32(nil), vec...)
}

// Embed returns the registered vector for text, or a deterministic unit vector based on its hash.
func (e *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	vec, ok := e.fixed[text]
	e.mu.Unlock()
	if e.Err != nil {
		return nil, e.Err
	}
	if ok {
		return append([]float32(nil), vec...), nil
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := float64(h.Sum64() % 100003)
	emb := make([]float32, e.dimensions)
	for i := range emb {
		emb[i] = float32(math.Sin(seed*float64(i+1))*0.1 + 0.01)
	}
	vector.Normalize(emb)
	return emb, nil
}

// Calls returns how many times Embed was called.
func (e *MockEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// ModelName identifies the mock in logs and status output.
func (e *MockEmbedder) ModelName() string {
	return "mock"
}

// Close is a no-op for MockEmbedder.
func (e *MockEmbedder) Close() error {
	return nil
}
