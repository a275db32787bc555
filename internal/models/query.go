package models

import (
	"fmt"
	"strings"
)

const (
	// DefaultTopK is the number of chunks used as context when the caller does not choose.
	DefaultTopK = 3
	// MaxTopK is the largest accepted number of context chunks.
	MaxTopK = 10
)

// AskRequest is a question with optional retrieval controls.
type AskRequest struct {
	Question    string `json:"question"`
	TopK        int    `json:"top_k,omitempty"`
	Description string `json:"description,omitempty"`
}

// Validate checks the request and fills in the default top-K.
// A zero TopK means "use the default"; any other value must be within [1, MaxTopK].
func (q *AskRequest) Validate() error {
	if strings.TrimSpace(q.Question) == "" {
		return fmt.Errorf("%w: question cannot be empty", ErrValidation)
	}
	if q.TopK == 0 {
		q.TopK = DefaultTopK
	}
	if q.TopK < 1 || q.TopK > MaxTopK {
		return fmt.Errorf("%w: top_k must be between 1 and %d, got %d", ErrValidation, MaxTopK, q.TopK)
	}
	return nil
}
