package search

import (
	"strings"

	"github.com/hyperjump/ragbase/internal/models"
)

// ProcessQuery applies defaultTopK when the request leaves top-K unset, then validates it.
func ProcessQuery(req *models.AskRequest, defaultTopK int) error {
	if req.TopK == 0 && defaultTopK > 0 {
		req.TopK = defaultTopK
	}
	return req.Validate()
}

// FilterByDescription keeps the chunks whose description contains filter,
// ignoring case. The filter is a literal substring, whitespace included; only
// an empty filter keeps everything. Order is preserved.
func FilterByDescription(chunks []*models.Chunk, filter string) []*models.Chunk {
	if filter == "" {
		return chunks
	}
	filter = strings.ToLower(filter)
	out := make([]*models.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if strings.Contains(strings.ToLower(string(c.Description)), filter) {
			out = append(out, c)
		}
	}
	return out
}

// FirstSignature returns the first chunk, in scan order, that names a signer.
func FirstSignature(chunks []*models.Chunk) *models.Chunk {
	for _, c := range chunks {
		if c.HasSignature() {
			return c
		}
	}
	return nil
}
