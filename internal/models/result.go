package models

// Source is a chunk that was used as context for an answer.
type Source struct {
	ID          string   `json:"id"`
	Description Category `json:"description"`
	Score       float64  `json:"score"`
	Rank        int      `json:"rank"`
	Snippet     string   `json:"snippet,omitempty"`
}

// Answer is the response to an AskRequest.
type Answer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	// ShortCircuit is true when the answer came from a stored signature name
	// instead of the answer model.
	ShortCircuit bool     `json:"short_circuit"`
	Sources      []Source `json:"sources"`
	QueryTime    int64    `json:"query_time_ms"`
}

// StoredChunk summarizes one chunk written during ingestion.
type StoredChunk struct {
	ID            string   `json:"id"`
	Description   Category `json:"description"`
	SignatureName string   `json:"signature_name,omitempty"`
}

// IngestResult describes the outcome of ingesting one document.
type IngestResult struct {
	BatchID    string        `json:"batch_id"`
	SourceFile string        `json:"source_file"`
	Chunks     []StoredChunk `json:"chunks"`
}
