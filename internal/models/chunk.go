// Package models defines core data structures for chunks, questions, and answers.
package models

import "time"

// Origin records how the text of a chunk entered the system.
type Origin string

const (
	OriginManual Origin = "manual"
	OriginPDF    Origin = "pdf"
)

// Chunk is a classified, embedded span of ingested text.
type Chunk struct {
	ID            string    `json:"id" db:"id"`
	BatchID       string    `json:"batch_id" db:"batch_id"`
	Text          string    `json:"text" db:"text"`
	Origin        Origin    `json:"origin" db:"origin"`
	SourceFile    string    `json:"source_file" db:"source_file"`
	Description   Category  `json:"description" db:"description"`
	SignatureName string    `json:"signature_name,omitempty" db:"signature_name"`
	Embedding     []float32 `json:"-" db:"embedding"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// HasSignature reports whether the chunk names the person who signed the document.
func (c *Chunk) HasSignature() bool {
	return c.Description == CategorySignature && c.SignatureName != ""
}

// Metadata returns the listing view of the chunk's metadata.
func (c *Chunk) Metadata() ChunkMetadata {
	return ChunkMetadata{
		Origin:        c.Origin,
		SourceFile:    c.SourceFile,
		Description:   c.Description,
		SignatureName: c.SignatureName,
	}
}

// ChunkMetadata is the metadata stored next to each chunk's text and vector.
type ChunkMetadata struct {
	Origin        Origin   `json:"origin"`
	SourceFile    string   `json:"source_file"`
	Description   Category `json:"description"`
	SignatureName string   `json:"signature_name,omitempty"`
}

// ChunkView pairs a stored chunk's text with its metadata for listings.
type ChunkView struct {
	ID       string        `json:"id"`
	Document string        `json:"document"`
	Metadata ChunkMetadata `json:"metadata"`
}

// DocumentInput is the input for ingesting raw text.
type DocumentInput struct {
	Text       string `json:"text"`
	Origin     Origin `json:"origin,omitempty"`
	SourceFile string `json:"source_file,omitempty"`
}
