// Package storage defines the persistence interface for embedded chunks.
package storage

import (
	"context"

	"github.com/hyperjump/ragbase/internal/models"
)

// Storage persists chunks together with their embeddings and metadata.
type Storage interface {
	// PutChunks stores a batch atomically. Chunks without an ID get a
	// store-assigned one, written back into the chunk.
	PutChunks(ctx context.Context, chunks []*models.Chunk) error
	// AllChunks returns every chunk in insertion order.
	AllChunks(ctx context.Context) ([]*models.Chunk, error)
	ChunkIDs(ctx context.Context) ([]string, error)
	// DeleteChunks removes the given ids and returns how many rows were deleted.
	DeleteChunks(ctx context.Context, ids []string) (int, error)
	CountChunks(ctx context.Context) (int64, error)
	// Dimension returns the embedding dimension in use, or 0 when none is recorded.
	Dimension(ctx context.Context) (int, error)

	Close() error
}
