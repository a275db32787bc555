// Package indexer turns raw documents into classified, embedded chunks in storage.
package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/ragbase/internal/embedding"
	"github.com/hyperjump/ragbase/internal/extract"
	"github.com/hyperjump/ragbase/internal/models"
	"github.com/hyperjump/ragbase/internal/storage"
	"github.com/hyperjump/ragbase/pkg/utils"
)

// ManualSourceFile is the source file recorded for text submitted without one.
const ManualSourceFile = "inserido_manual"

// Segmenter splits text into topic-coherent chunks.
type Segmenter interface {
	Segment(ctx context.Context, text string) ([]string, error)
}

// Classifier labels a chunk.
type Classifier interface {
	Classify(ctx context.Context, chunk string) (models.Category, error)
}

// NameExtractor finds the signer's name in a document.
type NameExtractor interface {
	ExtractName(ctx context.Context, text string) (string, error)
}

// Indexer runs the ingestion pipeline: segment, classify, embed, store.
type Indexer struct {
	storage    storage.Storage
	embedder   embedding.Embedder
	segmenter  Segmenter
	classifier Classifier
	names      NameExtractor
	extractor  *extract.Extractor
	logger     *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithExtractor sets the extractor used for PDF and file ingestion.
func WithExtractor(e *extract.Extractor) IndexerOption {
	return func(idx *Indexer) { idx.extractor = e }
}

// NewIndexer creates an indexer with the given dependencies.
func NewIndexer(
	store storage.Storage,
	embedder embedding.Embedder,
	segmenter Segmenter,
	classifier Classifier,
	names NameExtractor,
	opts ...IndexerOption,
) *Indexer {
	idx := &Indexer{
		storage:    store,
		embedder:   embedder,
		segmenter:  segmenter,
		classifier: classifier,
		names:      names,
	}
	for _, opt := range opts {
		opt(idx)
	}
	if idx.extractor == nil {
		idx.extractor = extract.NewExtractor()
	}
	idx.logger = utils.OrNop(idx.logger)
	return idx
}

// IngestText segments, classifies and embeds input.Text and stores every chunk
// in one batch. Nothing is stored when any step fails.
func (idx *Indexer) IngestText(ctx context.Context, input *models.DocumentInput) (*models.IngestResult, error) {
	if input == nil || strings.TrimSpace(input.Text) == "" {
		return nil, fmt.Errorf("%w: text is required", models.ErrValidation)
	}
	origin := input.Origin
	if origin == "" {
		origin = models.OriginManual
	}
	sourceFile := input.SourceFile
	if sourceFile == "" && origin == models.OriginManual {
		sourceFile = ManualSourceFile
	}

	pieces, err := idx.segmenter.Segment(ctx, input.Text)
	if err != nil {
		return nil, err
	}

	batchID := uuid.New().String()
	var (
		signer        string
		signerChecked bool
	)
	chunks := make([]*models.Chunk, 0, len(pieces))
	for _, piece := range pieces {
		category, err := idx.classifier.Classify(ctx, piece)
		if err != nil {
			return nil, err
		}
		vec, err := idx.embedder.Embed(ctx, piece)
		if err != nil {
			return nil, err
		}
		c := &models.Chunk{
			BatchID:     batchID,
			Text:        piece,
			Origin:      origin,
			SourceFile:  sourceFile,
			Description: category,
			Embedding:   vec,
		}
		if category == models.CategorySignature {
			// the signer is looked up once per document, over its full text
			if !signerChecked {
				if signer, err = idx.names.ExtractName(ctx, input.Text); err != nil {
					return nil, err
				}
				signerChecked = true
			}
			c.SignatureName = signer
		}
		chunks = append(chunks, c)
	}

	if err := idx.storage.PutChunks(ctx, chunks); err != nil {
		return nil, err
	}

	result := &models.IngestResult{BatchID: batchID, SourceFile: sourceFile}
	for _, c := range chunks {
		idx.logger.Info("chunk stored",
			zap.String("id", c.ID),
			zap.String("description", string(c.Description)),
			zap.String("batch_id", batchID))
		result.Chunks = append(result.Chunks, models.StoredChunk{
			ID:            c.ID,
			Description:   c.Description,
			SignatureName: c.SignatureName,
		})
	}
	return result, nil
}

// IngestPDF extracts the text of a PDF and ingests it with origin pdf.
func (idx *Indexer) IngestPDF(ctx context.Context, filename string, content []byte) (*models.IngestResult, error) {
	text, err := idx.extractor.ExtractBytes(content, ".pdf")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: no text found in %s", models.ErrValidation, filename)
	}
	idx.logger.Debug("pdf extracted", zap.String("file", filename), zap.Int("chars", len(text)))
	return idx.IngestText(ctx, &models.DocumentInput{
		Text:       text,
		Origin:     models.OriginPDF,
		SourceFile: filename,
	})
}

// IngestFile ingests a PDF or text file from disk. When allowedExts is
// non-empty the file's extension must be in it (case-insensitive).
func (idx *Indexer) IngestFile(ctx context.Context, path string, allowedExts []string) (*models.IngestResult, error) {
	idx.logger.Debug("indexer ingesting file", zap.String("path", path))
	ext := strings.ToLower(filepath.Ext(path))
	if len(allowedExts) > 0 && !extensionAllowed(ext, allowedExts) {
		return nil, fmt.Errorf("%w: extension %q not in allowed list", models.ErrValidation, ext)
	}
	if !extract.Supports(ext) {
		return nil, fmt.Errorf("%w: unsupported file type %q", models.ErrValidation, ext)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	name := filepath.Base(path)
	if ext == ".pdf" {
		return idx.IngestPDF(ctx, name, content)
	}
	text, err := idx.extractor.ExtractBytes(content, ext)
	if err != nil {
		return nil, err
	}
	return idx.IngestText(ctx, &models.DocumentInput{
		Text:       text,
		Origin:     models.OriginManual,
		SourceFile: name,
	})
}

// Clear deletes every stored chunk and returns how many were removed.
func (idx *Indexer) Clear(ctx context.Context) (int, error) {
	ids, err := idx.storage.ChunkIDs(ctx)
	if err != nil {
		return 0, err
	}
	n, err := idx.storage.DeleteChunks(ctx, ids)
	if err != nil {
		return 0, err
	}
	idx.logger.Info("store cleared", zap.Int("chunks", n))
	return n, nil
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}
