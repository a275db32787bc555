// Package search answers questions from the stored chunks.
package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/ragbase/internal/embedding"
	"github.com/hyperjump/ragbase/internal/llm"
	"github.com/hyperjump/ragbase/internal/models"
	"github.com/hyperjump/ragbase/internal/storage"
	"github.com/hyperjump/ragbase/internal/vector"
	"github.com/hyperjump/ragbase/pkg/utils"
)

const snippetLength = 160

// Engine retrieves the chunks most similar to a question and asks the answer
// model to respond from them.
type Engine struct {
	storage     storage.Storage
	embedder    embedding.Embedder
	answerer    llm.Completer
	defaultTopK int
	logger      *zap.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithDefaultTopK sets the number of context chunks used when a request does not choose.
func WithDefaultTopK(k int) EngineOption {
	return func(e *Engine) { e.defaultTopK = k }
}

// NewEngine creates a search engine with the given dependencies.
func NewEngine(
	store storage.Storage,
	embedder embedding.Embedder,
	answerer llm.Completer,
	opts ...EngineOption,
) *Engine {
	e := &Engine{
		storage:     store,
		embedder:    embedder,
		answerer:    answerer,
		defaultTopK: models.DefaultTopK,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = utils.OrNop(e.logger)
	return e
}

// Answer responds to req. When a matching chunk carries a signer name the
// answer is built from it directly and the answer model is not called.
func (e *Engine) Answer(ctx context.Context, req *models.AskRequest) (*models.Answer, error) {
	startTime := time.Now()
	if err := ProcessQuery(req, e.defaultTopK); err != nil {
		return nil, err
	}

	queryEmbedding, err := e.embedder.Embed(ctx, req.Question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	chunks, err := e.storage.AllChunks(ctx)
	if err != nil {
		return nil, err
	}
	chunks = FilterByDescription(chunks, req.Description)

	if c := FirstSignature(chunks); c != nil {
		e.logger.Debug("answering from signature", zap.String("chunk", c.ID))
		return &models.Answer{
			Question:     req.Question,
			Answer:       SignatureAnswer(c.SignatureName),
			ShortCircuit: true,
			Sources: []models.Source{{
				ID:          c.ID,
				Description: c.Description,
				Rank:        1,
				Snippet:     utils.Truncate(c.Text, snippetLength),
			}},
			QueryTime: time.Since(startTime).Milliseconds(),
		}, nil
	}

	scores := make([]float64, len(chunks))
	for i, c := range chunks {
		if scores[i], err = vector.Cosine(queryEmbedding, c.Embedding); err != nil {
			return nil, fmt.Errorf("%w: chunk %s: %w", models.ErrStore, c.ID, err)
		}
	}

	top := vector.TopK(scores, req.TopK)
	texts := make([]string, 0, len(top))
	sources := make([]models.Source, 0, len(top))
	for rank, i := range top {
		c := chunks[i]
		texts = append(texts, c.Text)
		sources = append(sources, models.Source{
			ID:          c.ID,
			Description: c.Description,
			Score:       scores[i],
			Rank:        rank + 1,
			Snippet:     utils.Truncate(c.Text, snippetLength),
		})
	}

	e.logger.Debug("context selected",
		zap.Int("candidates", len(chunks)),
		zap.Int("selected", len(top)),
		zap.String("description", req.Description))

	reply, err := e.answerer.Complete(ctx, BuildPrompt(strings.Join(texts, "\n"), req.Question))
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	return &models.Answer{
		Question:  req.Question,
		Answer:    reply,
		Sources:   sources,
		QueryTime: time.Since(startTime).Milliseconds(),
	}, nil
}

// BuildPrompt renders the answer prompt for the given context and question.
func BuildPrompt(context, question string) string {
	return "Responda com base no seguinte contexto:\n" + context + "\n\nPergunta: " + question
}

// SignatureAnswer is the fixed answer given when a signer name is on record.
func SignatureAnswer(name string) string {
	return "O documento foi assinado por " + name + "."
}
