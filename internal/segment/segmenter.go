// Package segment splits raw document text into topic-coherent chunks using a
// completion model.
package segment

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/ragbase/internal/llm"
	"github.com/hyperjump/ragbase/internal/models"
	"github.com/hyperjump/ragbase/pkg/utils"
)

// DefaultDelimiter separates sections in the model reply.
const DefaultDelimiter = "###"

var alternativeDelimiters = []string{"@@@", "%%%", "~~~", "|||"}

const promptTemplate = "Divida o texto abaixo em seções temáticas bem definidas. Cada seção deve conter apenas um tópico coeso.\n" +
	"Separe com %s.\n\nTexto:\n%s"

// Segmenter asks a completion model to split text into sections.
type Segmenter struct {
	completer llm.Completer
	logger    *zap.Logger
}

// Option configures a Segmenter.
type Option func(*Segmenter)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Segmenter) {
		s.logger = l
	}
}

// New creates a Segmenter backed by completer.
func New(completer llm.Completer, opts ...Option) *Segmenter {
	s := &Segmenter{completer: completer}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = utils.OrNop(s.logger)
	return s
}

// Segment returns the non-empty, trimmed sections of text in the order the
// model produced them. When the reply yields no section the trimmed input is
// returned as the only chunk.
func (s *Segmenter) Segment(ctx context.Context, text string) ([]string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: text is empty", models.ErrValidation)
	}

	delim := ChooseDelimiter(text)
	reply, err := s.completer.Complete(ctx, BuildPrompt(text, delim))
	if err != nil {
		return nil, fmt.Errorf("segment text: %w", err)
	}

	chunks := Split(reply, delim)
	if len(chunks) == 0 {
		s.logger.Debug("segmentation reply had no sections, keeping text whole")
		return []string{trimmed}, nil
	}
	s.logger.Debug("text segmented",
		zap.Int("chunks", len(chunks)),
		zap.String("delimiter", delim))
	return chunks, nil
}

// BuildPrompt renders the segmentation instruction for text using delim.
func BuildPrompt(text, delim string) string {
	return fmt.Sprintf(promptTemplate, delim, text)
}

// ChooseDelimiter returns a delimiter that does not occur in text.
func ChooseDelimiter(text string) string {
	if !strings.Contains(text, DefaultDelimiter) {
		return DefaultDelimiter
	}
	for _, d := range alternativeDelimiters {
		if !strings.Contains(text, d) {
			return d
		}
	}
	for i := 1; ; i++ {
		d := DefaultDelimiter + strconv.Itoa(i)
		if !strings.Contains(text, d) {
			return d
		}
	}
}

// Split breaks reply on delim, trims every piece and drops empty ones.
func Split(reply, delim string) []string {
	var out []string
	for _, part := range strings.Split(reply, delim) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
