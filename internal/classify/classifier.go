// Package classify labels chunks with a category from the fixed taxonomy and
// extracts signer names from signature chunks.
package classify

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/ragbase/internal/llm"
	"github.com/hyperjump/ragbase/internal/models"
	"github.com/hyperjump/ragbase/pkg/utils"
)

// Signature heuristics, tried in order against the lowercased chunk.
var signaturePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\beu[, ]`),
	regexp.MustCompile(`declaro.*?recebido`),
	regexp.MustCompile(`portador do rg`),
	regexp.MustCompile(`assinatura`),
	regexp.MustCompile(`nome do profissional`),
	regexp.MustCompile(`assinatura do.*(profissional|colaborador|responsável)`),
}

const classifyPrompt = "Classifique o trecho abaixo com um dos temas:\n" +
	"- assinatura, identificação\n" +
	"- plano odontológico\n" +
	"- plano de saúde\n" +
	"- valores, benefícios\n" +
	"- vale transporte\n" +
	"- dependentes, inclusão\n" +
	"- outros\n\n" +
	"Trecho:\n"

// Classifier assigns a category to a chunk.
type Classifier struct {
	completer llm.Completer
	strict    bool
	logger    *zap.Logger
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Classifier) {
		c.logger = l
	}
}

// WithStrictTaxonomy controls whether model replies are validated against the
// taxonomy. Strict mode is the default.
func WithStrictTaxonomy(strict bool) Option {
	return func(c *Classifier) {
		c.strict = strict
	}
}

// NewClassifier creates a Classifier that falls back to completer when no
// heuristic matches.
func NewClassifier(completer llm.Completer, opts ...Option) *Classifier {
	c := &Classifier{completer: completer, strict: true}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = utils.OrNop(c.logger)
	return c
}

// Classify returns the category of chunk. Signature-like chunks are labelled
// without a remote call; anything else costs exactly one completion.
func (c *Classifier) Classify(ctx context.Context, chunk string) (models.Category, error) {
	if LooksLikeSignature(chunk) {
		return models.CategorySignature, nil
	}

	reply, err := c.completer.Complete(ctx, classifyPrompt+chunk)
	if err != nil {
		return "", fmt.Errorf("classify chunk: %w", err)
	}

	if !c.strict {
		return models.Category(strings.ToLower(strings.TrimSpace(reply))), nil
	}

	if cat, ok := models.ParseCategory(normalizeLabel(reply)); ok {
		return cat, nil
	}
	c.logger.Warn("classification outside taxonomy, using fallback",
		zap.String("reply", utils.Truncate(reply, 80)),
		zap.String("category", string(models.CategoryOther)))
	return models.CategoryOther, nil
}

// LooksLikeSignature reports whether chunk matches any signature heuristic.
func LooksLikeSignature(chunk string) bool {
	lower := strings.ToLower(chunk)
	for _, re := range signaturePatterns {
		if re.MatchString(lower) {
			return true
		}
	}
	return false
}

func normalizeLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimLeft(s, "-*• ")
	s = strings.Trim(s, "\"'`“”")
	s = strings.TrimSuffix(strings.TrimSpace(s), ".")
	return strings.TrimSpace(s)
}
