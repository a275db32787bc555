package classify

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/hyperjump/ragbase/internal/llm"
	"github.com/hyperjump/ragbase/pkg/utils"
)

var (
	// $ also accepts a single trailing newline, as extracted text usually ends with one.
	firstPersonName = regexp.MustCompile(`(?i)\beu[\s,:-]+(.*?)(?:,| portador|\n?$)`)
	holderName      = regexp.MustCompile(`(?i)([\p{L}\p{N}_\s]{5,})\s+portador do RG`)
)

const extractPrompt = "Extraia apenas o nome completo da pessoa, se houver uma frase:\n" +
	"\"Eu {NOME}, portador do RG\"\n\n" +
	"Texto:\n%s\n\nNome:"

// SignatureExtractor pulls the signer's name out of a declaration.
type SignatureExtractor struct {
	completer llm.Completer
	logger    *zap.Logger
}

// NewSignatureExtractor creates an extractor that asks completer when the
// regular expressions find nothing.
func NewSignatureExtractor(completer llm.Completer, logger *zap.Logger) *SignatureExtractor {
	return &SignatureExtractor{completer: completer, logger: utils.OrNop(logger)}
}

// ExtractName returns the signer name found in text.
func (e *SignatureExtractor) ExtractName(ctx context.Context, text string) (string, error) {
	if name, ok := MatchName(text); ok {
		e.logger.Debug("signature name matched", zap.String("name", name))
		return name, nil
	}

	reply, err := e.completer.Complete(ctx, fmt.Sprintf(extractPrompt, text))
	if err != nil {
		return "", fmt.Errorf("extract signature name: %w", err)
	}
	return strings.TrimSpace(reply), nil
}

// MatchName applies the regular expression layers only.
func MatchName(text string) (string, bool) {
	if m := firstPersonName.FindStringSubmatch(text); m != nil {
		candidate := strings.TrimSpace(m[1])
		if isPersonName(candidate) {
			return candidate, true
		}
	}
	if m := holderName.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	return "", false
}

// isPersonName requires at least two words made only of letters.
func isPersonName(s string) bool {
	if len(strings.Fields(s)) < 2 {
		return false
	}
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
