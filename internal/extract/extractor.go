// Package extract turns uploaded files into plain text for ingestion.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/ragbase/internal/models"
)

// SupportedExtensions lists the file extensions ExtractBytes understands.
var SupportedExtensions = []string{".pdf", ".txt", ".md"}

// Extractor extracts plain text from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads the file at path and returns its text content.
func (e *Extractor) Extract(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, filepath.Ext(path))
}

// ExtractBytes extracts text from content based on the given extension, which
// includes the leading dot (e.g. ".pdf"). PDF pages are concatenated in page order.
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	switch strings.ToLower(ext) {
	case ".pdf":
		text, err := extractPDF(content)
		if err != nil {
			return "", fmt.Errorf("%w: %w", models.ErrValidation, err)
		}
		return text, nil
	case ".txt", ".md":
		return extractPlain(content)
	default:
		return "", fmt.Errorf("%w: unsupported file type %q", models.ErrValidation, ext)
	}
}

// Supports reports whether files with extension ext can be extracted.
func Supports(ext string) bool {
	ext = strings.ToLower(ext)
	for _, s := range SupportedExtensions {
		if s == ext {
			return true
		}
	}
	return false
}
