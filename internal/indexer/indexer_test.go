package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/ragbase/internal/classify"
	"github.com/hyperjump/ragbase/internal/embedding"
	"github.com/hyperjump/ragbase/internal/llm"
	"github.com/hyperjump/ragbase/internal/models"
	"github.com/hyperjump/ragbase/internal/segment"
	"github.com/hyperjump/ragbase/internal/storage"
)

func TestExtensionAllowed(t *testing.T) {
	tests := []struct {
		ext     string
		allowed []string
		want    bool
	}{
		{".txt", []string{".txt", ".md"}, true},
		{".TXT", []string{".txt"}, true},
		{".pdf", []string{"pdf"}, true},
		{".go", []string{".txt"}, false},
		{"", []string{".txt"}, false},
	}
	for _, tt := range tests {
		got := extensionAllowed(tt.ext, tt.allowed)
		if got != tt.want {
			t.Errorf("extensionAllowed(%q, %v) = %v, want %v", tt.ext, tt.allowed, got, tt.want)
		}
	}
}

// routedCompleter answers each pipeline prompt by its leading instruction.
func routedCompleter(segments, category, name string) *llm.MockCompleter {
	return &llm.MockCompleter{ReplyFunc: func(prompt string) (string, error) {
		switch {
		case strings.HasPrefix(prompt, "Divida o texto"):
			return segments, nil
		case strings.HasPrefix(prompt, "Classifique"):
			return category, nil
		case strings.HasPrefix(prompt, "Extraia"):
			return name, nil
		}
		return "", errors.New("unexpected prompt")
	}}
}

func testIndexer(t *testing.T, completer llm.Completer) (*Indexer, storage.Storage) {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "chunks.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	idx := NewIndexer(
		store,
		embedding.NewMockEmbedder(4),
		segment.New(completer),
		classify.NewClassifier(completer),
		classify.NewSignatureExtractor(completer, nil),
	)
	return idx, store
}

func TestIngestText(t *testing.T) {
	m := routedCompleter(
		"O plano de saúde cobre consultas.\n###\nEu João Silva, portador do RG 123, declaro ter recebido.",
		"plano de saúde", "")
	idx, store := testIndexer(t, m)
	ctx := context.Background()

	res, err := idx.IngestText(ctx, &models.DocumentInput{Text: "documento completo"})
	if err != nil {
		t.Fatal(err)
	}
	if res.BatchID == "" || res.SourceFile != ManualSourceFile {
		t.Errorf("result = %+v", res)
	}
	if len(res.Chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(res.Chunks))
	}
	if res.Chunks[0].Description != models.CategoryHealth {
		t.Errorf("chunk 0 description = %q", res.Chunks[0].Description)
	}
	if res.Chunks[1].Description != models.CategorySignature {
		t.Errorf("chunk 1 description = %q", res.Chunks[1].Description)
	}

	all, err := store.AllChunks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("stored %d chunks", len(all))
	}
	for _, c := range all {
		if c.Origin != models.OriginManual || c.SourceFile != ManualSourceFile || c.BatchID != res.BatchID {
			t.Errorf("stored chunk metadata = %+v", c)
		}
		if len(c.Embedding) != 4 {
			t.Errorf("embedding dimension = %d", len(c.Embedding))
		}
	}
	if all[0].SignatureName != "" {
		t.Errorf("non-signature chunk has name %q", all[0].SignatureName)
	}
}

func TestIngestText_signatureFromFullText(t *testing.T) {
	text := "Regras gerais do benefício.\nEu Maria Souza, portador do RG 999."
	m := routedCompleter("Assinatura do colaborador\n###\nRegras gerais", "valores, benefícios", "não usado")
	idx, store := testIndexer(t, m)
	ctx := context.Background()

	res, err := idx.IngestText(ctx, &models.DocumentInput{Text: text, Origin: models.OriginPDF, SourceFile: "termo.pdf"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Chunks[0].SignatureName != "Maria Souza" {
		t.Errorf("signature name = %q, want Maria Souza", res.Chunks[0].SignatureName)
	}
	for _, p := range m.Prompts() {
		if strings.HasPrefix(p, "Extraia") {
			t.Error("name should come from the regex layers, not the model")
		}
	}
	all, _ := store.AllChunks(ctx)
	if all[0].Origin != models.OriginPDF || all[0].SourceFile != "termo.pdf" {
		t.Errorf("stored = %+v", all[0])
	}
}

func TestIngestText_nameExtractedOnce(t *testing.T) {
	m := routedCompleter("Assinatura A\n###\nAssinatura B", "outros", "Carlos Lima")
	idx, _ := testIndexer(t, m)

	res, err := idx.IngestText(context.Background(), &models.DocumentInput{Text: "sem frase de identificação"})
	if err != nil {
		t.Fatal(err)
	}
	extractions := 0
	for _, p := range m.Prompts() {
		if strings.HasPrefix(p, "Extraia") {
			extractions++
		}
	}
	if extractions != 1 {
		t.Errorf("expected 1 extraction call, got %d", extractions)
	}
	for _, c := range res.Chunks {
		if c.SignatureName != "Carlos Lima" {
			t.Errorf("chunk %s signature = %q", c.ID, c.SignatureName)
		}
	}
}

func TestIngestText_failureStoresNothing(t *testing.T) {
	m := &llm.MockCompleter{ReplyFunc: func(prompt string) (string, error) {
		if strings.HasPrefix(prompt, "Divida") {
			return "Tabela de valores\n###\nVale transporte", nil
		}
		return "", models.ErrRemoteCall
	}}
	idx, store := testIndexer(t, m)
	ctx := context.Background()

	_, err := idx.IngestText(ctx, &models.DocumentInput{Text: "texto"})
	if !errors.Is(err, models.ErrRemoteCall) {
		t.Fatalf("expected ErrRemoteCall, got %v", err)
	}
	if n, _ := store.CountChunks(ctx); n != 0 {
		t.Errorf("CountChunks() = %d, want 0", n)
	}
}

func TestIngestText_validation(t *testing.T) {
	idx, _ := testIndexer(t, llm.NewMockCompleter("x"))
	for _, in := range []*models.DocumentInput{nil, {Text: "  \n"}} {
		if _, err := idx.IngestText(context.Background(), in); !errors.Is(err, models.ErrValidation) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
	}
}

func TestIngestFile(t *testing.T) {
	m := routedCompleter("Dependentes podem ser incluídos.", "dependentes, inclusão", "")
	idx, _ := testIndexer(t, m)
	dir := t.TempDir()
	ctx := context.Background()

	path := filepath.Join(dir, "dependentes.md")
	if err := os.WriteFile(path, []byte("Dependentes podem ser incluídos."), 0644); err != nil {
		t.Fatal(err)
	}
	res, err := idx.IngestFile(ctx, path, []string{".md", ".txt"})
	if err != nil {
		t.Fatal(err)
	}
	if res.SourceFile != "dependentes.md" || len(res.Chunks) != 1 {
		t.Errorf("result = %+v", res)
	}

	other := filepath.Join(dir, "planilha.xlsx")
	if err := os.WriteFile(other, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := idx.IngestFile(ctx, other, nil); !errors.Is(err, models.ErrValidation) {
		t.Errorf("expected ErrValidation for unsupported file, got %v", err)
	}
	if _, err := idx.IngestFile(ctx, path, []string{".pdf"}); !errors.Is(err, models.ErrValidation) {
		t.Errorf("expected ErrValidation for disallowed extension, got %v", err)
	}
}

func TestIngestPDF_invalid(t *testing.T) {
	m := llm.NewMockCompleter("x")
	idx, _ := testIndexer(t, m)
	if _, err := idx.IngestPDF(context.Background(), "ruim.pdf", []byte("garbage")); !errors.Is(err, models.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
	if m.Calls() != 0 {
		t.Errorf("no model call expected, got %d", m.Calls())
	}
}

func TestClear(t *testing.T) {
	m := routedCompleter("A\n###\nB\n###\nC", "outros", "")
	idx, store := testIndexer(t, m)
	ctx := context.Background()

	if _, err := idx.IngestText(ctx, &models.DocumentInput{Text: "abc"}); err != nil {
		t.Fatal(err)
	}
	n, err := idx.Clear(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("Clear() = %d, want 3", n)
	}
	if count, _ := store.CountChunks(ctx); count != 0 {
		t.Errorf("CountChunks() = %d after clear", count)
	}
	if n, err := idx.Clear(ctx); err != nil || n != 0 {
		t.Errorf("Clear() on empty store = %d, %v", n, err)
	}
}
