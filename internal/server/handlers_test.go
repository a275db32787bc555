package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/ragbase/internal/classify"
	"github.com/hyperjump/ragbase/internal/config"
	"github.com/hyperjump/ragbase/internal/embedding"
	"github.com/hyperjump/ragbase/internal/indexer"
	"github.com/hyperjump/ragbase/internal/llm"
	"github.com/hyperjump/ragbase/internal/models"
	"github.com/hyperjump/ragbase/internal/search"
	"github.com/hyperjump/ragbase/internal/segment"
	"github.com/hyperjump/ragbase/internal/storage"
)

type testEnv struct {
	handler  http.Handler
	chat     *llm.MockCompleter
	answerer *llm.MockCompleter
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "chunks.db")
	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })

	chat := &llm.MockCompleter{ReplyFunc: func(prompt string) (string, error) {
		switch {
		case strings.HasPrefix(prompt, "Divida"):
			return "O plano odontológico cobre limpeza.\n###\nO vale transporte é mensal.", nil
		case strings.HasPrefix(prompt, "Classifique"):
			if strings.HasSuffix(prompt, "cobre limpeza.") {
				return "plano odontológico", nil
			}
			return "vale transporte", nil
		}
		return "", nil
	}}
	answerer := llm.NewMockCompleter("A limpeza é coberta.")
	embedder := embedding.NewMockEmbedder(8)

	engine := search.NewEngine(store, embedder, answerer)
	idx := indexer.NewIndexer(store, embedder,
		segment.New(chat),
		classify.NewClassifier(chat),
		classify.NewSignatureExtractor(chat, nil))
	srv := NewServer(engine, idx, store, &config.ServerConfig{Port: 8080, MaxUploadMB: 1}, zap.NewNop(),
		WithInfo(Info{Version: "test"}))
	return &testEnv{handler: srv.Routes(), chat: chat, answerer: answerer}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = httptest.NewRequest(method, path, bytes.NewReader(b))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, r)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var out map[string]string
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	return out["error"]
}

func TestHealthAndRoot(t *testing.T) {
	env := newTestEnv(t)
	if w := env.do(t, http.MethodGet, "/health", nil); w.Code != http.StatusOK {
		t.Errorf("health status: got %d", w.Code)
	}
	w := env.do(t, http.MethodGet, "/", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "ragbase") {
		t.Errorf("root: %d %s", w.Code, w.Body.String())
	}
}

func TestDocumentLifecycle(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/documents", map[string]string{"text": "benefícios da empresa"})
	if w.Code != http.StatusCreated {
		t.Fatalf("add document: %d %s", w.Code, w.Body.String())
	}
	var ingest models.IngestResult
	if err := json.NewDecoder(w.Body).Decode(&ingest); err != nil {
		t.Fatal(err)
	}
	if len(ingest.Chunks) != 2 || ingest.SourceFile != indexer.ManualSourceFile {
		t.Errorf("ingest = %+v", ingest)
	}

	w = env.do(t, http.MethodGet, "/api/v1/chunks", nil)
	var list ChunkList
	if err := json.NewDecoder(w.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if list.Total != 2 || list.Chunks[0].Metadata.Description != models.CategoryDental ||
		list.Chunks[1].Metadata.Description != models.CategoryTransport ||
		list.Chunks[0].Metadata.Origin != models.OriginManual {
		t.Errorf("list = %+v", list)
	}

	w = env.do(t, http.MethodGet, "/api/v1/status", nil)
	var status StatusResponse
	if err := json.NewDecoder(w.Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
	if status.Chunks != 2 || status.EmbeddingDimensions != 8 || status.Config.Version != "test" {
		t.Errorf("status = %+v", status)
	}
	if status.DiskUsageBytes == nil || *status.DiskUsageBytes <= 0 {
		t.Errorf("disk usage should come from the store, got %v", status.DiskUsageBytes)
	}

	w = env.do(t, http.MethodPost, "/api/v1/ask?description=plano", map[string]interface{}{"question": "O que o plano cobre?"})
	if w.Code != http.StatusOK {
		t.Fatalf("ask: %d %s", w.Code, w.Body.String())
	}
	var ans models.Answer
	if err := json.NewDecoder(w.Body).Decode(&ans); err != nil {
		t.Fatal(err)
	}
	if ans.Answer != "A limpeza é coberta." || len(ans.Sources) != 1 || ans.Sources[0].Description != models.CategoryDental {
		t.Errorf("answer = %+v", ans)
	}
	if !strings.Contains(env.answerer.Prompts()[0], "O plano odontológico cobre limpeza.") {
		t.Errorf("prompt = %q", env.answerer.Prompts()[0])
	}

	w = env.do(t, http.MethodDelete, "/api/v1/chunks", nil)
	var cleared ClearResponse
	if err := json.NewDecoder(w.Body).Decode(&cleared); err != nil {
		t.Fatal(err)
	}
	if cleared.Deleted != 2 {
		t.Errorf("clear = %+v", cleared)
	}
	w = env.do(t, http.MethodGet, "/api/v1/chunks", nil)
	if err := json.NewDecoder(w.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if list.Total != 0 {
		t.Errorf("chunks after clear = %d", list.Total)
	}
}

func TestAsk_validation(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name string
		path string
		body interface{}
	}{
		{"blank question", "/api/v1/ask", map[string]interface{}{"question": "  "}},
		{"top_k too large", "/api/v1/ask", map[string]interface{}{"question": "q", "top_k": 11}},
		{"top_k query not a number", "/api/v1/ask?top_k=abc", map[string]interface{}{"question": "q"}},
		{"top_k query zero", "/api/v1/ask?top_k=-2", map[string]interface{}{"question": "q"}},
		{"bad json", "/api/v1/ask", "not an object"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, tt.path, tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (%s)", w.Code, w.Body.String())
			}
			if decodeError(t, w) == "" {
				t.Error("expected error message")
			}
		})
	}
	if env.answerer.Calls() != 0 {
		t.Errorf("answer model called %d times", env.answerer.Calls())
	}
}

func TestAsk_remoteFailure(t *testing.T) {
	env := newTestEnv(t)
	env.answerer.Err = models.ErrRemoteCall
	w := env.do(t, http.MethodPost, "/api/v1/ask", map[string]interface{}{"question": "q"})
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if msg := decodeError(t, w); !strings.Contains(msg, models.ErrRemoteCall.Error()) {
		t.Errorf("error = %q", msg)
	}
}

func TestAddDocument_errors(t *testing.T) {
	env := newTestEnv(t)
	if w := env.do(t, http.MethodPost, "/api/v1/documents", map[string]string{"text": ""}); w.Code != http.StatusBadRequest {
		t.Errorf("empty text: status %d", w.Code)
	}
	env.chat.ReplyFunc = nil
	env.chat.Err = models.ErrRemoteCall
	if w := env.do(t, http.MethodPost, "/api/v1/documents", map[string]string{"text": "algo"}); w.Code != http.StatusInternalServerError {
		t.Errorf("remote failure: status %d", w.Code)
	}
}

func multipartRequest(t *testing.T, field, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	r := httptest.NewRequest(http.MethodPost, "/api/v1/documents/pdf", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

func TestUploadPDF_rejected(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name string
		req  *http.Request
	}{
		{"not a pdf", multipartRequest(t, "file", "notas.txt", []byte("texto"))},
		{"corrupt pdf", multipartRequest(t, "file", "termo.pdf", []byte("%PDF-garbage"))},
		{"missing field", multipartRequest(t, "upload", "termo.pdf", []byte("x"))},
		{"too large", multipartRequest(t, "file", "grande.pdf", bytes.Repeat([]byte("a"), 2<<20))},
		{"not multipart", httptest.NewRequest(http.MethodPost, "/api/v1/documents/pdf", strings.NewReader("x"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			env.handler.ServeHTTP(w, tt.req)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (%s)", w.Code, w.Body.String())
			}
		})
	}
	if env.chat.Calls() != 0 {
		t.Errorf("no model call expected, got %d", env.chat.Calls())
	}
}
