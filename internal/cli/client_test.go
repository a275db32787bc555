package cli

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/ragbase/internal/models"
)

func TestClient_Ask(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/ask" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		var req models.AskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Error(err)
		}
		_ = json.NewEncoder(w).Encode(models.Answer{Question: req.Question, Answer: "ok"})
	}))
	defer srv.Close()

	ans, err := NewClient(srv.URL+"/", time.Second).Ask(context.Background(), &models.AskRequest{Question: "q", TopK: 2})
	if err != nil {
		t.Fatal(err)
	}
	if ans.Answer != "ok" || ans.Question != "q" {
		t.Errorf("answer = %+v", ans)
	}
}

func TestClient_errorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"validation error: question cannot be empty"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).Ask(context.Background(), &models.AskRequest{})
	if err == nil || !strings.Contains(err.Error(), "400: validation error: question cannot be empty") {
		t.Errorf("err = %v", err)
	}
}

func TestClient_UploadPDF(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatal(err)
		}
		defer file.Close()
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(models.IngestResult{SourceFile: header.Filename})
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "termo.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4"), 0644); err != nil {
		t.Fatal(err)
	}
	res, err := NewClient(srv.URL, time.Second).UploadPDF(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if res.SourceFile != "termo.pdf" {
		t.Errorf("source file = %q", res.SourceFile)
	}
}

func TestClient_ClearAndChunks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodDelete:
			_, _ = w.Write([]byte(`{"status":"cleared","deleted":4}`))
		case http.MethodGet:
			_, _ = w.Write([]byte(`{"total":1,"chunks":[{"id":"id-9","document":"x","metadata":{"origin":"manual","source_file":"inserido_manual","description":"outros"}}]}`))
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	cleared, err := c.Clear(context.Background())
	if err != nil || cleared.Deleted != 4 {
		t.Errorf("Clear() = %+v, %v", cleared, err)
	}
	list, err := c.Chunks(context.Background())
	if err != nil || list.Total != 1 || list.Chunks[0].ID != "id-9" {
		t.Errorf("Chunks() = %+v, %v", list, err)
	}
}
