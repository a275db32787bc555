package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/ragbase/internal/models"
	"github.com/hyperjump/ragbase/internal/storage"
)

const maxJSONBody = 10 << 20

// StatusResponse is the shape of GET /api/v1/status.
type StatusResponse struct {
	Chunks              int64  `json:"chunks"`
	EmbeddingDimensions int    `json:"embedding_dimensions"`
	DiskUsageBytes      *int64 `json:"disk_usage_bytes,omitempty"`
	Config              Info   `json:"config"`
}

// ChunkList is the shape of GET /api/v1/chunks.
type ChunkList struct {
	Total  int                `json:"total"`
	Chunks []models.ChunkView `json:"chunks"`
}

// ClearResponse is the shape of DELETE /api/v1/chunks.
type ClearResponse struct {
	Status  string `json:"status"`
	Deleted int    `json:"deleted"`
}

// diskUsager is implemented by stores backed by files on disk.
type diskUsager interface {
	DiskUsage() (int64, error)
}

var _ diskUsager = (*storage.SQLiteStorage)(nil)

type addDocumentRequest struct {
	Text       string `json:"text"`
	SourceFile string `json:"source_file,omitempty"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"name":    "ragbase",
		"version": s.info.Version,
		"message": "RAG API online",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	chunkCount, err := s.storage.CountChunks(ctx)
	if err != nil {
		s.respondFailure(w, "status: count chunks failed", err)
		return
	}
	dim, err := s.storage.Dimension(ctx)
	if err != nil {
		s.respondFailure(w, "status: read dimension failed", err)
		return
	}
	resp := StatusResponse{
		Chunks:              chunkCount,
		EmbeddingDimensions: dim,
		Config:              s.info,
	}
	if du, ok := s.storage.(diskUsager); ok {
		if size, err := du.DiskUsage(); err == nil && size > 0 {
			resp.DiskUsageBytes = &size
		} else if err != nil {
			s.logger.Debug("status: disk usage unavailable", zap.Error(err))
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAddDocument(w http.ResponseWriter, r *http.Request) {
	var req addDocumentRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("add document request",
		zap.Int("chars", len(req.Text)),
		zap.String("source_file", req.SourceFile))
	result, err := s.indexer.IngestText(r.Context(), &models.DocumentInput{
		Text:       req.Text,
		Origin:     models.OriginManual,
		SourceFile: req.SourceFile,
	})
	if err != nil {
		s.respondFailure(w, "ingestion failed", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, result)
}

func (s *Server) handleUploadPDF(w http.ResponseWriter, r *http.Request) {
	maxBytes := int64(s.config.MaxUploadMB) << 20
	if maxBytes <= 0 {
		maxBytes = 32 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart upload: "+err.Error())
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		s.respondError(w, http.StatusBadRequest, "only PDF files are accepted")
		return
	}
	content, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "failed to read upload")
		return
	}
	s.logger.Debug("pdf upload", zap.String("file", name), zap.Int("bytes", len(content)))
	result, err := s.indexer.IngestPDF(r.Context(), name, content)
	if err != nil {
		s.respondFailure(w, "pdf ingestion failed", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, result)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req models.AskRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			s.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	q := r.URL.Query()
	if req.Question == "" {
		req.Question = q.Get("question")
	}
	if v := q.Get("top_k"); v != "" && req.TopK == 0 {
		k, err := strconv.Atoi(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "top_k must be an integer")
			return
		}
		req.TopK = k
	}
	if req.Description == "" {
		req.Description = q.Get("description")
	}

	s.logger.Debug("ask request",
		zap.String("question", req.Question),
		zap.Int("top_k", req.TopK),
		zap.String("description", req.Description))
	answer, err := s.engine.Answer(r.Context(), &req)
	if err != nil {
		s.respondFailure(w, "answer failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, answer)
}

func (s *Server) handleListChunks(w http.ResponseWriter, r *http.Request) {
	chunks, err := s.storage.AllChunks(r.Context())
	if err != nil {
		s.respondFailure(w, "list chunks failed", err)
		return
	}
	views := make([]models.ChunkView, 0, len(chunks))
	for _, c := range chunks {
		views = append(views, models.ChunkView{ID: c.ID, Document: c.Text, Metadata: c.Metadata()})
	}
	s.respondJSON(w, http.StatusOK, ChunkList{Total: len(views), Chunks: views})
}

func (s *Server) handleClearChunks(w http.ResponseWriter, r *http.Request) {
	n, err := s.indexer.Clear(r.Context())
	if err != nil {
		s.respondFailure(w, "clear failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, ClearResponse{Status: "cleared", Deleted: n})
}

// respondFailure maps validation errors to 400 and everything else to 500.
func (s *Server) respondFailure(w http.ResponseWriter, msg string, err error) {
	if errors.Is(err, models.ErrValidation) {
		s.logger.Debug(msg, zap.Error(err))
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Error(msg, zap.Error(err))
	s.respondError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
