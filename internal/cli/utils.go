// Package cli provides output formatting and an HTTP client for the ragbase CLI.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/ragbase/internal/models"
	"github.com/hyperjump/ragbase/internal/server"
	"github.com/hyperjump/ragbase/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q; use text or json", s)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteAnswer writes an answer and its sources to w in the given format.
func WriteAnswer(w io.Writer, answer *models.Answer, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, answer)
	}
	fmt.Fprintf(w, "\n%s\n\n", strings.TrimSpace(answer.Answer))
	if answer.ShortCircuit {
		fmt.Fprintln(w, "(answered from the recorded signature)")
	}
	if len(answer.Sources) > 0 {
		fmt.Fprintf(w, "--- Sources (%d, %dms) ---\n", len(answer.Sources), answer.QueryTime)
		for _, s := range answer.Sources {
			fmt.Fprintf(w, "[%d] %s | %s | score %.4f\n", s.Rank, s.ID, s.Description, s.Score)
			if s.Snippet != "" {
				fmt.Fprintf(w, "    %s\n", utils.CollapseSpace(utils.Truncate(s.Snippet, 120)))
			}
		}
	}
	return nil
}

// WriteChunks writes a chunk listing to w in the given format.
func WriteChunks(w io.Writer, list *server.ChunkList, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, list)
	}
	fmt.Fprintf(w, "%d chunk(s)\n", list.Total)
	for _, c := range list.Chunks {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "ID: %s | %s | %s", c.ID, c.Metadata.Description, c.Metadata.Origin)
		if c.Metadata.SourceFile != "" {
			fmt.Fprintf(w, " | %s", c.Metadata.SourceFile)
		}
		fmt.Fprintln(w)
		if c.Metadata.SignatureName != "" {
			fmt.Fprintf(w, "Signed by: %s\n", c.Metadata.SignatureName)
		}
		fmt.Fprintf(w, "%s\n", utils.Truncate(utils.CollapseSpace(c.Document), 200))
	}
	return nil
}

// WriteIngestResult writes the outcome of an ingestion to w in the given format.
func WriteIngestResult(w io.Writer, result *models.IngestResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, result)
	}
	fmt.Fprintf(w, "Stored %d chunk(s) from %s (batch %s)\n", len(result.Chunks), result.SourceFile, result.BatchID)
	for _, c := range result.Chunks {
		if c.SignatureName != "" {
			fmt.Fprintf(w, "  %s  %s  (signed by %s)\n", c.ID, c.Description, c.SignatureName)
			continue
		}
		fmt.Fprintf(w, "  %s  %s\n", c.ID, c.Description)
	}
	return nil
}

// WriteStatus writes server status to w in the given format.
func WriteStatus(w io.Writer, status *server.StatusResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, status)
	}
	fmt.Fprintf(w, "chunks:             %d   # stored chunks\n", status.Chunks)
	fmt.Fprintf(w, "embedding_dims:     %d   # 0 until the first chunk is stored\n", status.EmbeddingDimensions)
	if status.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes:   %d\n", *status.DiskUsageBytes)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "# configuration")
	c := status.Config
	fmt.Fprintf(w, "version:            %s\n", c.Version)
	if c.ChatModel != "" {
		fmt.Fprintf(w, "chat_model:         %s\n", c.ChatModel)
	}
	if c.EmbeddingModel != "" {
		fmt.Fprintf(w, "embedding_model:    %s\n", c.EmbeddingModel)
	}
	if c.AnswerModel != "" {
		fmt.Fprintf(w, "answer_model:       %s\n", c.AnswerModel)
	}
	fmt.Fprintf(w, "strict_taxonomy:    %t\n", c.StrictTaxonomy)
	if c.DefaultTopK > 0 {
		fmt.Fprintf(w, "default_top_k:      %d\n", c.DefaultTopK)
	}
	if c.DatabasePath != "" {
		fmt.Fprintf(w, "database_path:      %s\n", c.DatabasePath)
	}
	for _, d := range c.WatchDirectories {
		fmt.Fprintf(w, "watch_directory:    %s\n", d)
	}
	return nil
}
