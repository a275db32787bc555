package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/ragbase/internal/models"
	"github.com/hyperjump/ragbase/internal/vector"
)

const dimensionKey = "embedding_dimension"

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("%w: failed to create database directory: %w", models.ErrStore, err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %w", models.ErrStore, err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: failed to enable WAL: %w", models.ErrStore, err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: failed to initialize schema: %w", models.ErrStore, err)
	}

	return &SQLiteStorage{db: db, path: dbPath}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS chunks (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT UNIQUE,
		batch_id TEXT NOT NULL,
		text TEXT NOT NULL,
		origin TEXT NOT NULL,
		source_file TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL,
		signature_name TEXT NOT NULL DEFAULT '',
		embedding BLOB NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_batch_id ON chunks(batch_id);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := db.Exec(schema)
	return err
}

// Path returns the database file path.
func (s *SQLiteStorage) Path() string {
	return s.path
}

// PutChunks inserts chunks in a single transaction. Ids are allocated from the
// table's AUTOINCREMENT sequence as "id-<seq>" so they never collide.
func (s *SQLiteStorage) PutChunks(ctx context.Context, chunks []*models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %w", models.ErrStore, err)
	}
	defer tx.Rollback()

	dim, err := readDimension(ctx, tx)
	if err != nil {
		return err
	}

	insert, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (id, batch_id, text, origin, source_file, description, signature_name, embedding, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: prepare insert: %w", models.ErrStore, err)
	}
	defer insert.Close()

	now := time.Now().UTC()
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			return fmt.Errorf("%w: chunk has no embedding", models.ErrStore)
		}
		if dim == 0 {
			dim = len(c.Embedding)
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO meta (key, value) VALUES (?, ?)`, dimensionKey, strconv.Itoa(dim)); err != nil {
				return fmt.Errorf("%w: record dimension: %w", models.ErrStore, err)
			}
		}
		if len(c.Embedding) != dim {
			return fmt.Errorf("%w: embedding dimension %d does not match store dimension %d",
				models.ErrStore, len(c.Embedding), dim)
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}

		var id any
		if c.ID != "" {
			id = c.ID
		}
		res, err := insert.ExecContext(ctx, id, c.BatchID, c.Text, string(c.Origin), c.SourceFile,
			string(c.Description), c.SignatureName, vector.Encode(c.Embedding), c.CreatedAt)
		if err != nil {
			return fmt.Errorf("%w: insert chunk: %w", models.ErrStore, err)
		}
		if c.ID != "" {
			continue
		}
		seq, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("%w: read chunk sequence: %w", models.ErrStore, err)
		}
		newID := "id-" + strconv.FormatInt(seq, 10)
		if _, err := tx.ExecContext(ctx, `UPDATE chunks SET id = ? WHERE seq = ?`, newID, seq); err != nil {
			return fmt.Errorf("%w: assign chunk id: %w", models.ErrStore, err)
		}
		c.ID = newID
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", models.ErrStore, err)
	}
	return nil
}

// AllChunks returns every chunk ordered by insertion sequence.
func (s *SQLiteStorage) AllChunks(ctx context.Context) ([]*models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, batch_id, text, origin, source_file, description, signature_name, embedding, created_at
		 FROM chunks ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("%w: scan chunks: %w", models.ErrStore, err)
	}
	defer rows.Close()

	var chunks []*models.Chunk
	for rows.Next() {
		var c models.Chunk
		var origin, description string
		var blob []byte
		if err := rows.Scan(&c.ID, &c.BatchID, &c.Text, &origin, &c.SourceFile,
			&description, &c.SignatureName, &blob, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: read chunk: %w", models.ErrStore, err)
		}
		c.Origin = models.Origin(origin)
		c.Description = models.Category(description)
		if c.Embedding, err = vector.Decode(blob); err != nil {
			return nil, fmt.Errorf("%w: chunk %s: %w", models.ErrStore, c.ID, err)
		}
		chunks = append(chunks, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: scan chunks: %w", models.ErrStore, err)
	}
	return chunks, nil
}

// ChunkIDs returns every chunk id ordered by insertion sequence.
func (s *SQLiteStorage) ChunkIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM chunks ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("%w: list ids: %w", models.ErrStore, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: list ids: %w", models.ErrStore, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list ids: %w", models.ErrStore, err)
	}
	return ids, nil
}

// DeleteChunks removes chunks by id in one transaction. Once the table is empty
// the recorded embedding dimension is dropped too.
func (s *SQLiteStorage) DeleteChunks(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: begin transaction: %w", models.ErrStore, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `DELETE FROM chunks WHERE id = ?`)
	if err != nil {
		return 0, fmt.Errorf("%w: prepare delete: %w", models.ErrStore, err)
	}
	defer stmt.Close()

	deleted := 0
	for _, id := range ids {
		res, err := stmt.ExecContext(ctx, id)
		if err != nil {
			return 0, fmt.Errorf("%w: delete chunk %s: %w", models.ErrStore, id, err)
		}
		n, _ := res.RowsAffected()
		deleted += int(n)
	}

	var remaining int64
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&remaining); err != nil {
		return 0, fmt.Errorf("%w: count chunks: %w", models.ErrStore, err)
	}
	if remaining == 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM meta WHERE key = ?`, dimensionKey); err != nil {
			return 0, fmt.Errorf("%w: reset dimension: %w", models.ErrStore, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit: %w", models.ErrStore, err)
	}
	return deleted, nil
}

// CountChunks returns the total number of chunks.
func (s *SQLiteStorage) CountChunks(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count chunks: %w", models.ErrStore, err)
	}
	return n, nil
}

// Dimension returns the recorded embedding dimension.
func (s *SQLiteStorage) Dimension(ctx context.Context) (int, error) {
	return readDimension(ctx, s.db)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func readDimension(ctx context.Context, q queryRower) (int, error) {
	var value string
	err := q.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, dimensionKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: read dimension: %w", models.ErrStore, err)
	}
	dim, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid stored dimension %q: %w", models.ErrStore, value, err)
	}
	return dim, nil
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

var _ Storage = (*SQLiteStorage)(nil)
