package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure Go SQLite driver (no CGO)
)

// SQLiteMetadataStore implements MetadataStore on top of SQLite, in WAL mode
// for concurrent readers alongside the single writer that indexing uses.
type SQLiteMetadataStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

var _ MetadataStore = (*SQLiteMetadataStore)(nil)

const metadataSchema = `
CREATE TABLE IF NOT EXISTS chunks (
	id          TEXT PRIMARY KEY,
	doc_id      TEXT NOT NULL,
	chunk_index INTEGER NOT NULL,
	text        TEXT NOT NULL,
	metadata    TEXT NOT NULL DEFAULT '{}',
	created_at  TIMESTAMP NOT NULL,
	UNIQUE(doc_id, chunk_index)
);
CREATE INDEX IF NOT EXISTS idx_chunks_doc_range ON chunks(doc_id, chunk_index);

CREATE TABLE IF NOT EXISTS state (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// NewSQLiteMetadataStore opens (creating if necessary) a chunk-text store at
// path. An empty path creates an in-memory store, useful for tests.
func NewSQLiteMetadataStore(path string) (*SQLiteMetadataStore, error) {
	dsn := path
	if path == "" {
		dsn = ":memory:"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", dsn+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec(metadataSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteMetadataStore{db: db, path: path}, nil
}

func (s *SQLiteMetadataStore) SaveChunks(ctx context.Context, chunks []*DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, doc_id, chunk_index, text, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			doc_id=excluded.doc_id, chunk_index=excluded.chunk_index,
			text=excluded.text, metadata=excluded.metadata`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata for chunk %s: %w", c.ID, err)
		}
		created := c.CreatedAt
		if created.IsZero() {
			created = time.Unix(0, 0).UTC()
		}
		if _, err := stmt.ExecContext(ctx, c.ID, c.DocID, c.ChunkIndex, c.Text, string(meta), created); err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteMetadataStore) scanChunk(row interface{ Scan(...any) error }) (*DocumentChunk, error) {
	var c DocumentChunk
	var meta string
	if err := row.Scan(&c.ID, &c.DocID, &c.ChunkIndex, &c.Text, &meta, &c.CreatedAt); err != nil {
		return nil, err
	}
	if meta != "" {
		if err := json.Unmarshal([]byte(meta), &c.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return &c, nil
}

func (s *SQLiteMetadataStore) GetChunk(ctx context.Context, id string) (*DocumentChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, doc_id, chunk_index, text, metadata, created_at FROM chunks WHERE id = ?`, id)
	c, err := s.scanChunk(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("chunk %s: %w", id, sql.ErrNoRows)
	}
	return c, err
}

func (s *SQLiteMetadataStore) GetChunks(ctx context.Context, ids []string) ([]*DocumentChunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT id, doc_id, chunk_index, text, metadata, created_at FROM chunks WHERE id IN (%s)`,
		joinComma(placeholders))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var result []*DocumentChunk
	for rows.Next() {
		c, err := s.scanChunk(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (s *SQLiteMetadataStore) GetChunkRange(ctx context.Context, docID string, chunkStart, chunkEnd int) ([]*DocumentChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, doc_id, chunk_index, text, metadata, created_at FROM chunks
		WHERE doc_id = ? AND chunk_index >= ? AND chunk_index < ?
		ORDER BY chunk_index ASC`, docID, chunkStart, chunkEnd)
	if err != nil {
		return nil, fmt.Errorf("query chunk range: %w", err)
	}
	defer rows.Close()

	var result []*DocumentChunk
	for rows.Next() {
		c, err := s.scanChunk(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (s *SQLiteMetadataStore) DeleteChunks(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf(`DELETE FROM chunks WHERE id IN (%s)`, joinComma(placeholders))
	_, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	return nil
}

func (s *SQLiteMetadataStore) DeleteDocument(ctx context.Context, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE doc_id = ?`, docID)
	if err != nil {
		return fmt.Errorf("delete document %s: %w", docID, err)
	}
	return nil
}

func (s *SQLiteMetadataStore) ListDocuments(ctx context.Context) ([]DocumentSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT doc_id, COUNT(*) FROM chunks GROUP BY doc_id ORDER BY doc_id`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []DocumentSummary
	for rows.Next() {
		var d DocumentSummary
		if err := rows.Scan(&d.DocID, &d.ChunkCount); err != nil {
			return nil, fmt.Errorf("scan document summary: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (s *SQLiteMetadataStore) GetState(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM state WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (s *SQLiteMetadataStore) SetState(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value`, key, value)
	return err
}

func (s *SQLiteMetadataStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func joinComma(items []string) string {
	out := items[0]
	for _, item := range items[1:] {
		out += "," + item
	}
	return out
}
