package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// ChunkStore provides the chunk operations the pipelines need.
type ChunkStore struct {
	db *DB
}

// NewChunkStore creates a new chunk store.
func NewChunkStore(db *DB) *ChunkStore {
	return &ChunkStore{db: db}
}

// DeleteAll removes every chunk row. Ingestion calls this at run start.
func (s *ChunkStore) DeleteAll(ctx context.Context) error {
	if _, err := s.db.sqlDB.ExecContext(ctx, `DELETE FROM chunks`); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

// InsertBatch bulk-inserts chunks in a single transaction.
func (s *ChunkStore) InsertBatch(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := s.db.sqlDB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareNamedContext(ctx, `
		INSERT INTO chunks (id, chunk_hash, chunk_type, file_name, file_path, start_line, end_line, content, created_at)
		VALUES (:id, :chunk_hash, :chunk_type, :file_name, :file_path, :start_line, :end_line, :content, :created_at)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i := range chunks {
		if chunks[i].CreatedAt == 0 {
			chunks[i].CreatedAt = time.Now().Unix()
		}
		if _, err := stmt.ExecContext(ctx, chunks[i]); err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", chunks[i].ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chunk batch: %w", err)
	}
	return nil
}

// GetByIDs fetches the chunks whose id is in ids. When pathFilter is
// non-empty, rows must also contain it as a substring of file_path.
func (s *ChunkStore) GetByIDs(ctx context.Context, ids []int64, pathFilter string) ([]Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT * FROM chunks WHERE id IN (?)`
	args := []interface{}{ids}
	if pathFilter != "" {
		query += ` AND instr(file_path, ?) > 0`
		args = append(args, pathFilter)
	}
	expanded, expandedArgs, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to expand id query: %w", err)
	}

	var chunks []Chunk
	if err := s.db.sqlDB.SelectContext(ctx, &chunks, s.db.sqlDB.Rebind(expanded), expandedArgs...); err != nil {
		return nil, fmt.Errorf("failed to query chunks by ids: %w", err)
	}
	return chunks, nil
}

// GetByFileNames fetches chunks whose file_name is in names, ordered by
// id so "first chunk of the file" is deterministic.
func (s *ChunkStore) GetByFileNames(ctx context.Context, names []string) ([]Chunk, error) {
	if len(names) == 0 {
		return nil, nil
	}
	expanded, args, err := sqlx.In(`SELECT * FROM chunks WHERE file_name IN (?) ORDER BY id`, names)
	if err != nil {
		return nil, fmt.Errorf("failed to expand file name query: %w", err)
	}

	var chunks []Chunk
	if err := s.db.sqlDB.SelectContext(ctx, &chunks, s.db.sqlDB.Rebind(expanded), args...); err != nil {
		return nil, fmt.Errorf("failed to query chunks by file names: %w", err)
	}
	return chunks, nil
}

// Count returns the number of stored chunks.
func (s *ChunkStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.sqlDB.GetContext(ctx, &count, `SELECT COUNT(*) FROM chunks`); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}
