package vectorindex

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	_ "modernc.org/sqlite"
)

// LocalIndex stores vectors in a SQLite file and scans them with
// cosine similarity. Fine for single-repo corpora; the Index interface
// leaves room for a server-backed implementation later.
type LocalIndex struct {
	db *sql.DB
	mu sync.Mutex
}

// NewLocalIndex opens (creating if needed) the index under dir.
func NewLocalIndex(dir string) (*LocalIndex, error) {
	if dir == "" {
		return nil, fmt.Errorf("vector index directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create vector dir: %w", err)
	}
	dbPath := filepath.Join(dir, "vectors.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open vector db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	idx := &LocalIndex{db: db}
	if err := idx.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return idx, nil
}

func (s *LocalIndex) initSchema() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS vectors (
			id INTEGER PRIMARY KEY,
			file_name TEXT,
			file_path TEXT,
			chunk_type TEXT,
			start_line INTEGER,
			content TEXT,
			vector TEXT
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init vector db: %w", err)
		}
	}
	return nil
}

// Reset wipes the index.
func (s *LocalIndex) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `DELETE FROM vectors`)
	if err != nil {
		return fmt.Errorf("reset vectors: %w", err)
	}
	return nil
}

// Add upserts a batch of records in one transaction.
func (s *LocalIndex) Add(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO vectors
		(id, file_name, file_path, chunk_type, start_line, content, vector)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		vectorJSON, err := encodeVector(r.Vector)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			r.ID, r.Meta.FileName, r.Meta.FilePath, r.Meta.ChunkType,
			r.Meta.StartLine, r.Meta.Content, vectorJSON,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Search scans all vectors and returns the k nearest by cosine
// similarity, padding unfilled slots with NoMatch.
func (s *LocalIndex) Search(ctx context.Context, vector []float32, k int) ([]Match, error) {
	if k <= 0 {
		k = 10
	}
	queryVec, queryNorm := toFloat64Vector(vector)
	if len(queryVec) == 0 || queryNorm == 0 {
		return nil, fmt.Errorf("vector query is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.QueryContext(ctx, `SELECT id, vector FROM vectors`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []Match
	for rows.Next() {
		var id int64
		var vectorJSON string
		if err := rows.Scan(&id, &vectorJSON); err != nil {
			return nil, err
		}
		vec, err := decodeVector(vectorJSON)
		if err != nil {
			continue
		}
		hits = append(hits, Match{ID: id, Score: cosineSimilarity(queryVec, vec, queryNorm)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	for len(hits) < k {
		hits = append(hits, Match{ID: NoMatch})
	}
	return hits, nil
}

// Save checkpoints the WAL so a crash after a flush loses nothing.
func (s *LocalIndex) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE);`)
	if err != nil {
		return fmt.Errorf("checkpoint vector db: %w", err)
	}
	return nil
}

func (s *LocalIndex) Close() error {
	return s.db.Close()
}

func encodeVector(vec []float32) (string, error) {
	data := make([]float64, len(vec))
	for i, val := range vec {
		data[i] = float64(val)
	}
	out, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func decodeVector(raw string) ([]float64, error) {
	var vec []float64
	if err := json.Unmarshal([]byte(raw), &vec); err != nil {
		return nil, err
	}
	return vec, nil
}

func toFloat64Vector(vec []float32) ([]float64, float64) {
	out := make([]float64, len(vec))
	var sum float64
	for i, val := range vec {
		v := float64(val)
		out[i] = v
		sum += v * v
	}
	return out, math.Sqrt(sum)
}

func cosineSimilarity(query []float64, vec []float64, queryNorm float64) float64 {
	if len(query) == 0 || len(vec) == 0 || queryNorm == 0 {
		return 0
	}
	if len(query) != len(vec) {
		return 0
	}
	var dot float64
	var norm float64
	for i, val := range vec {
		dot += query[i] * val
		norm += val * val
	}
	if norm == 0 {
		return 0
	}
	return dot / (queryNorm * math.Sqrt(norm))
}
