// Package vectorindex provides nearest-neighbor search over chunk
// embeddings. The metadata carried alongside each vector is a
// lightweight copy (truncated content) for filtering; the full chunk
// text lives in the metadata store under the same id.
package vectorindex

import "context"

// NoMatch is the sentinel id returned for unfilled result slots when an
// index holds fewer than k vectors.
const NoMatch int64 = -1

// Metadata is the index-side record attached to a vector.
type Metadata struct {
	FileName  string `json:"file_name"`
	FilePath  string `json:"file_path"`
	ChunkType string `json:"chunk_type"`
	StartLine int    `json:"start_line"`
	Content   string `json:"content"` // truncated, not the full chunk text
}

// Record pairs an id, its embedding and its metadata in one unit so the
// three can never drift out of sync in a write batch.
type Record struct {
	ID     int64
	Vector []float32
	Meta   Metadata
}

// Match is one search hit, best first.
type Match struct {
	ID    int64
	Score float64
}

// Index is the vector index consumed by the ingestion and retrieval
// pipelines.
type Index interface {
	// Reset removes every vector. Ingestion calls this at run start.
	Reset(ctx context.Context) error
	// Add upserts a batch of records.
	Add(ctx context.Context, records []Record) error
	// Search returns exactly k matches ordered by similarity, padding
	// with NoMatch ids when fewer vectors exist.
	Search(ctx context.Context, vector []float32, k int) ([]Match, error)
	// Save is a durability checkpoint, called after every flush.
	Save(ctx context.Context) error
	Close() error
}
