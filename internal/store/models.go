package store

import "time"

// Chunk types
const (
	TypeCode   = "code"
	TypeCommit = "commit"
)

// Sentinel file coordinates for commit chunks, which have no real path.
const (
	HistoryFileName = "GIT_HISTORY"
	HistoryFilePath = "GIT_LOG"
)

// Chunk is one retrievable unit: a function body, a text window, or a
// synthesized commit summary. Content holds the full text; the vector
// index carries its own truncated copy.
type Chunk struct {
	ID        int64  `db:"id"`
	ChunkHash string `db:"chunk_hash"`
	ChunkType string `db:"chunk_type"`
	FileName  string `db:"file_name"`
	FilePath  string `db:"file_path"`
	StartLine *int   `db:"start_line"`
	EndLine   *int   `db:"end_line"`
	Content   string `db:"content"`
	CreatedAt int64  `db:"created_at"` // unix seconds
}

// CreatedTime returns created_at as a time.Time.
func (c *Chunk) CreatedTime() time.Time {
	return time.Unix(c.CreatedAt, 0).UTC()
}

// ChatSession groups the messages of one conversation.
type ChatSession struct {
	ID        string `db:"id" json:"id"`
	UserID    string `db:"user_id" json:"user_id"`
	Title     string `db:"title" json:"title"`
	CreatedAt int64  `db:"created_at" json:"created_at"`
}

// ChatMessage is one user or assistant turn.
type ChatMessage struct {
	ID        int64  `db:"id" json:"id"`
	SessionID string `db:"session_id" json:"session_id"`
	Role      string `db:"role" json:"role"` // "user" | "assistant"
	Content   string `db:"content" json:"content"`
	CreatedAt int64  `db:"created_at" json:"created_at"`
}
