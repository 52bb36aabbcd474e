package store

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func intp(v int) *int { return &v }

func seedChunks(t *testing.T, chunks *ChunkStore) {
	t.Helper()
	err := chunks.InsertBatch(context.Background(), []Chunk{
		{ID: 0, ChunkHash: "h0", ChunkType: TypeCode, FileName: "auth.py", FilePath: "src/auth.py", StartLine: intp(1), EndLine: intp(20), Content: "def login(): pass"},
		{ID: 1, ChunkHash: "h1", ChunkType: TypeCode, FileName: "utils.py", FilePath: "src/lib/utils.py", StartLine: intp(5), EndLine: intp(30), Content: "def helper(): pass"},
		{ID: 2, ChunkHash: "h2", ChunkType: TypeCommit, FileName: HistoryFileName, FilePath: HistoryFilePath, Content: "COMMIT: abc"},
		{ID: 3, ChunkHash: "h3", ChunkType: TypeCode, FileName: "utils.py", FilePath: "src/lib/utils.py", StartLine: intp(31), EndLine: intp(50), Content: "def other(): pass"},
	})
	require.NoError(t, err)
}

func TestChunkStore_InsertAndGetByIDs(t *testing.T) {
	chunks := NewChunkStore(newTestDB(t))
	seedChunks(t, chunks)
	ctx := context.Background()

	got, err := chunks.GetByIDs(ctx, []int64{0, 2, 99}, "")
	require.NoError(t, err)
	require.Len(t, got, 2)

	byID := map[int64]Chunk{}
	for _, c := range got {
		byID[c.ID] = c
	}
	require.Equal(t, "auth.py", byID[0].FileName)
	require.NotNil(t, byID[0].StartLine)
	require.Equal(t, 1, *byID[0].StartLine)
	require.Equal(t, TypeCommit, byID[2].ChunkType)
	require.Nil(t, byID[2].StartLine)
}

func TestChunkStore_PathFilter(t *testing.T) {
	chunks := NewChunkStore(newTestDB(t))
	seedChunks(t, chunks)
	ctx := context.Background()

	got, err := chunks.GetByIDs(ctx, []int64{0, 1, 2, 3}, "lib")
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, c := range got {
		require.True(t, strings.Contains(c.FilePath, "lib"), "path %s", c.FilePath)
	}

	none, err := chunks.GetByIDs(ctx, []int64{0, 1, 2, 3}, "no/such/dir")
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestChunkStore_GetByFileNames(t *testing.T) {
	chunks := NewChunkStore(newTestDB(t))
	seedChunks(t, chunks)

	got, err := chunks.GetByFileNames(context.Background(), []string{"utils.py", "missing.py"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	// Ordered by id so the first chunk of a file is deterministic.
	require.Equal(t, int64(1), got[0].ID)
	require.Equal(t, int64(3), got[1].ID)
}

func TestChunkStore_DeleteAllAndCount(t *testing.T) {
	chunks := NewChunkStore(newTestDB(t))
	seedChunks(t, chunks)
	ctx := context.Background()

	count, err := chunks.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 4, count)

	require.NoError(t, chunks.DeleteAll(ctx))
	count, err = chunks.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 0, count)
}

func TestChatStore_SessionLifecycle(t *testing.T) {
	db := newTestDB(t)
	chat := NewChatStore(db)
	ctx := context.Background()

	first, err := chat.CreateSession(ctx, "user-1", "How does auth work?")
	require.NoError(t, err)
	require.NotEmpty(t, first)

	require.NoError(t, chat.AddMessage(ctx, first, "user", "How does auth work?"))
	require.NoError(t, chat.AddMessage(ctx, first, "assistant", "Via login()."))

	sessions, err := chat.SessionsByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, "How does auth work?", sessions[0].Title)

	messages, err := chat.MessagesBySession(ctx, first)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	require.Equal(t, "user", messages[0].Role)
	require.Equal(t, "assistant", messages[1].Role)
}

func TestChatStore_TitleTruncation(t *testing.T) {
	chat := NewChatStore(newTestDB(t))
	ctx := context.Background()

	long := strings.Repeat("q", 60)
	id, err := chat.CreateSession(ctx, "user-2", long)
	require.NoError(t, err)

	sessions, err := chat.SessionsByUser(ctx, "user-2")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, long[:40]+"..", sessions[0].Title)
	require.Equal(t, id, sessions[0].ID)
}
