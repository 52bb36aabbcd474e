package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codemind/codemind/internal/chunker"
	"github.com/codemind/codemind/internal/store"
	"github.com/codemind/codemind/internal/vectorindex"
)

type fakeEmbedder struct {
	err   error
	calls int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []float32{float32(len(text)), 1, 0}, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := f.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int { return 3 }

type fakeIndex struct {
	resetErr error
	addErr   error
	batches  [][]vectorindex.Record
	saves    int
	resets   int
}

func (f *fakeIndex) Reset(ctx context.Context) error {
	f.resets++
	return f.resetErr
}

func (f *fakeIndex) Add(ctx context.Context, records []vectorindex.Record) error {
	if f.addErr != nil {
		return f.addErr
	}
	batch := make([]vectorindex.Record, len(records))
	copy(batch, records)
	f.batches = append(f.batches, batch)
	return nil
}

func (f *fakeIndex) Search(ctx context.Context, vector []float32, k int) ([]vectorindex.Match, error) {
	return nil, nil
}

func (f *fakeIndex) Save(ctx context.Context) error {
	f.saves++
	return nil
}

func (f *fakeIndex) Close() error { return nil }

func (f *fakeIndex) allRecords() []vectorindex.Record {
	var all []vectorindex.Record
	for _, b := range f.batches {
		all = append(all, b...)
	}
	return all
}

func newTestPipeline(t *testing.T, opts Options, embedder *fakeEmbedder, index *fakeIndex) (*Pipeline, *store.ChunkStore) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "meta.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	chunks := store.NewChunkStore(db)
	p := New(opts, chunker.New(1000, 200), embedder, index, chunks, nil)
	return p, chunks
}

func writeRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func collectEvents(t *testing.T, p *Pipeline, input string) []Event {
	t.Helper()
	var events []Event
	err := p.Run(context.Background(), input, func(ev Event) {
		events = append(events, ev)
	})
	require.NoError(t, err)
	return events
}

func TestRun_EventSequence(t *testing.T) {
	root := writeRepo(t, map[string]string{
		"a.go": "package a\n",
		"b.go": "package b\n",
		"c.go": "package c\n",
	})
	index := &fakeIndex{}
	p, _ := newTestPipeline(t, Options{FlushEvery: 2}, &fakeEmbedder{}, index)

	events := collectEvents(t, p, root)
	require.NotEmpty(t, events)

	require.Equal(t, StatusScanning, events[0].Status)
	require.Equal(t, StatusProcessingGit, events[1].Status)

	var infoEvent *Event
	var fileEvents []Event
	for i := range events {
		switch events[i].Status {
		case StatusInfo:
			infoEvent = &events[i]
		case StatusProcessingFile:
			fileEvents = append(fileEvents, events[i])
		case StatusError:
			t.Fatalf("unexpected error event: %s", events[i].Message)
		}
	}
	require.NotNil(t, infoEvent)
	require.NotNil(t, infoEvent.TotalFiles)
	require.Equal(t, 3, *infoEvent.TotalFiles)
	require.Len(t, fileEvents, 3)
	require.NotNil(t, fileEvents[0].Progress)
	require.Equal(t, 0, *fileEvents[0].Progress)

	last := events[len(events)-1]
	require.Equal(t, StatusComplete, last.Status)
	require.NotNil(t, last.Progress)
	require.Equal(t, 100, *last.Progress)

	require.Equal(t, 1, index.resets)
}

func TestRun_ContiguousIDsAndFlushes(t *testing.T) {
	root := writeRepo(t, map[string]string{
		"a.go": "package a\n",
		"b.go": "package b\n",
		"c.go": "package c\n",
	})
	index := &fakeIndex{}
	p, chunks := newTestPipeline(t, Options{FlushEvery: 2}, &fakeEmbedder{}, index)

	collectEvents(t, p, root)

	// Two flushes: one after the second file, one final.
	require.Len(t, index.batches, 2)
	require.Equal(t, 2, index.saves)

	records := index.allRecords()
	require.Len(t, records, 3)
	for i, rec := range records {
		require.EqualValues(t, i, rec.ID, "vector ids must be contiguous from 0")
	}

	count, err := chunks.Count(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 3, count)

	rows, err := chunks.GetByIDs(context.Background(), []int64{0, 1, 2}, "")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for _, row := range rows {
		require.Equal(t, store.TypeCode, row.ChunkType)
		require.NotEmpty(t, row.ChunkHash)
		require.NotNil(t, row.StartLine)
	}
}

func TestRun_MissingPath(t *testing.T) {
	index := &fakeIndex{}
	p, _ := newTestPipeline(t, Options{}, &fakeEmbedder{}, index)

	events := collectEvents(t, p, filepath.Join(t.TempDir(), "nope"))
	require.Len(t, events, 1)
	require.Equal(t, StatusError, events[0].Status)
	require.Contains(t, events[0].Message, "Path does not exist")
	require.Zero(t, index.resets)
}

func TestRun_ResetFailureIsTerminal(t *testing.T) {
	root := writeRepo(t, map[string]string{"a.go": "package a\n"})
	index := &fakeIndex{resetErr: errors.New("disk full")}
	p, _ := newTestPipeline(t, Options{}, &fakeEmbedder{}, index)

	events := collectEvents(t, p, root)
	last := events[len(events)-1]
	require.Equal(t, StatusError, last.Status)
	for _, ev := range events[:len(events)-1] {
		require.NotEqual(t, StatusError, ev.Status)
	}
}

func TestRun_EmbedFailuresSkipFilesButComplete(t *testing.T) {
	root := writeRepo(t, map[string]string{
		"a.go": "package a\n",
		"b.go": "package b\n",
	})
	index := &fakeIndex{}
	p, chunks := newTestPipeline(t, Options{}, &fakeEmbedder{err: errors.New("quota")}, index)

	events := collectEvents(t, p, root)
	last := events[len(events)-1]
	require.Equal(t, StatusComplete, last.Status)
	require.Empty(t, index.batches)

	count, err := chunks.Count(context.Background())
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestRun_Cancellation(t *testing.T) {
	root := writeRepo(t, map[string]string{"a.go": "package a\n"})
	p, _ := newTestPipeline(t, Options{}, &fakeEmbedder{}, &fakeIndex{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Run(ctx, root, func(ev Event) {})
	require.ErrorIs(t, err, context.Canceled)
}

func TestIngest_SurfacesErrorEvent(t *testing.T) {
	p, _ := newTestPipeline(t, Options{}, &fakeEmbedder{}, &fakeIndex{})
	err := p.Ingest(context.Background(), filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "Path does not exist")
}

func TestIsRemoteURL(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"https://github.com/user/repo.git", true},
		{"http://example.com/repo", true},
		{"git@github.com:user/repo.git", true},
		{"/home/user/project", false},
		{"./relative", false},
	}
	for _, tt := range tests {
		if got := isRemoteURL(tt.input); got != tt.want {
			t.Errorf("isRemoteURL(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestContentHash(t *testing.T) {
	a := contentHash("same")
	b := contentHash("same")
	c := contentHash("different")
	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
	require.Len(t, a, 40)
}
