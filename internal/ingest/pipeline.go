// Package ingest indexes a repository: scan, chunk, embed, and write
// both the vector index and the metadata store under one id space.
package ingest

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/codemind/codemind/internal/chunker"
	"github.com/codemind/codemind/internal/embedding"
	"github.com/codemind/codemind/internal/history"
	"github.com/codemind/codemind/internal/scanner"
	"github.com/codemind/codemind/internal/store"
	"github.com/codemind/codemind/internal/vectorindex"
)

// metaContentLimit is how much chunk text travels with the vector as
// index-side metadata. The full text stays in the metadata store.
const metaContentLimit = 1000

// Options tunes one pipeline instance.
type Options struct {
	ClonePath   string // staging dir for remote clones
	CommitLimit int    // max commits read from history
	FlushEvery  int    // successfully processed files between flushes
}

// Pipeline drives one ingestion run at a time. All collaborators are
// injected; the pipeline owns no global state.
type Pipeline struct {
	opts     Options
	chunker  *chunker.Chunker
	embedder embedding.Client
	index    vectorindex.Index
	chunks   *store.ChunkStore
	log      *zap.Logger
}

// buffered keeps a chunk's vector record and its store row together so
// the two writes can never disagree about an id.
type buffered struct {
	rec vectorindex.Record
	row store.Chunk
}

// New creates an ingestion pipeline.
func New(opts Options, ck *chunker.Chunker, embedder embedding.Client, index vectorindex.Index, chunks *store.ChunkStore, log *zap.Logger) *Pipeline {
	if opts.CommitLimit <= 0 {
		opts.CommitLimit = 50
	}
	if opts.FlushEvery <= 0 {
		opts.FlushEvery = 10
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		opts:     opts,
		chunker:  ck,
		embedder: embedder,
		index:    index,
		chunks:   chunks,
		log:      log,
	}
}

// Ingest runs the pipeline for side effects only, draining the event
// sequence. It returns an error when the run ends with an error event.
func (p *Pipeline) Ingest(ctx context.Context, input string) error {
	var failure string
	err := p.Run(ctx, input, func(ev Event) {
		if ev.Status == StatusError {
			failure = ev.Message
		}
	})
	if err != nil {
		return err
	}
	if failure != "" {
		return fmt.Errorf("ingestion failed: %s", failure)
	}
	return nil
}

// Run executes one ingestion and reports progress through emit. Both
// the blocking and streaming entry points share this implementation;
// streaming only changes who observes the events. The returned error is
// non-nil only for caller cancellation; every pipeline failure is
// reported as a terminal error event instead.
func (p *Pipeline) Run(ctx context.Context, input string, emit EmitFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target := input

	if isRemoteURL(input) {
		emit(Event{Status: StatusCloning, Message: "Cloning repository..."})
		// A leftover clone from a previous run is expected; failing to
		// remove it surfaces as a clone failure right after.
		_ = os.RemoveAll(p.opts.ClonePath)
		if err := p.clone(ctx, input); err != nil {
			emit(errorEvent(fmt.Sprintf("Clone failed: %v", err)))
			return nil
		}
		target = p.opts.ClonePath
	}

	if _, err := os.Stat(target); err != nil {
		emit(errorEvent(fmt.Sprintf("Path does not exist: %s", target)))
		return nil
	}

	emit(Event{Status: StatusScanning, Message: fmt.Sprintf("Scanning files in %s...", target)})

	if err := p.index.Reset(ctx); err != nil {
		emit(errorEvent(fmt.Sprintf("Vector index reset failed: %v", err)))
		return nil
	}
	if err := p.chunks.DeleteAll(ctx); err != nil {
		emit(errorEvent(fmt.Sprintf("Metadata store reset failed: %v", err)))
		return nil
	}

	run := &runState{}

	if err := p.processHistory(ctx, target, run, emit); err != nil {
		return err
	}

	if err := p.processFiles(ctx, target, run, emit); err != nil {
		return err
	}

	if len(run.buffer) > 0 {
		if !p.flush(ctx, run, emit) {
			return nil
		}
	}

	p.log.Info("ingestion complete",
		zap.Int("files", run.processedFiles),
		zap.Int64("chunks", run.nextID))
	emit(Event{Status: StatusComplete, Message: "Ingestion complete", Progress: intPtr(100)})
	return nil
}

// runState carries the per-run id counter and write buffer. Ids are
// contiguous from 0 and strictly increasing across the whole run.
type runState struct {
	nextID         int64
	buffer         []buffered
	processedFiles int
}

func (p *Pipeline) processHistory(ctx context.Context, target string, run *runState, emit EmitFunc) error {
	emit(Event{Status: StatusProcessingGit, Message: "Indexing git history..."})

	commits := history.Read(ctx, target, p.opts.CommitLimit, func(done int) {
		// Liveness for streaming consumers during long walks.
		if done%10 == 0 {
			emit(Event{Status: StatusProcessingGit, Message: fmt.Sprintf("Read %d commits...", done)})
		}
	})
	if ctx.Err() != nil {
		return ctx.Err()
	}

	for _, commit := range commits {
		err := p.addChunk(ctx, run, store.Chunk{
			ChunkType: store.TypeCommit,
			FileName:  store.HistoryFileName,
			FilePath:  store.HistoryFilePath,
			Content:   commit.Content,
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.log.Warn("skipping commit", zap.String("hash", commit.Hash), zap.Error(err))
		}
	}
	if len(commits) > 0 {
		p.log.Info("git history ingested", zap.Int("commits", len(commits)))
	}
	return nil
}

func (p *Pipeline) processFiles(ctx context.Context, target string, run *runState, emit EmitFunc) error {
	files, err := scanner.Scan(target)
	if err != nil {
		emit(errorEvent(fmt.Sprintf("Scan failed: %v", err)))
		// Scan failure is fatal-to-run but the error event already
		// carries it; nothing more for the caller.
		return nil
	}

	total := len(files)
	emit(Event{
		Status:     StatusInfo,
		Message:    fmt.Sprintf("Found %d files to process", total),
		TotalFiles: intPtr(total),
	})

	for i, path := range files {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		fileName := filepath.Base(path)
		emit(Event{
			Status:   StatusProcessingFile,
			File:     fileName,
			Progress: intPtr(100 * i / total),
		})

		if err := p.processFile(ctx, target, path, run); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.log.Warn("skipping file", zap.String("file", path), zap.Error(err))
			continue
		}
		run.processedFiles++

		if run.processedFiles%p.opts.FlushEvery == 0 && len(run.buffer) > 0 {
			if !p.flush(ctx, run, emit) {
				return nil
			}
		}
	}
	return nil
}

func (p *Pipeline) processFile(ctx context.Context, target, path string, run *runState) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	// Permissive decoding: malformed bytes become replacement runes
	// rather than failing the file.
	content := strings.ToValidUTF8(string(raw), "�")

	displayPath := path
	if rel, err := filepath.Rel(target, path); err == nil {
		displayPath = filepath.ToSlash(rel)
	}
	fileName := filepath.Base(path)

	for _, ck := range p.chunker.Split(fileName, []byte(content)) {
		startLine, endLine := ck.StartLine, ck.EndLine
		err := p.addChunk(ctx, run, store.Chunk{
			ChunkType: store.TypeCode,
			FileName:  fileName,
			FilePath:  displayPath,
			StartLine: &startLine,
			EndLine:   &endLine,
			Content:   ck.Code,
		})
		if err != nil {
			return fmt.Errorf("chunk %q: %w", ck.Name, err)
		}
	}
	return nil
}

// addChunk embeds one chunk and appends the paired vector record and
// store row to the buffer under a freshly assigned id. The embedding is
// computed from the exact content stored for generation.
func (p *Pipeline) addChunk(ctx context.Context, run *runState, row store.Chunk) error {
	vector, err := p.embedder.Embed(ctx, row.Content)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}

	id := run.nextID
	run.nextID++

	row.ID = id
	row.ChunkHash = contentHash(row.Content)
	row.CreatedAt = time.Now().Unix()
	meta := vectorindex.Metadata{
		FileName:  row.FileName,
		FilePath:  row.FilePath,
		ChunkType: row.ChunkType,
		Content:   truncate(row.Content, metaContentLimit),
	}
	if row.StartLine != nil {
		meta.StartLine = *row.StartLine
	}

	run.buffer = append(run.buffer, buffered{
		rec: vectorindex.Record{ID: id, Vector: vector, Meta: meta},
		row: row,
	})
	return nil
}

// flush writes the buffered batch to both stores and clears it. Returns
// false after emitting a terminal error event.
func (p *Pipeline) flush(ctx context.Context, run *runState, emit EmitFunc) bool {
	records := make([]vectorindex.Record, len(run.buffer))
	rows := make([]store.Chunk, len(run.buffer))
	for i, b := range run.buffer {
		records[i] = b.rec
		rows[i] = b.row
	}

	if err := p.index.Add(ctx, records); err != nil {
		emit(errorEvent(fmt.Sprintf("Vector index write failed: %v", err)))
		return false
	}
	if err := p.index.Save(ctx); err != nil {
		emit(errorEvent(fmt.Sprintf("Vector index save failed: %v", err)))
		return false
	}
	if err := p.chunks.InsertBatch(ctx, rows); err != nil {
		emit(errorEvent(fmt.Sprintf("Metadata store write failed: %v", err)))
		return false
	}

	p.log.Debug("flushed batch", zap.Int("chunks", len(run.buffer)))
	run.buffer = run.buffer[:0]
	return true
}

func (p *Pipeline) clone(ctx context.Context, url string) error {
	if err := os.MkdirAll(filepath.Dir(p.opts.ClonePath), 0o755); err != nil {
		return fmt.Errorf("create clone dir: %w", err)
	}
	cmd := exec.CommandContext(ctx, "git", "clone", url, p.opts.ClonePath)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git clone: %v: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func isRemoteURL(input string) bool {
	return strings.HasPrefix(input, "http://") ||
		strings.HasPrefix(input, "https://") ||
		strings.HasPrefix(input, "git@")
}

func contentHash(content string) string {
	sum := sha1.Sum([]byte(content))
	return hex.EncodeToString(sum[:])
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
