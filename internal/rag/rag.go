// Package rag answers questions about an indexed codebase. The phases
// run in strict order: broad vector search, metadata fetch with an
// optional path filter, rerank, dependency expansion, context assembly,
// generation.
package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/codemind/codemind/internal/embedding"
	"github.com/codemind/codemind/internal/llm"
	"github.com/codemind/codemind/internal/rerank"
	"github.com/codemind/codemind/internal/store"
	"github.com/codemind/codemind/internal/vectorindex"
)

const (
	// searchK is the broad-retrieval candidate count.
	searchK = 50
	// topK is how many reranked chunks reach the model.
	topK = 5
)

// Labels for chunks without real file coordinates.
const (
	commitFileLabel  = "GIT COMMIT"
	commitLineLabel  = "History"
	expandLineLabel  = "Dependency"
	expandScoreLabel = "Linked"
)

// ContextItem is one retrieved chunk prepared for display. Lines and
// Score are strings because commit and dependency chunks carry labels
// instead of numbers.
type ContextItem struct {
	File  string `json:"file"`
	Path  string `json:"path"`
	Lines string `json:"lines"`
	Score string `json:"score"`
	Code  string `json:"code"`
}

// Result is the structured answer to one question.
type Result struct {
	Answer  string        `json:"answer"`
	Context []ContextItem `json:"context"`
}

// Pipeline wires the retrieval collaborators together.
type Pipeline struct {
	embedder embedding.Client
	index    vectorindex.Index
	chunks   *store.ChunkStore
	reranker rerank.Reranker
	gen      llm.Generator
	log      *zap.Logger
}

// New creates a retrieval pipeline.
func New(embedder embedding.Client, index vectorindex.Index, chunks *store.ChunkStore, reranker rerank.Reranker, gen llm.Generator, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		embedder: embedder,
		index:    index,
		chunks:   chunks,
		reranker: reranker,
		gen:      gen,
		log:      log,
	}
}

// Answer runs the full pipeline for one question. Zero retrieval
// matches and empty filter results are normal outcomes with an
// explanatory answer; only infrastructure failures return an error.
func (p *Pipeline) Answer(ctx context.Context, question, pathFilter string) (Result, error) {
	queryVector, err := p.embedder.Embed(ctx, question)
	if err != nil {
		return Result{}, fmt.Errorf("embed question: %w", err)
	}

	matches, err := p.index.Search(ctx, queryVector, searchK)
	if err != nil {
		return Result{}, fmt.Errorf("vector search: %w", err)
	}
	ids := make([]int64, 0, len(matches))
	for _, m := range matches {
		if m.ID == vectorindex.NoMatch {
			continue
		}
		ids = append(ids, m.ID)
	}
	if len(ids) == 0 {
		return Result{Answer: "I found no relevant code to analyze.", Context: []ContextItem{}}, nil
	}

	candidates, err := p.chunks.GetByIDs(ctx, ids, pathFilter)
	if err != nil {
		return Result{}, fmt.Errorf("fetch candidates: %w", err)
	}
	if len(candidates) == 0 {
		return Result{
			Answer:  fmt.Sprintf("No code found matching filter: '%s'", pathFilter),
			Context: []ContextItem{},
		}, nil
	}

	top, err := p.rerankTop(ctx, question, candidates)
	if err != nil {
		return Result{}, err
	}

	extras := p.expand(ctx, top)

	contextText, items := assemble(top, extras)

	answer, err := p.gen.Generate(ctx, contextText, question)
	if err != nil {
		// Generation failure degrades the answer, never the request.
		p.log.Warn("generation failed", zap.Error(err))
		answer = fmt.Sprintf("**Error generating answer:** %v", err)
	}

	return Result{Answer: answer, Context: items}, nil
}

// ranked pairs a chunk with its raw reranker score.
type ranked struct {
	chunk store.Chunk
	score float64
}

// rerankTop scores every candidate and returns the best topK, highest
// score first.
func (p *Pipeline) rerankTop(ctx context.Context, question string, candidates []store.Chunk) ([]ranked, error) {
	byID := make(map[int64]store.Chunk, len(candidates))
	passages := make([]rerank.Passage, len(candidates))
	for i, c := range candidates {
		byID[c.ID] = c
		passages[i] = rerank.Passage{ID: c.ID, Text: c.Content}
	}

	scored, err := p.reranker.Rerank(ctx, question, passages)
	if err != nil {
		return nil, fmt.Errorf("rerank: %w", err)
	}

	results := make([]ranked, 0, len(scored))
	for _, s := range scored {
		chunk, ok := byID[s.ID]
		if !ok {
			return nil, fmt.Errorf("rerank returned unknown id %d", s.ID)
		}
		results = append(results, ranked{chunk: chunk, score: s.Score})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].score > results[j].score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// assemble builds the model-facing context blob and the parallel
// display items, primary results first, expansion chunks appended.
func assemble(top []ranked, extras []store.Chunk) (string, []ContextItem) {
	var blob strings.Builder
	items := make([]ContextItem, 0, len(top)+len(extras))

	for _, r := range top {
		fileDisplay := r.chunk.FileName
		linesDisplay := commitLineLabel
		if r.chunk.StartLine != nil && r.chunk.EndLine != nil {
			linesDisplay = fmt.Sprintf("%d-%d", *r.chunk.StartLine, *r.chunk.EndLine)
		} else {
			fileDisplay = commitFileLabel
		}

		items = append(items, ContextItem{
			File:  fileDisplay,
			Path:  r.chunk.FilePath,
			Lines: linesDisplay,
			Score: fmt.Sprintf("%d%%", rerank.MatchPercent(r.score)),
			Code:  r.chunk.Content,
		})
		fmt.Fprintf(&blob, "\n--- Source: %s (Lines %s) ---\n%s\n", fileDisplay, linesDisplay, r.chunk.Content)
	}

	if len(extras) > 0 {
		blob.WriteString("\n\n--- RELATED DEPENDENCIES DETECTED ---\n")
		for _, c := range extras {
			items = append(items, ContextItem{
				File:  c.FileName,
				Path:  c.FilePath,
				Lines: expandLineLabel,
				Score: expandScoreLabel,
				Code:  c.Content,
			})
			fmt.Fprintf(&blob, "\n--- Dependency: %s ---\n%s\n", c.FileName, c.Content)
		}
	}

	return blob.String(), items
}
