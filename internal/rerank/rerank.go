// Package rerank scores retrieval candidates against the question with
// a cross-encoder service. Raw scores are unbounded logits; Sigmoid and
// MatchPercent exist for display only and never change an ordering.
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

// Passage is one candidate handed to the reranker.
type Passage struct {
	ID   int64
	Text string
}

// Scored is a passage with its relevance score. Order of the returned
// slice is unspecified; callers sort.
type Scored struct {
	ID    int64
	Score float64
}

// Reranker scores passages for relevance to a query.
type Reranker interface {
	Rerank(ctx context.Context, query string, passages []Passage) ([]Scored, error)
}

// HTTPReranker calls a text-embeddings-inference style /rerank
// endpoint: {"query": ..., "texts": [...]} -> [{"index": i, "score": s}].
type HTTPReranker struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewHTTPReranker creates a reranker client for the given endpoint.
func NewHTTPReranker(endpoint, apiKey string, timeout time.Duration) (*HTTPReranker, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, fmt.Errorf("rerank endpoint is required")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPReranker{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

type rerankRequest struct {
	Query string   `json:"query"`
	Texts []string `json:"texts"`
}

type rerankResult struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// Rerank scores every passage. Every input passage comes back exactly
// once; a response that drops or invents indexes is an error.
func (r *HTTPReranker) Rerank(ctx context.Context, query string, passages []Passage) ([]Scored, error) {
	if len(passages) == 0 {
		return nil, nil
	}

	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}
	data, err := json.Marshal(rerankRequest{Query: query, Texts: texts})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("rerank status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var results []rerankResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("parse rerank response: %w", err)
	}
	if len(results) != len(passages) {
		return nil, fmt.Errorf("expected %d scores, got %d", len(passages), len(results))
	}

	scored := make([]Scored, 0, len(results))
	seen := make(map[int]bool, len(results))
	for _, res := range results {
		if res.Index < 0 || res.Index >= len(passages) || seen[res.Index] {
			return nil, fmt.Errorf("invalid rerank index: %d", res.Index)
		}
		seen[res.Index] = true
		scored = append(scored, Scored{ID: passages[res.Index].ID, Score: res.Score})
	}
	return scored, nil
}

// Sigmoid squashes a raw score into (0, 1).
func Sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// MatchPercent converts a raw score into a 0-100 display percentage.
// Monotonic, so it can never reorder results.
func MatchPercent(rawScore float64) int {
	return int(Sigmoid(rawScore) * 100)
}
