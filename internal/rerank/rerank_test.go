package rerank

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSigmoid(t *testing.T) {
	if got := Sigmoid(0); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("Sigmoid(0) = %v, want 0.5", got)
	}
	if Sigmoid(10) <= Sigmoid(1) || Sigmoid(1) <= Sigmoid(-1) {
		t.Error("Sigmoid is not monotonic")
	}
	if got := Sigmoid(100); got <= 0 || got >= 1 {
		t.Errorf("Sigmoid(100) = %v, out of (0,1)", got)
	}
}

func TestMatchPercent(t *testing.T) {
	tests := []struct {
		raw  float64
		want int
	}{
		{0, 50},
		{-100, 0},
	}
	for _, tt := range tests {
		if got := MatchPercent(tt.raw); got != tt.want {
			t.Errorf("MatchPercent(%v) = %d, want %d", tt.raw, got, tt.want)
		}
	}
	for _, raw := range []float64{-50, -1, 0, 1, 3.7, 50} {
		got := MatchPercent(raw)
		if got < 0 || got > 100 {
			t.Errorf("MatchPercent(%v) = %d, out of [0,100]", raw, got)
		}
	}
}

func newRerankServer(t *testing.T, handler http.HandlerFunc) *HTTPReranker {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	r, err := NewHTTPReranker(srv.URL, "", time.Second)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestHTTPReranker_Rerank(t *testing.T) {
	r := newRerankServer(t, func(w http.ResponseWriter, req *http.Request) {
		var body rerankRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if body.Query != "how does login work" {
			t.Errorf("query = %q", body.Query)
		}
		if len(body.Texts) != 2 {
			t.Errorf("texts = %d", len(body.Texts))
		}
		// Deliberately out of order to prove mapping goes by index.
		json.NewEncoder(w).Encode([]rerankResult{
			{Index: 1, Score: 2.5},
			{Index: 0, Score: -0.5},
		})
	})

	scored, err := r.Rerank(context.Background(), "how does login work", []Passage{
		{ID: 10, Text: "def login(): ..."},
		{ID: 20, Text: "def logout(): ..."},
	})
	if err != nil {
		t.Fatalf("Rerank() error = %v", err)
	}
	if len(scored) != 2 {
		t.Fatalf("expected 2 scores, got %d", len(scored))
	}
	byID := map[int64]float64{}
	for _, s := range scored {
		byID[s.ID] = s.Score
	}
	if byID[10] != -0.5 || byID[20] != 2.5 {
		t.Errorf("scores mapped wrong: %v", byID)
	}
}

func TestHTTPReranker_EmptyPassages(t *testing.T) {
	r := newRerankServer(t, func(w http.ResponseWriter, req *http.Request) {
		t.Error("no request expected for empty passages")
	})
	scored, err := r.Rerank(context.Background(), "q", nil)
	if err != nil || scored != nil {
		t.Errorf("Rerank(nil) = %v, %v", scored, err)
	}
}

func TestHTTPReranker_BadResponses(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			"server error",
			func(w http.ResponseWriter, req *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
		},
		{
			"wrong count",
			func(w http.ResponseWriter, req *http.Request) {
				json.NewEncoder(w).Encode([]rerankResult{{Index: 0, Score: 1}})
			},
		},
		{
			"duplicate index",
			func(w http.ResponseWriter, req *http.Request) {
				json.NewEncoder(w).Encode([]rerankResult{{Index: 0, Score: 1}, {Index: 0, Score: 2}})
			},
		},
		{
			"index out of range",
			func(w http.ResponseWriter, req *http.Request) {
				json.NewEncoder(w).Encode([]rerankResult{{Index: 0, Score: 1}, {Index: 5, Score: 2}})
			},
		},
		{
			"not json",
			func(w http.ResponseWriter, req *http.Request) {
				w.Write([]byte("nope"))
			},
		},
	}

	passages := []Passage{{ID: 1, Text: "a"}, {ID: 2, Text: "b"}}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRerankServer(t, tt.handler)
			if _, err := r.Rerank(context.Background(), "q", passages); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNewHTTPReranker_RequiresEndpoint(t *testing.T) {
	if _, err := NewHTTPReranker("  ", "", 0); err == nil {
		t.Error("expected error for empty endpoint")
	}
}
