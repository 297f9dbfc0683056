package retrieve

import (
	"context"
	"testing"
	"time"

	"github.com/northbound/drive-chat/internal/clients"
)

func TestTruncate(t *testing.T) {
	if got := truncate("short", 300); got != "short" {
		t.Fatalf("truncate should not alter strings under the limit, got %q", got)
	}
	long := make([]byte, 400)
	for i := range long {
		long[i] = 'a'
	}
	if got := truncate(string(long), 300); len(got) != 300 {
		t.Fatalf("expected truncation to 300 chars, got %d", len(got))
	}
}

func TestScore_WeightsRecentDocumentsHigher(t *testing.T) {
	r := &Retriever{}
	now := time.Now()
	candidates := []candidate{
		{chunkID: "recent", vector: 0.5, lexical: 0, modifiedTime: now},
		{chunkID: "stale", vector: 0.5, lexical: 0, modifiedTime: now.Add(-365 * 24 * time.Hour)},
	}
	results := r.score(candidates)
	if results[0].Score <= results[1].Score {
		t.Fatalf("expected recent chunk to score higher: %+v", results)
	}
}

func TestScore_CombinesVectorAndLexical(t *testing.T) {
	r := &Retriever{}
	now := time.Now()
	candidates := []candidate{
		{chunkID: "both", vector: 0.8, lexical: 0.5, modifiedTime: now},
		{chunkID: "vector-only", vector: 0.8, lexical: 0, modifiedTime: now},
	}
	results := r.score(candidates)
	if results[0].Score <= results[1].Score {
		t.Fatalf("expected combined signal to outscore vector-only: %+v", results)
	}
}

type fakeReranker struct {
	results []clients.RerankedResult
	err     error
}

func (f *fakeReranker) Rerank(ctx context.Context, query string, candidates []string) ([]clients.RerankedResult, error) {
	return f.results, f.err
}

func TestApplyRerank_ReordersByRerankerScore(t *testing.T) {
	r := &Retriever{reranker: &fakeReranker{results: []clients.RerankedResult{
		{Index: 1, Score: 0.9},
		{Index: 0, Score: 0.1},
	}}}
	pool := []Result{
		{ChunkID: "a", Score: 0.5},
		{ChunkID: "b", Score: 0.4},
	}
	got := r.applyRerank(context.Background(), "q", pool)
	if got[0].ChunkID != "b" || got[1].ChunkID != "a" {
		t.Fatalf("expected reranked order [b, a], got %+v", got)
	}
}

func TestApplyRerank_DegradesOnFailure(t *testing.T) {
	r := &Retriever{reranker: &fakeReranker{err: context.DeadlineExceeded}}
	pool := []Result{{ChunkID: "a", Score: 0.5}, {ChunkID: "b", Score: 0.4}}
	got := r.applyRerank(context.Background(), "q", pool)
	if got[0].ChunkID != "a" || got[1].ChunkID != "b" {
		t.Fatalf("expected original order preserved on rerank failure, got %+v", got)
	}
}
