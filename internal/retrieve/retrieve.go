// Package retrieve implements the hybrid vector+lexical+recency retriever
// that backs both standard-mode and agentic-mode chat.
package retrieve

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/northbound/drive-chat/internal/clients"
	"github.com/northbound/drive-chat/internal/model"
	"github.com/northbound/drive-chat/internal/storage"
)

// Weights for the three scoring signals (spec §4.G).
const (
	weightVector   = 0.6
	weightLexical  = 0.2
	weightRecency  = 0.2
	recencyHalfLife = 30 * 24 * time.Hour

	candidatesPerSignal = 50
	poolSize            = 30
	excerptLimit        = 300
)

// Embedder is the single method the retriever needs from
// internal/embeddings.Embedder.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Reranker is the single method the retriever needs from
// internal/clients.RerankerClient.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []string) ([]clients.RerankedResult, error)
}

// Result is one scored chunk returned to the chat loop.
type Result struct {
	ChunkID  string
	FileID   string
	FileName string
	DeepLink string
	Location model.Location
	Excerpt  string
	Score    float32
}

// Retriever runs the hybrid search described in spec §4.G.
type Retriever struct {
	store    *storage.Store
	embedder Embedder
	reranker Reranker
	rerank   bool
}

// New builds a Retriever. reranker may be nil even when rerank is true,
// in which case rerank is silently skipped (degrades to pool ordering).
func New(store *storage.Store, embedder Embedder, reranker Reranker, rerank bool) *Retriever {
	return &Retriever{store: store, embedder: embedder, reranker: reranker, rerank: rerank}
}

type candidate struct {
	chunkID      string
	fileID       string
	text         string
	locationJSON []byte
	vector       float64
	lexical      float64
	fileName     string
	deepLink     string
	modifiedTime time.Time
}

// Search returns up to k scored chunks for query, restricted to folderID
// and tenantID. Degrades per spec §4.G's failure ladder: embedder failure
// drops the vector signal, an empty lexical match set leaves the pool
// vector-only (the union already produces that shape with no extra code
// path), and both signals empty returns an empty list rather than an error.
func (r *Retriever) Search(ctx context.Context, tenantID, folderID, query string, k int) ([]Result, error) {
	if k <= 0 {
		k = 10
	}

	var queryVec []float32
	if r.embedder != nil {
		v, err := r.embedder.EmbedQuery(ctx, query)
		if err == nil {
			queryVec = v
		}
	}

	candidates, err := r.fetchCandidates(ctx, tenantID, folderID, query, queryVec)
	if err != nil {
		return nil, fmt.Errorf("retrieve: fetch candidates: %w", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	scored := r.score(candidates)
	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > poolSize {
		scored = scored[:poolSize]
	}

	if r.rerank && r.reranker != nil {
		scored = r.applyRerank(ctx, query, scored)
	}

	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

func (r *Retriever) fetchCandidates(ctx context.Context, tenantID, folderID, query string, queryVec []float32) ([]candidate, error) {
	if queryVec != nil {
		return r.hybridQuery(ctx, tenantID, folderID, query, queryVec)
	}
	return r.lexicalOnlyQuery(ctx, tenantID, folderID, query)
}

func (r *Retriever) hybridQuery(ctx context.Context, tenantID, folderID, query string, queryVec []float32) ([]candidate, error) {
	rows, err := r.store.Pool().Query(ctx, `
		WITH vector_candidates AS (
			SELECT c.id, c.file_id, c.text, c.location, 1 - (c.embedding <=> $1) AS vscore
			FROM chunks c
			WHERE c.folder_id = $2 AND c.tenant_id = $3
			ORDER BY c.embedding <=> $1
			LIMIT $4
		),
		lexical_candidates AS (
			SELECT c.id, c.file_id, c.text, c.location,
			       ts_rank(c.tsv, plainto_tsquery('english', $5)) AS lscore
			FROM chunks c
			WHERE c.folder_id = $2 AND c.tenant_id = $3
			  AND c.tsv @@ plainto_tsquery('english', $5)
			ORDER BY lscore DESC
			LIMIT $4
		),
		pool AS (
			SELECT id, file_id, text, location FROM vector_candidates
			UNION
			SELECT id, file_id, text, location FROM lexical_candidates
		)
		SELECT p.id, p.file_id, p.text, p.location,
		       COALESCE(v.vscore, 0), COALESCE(l.lscore, 0),
		       f.name, f.deep_link, f.modified_time
		FROM pool p
		JOIN files f ON f.id = p.file_id
		LEFT JOIN vector_candidates v ON v.id = p.id
		LEFT JOIN lexical_candidates l ON l.id = p.id
	`, pgvector.NewVector(queryVec), folderID, tenantID, candidatesPerSignal, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCandidates(rows)
}

func (r *Retriever) lexicalOnlyQuery(ctx context.Context, tenantID, folderID, query string) ([]candidate, error) {
	rows, err := r.store.Pool().Query(ctx, `
		SELECT c.id, c.file_id, c.text, c.location,
		       0::float8, ts_rank(c.tsv, plainto_tsquery('english', $4)),
		       f.name, f.deep_link, f.modified_time
		FROM chunks c
		JOIN files f ON f.id = c.file_id
		WHERE c.folder_id = $1 AND c.tenant_id = $2
		  AND c.tsv @@ plainto_tsquery('english', $4)
		ORDER BY ts_rank(c.tsv, plainto_tsquery('english', $4)) DESC
		LIMIT $3
	`, folderID, tenantID, candidatesPerSignal, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCandidates(rows)
}

func scanCandidates(rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}) ([]candidate, error) {
	var out []candidate
	for rows.Next() {
		var c candidate
		if err := rows.Scan(&c.chunkID, &c.fileID, &c.text, &c.locationJSON,
			&c.vector, &c.lexical, &c.fileName, &c.deepLink, &c.modifiedTime); err != nil {
			return nil, fmt.Errorf("retrieve: scan candidate: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Retriever) score(candidates []candidate) []Result {
	out := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		var loc model.Location
		_ = json.Unmarshal(c.locationJSON, &loc)

		recency := math.Exp(-time.Since(c.modifiedTime).Hours() / recencyHalfLife.Hours())
		score := weightVector*c.vector + weightLexical*c.lexical + weightRecency*recency

		out = append(out, Result{
			ChunkID:  c.chunkID,
			FileID:   c.fileID,
			FileName: c.fileName,
			DeepLink: c.deepLink,
			Location: loc,
			Excerpt:  truncate(c.text, excerptLimit),
			Score:    float32(score),
		})
	}
	return out
}

// applyRerank passes the pool through the remote reranker and reorders
// by its scores. Any failure degrades to the pre-rerank ordering.
func (r *Retriever) applyRerank(ctx context.Context, query string, pool []Result) []Result {
	texts := make([]string, len(pool))
	for i, res := range pool {
		texts[i] = res.Excerpt
	}

	ranked, err := r.reranker.Rerank(ctx, query, texts)
	if err != nil || len(ranked) == 0 {
		return pool
	}

	reordered := make([]Result, 0, len(pool))
	for _, rr := range ranked {
		if rr.Index < 0 || rr.Index >= len(pool) {
			continue
		}
		res := pool[rr.Index]
		res.Score = rr.Score
		reordered = append(reordered, res)
	}
	if len(reordered) == 0 {
		return pool
	}
	return reordered
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
