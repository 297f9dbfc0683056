package embeddings

import (
	"context"
	"testing"
)

func TestEmbedder_EmbedDocuments(t *testing.T) {
	e := New(NewMockClient(8), nil)

	vectors, err := e.EmbedDocuments(context.Background(), []string{"alpha", "beta", "gamma"})
	if err != nil {
		t.Fatalf("EmbedDocuments failed: %v", err)
	}
	if len(vectors) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(vectors))
	}
	for i, v := range vectors {
		if len(v) != 8 {
			t.Errorf("vector %d has dimension %d, want 8", i, len(v))
		}
	}
}

func TestEmbedder_EmbedDocuments_DeterministicAndDistinct(t *testing.T) {
	e := New(NewMockClient(8), nil)

	v1, err := e.EmbedDocuments(context.Background(), []string{"same text"})
	if err != nil {
		t.Fatalf("EmbedDocuments failed: %v", err)
	}
	v2, err := e.EmbedDocuments(context.Background(), []string{"same text"})
	if err != nil {
		t.Fatalf("EmbedDocuments failed: %v", err)
	}
	if len(v1[0]) != len(v2[0]) {
		t.Fatalf("dimension mismatch across calls")
	}
	for i := range v1[0] {
		if v1[0][i] != v2[0][i] {
			t.Fatalf("expected identical embeddings for identical text, differ at index %d", i)
		}
	}
}

func TestEmbedder_EmbedQuery(t *testing.T) {
	e := New(NewMockClient(4), nil)

	vec, err := e.EmbedQuery(context.Background(), "what is the refund policy?")
	if err != nil {
		t.Fatalf("EmbedQuery failed: %v", err)
	}
	if len(vec) != 4 {
		t.Errorf("expected dimension 4, got %d", len(vec))
	}
}

func TestEmbedder_EmbedDocuments_BatchesLargeInput(t *testing.T) {
	e := New(NewMockClient(4), nil)

	texts := make([]string, maxBatch*2+5)
	for i := range texts {
		texts[i] = "chunk text"
	}

	vectors, err := e.EmbedDocuments(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedDocuments failed: %v", err)
	}
	if len(vectors) != len(texts) {
		t.Fatalf("expected %d vectors preserving order across batches, got %d", len(texts), len(vectors))
	}
}

func TestEmbedder_EmbedDocuments_Empty(t *testing.T) {
	e := New(NewMockClient(4), nil)

	vectors, err := e.EmbedDocuments(context.Background(), nil)
	if err != nil {
		t.Fatalf("EmbedDocuments failed: %v", err)
	}
	if len(vectors) != 0 {
		t.Errorf("expected 0 vectors for empty input, got %d", len(vectors))
	}
}
