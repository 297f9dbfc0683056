package augment

import (
	"context"
	"errors"
	"testing"

	"github.com/northbound/drive-chat/internal/model"
)

type fakeClient struct {
	situating string
	err       error
}

func (f *fakeClient) GenerateContext(ctx context.Context, fileName, excerpt, chunkText string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.situating, nil
}

func TestAugmenter_Disabled_PassesThrough(t *testing.T) {
	chunks := []model.Chunk{{Text: "original text"}}
	a := New(&fakeClient{situating: "context"}, nil, false)

	out := a.Augment(context.Background(), "doc.pdf", "full document text", chunks)

	if out[0] != "original text" {
		t.Errorf("expected passthrough when disabled, got %q", out[0])
	}
	if chunks[0].Text != "original text" {
		t.Errorf("chunk text must never be mutated, got %q", chunks[0].Text)
	}
}

func TestAugmenter_Enabled_PrependsSituatingText(t *testing.T) {
	chunks := []model.Chunk{{Text: "original text"}}
	a := New(&fakeClient{situating: "This chunk discusses onboarding."}, nil, true)

	out := a.Augment(context.Background(), "doc.pdf", "full document text", chunks)

	want := "This chunk discusses onboarding.\n\noriginal text"
	if out[0] != want {
		t.Errorf("embed text = %q, want %q", out[0], want)
	}
	if chunks[0].Text != "original text" {
		t.Errorf("chunk text must stay unaugmented for storage, got %q", chunks[0].Text)
	}
}

func TestAugmenter_FallsBackOnGenerationFailure(t *testing.T) {
	chunks := []model.Chunk{{Text: "original text"}}
	a := New(&fakeClient{err: errors.New("service unavailable")}, nil, true)

	out := a.Augment(context.Background(), "doc.pdf", "full document text", chunks)

	if out[0] != "original text" {
		t.Errorf("expected fallback to raw chunk text, got %q", out[0])
	}
}

func TestAugmenter_PreservesChunkOrderAndCount(t *testing.T) {
	chunks := []model.Chunk{
		{Text: "one", ChunkIndex: 0},
		{Text: "two", ChunkIndex: 1},
		{Text: "three", ChunkIndex: 2},
	}
	a := New(&fakeClient{situating: "ctx"}, nil, true)

	out := a.Augment(context.Background(), "doc.pdf", "full text", chunks)

	if len(out) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(out))
	}
	for i, text := range out {
		want := "ctx\n\n" + chunks[i].Text
		if text != want {
			t.Errorf("entry %d = %q, want %q", i, text, want)
		}
	}
}
