package chunk

import (
	"strings"
	"testing"

	"github.com/northbound/drive-chat/internal/model"
)

func TestChunk_ShortText(t *testing.T) {
	blocks := []model.Block{
		{Text: "This is a short block that should not be split.", Location: model.Location{Type: model.LocationText}},
	}

	chunks := Chunk(blocks)

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk for short text, got %d", len(chunks))
	}
	if chunks[0].ChunkIndex != 0 {
		t.Errorf("expected first chunk index 0, got %d", chunks[0].ChunkIndex)
	}
}

func TestChunk_LongTextSplitsWithOverlap(t *testing.T) {
	paragraph := "This is a sample sentence. It contains multiple clauses. Each one ends with a period. "
	blocks := []model.Block{
		{Text: strings.Repeat(paragraph, 40), Location: model.Location{Type: model.LocationText}},
	}

	chunks := Chunk(blocks)

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks for ~3400 chars, got %d", len(chunks))
	}

	for i, c := range chunks {
		if c.ChunkIndex != i {
			t.Errorf("chunk %d has index %d, want monotone sequence", i, c.ChunkIndex)
		}
	}

	for i := 0; i < len(chunks)-1; i++ {
		if chunks[i].Text == chunks[i+1].Text {
			t.Errorf("chunk %d and %d are identical, expected distinct overlapping windows", i, i+1)
		}
	}
}

func TestChunk_EmptyBlocks(t *testing.T) {
	chunks := Chunk(nil)
	if len(chunks) != 0 {
		t.Errorf("expected 0 chunks for no blocks, got %d", len(chunks))
	}
}

func TestChunk_NeverMergesAcrossHeadingChange(t *testing.T) {
	blocks := []model.Block{
		{Text: "Intro paragraph under section one.", Location: model.Location{Type: model.LocationDoc, HeadingPath: "Section One"}, HeadingLevel: 1},
		{Text: "Body under section two.", Location: model.Location{Type: model.LocationDoc, HeadingPath: "Section Two"}, HeadingLevel: 1},
	}

	chunks := Chunk(blocks)

	if len(chunks) != 2 {
		t.Fatalf("expected one chunk per heading section, got %d", len(chunks))
	}
	if chunks[0].Location.HeadingPath != "Section One" {
		t.Errorf("chunk 0 heading path = %q, want %q", chunks[0].Location.HeadingPath, "Section One")
	}
	if chunks[1].Location.HeadingPath != "Section Two" {
		t.Errorf("chunk 1 heading path = %q, want %q", chunks[1].Location.HeadingPath, "Section Two")
	}
}

func TestChunk_PreservesLocationOfFirstBlock(t *testing.T) {
	blocks := []model.Block{
		{Text: "Page one text.", Location: model.Location{Type: model.LocationPDF, Page: 1}},
		{Text: "Page two text.", Location: model.Location{Type: model.LocationPDF, Page: 2}},
	}

	chunks := Chunk(blocks)
	if len(chunks) == 0 {
		t.Fatal("expected at least one chunk")
	}
	if chunks[0].Location.Page != 1 {
		t.Errorf("expected first chunk to carry page 1, got %d", chunks[0].Location.Page)
	}
}
