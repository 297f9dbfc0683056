// Package chunk splits a file's extracted blocks into bounded, overlapping
// fragments ready for embedding, preferring paragraph and sentence
// boundaries over a hard character cut and never merging text across a
// heading change.
package chunk

import (
	"strings"

	"github.com/northbound/drive-chat/internal/model"
)

const (
	targetSize = 1500
	overlap    = 150
	// searchWindow bounds how far back from targetSize a boundary search
	// looks before giving up and cutting mid-sentence.
	searchWindow = 250
)

// Chunk groups blocks into contiguous runs that share a heading path, then
// splits each run's concatenated text into size-bounded, overlapping
// chunks. Each chunk carries the location of the first block it draws
// text from, so a citation can still deep-link into the source file.
func Chunk(blocks []model.Block) []model.Chunk {
	var chunks []model.Chunk
	idx := 0

	for _, section := range groupByHeading(blocks) {
		for _, c := range chunkSection(section) {
			c.ChunkIndex = idx
			chunks = append(chunks, c)
			idx++
		}
	}

	return chunks
}

// section is a run of blocks sharing the same heading path.
type section struct {
	blocks []model.Block
}

func groupByHeading(blocks []model.Block) []section {
	var sections []section
	var cur []model.Block
	var curPath string
	first := true

	for _, b := range blocks {
		if first {
			curPath = b.Location.HeadingPath
			first = false
		}
		if b.Location.HeadingPath != curPath && len(cur) > 0 {
			sections = append(sections, section{blocks: cur})
			cur = nil
			curPath = b.Location.HeadingPath
		}
		cur = append(cur, b)
	}
	if len(cur) > 0 {
		sections = append(sections, section{blocks: cur})
	}
	return sections
}

// blockSpan records which byte range of the concatenated section text came
// from which block, so a chunk can be tagged with the location of whichever
// block it starts in.
type blockSpan struct {
	start, end int
	location   model.Location
}

func chunkSection(s section) []model.Chunk {
	var text strings.Builder
	spans := make([]blockSpan, 0, len(s.blocks))

	for i, b := range s.blocks {
		if i > 0 {
			text.WriteString("\n\n")
		}
		start := text.Len()
		text.WriteString(b.Text)
		spans = append(spans, blockSpan{start: start, end: text.Len(), location: b.Location})
	}

	full := text.String()
	if len(full) == 0 {
		return nil
	}

	var chunks []model.Chunk
	pos := 0
	textLen := len(full)

	for pos < textLen {
		end := pos + targetSize
		if end > textLen {
			end = textLen
		}
		if end < textLen {
			end = findBoundary(full, pos, end)
		}

		fragment := strings.TrimSpace(full[pos:end])
		if fragment != "" {
			chunks = append(chunks, model.Chunk{
				Text:     fragment,
				Location: locationAt(spans, pos),
			})
		}

		if end >= textLen {
			break
		}

		next := end - overlap
		if next <= pos {
			next = end
		}
		pos = next
	}

	return chunks
}

// findBoundary searches backward from end, at most searchWindow bytes and
// never before start, for a paragraph break, then a sentence end, then a
// word boundary; it falls back to end if none is found.
func findBoundary(text string, start, end int) int {
	searchStart := end - searchWindow
	if searchStart < start {
		searchStart = start
	}

	for i := end - 1; i >= searchStart; i-- {
		if i+1 < len(text) && text[i] == '\n' && text[i+1] == '\n' {
			return i + 2
		}
	}
	for i := end - 1; i >= searchStart; i-- {
		if (text[i] == '.' || text[i] == '!' || text[i] == '?') && i+1 < len(text) {
			next := text[i+1]
			if next == ' ' || next == '\n' || next == '\r' {
				return i + 1
			}
		}
	}
	for i := end - 1; i > searchStart; i-- {
		if text[i] == ' ' || text[i] == '\n' {
			return i + 1
		}
	}
	return end
}

func locationAt(spans []blockSpan, pos int) model.Location {
	for _, sp := range spans {
		if pos >= sp.start && pos < sp.end {
			return sp.location
		}
	}
	if len(spans) > 0 {
		return spans[len(spans)-1].location
	}
	return model.Location{}
}
