package extract

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/nguyenthenguyen/docx"

	"github.com/northbound/drive-chat/internal/apperr"
	"github.com/northbound/drive-chat/internal/model"
)

// extractDOCX emits one block per paragraph, carrying forward a heading
// path built from short, unpunctuated lines treated as section titles.
// The library exposes flattened run text rather than per-paragraph style
// metadata, so heading detection is heuristic rather than style-driven.
func extractDOCX(ctx context.Context, data []byte, ocr OCRClient) ([]model.Block, error) {
	tmp, err := os.CreateTemp("", "drive-chat-*.docx")
	if err != nil {
		return nil, fmt.Errorf("extract docx: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if _, err := tmp.Write(data); err != nil {
		return nil, fmt.Errorf("extract docx: write temp file: %w", err)
	}

	doc, err := docx.ReadDocxFile(tmp.Name())
	if err != nil {
		return nil, fmt.Errorf("extract docx: open document: %w", err)
	}
	defer doc.Close()

	content := doc.Editable().GetContent()
	paragraphs := strings.Split(content, "\n")

	var (
		blocks      []model.Block
		headingPath []string
		paraIdx     int
	)

	for _, raw := range paragraphs {
		text := strings.TrimSpace(raw)
		if text == "" {
			continue
		}

		level := headingLevel(text)
		if level > 0 {
			headingPath = append(headingPath[:min(level-1, len(headingPath))], text)
			continue
		}

		blocks = append(blocks, model.Block{
			Text: text,
			Location: model.Location{
				Type:        model.LocationDoc,
				HeadingPath: strings.Join(headingPath, " > "),
				ParaIndex:   paraIdx,
			},
			HeadingLevel: len(headingPath),
		})
		paraIdx++
	}

	if len(blocks) == 0 {
		return nil, fmt.Errorf("extract docx: no text extracted: %w", apperr.ErrPermanent)
	}
	return blocks, nil
}

// headingLevel returns a 1-based heading level for lines that look like a
// section title (short, no terminal punctuation), or 0 for body text.
func headingLevel(text string) int {
	if len(text) == 0 || len(text) > 80 {
		return 0
	}
	last := text[len(text)-1]
	if last == '.' || last == ',' || last == ';' || last == ':' {
		return 0
	}
	words := strings.Fields(text)
	if len(words) == 0 || len(words) > 10 {
		return 0
	}
	if strings.ToUpper(text) == text {
		return 1
	}
	upperWords := 0
	for _, w := range words {
		r := []rune(w)
		if len(r) > 0 && r[0] >= 'A' && r[0] <= 'Z' {
			upperWords++
		}
	}
	if upperWords == len(words) {
		return 2
	}
	return 0
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
