package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/northbound/drive-chat/internal/apperr"
	"github.com/northbound/drive-chat/internal/model"
)

// extractText splits plain text and source files on blank lines, emitting
// one block per paragraph so chunking can still respect paragraph
// boundaries instead of treating the whole file as a single blob.
func extractText(ctx context.Context, data []byte, ocr OCRClient) ([]model.Block, error) {
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, fmt.Errorf("extract text: empty file: %w", apperr.ErrPermanent)
	}

	paragraphs := strings.Split(text, "\n\n")
	blocks := make([]model.Block, 0, len(paragraphs))
	idx := 0
	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		blocks = append(blocks, model.Block{
			Text:     p,
			Location: model.Location{Type: model.LocationText, BlockIndex: idx},
		})
		idx++
	}

	if len(blocks) == 0 {
		return nil, fmt.Errorf("extract text: no content: %w", apperr.ErrPermanent)
	}
	return blocks, nil
}
