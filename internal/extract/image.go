package extract

import (
	"context"
	"fmt"

	"github.com/northbound/drive-chat/internal/apperr"
	"github.com/northbound/drive-chat/internal/model"
)

// extractImage routes a scanned image straight to the OCR service; there
// is no local text layer to try first.
func extractImage(ctx context.Context, data []byte, mime string, ocr OCRClient) ([]model.Block, error) {
	if ocr == nil {
		return nil, fmt.Errorf("extract image: no OCR service configured: %w", apperr.ErrPermanent)
	}

	pages, err := ocr.OCR(ctx, data, mime)
	if err != nil {
		return nil, fmt.Errorf("extract image: %w", err)
	}

	blocks := make([]model.Block, 0, len(pages))
	for _, p := range pages {
		if p.Text == "" {
			continue
		}
		blocks = append(blocks, model.Block{
			Text:     p.Text,
			Location: model.Location{Type: model.LocationPDF, Page: p.Page},
		})
	}
	if len(blocks) == 0 {
		return nil, fmt.Errorf("extract image: no text recognized: %w", apperr.ErrPermanent)
	}
	return blocks, nil
}
