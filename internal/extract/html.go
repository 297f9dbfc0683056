package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/northbound/drive-chat/internal/apperr"
	"github.com/northbound/drive-chat/internal/model"
)

// extractHTML strips script/style/noscript tags, then emits one block per
// top-level element with non-trivial text so a long page doesn't collapse
// into a single oversized block.
func extractHTML(ctx context.Context, data []byte, ocr OCRClient) ([]model.Block, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("extract html: parse document: %w", err)
	}

	doc.Find("script, style, noscript").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	var blocks []model.Block
	idx := 0
	doc.Find("body").Children().Each(func(i int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return
		}
		blocks = append(blocks, model.Block{
			Text:     text,
			Location: model.Location{Type: model.LocationText, BlockIndex: idx},
		})
		idx++
	})

	if len(blocks) == 0 {
		text := strings.TrimSpace(doc.Text())
		if text == "" {
			return nil, fmt.Errorf("extract html: no text extracted: %w", apperr.ErrPermanent)
		}
		blocks = append(blocks, model.Block{
			Text:     text,
			Location: model.Location{Type: model.LocationText},
		})
	}

	return blocks, nil
}
