package extract

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gen2brain/go-fitz"

	"github.com/northbound/drive-chat/internal/apperr"
	"github.com/northbound/drive-chat/internal/model"
)

// extractPDF extracts one block per page using the embedded MuPDF text
// layer where present, and falls back to the remote OCR service for pages
// that yield no text (scanned images).
func extractPDF(ctx context.Context, data []byte, ocr OCRClient) ([]model.Block, error) {
	tmp, err := os.CreateTemp("", "drive-chat-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("extract pdf: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if _, err := tmp.Write(data); err != nil {
		return nil, fmt.Errorf("extract pdf: write temp file: %w", err)
	}

	doc, err := fitz.New(tmp.Name())
	if err != nil {
		return nil, fmt.Errorf("extract pdf: open document: %w", err)
	}
	defer doc.Close()

	numPages := doc.NumPage()
	blocks := make([]model.Block, 0, numPages)
	var scannedPages []int

	for i := 0; i < numPages; i++ {
		text, err := doc.Text(i)
		if err != nil {
			text = ""
		}
		text = strings.TrimSpace(text)
		if text == "" {
			scannedPages = append(scannedPages, i)
			continue
		}
		blocks = append(blocks, model.Block{
			Text:     text,
			Location: model.Location{Type: model.LocationPDF, Page: i + 1},
		})
	}

	if len(scannedPages) > 0 {
		if ocr == nil {
			return blocks, nil
		}
		pages, err := ocr.OCR(ctx, data, "application/pdf")
		if err != nil {
			return nil, fmt.Errorf("extract pdf: ocr fallback: %w", err)
		}
		byPage := make(map[int]string, len(pages))
		for _, p := range pages {
			byPage[p.Page] = p.Text
		}
		for _, pageIdx := range scannedPages {
			text := strings.TrimSpace(byPage[pageIdx+1])
			if text == "" {
				continue
			}
			blocks = append(blocks, model.Block{
				Text:     text,
				Location: model.Location{Type: model.LocationPDF, Page: pageIdx + 1},
			})
		}
	}

	if len(blocks) == 0 {
		return nil, fmt.Errorf("extract pdf: no text extracted: %w", apperr.ErrPermanent)
	}

	return sortByPage(blocks), nil
}

func sortByPage(blocks []model.Block) []model.Block {
	for i := 1; i < len(blocks); i++ {
		for j := i; j > 0 && blocks[j].Location.Page < blocks[j-1].Location.Page; j-- {
			blocks[j], blocks[j-1] = blocks[j-1], blocks[j]
		}
	}
	return blocks
}
