package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/northbound/drive-chat/internal/apperr"
	"github.com/northbound/drive-chat/internal/model"
)

// rowsPerBlock bounds how many data rows are folded into a single block so
// that a block stays well under typical chunk size even for wide sheets.
const rowsPerBlock = 20

// extractExcel emits one block per row-group per sheet, rendering each row
// as "Header: Value, Header: Value, ..." against the first row as headers.
func extractExcel(ctx context.Context, data []byte, ocr OCRClient) ([]model.Block, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("extract excel: open document: %w", err)
	}
	defer f.Close()

	sheetList := f.GetSheetList()
	if len(sheetList) == 0 {
		return nil, fmt.Errorf("extract excel: no sheets found: %w", apperr.ErrPermanent)
	}

	var blocks []model.Block

	for _, sheetName := range sheetList {
		rows, err := f.GetRows(sheetName)
		if err != nil || len(rows) == 0 {
			continue
		}

		headers := rows[0]
		if len(headers) == 0 {
			continue
		}

		for start := 1; start < len(rows); start += rowsPerBlock {
			end := start + rowsPerBlock
			if end > len(rows) {
				end = len(rows)
			}

			var lines []string
			for rowIdx := start; rowIdx < end; rowIdx++ {
				row := rows[rowIdx]
				var parts []string
				for colIdx, header := range headers {
					if colIdx >= len(row) || row[colIdx] == "" {
						continue
					}
					value := strings.TrimSpace(row[colIdx])
					if value == "" {
						continue
					}
					headerName := strings.TrimSpace(header)
					if headerName == "" {
						headerName = fmt.Sprintf("Column %d", colIdx+1)
					}
					parts = append(parts, fmt.Sprintf("%s: %s", headerName, value))
				}
				if len(parts) > 0 {
					lines = append(lines, fmt.Sprintf("Row %d: %s", rowIdx+1, strings.Join(parts, ", ")))
				}
			}
			if len(lines) == 0 {
				continue
			}

			blocks = append(blocks, model.Block{
				Text: strings.Join(lines, "\n"),
				Location: model.Location{
					Type:      model.LocationSheet,
					SheetName: sheetName,
					RowRange:  fmt.Sprintf("%d-%d", start+1, end),
				},
			})
		}
	}

	if len(blocks) == 0 {
		return nil, fmt.Errorf("extract excel: no content extracted: %w", apperr.ErrPermanent)
	}
	return blocks, nil
}
