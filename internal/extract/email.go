package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mnako/letters"

	"github.com/northbound/drive-chat/internal/apperr"
	"github.com/northbound/drive-chat/internal/model"
)

// extractEmail emits a metadata block (subject/sender/date) followed by
// one block for the message body. A text body is preferred; an HTML-only
// body is run through goquery to strip tags rather than kept as raw markup.
func extractEmail(ctx context.Context, data []byte, ocr OCRClient) ([]model.Block, error) {
	msg, err := letters.ParseEmail(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("extract email: parse message: %w", err)
	}

	var meta strings.Builder
	if msg.Headers.Subject != "" {
		meta.WriteString(fmt.Sprintf("Subject: %s\n", msg.Headers.Subject))
	}
	if len(msg.Headers.From) > 0 {
		from := msg.Headers.From[0]
		if from.Name != "" {
			meta.WriteString(fmt.Sprintf("Sender: %s <%s>\n", from.Name, from.Address))
		} else {
			meta.WriteString(fmt.Sprintf("Sender: %s\n", from.Address))
		}
	}
	if !msg.Headers.Date.IsZero() {
		meta.WriteString(fmt.Sprintf("Date: %s\n", msg.Headers.Date.Format(time.RFC3339)))
	}

	var blocks []model.Block
	if meta.Len() > 0 {
		blocks = append(blocks, model.Block{
			Text:     strings.TrimSpace(meta.String()),
			Location: model.Location{Type: model.LocationText, BlockIndex: 0},
		})
	}

	body := strings.TrimSpace(msg.Text)
	if body == "" && msg.HTML != "" {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(msg.HTML)); err == nil {
			doc.Find("script, style, noscript").Each(func(i int, s *goquery.Selection) {
				s.Remove()
			})
			body = strings.TrimSpace(doc.Text())
		}
	}
	if body != "" {
		blocks = append(blocks, model.Block{
			Text:     body,
			Location: model.Location{Type: model.LocationText, BlockIndex: 1},
		})
	}

	if len(blocks) == 0 {
		return nil, fmt.Errorf("extract email: no content extracted: %w", apperr.ErrPermanent)
	}
	return blocks, nil
}
