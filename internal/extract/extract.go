// Package extract transforms raw file bytes into a structured document: an
// ordered sequence of blocks, each carrying text plus a structural location
// descriptor. Extraction is polymorphic over file type, dispatched through
// a small registry keyed by file extension rather than duck-typed callables.
package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/northbound/drive-chat/internal/apperr"
	"github.com/northbound/drive-chat/internal/model"
)

// OCRClient is the remote collaborator used for PDFs and scanned images
// whose pages carry no extractable text layer. Implemented by
// internal/clients.OCRClient.
type OCRClient interface {
	OCR(ctx context.Context, data []byte, mime string) ([]OCRPage, error)
}

// OCRPage is one page returned by the OCR service.
type OCRPage struct {
	Page int
	Text string
}

type extractorFunc func(ctx context.Context, data []byte, ocr OCRClient) ([]model.Block, error)

var registry = map[string]extractorFunc{
	".pdf":  extractPDF,
	".docx": extractDOCX,
	".xlsx": extractExcel,
	".xls":  extractExcel,
	".txt":  extractText,
	".md":   extractText,
	".html": extractHTML,
	".htm":  extractHTML,
	".eml":  extractEmail,
	".png":  extractPNG,
	".jpg":  extractJPEG,
	".jpeg": extractJPEG,
	".tiff": extractTIFF,
	".tif":  extractTIFF,
}

func extractPNG(ctx context.Context, data []byte, ocr OCRClient) ([]model.Block, error) {
	return extractImage(ctx, data, "image/png", ocr)
}

func extractJPEG(ctx context.Context, data []byte, ocr OCRClient) ([]model.Block, error) {
	return extractImage(ctx, data, "image/jpeg", ocr)
}

func extractTIFF(ctx context.Context, data []byte, ocr OCRClient) ([]model.Block, error) {
	return extractImage(ctx, data, "image/tiff", ocr)
}

// supportedSourceExts are plain source files emitted the same way as .txt.
var supportedSourceExts = map[string]bool{
	".go": true, ".py": true, ".js": true, ".ts": true, ".json": true,
	".yaml": true, ".yml": true, ".csv": true, ".log": true,
}

// Extract dispatches raw bytes to the extractor registered for the file's
// extension (derived from name, not the declared MIME type, matching the
// source system's own dispatch key). Transient OCR failures propagate
// wrapped in apperr.ErrTransient so the caller (the indexing worker) can
// retry the whole job; unsupported extensions are apperr.ErrPermanent.
func Extract(ctx context.Context, name string, data []byte, ocr OCRClient) ([]model.Block, error) {
	ext := strings.ToLower(filepath.Ext(name))

	if fn, ok := registry[ext]; ok {
		return fn(ctx, data, ocr)
	}
	if supportedSourceExts[ext] {
		return extractText(ctx, data, ocr)
	}

	return nil, fmt.Errorf("extract %s: unsupported file type %q: %w", name, ext, apperr.ErrPermanent)
}

// IsSupported reports whether name's extension has a registered extractor.
func IsSupported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := registry[ext]; ok {
		return true
	}
	return supportedSourceExts[ext]
}

// IsTemporary reports whether name looks like an editor/OS temp file that
// should never be ingested (e.g. "~$doc.docx", "._resource", "*.tmp").
func IsTemporary(name string) bool {
	base := filepath.Base(name)
	switch {
	case strings.HasPrefix(base, "~$"):
		return true
	case strings.HasPrefix(base, "._"):
		return true
	case strings.HasSuffix(base, ".tmp"):
		return true
	}
	return false
}
