package worker

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/northbound/drive-chat/internal/chunk"
	"github.com/northbound/drive-chat/internal/extract"
	"github.com/northbound/drive-chat/internal/model"
	"github.com/northbound/drive-chat/internal/storage"
)

// nativeMimePrefix identifies a drive-native document (Docs, Sheets,
// Slides) that has no exportable byte representation of its own and must
// be converted via DriveClient.ExportNative before extraction.
const nativeMimePrefix = "application/vnd.google-apps."

// previewCharLimit bounds the leading slice of a file's extracted text
// that seeds its preview, before any top-level heading text is appended.
const previewCharLimit = 500

// exportExt maps the content type ExportNative converts a native document
// to, onto the extension extract.Extract dispatches on.
var exportExt = map[string]string{
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": ".docx",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       ".xlsx",
	"text/plain": ".txt",
	"text/html":  ".html",
}

func (p *Pool) processJob(ctx context.Context, job *storage.IndexingJob) error {
	if job.JobType == storage.JobTypeDelete {
		return p.store.DeleteFile(ctx, job.FileID)
	}

	data, name, err := p.fetch(ctx, job)
	if err != nil {
		return fmt.Errorf("worker: fetch %s: %w", job.FileName, err)
	}

	// A file with no content (zero bytes, or only whitespace) is a valid
	// terminal outcome, not a failure: extraction is skipped and the job
	// completes with zero chunks, an empty preview and a null embedding.
	// A non-empty file in which the extractor finds no text fails with
	// the extractor's permanent error.
	var blocks []model.Block
	if len(bytes.TrimSpace(data)) > 0 {
		blocks, err = extract.Extract(ctx, name, data, p.ocr)
		if err != nil {
			return fmt.Errorf("worker: extract %s: %w", name, err)
		}
	}

	chunks := chunk.Chunk(blocks)
	fullText := joinBlocks(blocks)

	embedTexts := make([]string, len(chunks))
	for i, c := range chunks {
		embedTexts[i] = c.Text
	}
	if p.augmenter != nil {
		embedTexts = p.augmenter.Augment(ctx, job.FileName, fullText, chunks)
	}

	var vectors [][]float32
	if len(chunks) > 0 {
		vectors, err = p.embedder.EmbedDocuments(ctx, embedTexts)
		if err != nil {
			return fmt.Errorf("worker: embed %s: %w", name, err)
		}
	}

	inputs := make([]storage.ChunkInput, len(chunks))
	for i, c := range chunks {
		inputs[i] = storage.ChunkInput{Text: c.Text, Location: c.Location, Vector: vectors[i]}
	}
	if err := p.store.ReplaceChunks(ctx, job.FileID, job.FolderID, job.TenantID, inputs); err != nil {
		return fmt.Errorf("worker: replace chunks %s: %w", name, err)
	}

	preview := buildPreview(blocks, fullText)
	var fileEmbedding []float32
	if preview != "" {
		fileEmbedding, err = p.embedder.EmbedQuery(ctx, "search_document: "+preview)
		if err != nil {
			return fmt.Errorf("worker: embed preview %s: %w", name, err)
		}
	}

	return p.store.UpdateFileIndexed(ctx, job.FileID, preview, fileEmbedding)
}

// buildPreview derives a file's stored preview as the first
// previewCharLimit characters of its extracted text plus any top-level
// heading text not already captured in that prefix.
func buildPreview(blocks []model.Block, fullText string) string {
	preview := fullText
	if len(preview) > previewCharLimit {
		preview = preview[:previewCharLimit]
	}

	for _, blk := range blocks {
		if blk.HeadingLevel != 1 || strings.Contains(preview, blk.Text) {
			continue
		}
		preview = strings.TrimRight(preview, " \n") + "\n\n" + blk.Text
	}

	return strings.TrimSpace(preview)
}

// fetch downloads job's file, exporting native drive documents to a
// portable format first, and returns the bytes plus a filename whose
// extension extract.Extract can dispatch on.
func (p *Pool) fetch(ctx context.Context, job *storage.IndexingJob) ([]byte, string, error) {
	if strings.HasPrefix(job.MimeType, nativeMimePrefix) {
		data, contentType, err := p.drive.ExportNative(ctx, job.DriveFileID)
		if err != nil {
			return nil, "", err
		}
		ext, ok := exportExt[contentType]
		if !ok {
			ext = ".txt"
		}
		return data, job.FileName + ext, nil
	}

	data, err := p.drive.Download(ctx, job.DriveFileID)
	if err != nil {
		return nil, "", err
	}
	return data, job.FileName, nil
}

func joinBlocks(blocks []model.Block) string {
	var b strings.Builder
	for _, blk := range blocks {
		b.WriteString(blk.Text)
		b.WriteString("\n\n")
	}
	return b.String()
}
