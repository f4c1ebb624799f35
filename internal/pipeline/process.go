package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// ProcessDocument is the pipeline entry point. It routes non-PDF
// uploads to conversion, enforces the size limit, and starts the
// indexing pass.
func (p *Pipeline) ProcessDocument(ctx context.Context, logCtx *slog.Logger, msg Message) error {
	extension := strings.ToLower(strings.TrimPrefix(msg.Extension, "."))
	if extension != "" && extension != "pdf" {
		logCtx.Info("Handing off non-PDF upload for conversion.", "extension", extension)
		if err := p.converter.Convert(ctx, msg.DocID, msg.Slug, extension); err != nil {
			return fmt.Errorf("failed to start document conversion: %w", err)
		}
		return nil
	}

	size, err := p.store.Size(ctx, p.paths.Document(docIDKey(msg.DocID), msg.Slug))
	if err != nil {
		return fmt.Errorf("failed to stat uploaded document: %w", err)
	}
	if size > p.cfg.PDFSizeLimit {
		return fmt.Errorf("document is %d bytes, over the %d byte limit", size, p.cfg.PDFSizeLimit)
	}
	logCtx.Info("Document accepted for processing.", "sizeBytes", size)

	return p.publish(ctx, p.cfg.PageCacheTopic, Message{
		DocID:    msg.DocID,
		Slug:     msg.Slug,
		ForceOCR: msg.ForceOCR,
		OCRCode:  msg.OCRCode,
	})
}
