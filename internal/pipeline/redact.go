package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/openvault/docpipeline/internal/pdf"
	"github.com/openvault/docpipeline/internal/storage"
)

// Redact burns black boxes into the requested pages by replacing them
// with rasterized copies, then reprocesses just those pages. The
// replacement destroys the text under the boxes, and the raster pages
// carry no text layer, so the dirty pages go back through OCR.
func (p *Pipeline) Redact(ctx context.Context, logCtx *slog.Logger, msg Message) error {
	if len(msg.Redactions) == 0 {
		return fmt.Errorf("redact request carries no redactions")
	}
	docKey := docIDKey(msg.DocID)

	byPage := map[int][]pdf.Region{}
	for _, r := range msg.Redactions {
		byPage[r.Page] = append(byPage[r.Page], r.Region)
	}
	dirty := make([]int, 0, len(byPage))
	for page := range byPage {
		dirty = append(dirty, page)
	}
	sort.Ints(dirty)

	spec, err := p.loadPageSpec(ctx, msg)
	if err != nil {
		return err
	}
	pageCount := len(spec)
	if dirty[0] < 0 || dirty[len(dirty)-1] >= pageCount {
		return fmt.Errorf("redaction pages outside document of %d pages", pageCount)
	}

	docPath := p.paths.Document(docKey, msg.Slug)
	data, err := p.store.ReadAll(ctx, docPath)
	if err != nil {
		return fmt.Errorf("failed to download document: %w", err)
	}
	for _, page := range dirty {
		data, err = p.engine.RedactPage(data, page, spec.Page(page), byPage[page])
		if err != nil {
			return fmt.Errorf("failed to redact page %d: %w", page, err)
		}
	}
	if err := p.store.Upload(ctx, docPath, data); err != nil {
		return fmt.Errorf("failed to upload redacted document: %w", err)
	}
	logCtx.Info("Redactions applied.", "pages", len(dirty))

	// Stale page assets must not outlive the text they reveal.
	for _, page := range dirty {
		paths := []string{
			p.paths.PageText(docKey, msg.Slug, page),
			p.paths.PagePosition(docKey, msg.Slug, page),
		}
		for _, size := range p.cfg.ImageWidths {
			paths = append(paths, p.paths.PageImage(docKey, msg.Slug, page, size.Name))
		}
		for _, path := range paths {
			if err := p.store.Delete(ctx, path); err != nil && !errors.Is(err, storage.ErrNotExist) {
				return fmt.Errorf("failed to delete stale asset %s: %w", path, err)
			}
		}
	}

	if err := p.counters.InitializePartial(ctx, docKey, pageCount, dirty); err != nil {
		return fmt.Errorf("failed to initialize partial counters: %w", err)
	}

	return p.publish(ctx, p.cfg.PageCacheTopic, Message{
		DocID:   msg.DocID,
		Slug:    msg.Slug,
		Pages:   dirty,
		Partial: true,
		OCRCode: msg.OCRCode,
	})
}
