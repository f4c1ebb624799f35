package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openvault/docpipeline/internal/pagecache"
	"github.com/openvault/docpipeline/internal/pagespec"
)

// CacheAndIndex runs the structural pass over the document while
// recording every byte range the parser touches, persists that index
// for later stages, and fans out image extraction batches.
//
// A partial run (after a redaction) keeps the counters a prior stage
// initialized and reprocesses only the listed pages.
func (p *Pipeline) CacheAndIndex(ctx context.Context, logCtx *slog.Logger, msg Message) error {
	docKey := docIDKey(msg.DocID)

	data, err := p.store.ReadAll(ctx, p.paths.Document(docKey, msg.Slug))
	if err != nil {
		return fmt.Errorf("failed to download document: %w", err)
	}
	source := pagecache.NewBytesSource(data)

	cache := pagecache.NewCache()
	reader := pagecache.NewReader(source, cache, pagecache.Record)
	info, err := p.engine.ReadInfo(reader)
	if err != nil {
		return fmt.Errorf("failed to index document: %w", err)
	}
	logCtx.Info("Document indexed.", "pageCount", info.PageCount, "recordedReads", cache.Len())

	if err := cache.Save(ctx, p.store, p.paths.Index(docKey, msg.Slug)); err != nil {
		return err
	}

	dims := make([]pagespec.Dimensions, info.PageCount)
	for i, page := range info.Pages {
		d := pagespec.Dimensions{Width: page.Width, Height: page.Height}
		if d.Width <= 0 || d.Height <= 0 {
			d = pagespec.Dimensions{Width: pagespec.DefaultWidth, Height: pagespec.DefaultHeight}
		}
		// Rotated pages display with swapped axes.
		if page.Rotation%2 == 1 {
			d.Width, d.Height = d.Height, d.Width
		}
		dims[i] = d
	}
	crunched := pagespec.CrunchSpec(dims)
	if err := p.store.Upload(ctx, p.paths.PageSize(docKey, msg.Slug), []byte(crunched)); err != nil {
		return fmt.Errorf("failed to upload page spec: %w", err)
	}

	if !msg.Partial {
		if err := p.counters.Initialize(ctx, docKey, info.PageCount); err != nil {
			return fmt.Errorf("failed to initialize completion counters: %w", err)
		}
	}
	for i, d := range dims {
		if err := p.counters.AddPageDimension(ctx, docKey, d.String(), i); err != nil {
			return fmt.Errorf("failed to record page dimension: %w", err)
		}
	}
	if err := p.counters.SetFileHash(ctx, docKey, source.Hash()); err != nil {
		return fmt.Errorf("failed to record file hash: %w", err)
	}

	if !msg.Partial {
		if err := p.api.UpdateDocument(ctx, msg.DocID, map[string]any{
			"page_count": info.PageCount,
			"page_spec":  crunched,
			"file_hash":  source.Hash(),
		}); err != nil {
			return err
		}
	}

	pages := msg.Pages
	if !msg.Partial {
		pages = make([]int, info.PageCount)
		for i := range pages {
			pages[i] = i
		}
	}
	for start := 0; start < len(pages); start += p.cfg.ImageBatch {
		end := start + p.cfg.ImageBatch
		if end > len(pages) {
			end = len(pages)
		}
		batch := Message{
			DocID:    msg.DocID,
			Slug:     msg.Slug,
			Pages:    pages[start:end],
			ForceOCR: msg.ForceOCR,
			OCRCode:  msg.OCRCode,
		}
		if err := p.publish(ctx, p.cfg.ImageExtractTopic, batch); err != nil {
			return err
		}
	}
	return nil
}
