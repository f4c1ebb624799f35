package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/openvault/docpipeline/internal/counter"
	"github.com/openvault/docpipeline/internal/pagecache"
	"github.com/openvault/docpipeline/internal/pagespec"
	"github.com/openvault/docpipeline/internal/pdf"
)

// ExtractImages renders a batch of pages at every configured width and
// extracts their embedded text. Pages without a usable text layer are
// queued for OCR; pages with text complete immediately.
func (p *Pipeline) ExtractImages(ctx context.Context, logCtx *slog.Logger, msg Message) error {
	docKey := docIDKey(msg.DocID)

	reader, err := p.openReplayed(ctx, msg)
	if err != nil {
		return err
	}
	doc, err := p.engine.Open(reader)
	if err != nil {
		return fmt.Errorf("failed to open document: %w", err)
	}
	defer doc.Close()

	var ocrPages []int
	for _, page := range msg.Pages {
		// Redelivered batches skip pages an earlier delivery finished.
		extracted, err := p.counters.PageExtracted(ctx, docKey, page)
		if err != nil {
			return fmt.Errorf("failed to check page %d state: %w", page, err)
		}
		if extracted {
			logCtx.Info("Skipping already extracted page.", "page", page)
			continue
		}

		if err := p.extractPage(ctx, doc, msg, page); err != nil {
			if errors.Is(err, ErrResourceExhausted) {
				// One pathological page must not block the whole
				// document. It completes with no artifacts and no text.
				logCtx.Warn("Skipping page that exhausted renderer resources.", "page", page, "error", err)
				if err := p.completeSkippedPage(ctx, logCtx, msg, page); err != nil {
					return err
				}
				continue
			}
			return err
		}

		needsOCR := msg.ForceOCR
		if !needsOCR {
			text, err := doc.Text(page)
			if err != nil {
				return fmt.Errorf("failed to extract text from page %d: %w", page, err)
			}
			if strings.TrimSpace(text) == "" {
				needsOCR = true
			} else {
				if err := p.uploadPagePositions(ctx, doc, msg, page); err != nil {
					return err
				}
				if err := p.counters.WritePageText(ctx, docKey, page, counter.PageText{Text: text}); err != nil {
					return fmt.Errorf("failed to store page %d text: %w", page, err)
				}
				textsDone, err := p.counters.RegisterPageOCRd(ctx, docKey, page)
				if err != nil {
					return fmt.Errorf("failed to register page %d text: %w", page, err)
				}
				if textsDone {
					if err := p.publish(ctx, p.cfg.AssembleTextTopic, Message{DocID: msg.DocID, Slug: msg.Slug}); err != nil {
						return err
					}
				}
			}
		}
		if needsOCR {
			ocrPages = append(ocrPages, page)
		}

		imagesDone, err := p.counters.RegisterPageExtracted(ctx, docKey, page)
		if err != nil {
			return fmt.Errorf("failed to register page %d extraction: %w", page, err)
		}
		if imagesDone {
			if err := p.finishImageExtraction(ctx, logCtx, msg); err != nil {
				return err
			}
		}
	}

	for start := 0; start < len(ocrPages); start += p.cfg.OCRBatch {
		end := start + p.cfg.OCRBatch
		if end > len(ocrPages) {
			end = len(ocrPages)
		}
		batch := Message{
			DocID:   msg.DocID,
			Slug:    msg.Slug,
			Pages:   ocrPages[start:end],
			OCRCode: msg.OCRCode,
		}
		if err := p.publish(ctx, p.cfg.OCRTopic, batch); err != nil {
			return err
		}
	}

	logCtx.Info("Extraction batch complete.", "pages", len(msg.Pages), "queuedForOcr", len(ocrPages))
	return nil
}

// openReplayed opens the document through the byte-access index
// recorded during the counting pass, so cached ranges never touch the
// store again. A missing index means the counting pass never ran for
// this document and the message is bogus.
func (p *Pipeline) openReplayed(ctx context.Context, msg Message) (*pagecache.Reader, error) {
	docKey := docIDKey(msg.DocID)
	cache, err := pagecache.Load(ctx, p.store, p.paths.Index(docKey, msg.Slug))
	if err != nil {
		return nil, fmt.Errorf("failed to load byte-access index: %w", err)
	}
	source, err := pagecache.NewStoreSource(ctx, p.store, p.paths.Document(docKey, msg.Slug))
	if err != nil {
		return nil, fmt.Errorf("failed to open document: %w", err)
	}
	return pagecache.NewReader(pagecache.NewBlockSource(source, p.cfg.BlockSize), cache, pagecache.Replay), nil
}

// uploadPagePositions writes the positional sidecar for a page whose
// text came from the embedded layer, mirroring what the OCR stage
// writes for recognized pages.
func (p *Pipeline) uploadPagePositions(ctx context.Context, doc Document, msg Message, page int) error {
	words, err := doc.Words(page)
	if err != nil {
		return fmt.Errorf("failed to extract page %d positions: %w", page, err)
	}
	if len(words) == 0 {
		return nil
	}
	positions, err := json.Marshal(words)
	if err != nil {
		return fmt.Errorf("failed to marshal page %d positions: %w", page, err)
	}
	path := p.paths.PagePosition(docIDKey(msg.DocID), msg.Slug, page)
	if err := p.store.Upload(ctx, path, positions); err != nil {
		return fmt.Errorf("failed to upload page %d positions: %w", page, err)
	}
	return nil
}

// finishImageExtraction runs once when the last page image lands. The
// page spec is recomputed from the dimensions the run accumulated and
// republished, so a partial run over replaced pages leaves the page spec
// matching what was actually extracted.
func (p *Pipeline) finishImageExtraction(ctx context.Context, logCtx *slog.Logger, msg Message) error {
	docKey := docIDKey(msg.DocID)
	groups, err := p.counters.PageDimensions(ctx, docKey)
	if err != nil {
		return fmt.Errorf("failed to read page dimensions: %w", err)
	}
	crunched := pagespec.CrunchGroups(groups)
	if crunched == "" {
		logCtx.Info("All page images extracted.")
		return nil
	}
	if err := p.store.Upload(ctx, p.paths.PageSize(docKey, msg.Slug), []byte(crunched)); err != nil {
		return fmt.Errorf("failed to upload page spec: %w", err)
	}
	if err := p.api.UpdateDocument(ctx, msg.DocID, map[string]any{"page_spec": crunched}); err != nil {
		return err
	}
	logCtx.Info("All page images extracted.", "pageSpec", crunched)
	return nil
}

// completeSkippedPage registers a skipped page as done on both
// counters so the run can finish without it.
func (p *Pipeline) completeSkippedPage(ctx context.Context, logCtx *slog.Logger, msg Message, page int) error {
	docKey := docIDKey(msg.DocID)
	if err := p.counters.WritePageText(ctx, docKey, page, counter.PageText{}); err != nil {
		return fmt.Errorf("failed to store skipped page %d text: %w", page, err)
	}
	textsDone, err := p.counters.RegisterPageOCRd(ctx, docKey, page)
	if err != nil {
		return fmt.Errorf("failed to register skipped page %d text: %w", page, err)
	}
	if textsDone {
		if err := p.publish(ctx, p.cfg.AssembleTextTopic, Message{DocID: msg.DocID, Slug: msg.Slug}); err != nil {
			return err
		}
	}
	imagesDone, err := p.counters.RegisterPageExtracted(ctx, docKey, page)
	if err != nil {
		return fmt.Errorf("failed to register skipped page %d extraction: %w", page, err)
	}
	if imagesDone {
		return p.finishImageExtraction(ctx, logCtx, msg)
	}
	return nil
}

// extractPage renders one page natively at the largest width, derives
// the smaller sizes by downsampling, and uploads all of them
// concurrently.
func (p *Pipeline) extractPage(ctx context.Context, doc Document, msg Message, page int) error {
	largest := p.cfg.ImageWidths[0]
	img, err := doc.Render(page, largest.Width)
	if err != nil {
		return fmt.Errorf("failed to render page %d: %w", page, err)
	}

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(10)
	for _, size := range p.cfg.ImageWidths {
		size := size
		var scaled image.Image = img
		if size.Width != largest.Width {
			scaled = pdf.Downsample(img, size.Width)
		}
		eg.Go(func() error {
			encoded, err := pdf.EncodeGIF(scaled)
			if err != nil {
				return fmt.Errorf("page %d %s: %w", page, size.Name, err)
			}
			path := p.paths.PageImage(docIDKey(msg.DocID), msg.Slug, page, size.Name)
			if err := p.store.Upload(gctx, path, encoded); err != nil {
				return fmt.Errorf("page %d %s: %w", page, size.Name, err)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return fmt.Errorf("failed to upload page images: %w", err)
	}
	return nil
}
