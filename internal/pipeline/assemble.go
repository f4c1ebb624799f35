package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/openvault/docpipeline/internal/counter"
	"github.com/openvault/docpipeline/internal/graft"
	"github.com/openvault/docpipeline/internal/ocr"
	"github.com/openvault/docpipeline/internal/pagespec"
	"github.com/openvault/docpipeline/internal/storage"
)

// pageTextJSON is one entry of the consolidated text file.
type pageTextJSON struct {
	Page     int    `json:"page"`
	Contents string `json:"contents"`
	OCR      string `json:"ocr,omitempty"`
}

type documentTextJSON struct {
	Pages   []pageTextJSON `json:"pages"`
	Updated int64          `json:"updated"`
}

// AssembleText is the final stage. It grafts recognized text onto the
// OCR'd pages, writes the consolidated text files, reports success,
// and tears down the run's counters.
func (p *Pipeline) AssembleText(ctx context.Context, logCtx *slog.Logger, msg Message) error {
	docKey := docIDKey(msg.DocID)

	progress, err := p.counters.Progress(ctx, docKey)
	if err != nil {
		return fmt.Errorf("failed to read progress: %w", err)
	}
	if progress.Pages == nil {
		return fmt.Errorf("completion counters missing for document %d", msg.DocID)
	}
	pageCount := *progress.Pages

	stored, err := p.counters.AllPageText(ctx, docKey)
	if err != nil {
		return fmt.Errorf("failed to read stored page text: %w", err)
	}

	spec, err := p.loadPageSpec(ctx, msg)
	if err != nil {
		return err
	}

	if err := p.graftRecognizedText(ctx, logCtx, msg, stored, spec); err != nil {
		return err
	}

	doc := documentTextJSON{Updated: time.Now().Unix()}
	texts := make([]string, 0, pageCount)
	for page := 0; page < pageCount; page++ {
		entry, ok := stored[page]
		if !ok {
			// Pages untouched by a partial run keep their text from the
			// previous run's per-page files.
			text, err := p.readPreviousPageText(ctx, msg, page)
			if err != nil {
				return err
			}
			entry.Text = text
		} else if entry.OCR == "" {
			// OCR'd pages uploaded their text file in the OCR stage;
			// embedded-text pages get theirs here.
			path := p.paths.PageText(docKey, msg.Slug, page)
			if err := p.store.Upload(ctx, path, []byte(entry.Text)); err != nil {
				return fmt.Errorf("failed to upload page %d text: %w", page, err)
			}
		}
		texts = append(texts, entry.Text)
		doc.Pages = append(doc.Pages, pageTextJSON{Page: page, Contents: entry.Text, OCR: entry.OCR})
	}

	if err := p.store.Upload(ctx, p.paths.Text(docKey, msg.Slug), []byte(strings.Join(texts, "\n\n"))); err != nil {
		return fmt.Errorf("failed to upload document text: %w", err)
	}
	encoded, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document text: %w", err)
	}
	if err := p.store.Upload(ctx, p.paths.JSONText(docKey, msg.Slug), encoded); err != nil {
		return fmt.Errorf("failed to upload json text: %w", err)
	}

	fields := map[string]any{"status": "success"}
	if hash, err := p.counters.PopFileHash(ctx, docKey); err == nil && hash != "" {
		fields["file_hash"] = hash
	}
	if err := p.api.UpdateDocument(ctx, msg.DocID, fields); err != nil {
		return err
	}

	if err := p.counters.CleanUp(ctx, docKey); err != nil {
		return fmt.Errorf("failed to clean up counters: %w", err)
	}
	logCtx.Info("Document processing complete.", "pageCount", pageCount)
	return nil
}

func (p *Pipeline) loadPageSpec(ctx context.Context, msg Message) (pagespec.Spec, error) {
	raw, err := p.store.ReadAll(ctx, p.paths.PageSize(docIDKey(msg.DocID), msg.Slug))
	if err != nil {
		return nil, fmt.Errorf("failed to download page spec: %w", err)
	}
	spec, err := pagespec.Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page spec: %w", err)
	}
	return spec, nil
}

// graftRecognizedText stamps each OCR'd page's words onto the PDF as
// an invisible text layer and rewrites the stored document. Pages that
// show text of their own cannot take an invisible layer without the
// shown text shadowing it, so those batches are flattened to rasters
// with visible stamps instead. Text grafted by an earlier run is
// excluded from that check, so reprocessing a grafted page grafts
// again rather than flattening it.
func (p *Pipeline) graftRecognizedText(ctx context.Context, logCtx *slog.Logger, msg Message,
	stored map[int]counter.PageText, spec pagespec.Spec) error {
	docKey := docIDKey(msg.DocID)

	pages := map[int]graft.PageWords{}
	for page, entry := range stored {
		if entry.OCR == "" {
			continue
		}
		raw, err := p.store.ReadAll(ctx, p.paths.PagePosition(docKey, msg.Slug, page))
		if err != nil {
			if errors.Is(err, storage.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to download page %d positions: %w", page, err)
		}
		var words []ocr.Word
		if err := json.Unmarshal(raw, &words); err != nil {
			return fmt.Errorf("failed to parse page %d positions: %w", page, err)
		}
		if len(words) == 0 {
			continue
		}
		dims := spec.Page(page)
		pages[page] = graft.PageWords{Words: words, Width: dims.Width, Height: dims.Height}
	}
	if len(pages) == 0 {
		return nil
	}

	docPath := p.paths.Document(docKey, msg.Slug)
	data, err := p.store.ReadAll(ctx, docPath)
	if err != nil {
		return fmt.Errorf("failed to download document for grafting: %w", err)
	}

	targets := make([]int, 0, len(pages))
	for page := range pages {
		targets = append(targets, page)
	}
	sort.Ints(targets)
	shows, err := p.engine.ShowsText(data, targets)
	if err != nil {
		return err
	}

	var grafted []byte
	if shows {
		grafted, err = p.engine.FlattenText(data, pages)
	} else {
		grafted, err = p.engine.GraftText(data, pages)
	}
	if err != nil {
		return err
	}
	if err := p.store.Upload(ctx, docPath, grafted); err != nil {
		return fmt.Errorf("failed to upload grafted document: %w", err)
	}
	if shows {
		logCtx.Info("Recognized text flattened onto rasterized pages.", "pages", len(pages))
	} else {
		logCtx.Info("Invisible text layer grafted.", "pages", len(pages))
	}
	return nil
}

func (p *Pipeline) readPreviousPageText(ctx context.Context, msg Message, page int) (string, error) {
	raw, err := p.store.ReadAll(ctx, p.paths.PageText(docIDKey(msg.DocID), msg.Slug, page))
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read page %d text: %w", page, err)
	}
	return string(raw), nil
}
