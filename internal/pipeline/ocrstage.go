package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/openvault/docpipeline/internal/counter"
)

// ocrEngineName tags stored page text that came from recognition
// rather than an embedded text layer.
const ocrEngineName = "tesseract"

// OCRPage recognizes one page per invocation and chains itself for the
// rest of its batch, so a long OCR run survives worker timeouts by
// making progress one message at a time.
func (p *Pipeline) OCRPage(ctx context.Context, logCtx *slog.Logger, msg Message) error {
	cont, err := p.ocrPage(ctx, logCtx, msg)
	if err != nil {
		return err
	}
	if cont != nil {
		return p.publish(ctx, cont.Topic, cont.Message)
	}
	return nil
}

// ocrPage does one page of work and returns the rest of the batch as a
// continuation.
func (p *Pipeline) ocrPage(ctx context.Context, logCtx *slog.Logger, msg Message) (*Continuation, error) {
	if len(msg.Pages) == 0 {
		logCtx.Info("Dropping empty OCR batch.")
		return nil, nil
	}
	docKey := docIDKey(msg.DocID)
	page := msg.Pages[0]

	// A redelivered batch skips pages an earlier delivery recognized
	// but still chains the remainder.
	done, err := p.counters.PageOCRd(ctx, docKey, page)
	if err != nil {
		return nil, fmt.Errorf("failed to check page %d state: %w", page, err)
	}
	if done {
		logCtx.Info("Skipping already recognized page.", "page", page)
		return remainingBatch(p.cfg.OCRTopic, msg), nil
	}

	size := p.cfg.ImageWidths[p.cfg.OCRImageIndex]
	imageData, err := p.store.ReadAll(ctx, p.paths.PageImage(docKey, msg.Slug, page, size.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to download page %d image: %w", page, err)
	}

	language := msg.OCRCode
	if language == "" {
		language = p.cfg.OCRLanguage
	}
	result, err := p.ocr.Recognize(ctx, imageData, language)
	if err != nil {
		return nil, fmt.Errorf("failed to recognize page %d: %w", page, err)
	}
	logCtx.Info("Page recognized.", "page", page, "words", len(result.Words))

	if err := p.store.Upload(ctx, p.paths.PageText(docKey, msg.Slug, page), []byte(result.Text)); err != nil {
		return nil, fmt.Errorf("failed to upload page %d text: %w", page, err)
	}
	positions, err := json.Marshal(result.Words)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal page %d positions: %w", page, err)
	}
	if err := p.store.Upload(ctx, p.paths.PagePosition(docKey, msg.Slug, page), positions); err != nil {
		return nil, fmt.Errorf("failed to upload page %d positions: %w", page, err)
	}

	if err := p.counters.WritePageText(ctx, docKey, page, counter.PageText{
		Text: result.Text,
		OCR:  ocrEngineName,
	}); err != nil {
		return nil, fmt.Errorf("failed to store page %d text: %w", page, err)
	}
	textsDone, err := p.counters.RegisterPageOCRd(ctx, docKey, page)
	if err != nil {
		return nil, fmt.Errorf("failed to register page %d text: %w", page, err)
	}
	if textsDone {
		if err := p.publish(ctx, p.cfg.AssembleTextTopic, Message{DocID: msg.DocID, Slug: msg.Slug}); err != nil {
			return nil, err
		}
	}

	return remainingBatch(p.cfg.OCRTopic, msg), nil
}

// remainingBatch returns the continuation covering everything past the
// batch's first page, or nil when the batch is spent.
func remainingBatch(topic string, msg Message) *Continuation {
	rest := msg.Pages[1:]
	if len(rest) == 0 {
		return nil
	}
	next := msg
	next.Pages = rest
	return &Continuation{Topic: topic, Message: next}
}
