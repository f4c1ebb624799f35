package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openvault/docpipeline/internal/modify"
)

// Modify realizes a page modification plan: reorder, duplicate, drop,
// rotate, and import pages, then fix up the annotations that pages
// carried and reprocess the rebuilt document. Page text and the
// invisible OCR layer travel inside the collected pages, so the
// reprocessing run never repeats OCR work.
func (p *Pipeline) Modify(ctx context.Context, logCtx *slog.Logger, msg Message) error {
	plan, err := modify.BuildPlan(msg.DocID, msg.Modifications)
	if err != nil {
		return err
	}

	slugs := map[int64]string{msg.DocID: msg.Slug}
	for _, mod := range msg.Modifications {
		if mod.DocID != 0 && mod.DocID != msg.DocID {
			if mod.Slug == "" {
				return fmt.Errorf("modification referencing document %d carries no slug", mod.DocID)
			}
			slugs[mod.DocID] = mod.Slug
		}
	}
	fetch := func(docID int64) ([]byte, error) {
		slug, ok := slugs[docID]
		if !ok {
			return nil, fmt.Errorf("unknown source document %d", docID)
		}
		return p.store.ReadAll(ctx, p.paths.Document(docIDKey(docID), slug))
	}

	assembled, err := p.engine.Assemble(plan, fetch)
	if err != nil {
		return fmt.Errorf("failed to assemble modified document: %w", err)
	}
	docKey := docIDKey(msg.DocID)
	if err := p.store.Upload(ctx, p.paths.Document(docKey, msg.Slug), assembled); err != nil {
		return fmt.Errorf("failed to upload modified document: %w", err)
	}
	logCtx.Info("Modified document assembled.", "pageCount", plan.PageCount())

	// Annotations of every source document take part: the target's own
	// follow their pages, imported pages bring copies of theirs.
	sources := make([]modify.SourceAnnotations, 0, len(slugs))
	for docID := range slugs {
		notes, err := p.annotations.Notes(ctx, docID)
		if err != nil {
			return err
		}
		sections, err := p.annotations.Sections(ctx, docID)
		if err != nil {
			return err
		}
		sources = append(sources, modify.SourceAnnotations{DocID: docID, Notes: notes, Sections: sections})
	}
	changes := modify.ApplyToAnnotations(plan, msg.DocID, sources)
	if err := p.annotations.SaveNotes(ctx, msg.DocID, changes.UpdatedNotes); err != nil {
		return err
	}
	if err := p.annotations.CreateNotes(ctx, msg.DocID, changes.CreatedNotes); err != nil {
		return err
	}
	if err := p.annotations.SaveSections(ctx, msg.DocID, changes.MovedSections); err != nil {
		return err
	}
	if err := p.annotations.CreateSections(ctx, msg.DocID, changes.CreatedSections); err != nil {
		return err
	}
	if err := p.annotations.DeleteSections(ctx, msg.DocID, changes.DeletedSectionIDs); err != nil {
		return err
	}

	// Every page asset is regenerated by the reprocessing run; stale
	// assets past the new page count must not linger.
	if err := p.store.DeletePrefix(ctx, p.paths.PagesDir(docKey)); err != nil {
		return fmt.Errorf("failed to clear stale page assets: %w", err)
	}

	return p.publish(ctx, p.cfg.PageCacheTopic, Message{
		DocID: msg.DocID,
		Slug:  msg.Slug,
	})
}
