package annotations

import "context"

// Store persists a document's notes and sections.
type Store interface {
	Notes(ctx context.Context, docID int64) ([]Note, error)
	Sections(ctx context.Context, docID int64) ([]Section, error)
	// SaveNotes upserts the given notes in bulk.
	SaveNotes(ctx context.Context, docID int64, notes []Note) error
	// CreateNotes stores the given notes under fresh IDs.
	CreateNotes(ctx context.Context, docID int64, notes []Note) error
	// SaveSections upserts the given sections in bulk.
	SaveSections(ctx context.Context, docID int64, sections []Section) error
	// CreateSections stores the given sections under fresh IDs.
	CreateSections(ctx context.Context, docID int64, sections []Section) error
	// DeleteSections removes sections by ID in bulk.
	DeleteSections(ctx context.Context, docID int64, ids []string) error
}
