package modify

import "github.com/openvault/docpipeline/internal/annotations"

// SourceAnnotations carries the annotations of one document whose pages
// the plan draws from.
type SourceAnnotations struct {
	DocID    int64
	Notes    []annotations.Note
	Sections []annotations.Section
}

// AnnotationChanges is the annotation fix-up implied by a plan.
type AnnotationChanges struct {
	// UpdatedNotes are the target document's own notes with their new
	// page and rotated coordinates. Detached notes become page-level
	// notes on page zero.
	UpdatedNotes []annotations.Note
	// CreatedNotes are fresh copies without IDs: one per extra
	// occurrence of an own page, and one per placement of a page
	// imported from another document.
	CreatedNotes []annotations.Note
	// MovedSections are the target document's own sections with their
	// new page.
	MovedSections []annotations.Section
	// CreatedSections are fresh copies without IDs, mirroring
	// CreatedNotes.
	CreatedSections []annotations.Section
	// DeletedSectionIDs lists own sections whose page was removed.
	DeletedSectionIDs []string
}

// ApplyToAnnotations computes how annotations follow pages through the
// plan. For the target document's own pages, the first output
// occurrence takes the page's annotations with it and every further
// occurrence gets a copy. Pages imported from other documents bring
// copies of their annotations for every placement. Own notes on removed
// pages detach; own sections on removed pages are deleted. Annotations
// of other documents are never modified in place.
func ApplyToAnnotations(plan *Plan, docID int64, sources []SourceAnnotations) AnnotationChanges {
	pageMap := plan.PageMap()
	changes := AnnotationChanges{}

	for _, src := range sources {
		own := src.DocID == docID

		for _, note := range src.Notes {
			placements := pageMap[Source{DocID: src.DocID, Page: note.Page}]
			if len(placements) == 0 {
				if own {
					note.Detach()
					changes.UpdatedNotes = append(changes.UpdatedNotes, note)
				}
				continue
			}
			if own {
				// Copies are cut from the note before the move
				// rotates it.
				for _, p := range placements[1:] {
					c := note.Clone()
					c.Page = p.NewPage
					c.Rotate(p.Rotation)
					changes.CreatedNotes = append(changes.CreatedNotes, c)
				}
				first := placements[0]
				note.Page = first.NewPage
				note.Rotate(first.Rotation)
				changes.UpdatedNotes = append(changes.UpdatedNotes, note)
				continue
			}
			for _, p := range placements {
				c := note.Clone()
				c.Page = p.NewPage
				c.Rotate(p.Rotation)
				changes.CreatedNotes = append(changes.CreatedNotes, c)
			}
		}

		for _, section := range src.Sections {
			placements := pageMap[Source{DocID: src.DocID, Page: section.Page}]
			if len(placements) == 0 {
				if own {
					changes.DeletedSectionIDs = append(changes.DeletedSectionIDs, section.ID)
				}
				continue
			}
			if own {
				for _, p := range placements[1:] {
					changes.CreatedSections = append(changes.CreatedSections,
						annotations.Section{Page: p.NewPage})
				}
				section.Page = placements[0].NewPage
				changes.MovedSections = append(changes.MovedSections, section)
				continue
			}
			for _, p := range placements {
				changes.CreatedSections = append(changes.CreatedSections,
					annotations.Section{Page: p.NewPage})
			}
		}
	}

	return changes
}
