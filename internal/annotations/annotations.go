// Package annotations models the notes and sections users attach to
// document pages, and keeps them consistent when pages move, rotate,
// or disappear.
package annotations

// Note is a user annotation. A positioned note carries a normalized
// rectangle on its page; a page-level note has no coordinates.
type Note struct {
	ID   string   `json:"id" firestore:"id"`
	Page int      `json:"page" firestore:"page"`
	X1   *float64 `json:"x1,omitempty" firestore:"x1,omitempty"`
	Y1   *float64 `json:"y1,omitempty" firestore:"y1,omitempty"`
	X2   *float64 `json:"x2,omitempty" firestore:"x2,omitempty"`
	Y2   *float64 `json:"y2,omitempty" firestore:"y2,omitempty"`
}

// Section marks the start of a named region of the document.
type Section struct {
	ID   string `json:"id" firestore:"id"`
	Page int    `json:"page" firestore:"page"`
}

// Positioned reports whether the note is anchored to a spot on the
// page rather than to the page as a whole.
func (n *Note) Positioned() bool {
	return n.X1 != nil && n.Y1 != nil && n.X2 != nil && n.Y2 != nil
}

// Clone returns a copy of the note with its own coordinate storage and
// no ID, ready to be created as a new annotation.
func (n *Note) Clone() Note {
	c := Note{Page: n.Page}
	if n.Positioned() {
		x1, y1, x2, y2 := *n.X1, *n.Y1, *n.X2, *n.Y2
		c.X1, c.Y1, c.X2, c.Y2 = &x1, &y1, &x2, &y2
	}
	return c
}

// Detach turns the note into a page-level note on the first page. Used
// when the note's page is removed from the document.
func (n *Note) Detach() {
	n.Page = 0
	n.X1, n.Y1, n.X2, n.Y2 = nil, nil, nil, nil
}

// Rotate transforms the note's rectangle for a page rotated by the
// given number of clockwise quarter turns. Coordinates are normalized,
// so the transform is pure axis shuffling around the unit square.
func (n *Note) Rotate(quarterTurns int) {
	if !n.Positioned() {
		return
	}
	turns := ((quarterTurns % 4) + 4) % 4
	x1, y1, x2, y2 := *n.X1, *n.Y1, *n.X2, *n.Y2
	switch turns {
	case 1:
		x1, x2, y1, y2 = 1-y2, 1-y1, x1, x2
	case 2:
		x1, x2, y1, y2 = 1-x2, 1-x1, 1-y2, 1-y1
	case 3:
		x1, x2, y1, y2 = y1, y2, 1-x2, 1-x1
	default:
		return
	}
	n.X1, n.Y1, n.X2, n.Y2 = &x1, &y1, &x2, &y2
}
