// Package counter tracks per-document page completion in a shared
// key-value store. Counters are advisory: a future run's Initialize resets
// all state, so stale keys from a crashed run never block forward
// progress.
package counter

import "context"

// PageText is one page's extracted text held in the store until the
// assemble stage writes the consolidated files.
type PageText struct {
	Text string `json:"text"`
	OCR  string `json:"ocr"`
}

// Progress is a snapshot of the remaining work for a document. Nil fields
// mean the corresponding key is absent (no run in flight).
type Progress struct {
	Images *int `json:"images"`
	Texts  *int `json:"texts"`
	Pages  *int `json:"pages"`
}

// Store is the shared completion tracker. All mutating operations are
// atomic with respect to concurrent workers; the register operations
// compose "check bit, set bit, decrement" so duplicate page-completion
// notifications under at-least-once delivery decrement exactly once.
type Store interface {
	// SetRunning marks a processing run as in flight.
	SetRunning(ctx context.Context, docID string) error
	// StillProcessing reports whether the run is still in flight. Every
	// stage guards on this to no-op on late or duplicate messages.
	StillProcessing(ctx context.Context, docID string) (bool, error)

	// Initialize resets counters and bitmaps for a full run over pageCount
	// pages.
	Initialize(ctx context.Context, docID string, pageCount int) error
	// InitializePartial resets counters for a partial run: only the dirty
	// pages need reprocessing, all other page bits start set.
	InitializePartial(ctx context.Context, docID string, pageCount int, dirty []int) error

	// PageExtracted reports whether the page's image extraction bit is set.
	PageExtracted(ctx context.Context, docID string, page int) (bool, error)
	// PageOCRd reports whether the page's text bit is set.
	PageOCRd(ctx context.Context, docID string, page int) (bool, error)

	// RegisterPageExtracted marks a page's image as extracted. Returns
	// true iff this call brought the images-remaining counter to exactly
	// zero. Duplicate calls for the same page are no-ops returning false.
	RegisterPageExtracted(ctx context.Context, docID string, page int) (bool, error)
	// RegisterPageOCRd is the text counterpart of RegisterPageExtracted.
	RegisterPageOCRd(ctx context.Context, docID string, page int) (bool, error)

	// AddPageDimension records that a page has the given "WxH" dimension.
	AddPageDimension(ctx context.Context, docID, dimension string, page int) error
	// PageDimensions returns the collected dimension groups.
	PageDimensions(ctx context.Context, docID string) (map[string][]int, error)

	// SetFileHash stores the document hash captured during indexing.
	SetFileHash(ctx context.Context, docID, hash string) error
	// PopFileHash returns and clears the stored hash.
	PopFileHash(ctx context.Context, docID string) (string, error)

	// WritePageText stores a page's text until assembly.
	WritePageText(ctx context.Context, docID string, page int, text PageText) error
	// AllPageText returns every stored page text keyed by page number.
	AllPageText(ctx context.Context, docID string) (map[int]PageText, error)

	// Progress reads the remaining-work counters.
	Progress(ctx context.Context, docID string) (Progress, error)

	// CleanUp deletes every key associated with the document, including
	// discovered per-dimension keys.
	CleanUp(ctx context.Context, docID string) error
}

// Key helpers, shared by implementations so the flat key layout stays in
// one place.

func imagesRemainingKey(docID string) string { return docID + ":image" }
func textsRemainingKey(docID string) string  { return docID + ":text" }
func pageCountKey(docID string) string       { return docID + ":pages" }
func imageBitsKey(docID string) string       { return docID + ":imageBits" }
func textBitsKey(docID string) string        { return docID + ":textBits" }
func runningKey(docID string) string         { return docID + ":running" }
func dimensionsKey(docID string) string      { return docID + ":dimensions" }
func pageTextKey(docID string) string        { return docID + ":pagetext" }
func fileHashKey(docID string) string        { return docID + ":filehash" }

func pageDimensionKey(docID, dimension string) string {
	return docID + ":dim" + dimension
}
