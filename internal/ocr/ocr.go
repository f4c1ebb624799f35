// Package ocr turns rendered page images into text with per-word
// positions, so the text can be grafted back onto the PDF as an
// invisible, selectable layer.
package ocr

import "context"

// Word is one recognized word with its bounding box normalized to
// [0, 1] on both axes, origin at the top left of the page image.
type Word struct {
	Text       string  `json:"text"`
	X1         float64 `json:"x1"`
	Y1         float64 `json:"y1"`
	X2         float64 `json:"x2"`
	Y2         float64 `json:"y2"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Result is the recognition output for one page image.
type Result struct {
	Text  string
	Words []Word
}

// Engine recognizes text in a rendered page image.
type Engine interface {
	Recognize(ctx context.Context, imageData []byte, language string) (Result, error)
}
