// Package graft stamps recognized words back onto PDF pages as an
// invisible text layer, sized and positioned to sit over the printed
// words so selection and search line up with the page image.
package graft

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"

	"github.com/openvault/docpipeline/internal/ocr"
	"github.com/openvault/docpipeline/internal/pdf"
)

const (
	// defaultPointSize is the reference size words are measured at
	// before scaling to the printed word's width.
	defaultPointSize = 12
	// minPointSize keeps degenerate words (zero measured width or a
	// box thinner than a point) from being dropped entirely.
	minPointSize = 1
)

// Measurer reports rendered text widths for a fixed reference face.
// Widths scale linearly with point size, so one face suffices.
type Measurer struct {
	face font.Face
}

// NewMeasurer builds a measurer over the bundled regular face.
func NewMeasurer() (*Measurer, error) {
	parsed, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse measurement font: %w", err)
	}
	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    defaultPointSize,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build measurement face: %w", err)
	}
	return &Measurer{face: face}, nil
}

// widthAtDefault returns the width of text in points at the reference
// size.
func (m *Measurer) widthAtDefault(text string) float64 {
	return float64(font.MeasureString(m.face, text)) / 64
}

// WidthAt returns the rendered width of text in points at the given
// point size. Widths scale linearly off the reference measurement.
func (m *Measurer) WidthAt(text string, points float64) float64 {
	return m.widthAtDefault(text) * points / defaultPointSize
}

// FitPointSize picks the font size whose rendering of text spans
// targetWidth points, flooring the result and falling back to the
// minimum for words that would otherwise vanish.
func (m *Measurer) FitPointSize(text string, targetWidth float64) int {
	measured := m.widthAtDefault(text)
	if measured <= 0 {
		return minPointSize
	}
	points := int(math.Floor(targetWidth / measured * defaultPointSize))
	if points < minPointSize {
		return minPointSize
	}
	return points
}

// Stamps converts recognized words on a page of the given size in
// points into invisible text stamps. Word boxes are normalized with a
// top-left origin; stamps are anchored at the word's baseline-left in
// PDF bottom-left coordinates.
func Stamps(m *Measurer, words []ocr.Word, pageWidth, pageHeight float64) []pdf.TextStamp {
	stamps := make([]pdf.TextStamp, 0, len(words))
	for _, word := range words {
		text := strings.TrimSpace(word.Text)
		if text == "" {
			continue
		}
		targetWidth := (word.X2 - word.X1) * pageWidth
		stamps = append(stamps, pdf.TextStamp{
			Text:      text,
			X:         word.X1 * pageWidth,
			Y:         (1 - word.Y2) * pageHeight,
			Points:    m.FitPointSize(text, targetWidth),
			Invisible: true,
		})
	}
	return stamps
}

// Apply grafts recognized words onto the 0-based pages of a document.
// The map value carries the words and the page's dimensions in points.
func Apply(m *Measurer, data []byte, pages map[int]PageWords) ([]byte, error) {
	stamps := make(map[int][]pdf.TextStamp, len(pages))
	for page, pw := range pages {
		pageStamps := Stamps(m, pw.Words, pw.Width, pw.Height)
		if len(pageStamps) > 0 {
			stamps[page] = pageStamps
		}
	}
	if len(stamps) == 0 {
		return data, nil
	}
	grafted, err := pdf.OverlayText(data, stamps)
	if err != nil {
		return nil, fmt.Errorf("failed to graft text layer: %w", err)
	}
	return grafted, nil
}

// PageWords is the graft input for one page.
type PageWords struct {
	Words  []ocr.Word
	Width  float64
	Height float64
}
