package pdf

import (
	"fmt"
	"html"
	"image"
	"regexp"
	"strconv"
	"strings"

	fitz "github.com/gen2brain/go-fitz"
)

// Renderer rasterizes pages and extracts embedded text with MuPDF.
type Renderer struct {
	doc *fitz.Document
}

// NewRenderer opens a document held fully in memory.
func NewRenderer(data []byte) (*Renderer, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF for rendering: %w", err)
	}
	return &Renderer{doc: doc}, nil
}

func (r *Renderer) PageCount() int {
	return r.doc.NumPage()
}

// Text extracts the embedded text layer of a 0-based page. Scanned
// pages come back empty.
func (r *Renderer) Text(page int) (string, error) {
	text, err := r.doc.Text(page)
	if err != nil {
		return "", fmt.Errorf("failed to extract text from page %d: %w", page, err)
	}
	return text, nil
}

// HasText reports whether the page carries a non-whitespace text layer.
func (r *Renderer) HasText(page int) (bool, error) {
	text, err := r.Text(page)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(text) != "", nil
}

// TextLine is one line of embedded text with its top-left origin and
// height on the page, in points.
type TextLine struct {
	Text   string
	X, Y   float64
	Height float64
}

var (
	lineStyleRe = regexp.MustCompile(`(?s)<p style="top:([0-9.]+)pt;left:([0-9.]+)pt;line-height:([0-9.]+)pt">(.*?)</p>`)
	markupRe    = regexp.MustCompile(`<[^>]*>`)
)

// Lines returns the positioned text lines of a 0-based page, parsed
// from MuPDF's HTML rendering of the text layer. Paragraphs whose
// style MuPDF formats differently are skipped rather than failing the
// page.
func (r *Renderer) Lines(page int) ([]TextLine, error) {
	markup, err := r.doc.HTML(page, false)
	if err != nil {
		return nil, fmt.Errorf("failed to extract positioned text from page %d: %w", page, err)
	}
	var lines []TextLine
	for _, m := range lineStyleRe.FindAllStringSubmatch(markup, -1) {
		top, err1 := strconv.ParseFloat(m[1], 64)
		left, err2 := strconv.ParseFloat(m[2], 64)
		height, err3 := strconv.ParseFloat(m[3], 64)
		if err1 != nil || err2 != nil || err3 != nil {
			continue
		}
		text := strings.TrimSpace(html.UnescapeString(markupRe.ReplaceAllString(m[4], "")))
		if text == "" {
			continue
		}
		lines = append(lines, TextLine{Text: text, X: left, Y: top, Height: height})
	}
	return lines, nil
}

// PageSize reports a page's dimensions in points.
func (r *Renderer) PageSize(page int) (width, height float64, err error) {
	bound, err := r.doc.Bound(page)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to measure page %d: %w", page, err)
	}
	return float64(bound.Dx()), float64(bound.Dy()), nil
}

// Render rasterizes a 0-based page so its output is targetWidth pixels
// wide, scaling DPI off the page's unrotated bounds.
func (r *Renderer) Render(page, targetWidth int) (image.Image, error) {
	bound, err := r.doc.Bound(page)
	if err != nil {
		return nil, fmt.Errorf("failed to measure page %d: %w", page, err)
	}
	widthPts := float64(bound.Dx())
	if widthPts <= 0 {
		widthPts = 612
	}
	dpi := 72 * float64(targetWidth) / widthPts
	img, err := r.doc.ImageDPI(page, dpi)
	if err != nil {
		return nil, fmt.Errorf("failed to render page %d: %w", page, err)
	}
	return img, nil
}

func (r *Renderer) Close() error {
	return r.doc.Close()
}
