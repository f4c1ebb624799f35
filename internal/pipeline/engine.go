package pipeline

import (
	"fmt"
	"image"
	"io"
	"sort"

	"github.com/openvault/docpipeline/internal/graft"
	"github.com/openvault/docpipeline/internal/modify"
	"github.com/openvault/docpipeline/internal/ocr"
	"github.com/openvault/docpipeline/internal/pagespec"
	"github.com/openvault/docpipeline/internal/pdf"
)

// Document is an open document ready for per-page work.
type Document interface {
	// Text returns the embedded text layer of a 0-based page.
	Text(page int) (string, error)
	// Words returns the embedded text of a 0-based page as positioned
	// entries with normalized top-left-origin boxes. Pages without a
	// text layer return nothing.
	Words(page int) ([]ocr.Word, error)
	// Render rasterizes a 0-based page at the given pixel width.
	Render(page, width int) (image.Image, error)
	Close() error
}

// Engine is the document backend the stages drive. The production
// engine combines MuPDF rendering with pdfcpu page surgery; tests
// substitute a scripted fake.
type Engine interface {
	// ReadInfo runs the structural pass through a (possibly recording)
	// reader.
	ReadInfo(r pdf.Reader) (*pdf.Info, error)
	// Open prepares a document for rendering and text extraction. The
	// reader is typically a replaying page cache reader, so byte
	// ranges recorded during indexing never touch the store again.
	Open(r pdf.Reader) (Document, error)
	// RedactPage replaces a page with a rasterized copy that has the
	// given regions blacked out, destroying the text underneath.
	RedactPage(data []byte, page int, dims pagespec.Dimensions, regions []pdf.Region) ([]byte, error)
	// ShowsText reports whether any of the pages renders visible
	// text. Text stamped as an overlay, including earlier invisible
	// grafts, does not count.
	ShowsText(data []byte, pages []int) (bool, error)
	// GraftText stamps invisible recognized text onto pages.
	GraftText(data []byte, pages map[int]graft.PageWords) ([]byte, error)
	// FlattenText replaces pages with rasterized copies stamped with
	// visible recognized text, for pages whose shown text would
	// otherwise shadow the recognized layer.
	FlattenText(data []byte, pages map[int]graft.PageWords) ([]byte, error)
	// Assemble realizes a page modification plan.
	Assemble(plan *modify.Plan, fetch modify.Fetch) ([]byte, error)
}

// redactRenderWidth is the rasterization width for redacted page
// replacements. Wider than the largest served image so downstream
// renders of the replacement stay crisp.
const redactRenderWidth = 1500

// PDFEngine is the production Engine.
type PDFEngine struct {
	measurer *graft.Measurer
}

func NewPDFEngine() (*PDFEngine, error) {
	measurer, err := graft.NewMeasurer()
	if err != nil {
		return nil, err
	}
	return &PDFEngine{measurer: measurer}, nil
}

func (e *PDFEngine) ReadInfo(r pdf.Reader) (*pdf.Info, error) {
	return pdf.ReadInfo(r)
}

func (e *PDFEngine) Open(r pdf.Reader) (Document, error) {
	// MuPDF parses from a contiguous buffer, so the bytes are
	// materialized here. Pulling them through the caller's reader lets
	// a replaying cache serve the recorded ranges and fetch only the
	// remainder, in blocks.
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	renderer, err := pdf.NewRenderer(data)
	if err != nil {
		return nil, err
	}
	return renderedDocument{renderer: renderer, measurer: e.measurer}, nil
}

type renderedDocument struct {
	renderer *pdf.Renderer
	measurer *graft.Measurer
}

func (d renderedDocument) Text(page int) (string, error) {
	return d.renderer.Text(page)
}

// Words reports positioned text at line granularity: MuPDF's text
// layout gives each line's origin and height, and the measurer supplies
// the rendered width.
func (d renderedDocument) Words(page int) ([]ocr.Word, error) {
	lines, err := d.renderer.Lines(page)
	if err != nil || len(lines) == 0 {
		return nil, err
	}
	width, height, err := d.renderer.PageSize(page)
	if err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 {
		return nil, nil
	}
	words := make([]ocr.Word, 0, len(lines))
	for _, line := range lines {
		words = append(words, ocr.Word{
			Text:       line.Text,
			X1:         clamp01(line.X / width),
			Y1:         clamp01(line.Y / height),
			X2:         clamp01((line.X + d.measurer.WidthAt(line.Text, line.Height)) / width),
			Y2:         clamp01((line.Y + line.Height) / height),
			Confidence: 100,
		})
	}
	return words, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func (d renderedDocument) Render(page, width int) (image.Image, error) {
	return d.renderer.Render(page, width)
}

func (d renderedDocument) Close() error {
	return d.renderer.Close()
}

func (e *PDFEngine) RedactPage(data []byte, page int, dims pagespec.Dimensions, regions []pdf.Region) ([]byte, error) {
	renderer, err := pdf.NewRenderer(data)
	if err != nil {
		return nil, err
	}
	defer renderer.Close()

	img, err := renderer.Render(page, redactRenderWidth)
	if err != nil {
		return nil, err
	}
	blacked := pdf.BlackOut(img, regions)
	encoded, err := pdf.EncodePNG(blacked)
	if err != nil {
		return nil, err
	}
	replacement, err := pdf.ImagePage(encoded, dims.Width, dims.Height)
	if err != nil {
		return nil, err
	}
	redacted, err := pdf.ReplacePage(data, page, replacement)
	if err != nil {
		return nil, fmt.Errorf("failed to replace redacted page %d: %w", page, err)
	}
	return redacted, nil
}

// ShowsText checks the pages against a copy of the document with every
// stamped overlay removed, so earlier recognition grafts never count
// as shown text.
func (e *PDFEngine) ShowsText(data []byte, pages []int) (bool, error) {
	stripped := data
	overlaid, err := pdf.HasOverlayText(data)
	if err != nil {
		return false, err
	}
	if overlaid {
		stripped, err = pdf.StripOverlayText(data)
		if err != nil {
			return false, err
		}
	}

	renderer, err := pdf.NewRenderer(stripped)
	if err != nil {
		return false, err
	}
	defer renderer.Close()

	for _, page := range pages {
		has, err := renderer.HasText(page)
		if err != nil {
			return false, fmt.Errorf("failed to check page %d for text: %w", page, err)
		}
		if has {
			return true, nil
		}
	}
	return false, nil
}

func (e *PDFEngine) GraftText(data []byte, pages map[int]graft.PageWords) ([]byte, error) {
	return graft.Apply(e.measurer, data, pages)
}

// FlattenText swaps each page for its raster and stamps the recognized
// words visibly on top, so the replaced text layer is the one readers
// see.
func (e *PDFEngine) FlattenText(data []byte, pages map[int]graft.PageWords) ([]byte, error) {
	renderer, err := pdf.NewRenderer(data)
	if err != nil {
		return nil, err
	}
	defer renderer.Close()

	for _, page := range sortedPages(pages) {
		pw := pages[page]
		img, err := renderer.Render(page, redactRenderWidth)
		if err != nil {
			return nil, fmt.Errorf("failed to render page %d: %w", page, err)
		}
		encoded, err := pdf.EncodePNG(img)
		if err != nil {
			return nil, err
		}
		replacement, err := pdf.ImagePage(encoded, pw.Width, pw.Height)
		if err != nil {
			return nil, err
		}
		stamps := graft.Stamps(e.measurer, pw.Words, pw.Width, pw.Height)
		for i := range stamps {
			stamps[i].Invisible = false
		}
		if len(stamps) > 0 {
			replacement, err = pdf.OverlayText(replacement, map[int][]pdf.TextStamp{0: stamps})
			if err != nil {
				return nil, fmt.Errorf("failed to stamp page %d: %w", page, err)
			}
		}
		data, err = pdf.ReplacePage(data, page, replacement)
		if err != nil {
			return nil, fmt.Errorf("failed to replace page %d: %w", page, err)
		}
	}
	return data, nil
}

func sortedPages(pages map[int]graft.PageWords) []int {
	targets := make([]int, 0, len(pages))
	for page := range pages {
		targets = append(targets, page)
	}
	sort.Ints(targets)
	return targets
}

func (e *PDFEngine) Assemble(plan *modify.Plan, fetch modify.Fetch) ([]byte, error) {
	return modify.Assemble(plan, fetch)
}
