package pdf

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// Optimize rewrites a document with pdfcpu's relaxed validation,
// normalizing structure before any other processing.
func Optimize(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := api.Optimize(bytes.NewReader(data), &buf, relaxedConfiguration()); err != nil {
		return nil, fmt.Errorf("failed to optimize PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// PageCount reports the number of pages without a full structural pass.
func PageCount(data []byte) (int, error) {
	count, err := api.PageCount(bytes.NewReader(data), relaxedConfiguration())
	if err != nil {
		return 0, fmt.Errorf("failed to count pages: %w", err)
	}
	return count, nil
}

// Rotate applies an additional clockwise rotation, in quarter turns, to
// the selected 0-based pages.
func Rotate(data []byte, quarterTurns int, pages []int) ([]byte, error) {
	degrees := ((quarterTurns % 4) + 4) % 4 * 90
	if degrees == 0 {
		return data, nil
	}
	var buf bytes.Buffer
	if err := api.Rotate(bytes.NewReader(data), &buf, degrees, PageSelection(pages), relaxedConfiguration()); err != nil {
		return nil, fmt.Errorf("failed to rotate pages: %w", err)
	}
	return buf.Bytes(), nil
}

// Collect builds a new document from a 1-based page selection, honoring
// order and duplicates. This is what realizes a page map.
func Collect(data []byte, selection []string) ([]byte, error) {
	var buf bytes.Buffer
	if err := api.Collect(bytes.NewReader(data), &buf, selection, relaxedConfiguration()); err != nil {
		return nil, fmt.Errorf("failed to collect pages: %w", err)
	}
	return buf.Bytes(), nil
}

// Trim keeps only the selected 1-based pages, in document order.
func Trim(data []byte, selection []string) ([]byte, error) {
	var buf bytes.Buffer
	if err := api.Trim(bytes.NewReader(data), &buf, selection, relaxedConfiguration()); err != nil {
		return nil, fmt.Errorf("failed to trim pages: %w", err)
	}
	return buf.Bytes(), nil
}

// Merge concatenates documents in order.
func Merge(parts [][]byte) ([]byte, error) {
	readers := make([]io.ReadSeeker, len(parts))
	for i, part := range parts {
		readers[i] = bytes.NewReader(part)
	}
	var buf bytes.Buffer
	if err := api.MergeRaw(readers, &buf, false, relaxedConfiguration()); err != nil {
		return nil, fmt.Errorf("failed to merge documents: %w", err)
	}
	return buf.Bytes(), nil
}

// ReplacePage swaps the 0-based page for a single-page document.
func ReplacePage(data []byte, page int, replacement []byte) ([]byte, error) {
	count, err := PageCount(data)
	if err != nil {
		return nil, err
	}
	if page < 0 || page >= count {
		return nil, fmt.Errorf("page %d out of range 0..%d", page, count-1)
	}
	parts := make([][]byte, 0, 3)
	if page > 0 {
		prefix, err := Trim(data, []string{RangeSelection(0, page-1)})
		if err != nil {
			return nil, err
		}
		parts = append(parts, prefix)
	}
	parts = append(parts, replacement)
	if page < count-1 {
		suffix, err := Trim(data, []string{RangeSelection(page+1, count-1)})
		if err != nil {
			return nil, err
		}
		parts = append(parts, suffix)
	}
	if len(parts) == 1 {
		return replacement, nil
	}
	return Merge(parts)
}

// ImagePage builds a single-page document of the given size in points,
// filled edge to edge with the encoded image.
func ImagePage(imageData []byte, width, height float64) ([]byte, error) {
	desc := fmt.Sprintf("dim:%.2f %.2f, pos:full", width, height)
	imp, err := api.Import(desc, types.POINTS)
	if err != nil {
		return nil, fmt.Errorf("failed to parse image import description: %w", err)
	}
	var buf bytes.Buffer
	if err := api.ImportImages(nil, &buf, []io.Reader{bytes.NewReader(imageData)}, imp, relaxedConfiguration()); err != nil {
		return nil, fmt.Errorf("failed to build image page: %w", err)
	}
	return buf.Bytes(), nil
}

// TextStamp is one piece of text placed at an absolute position on a
// page. Coordinates are points from the page's bottom-left corner.
type TextStamp struct {
	Text      string
	X         float64
	Y         float64
	Points    int
	Invisible bool
}

// HasOverlayText reports whether any page carries stamped overlay
// text.
func HasOverlayText(data []byte) (bool, error) {
	has, err := api.HasWatermarks(bytes.NewReader(data), relaxedConfiguration())
	if err != nil {
		return false, fmt.Errorf("failed to check for text overlays: %w", err)
	}
	return has, nil
}

// StripOverlayText removes every stamped overlay from the document,
// leaving only the content the pages render natively.
func StripOverlayText(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := api.RemoveWatermarks(bytes.NewReader(data), &buf, nil, relaxedConfiguration()); err != nil {
		return nil, fmt.Errorf("failed to strip text overlays: %w", err)
	}
	return buf.Bytes(), nil
}

// OverlayText stamps text onto pages. The map is keyed by 0-based page
// number. Invisible stamps carry zero opacity so they are selectable
// and searchable without changing the page's appearance.
func OverlayText(data []byte, stamps map[int][]TextStamp) ([]byte, error) {
	marks := make(map[int][]*model.Watermark, len(stamps))
	for page, pageStamps := range stamps {
		for _, stamp := range pageStamps {
			opacity := 1.0
			if stamp.Invisible {
				opacity = 0
			}
			desc := fmt.Sprintf(
				"font:Helvetica, points:%d, scale:1 abs, pos:bl, off:%.2f %.2f, rot:0, op:%g",
				stamp.Points, stamp.X, stamp.Y, opacity,
			)
			wm, err := api.TextWatermark(stamp.Text, desc, true, false, types.POINTS)
			if err != nil {
				return nil, fmt.Errorf("failed to build text overlay: %w", err)
			}
			marks[page+1] = append(marks[page+1], wm)
		}
	}
	var buf bytes.Buffer
	if err := api.AddWatermarksSliceMap(bytes.NewReader(data), &buf, marks, relaxedConfiguration()); err != nil {
		return nil, fmt.Errorf("failed to apply text overlays: %w", err)
	}
	return buf.Bytes(), nil
}
