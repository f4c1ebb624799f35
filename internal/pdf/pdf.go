// Package pdf wraps the two PDF engines the pipeline leans on: pdfcpu
// for structural work (page metadata, rotation, page surgery, invisible
// text overlays) and MuPDF via go-fitz for rasterizing and text
// extraction.
package pdf

import (
	"fmt"
	"strconv"
)

// PageInfo describes one page as the index pass sees it.
type PageInfo struct {
	// Width and Height are the media box dimensions in points, before
	// any rotation is applied.
	Width  float64
	Height float64
	// Rotation is the page's display rotation in clockwise quarter
	// turns, normalized to 0..3.
	Rotation int
}

// Info is the structural summary of a document.
type Info struct {
	PageCount int
	Pages     []PageInfo
}

// Reader is what the structural pass needs from its input. The
// record/replay cache reader satisfies it.
type Reader interface {
	ReadAt(p []byte, off int64) (int, error)
	Read(p []byte) (int, error)
	Seek(offset int64, whence int) (int64, error)
	Size() int64
}

// NormalizeRotation converts a /Rotate value in degrees to clockwise
// quarter turns in 0..3.
func NormalizeRotation(degrees int) int {
	return ((degrees/90)%4 + 4) % 4
}

// PageSelection renders 0-based page numbers as the 1-based selection
// strings pdfcpu expects.
func PageSelection(pages []int) []string {
	selection := make([]string, len(pages))
	for i, page := range pages {
		selection[i] = strconv.Itoa(page + 1)
	}
	return selection
}

// RangeSelection renders an inclusive 0-based page range as a 1-based
// selection string.
func RangeSelection(start, end int) string {
	if start == end {
		return strconv.Itoa(start + 1)
	}
	return fmt.Sprintf("%d-%d", start+1, end+1)
}
