// Package docpath standardizes the object storage layout for all files
// associated with a document. Every path is a pure function of the document
// id and slug.
package docpath

import "fmt"

const (
	documentSuffix = "pdf"
	indexSuffix    = "index"
	pagesizeSuffix = "pagesize"
	imageSuffix    = "gif"
	textSuffix     = "txt"
	jsonTextSuffix = "txt.json"
)

// Paths resolves storage paths under a single bucket.
type Paths struct {
	Bucket string
}

// Dir is the directory holding all of a document's files.
func (p Paths) Dir(docID string) string {
	return fmt.Sprintf("%s/documents/%s/", p.Bucket, docID)
}

func (p Paths) file(docID, slug, ext string) string {
	return p.Dir(docID) + fmt.Sprintf("%s.%s", slug, ext)
}

// Document is the path to the PDF itself.
func (p Paths) Document(docID, slug string) string {
	return p.file(docID, slug, documentSuffix)
}

// Index is the path to the byte-access cache written during indexing.
func (p Paths) Index(docID, slug string) string {
	return p.file(docID, slug, indexSuffix)
}

// PageSize is the path to the crunched page spec.
func (p Paths) PageSize(docID, slug string) string {
	return p.file(docID, slug, pagesizeSuffix)
}

// Text is the path to the concatenated document text.
func (p Paths) Text(docID, slug string) string {
	return p.file(docID, slug, textSuffix)
}

// JSONText is the path to the per-page json text file.
func (p Paths) JSONText(docID, slug string) string {
	return p.file(docID, slug, jsonTextSuffix)
}

// PagesDir is the directory holding per-page artifacts.
func (p Paths) PagesDir(docID string) string {
	return p.Dir(docID) + "pages/"
}

// PageImage is the path to a rendered page image at a named size.
// Page numbers are 0-based internally but 1-based in file names.
func (p Paths) PageImage(docID, slug string, page int, size string) string {
	return p.PagesDir(docID) + fmt.Sprintf("%s-p%d-%s.%s", slug, page+1, size, imageSuffix)
}

// PageText is the path to a single page's text.
func (p Paths) PageText(docID, slug string, page int) string {
	return p.PagesDir(docID) + fmt.Sprintf("%s-p%d.%s", slug, page+1, textSuffix)
}

// PagePosition is the path to a single page's word position json.
func (p Paths) PagePosition(docID, slug string, page int) string {
	return p.PagesDir(docID) + fmt.Sprintf("%s-p%d.position.json", slug, page+1)
}
