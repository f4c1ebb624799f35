package pipeline

import (
	"fmt"
	"image"
	"io"
	"strings"
	"sync"

	"github.com/openvault/docpipeline/internal/graft"
	"github.com/openvault/docpipeline/internal/modify"
	"github.com/openvault/docpipeline/internal/ocr"
	"github.com/openvault/docpipeline/internal/pagespec"
	"github.com/openvault/docpipeline/internal/pdf"
)

// fakeDocPrefix marks synthetic documents: one character per page.
// '.' is a page with an embedded text layer, 'o' a scanned page that
// needs OCR, 'r' a rasterized redacted page, 'g' a page carrying an
// invisible grafted text layer, 'f' a page flattened to a raster with
// visible stamped text, 'x' a page whose render exhausts resources.
const fakeDocPrefix = "fakepdf:"

func fakeDoc(pages string) []byte {
	return []byte(fakeDocPrefix + pages)
}

func fakeDocPages(data []byte) (string, error) {
	s := string(data)
	if !strings.HasPrefix(s, fakeDocPrefix) {
		return "", fmt.Errorf("not a fake document: %q", s)
	}
	return strings.TrimPrefix(s, fakeDocPrefix), nil
}

// fakeEngine implements Engine over fake documents.
type fakeEngine struct {
	mu sync.Mutex
	// readInfoErr is returned (and cleared) by the next ReadInfo call.
	readInfoErr error
	grafted     int
	flattened   int
}

func (e *fakeEngine) failNextReadInfo(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.readInfoErr = err
}

func (e *fakeEngine) ReadInfo(r pdf.Reader) (*pdf.Info, error) {
	e.mu.Lock()
	err := e.readInfoErr
	e.readInfoErr = nil
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	pages, err := fakeDocPages(data)
	if err != nil {
		return nil, err
	}
	info := &pdf.Info{PageCount: len(pages)}
	for range pages {
		info.Pages = append(info.Pages, pdf.PageInfo{
			Width:  pagespec.DefaultWidth,
			Height: pagespec.DefaultHeight,
		})
	}
	return info, nil
}

type fakeOpenDoc struct {
	pages string
}

func (e *fakeEngine) Open(r pdf.Reader) (Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	pages, err := fakeDocPages(data)
	if err != nil {
		return nil, err
	}
	return fakeOpenDoc{pages: pages}, nil
}

func (d fakeOpenDoc) Text(page int) (string, error) {
	switch d.pages[page] {
	case '.':
		return fmt.Sprintf("embedded text %d", page), nil
	case 'g':
		return fmt.Sprintf("grafted text %d", page), nil
	case 'f':
		return fmt.Sprintf("flattened text %d", page), nil
	default:
		return "", nil
	}
}

func (d fakeOpenDoc) Words(page int) ([]ocr.Word, error) {
	text, err := d.Text(page)
	if err != nil || text == "" {
		return nil, err
	}
	return []ocr.Word{{Text: text, X1: 0.1, Y1: 0.1, X2: 0.9, Y2: 0.15, Confidence: 100}}, nil
}

func (d fakeOpenDoc) Render(page, width int) (image.Image, error) {
	if d.pages[page] == 'x' {
		return nil, fmt.Errorf("render page %d: %w", page, ErrResourceExhausted)
	}
	return image.NewRGBA(image.Rect(0, 0, width, width)), nil
}

func (d fakeOpenDoc) Close() error { return nil }

func (e *fakeEngine) RedactPage(data []byte, page int, _ pagespec.Dimensions, _ []pdf.Region) ([]byte, error) {
	pages, err := fakeDocPages(data)
	if err != nil {
		return nil, err
	}
	chars := []byte(pages)
	chars[page] = 'r'
	return fakeDoc(string(chars)), nil
}

// ShowsText mirrors the production check: only natively rendered text
// counts, never text a prior run stamped on as an overlay.
func (e *fakeEngine) ShowsText(data []byte, pages []int) (bool, error) {
	chars, err := fakeDocPages(data)
	if err != nil {
		return false, err
	}
	for _, page := range pages {
		if chars[page] == '.' {
			return true, nil
		}
	}
	return false, nil
}

func (e *fakeEngine) GraftText(data []byte, grafts map[int]graft.PageWords) ([]byte, error) {
	pages, err := fakeDocPages(data)
	if err != nil {
		return nil, err
	}
	chars := []byte(pages)
	for page := range grafts {
		chars[page] = 'g'
	}
	e.mu.Lock()
	e.grafted += len(grafts)
	e.mu.Unlock()
	return fakeDoc(string(chars)), nil
}

func (e *fakeEngine) FlattenText(data []byte, grafts map[int]graft.PageWords) ([]byte, error) {
	pages, err := fakeDocPages(data)
	if err != nil {
		return nil, err
	}
	chars := []byte(pages)
	for page := range grafts {
		chars[page] = 'f'
	}
	e.mu.Lock()
	e.flattened += len(grafts)
	e.mu.Unlock()
	return fakeDoc(string(chars)), nil
}

func (e *fakeEngine) Assemble(plan *modify.Plan, fetch modify.Fetch) ([]byte, error) {
	sources := map[int64]string{}
	var out []byte
	for _, target := range plan.Targets {
		pages, ok := sources[target.Source.DocID]
		if !ok {
			data, err := fetch(target.Source.DocID)
			if err != nil {
				return nil, err
			}
			pages, err = fakeDocPages(data)
			if err != nil {
				return nil, err
			}
			sources[target.Source.DocID] = pages
		}
		if target.Source.Page < 0 || target.Source.Page >= len(pages) {
			return nil, fmt.Errorf("page %d out of range", target.Source.Page)
		}
		out = append(out, pages[target.Source.Page])
	}
	return fakeDoc(string(out)), nil
}
