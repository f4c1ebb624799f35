package counter

import (
	"context"
	"sync"
)

// MemStore is an in-process Store for tests and local runs.
type MemStore struct {
	mu   sync.Mutex
	docs map[string]*memDoc
}

type memDoc struct {
	running         bool
	pageCount       int
	imagesRemaining int
	textsRemaining  int
	imageBits       map[int]bool
	textBits        map[int]bool
	dimensions      map[string][]int
	pageText        map[int]PageText
	fileHash        string
}

// NewMemStore returns an empty in-memory counter store.
func NewMemStore() *MemStore {
	return &MemStore{docs: map[string]*memDoc{}}
}

func (s *MemStore) doc(docID string) *memDoc {
	d, ok := s.docs[docID]
	if !ok {
		d = &memDoc{
			imageBits:  map[int]bool{},
			textBits:   map[int]bool{},
			dimensions: map[string][]int{},
			pageText:   map[int]PageText{},
		}
		s.docs[docID] = d
	}
	return d
}

func (s *MemStore) SetRunning(_ context.Context, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc(docID).running = true
	return nil
}

func (s *MemStore) StillProcessing(_ context.Context, docID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[docID]
	return ok && d.running, nil
}

func (s *MemStore) Initialize(_ context.Context, docID string, pageCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.doc(docID)
	d.pageCount = pageCount
	d.imagesRemaining = pageCount
	d.textsRemaining = pageCount
	d.imageBits = map[int]bool{}
	d.textBits = map[int]bool{}
	d.dimensions = map[string][]int{}
	d.pageText = map[int]PageText{}
	return nil
}

func (s *MemStore) InitializePartial(_ context.Context, docID string, pageCount int, dirty []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dirtySet := make(map[int]bool, len(dirty))
	for _, page := range dirty {
		dirtySet[page] = true
	}
	d := s.doc(docID)
	d.pageCount = pageCount
	d.imagesRemaining = len(dirty)
	d.textsRemaining = len(dirty)
	d.imageBits = map[int]bool{}
	d.textBits = map[int]bool{}
	for page := 0; page < pageCount; page++ {
		if !dirtySet[page] {
			d.imageBits[page] = true
			d.textBits[page] = true
		}
	}
	d.pageText = map[int]PageText{}
	return nil
}

func (s *MemStore) PageExtracted(_ context.Context, docID string, page int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc(docID).imageBits[page], nil
}

func (s *MemStore) PageOCRd(_ context.Context, docID string, page int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc(docID).textBits[page], nil
}

func (s *MemStore) RegisterPageExtracted(_ context.Context, docID string, page int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.doc(docID)
	if d.imageBits[page] {
		return false, nil
	}
	d.imageBits[page] = true
	d.imagesRemaining--
	return d.imagesRemaining == 0, nil
}

func (s *MemStore) RegisterPageOCRd(_ context.Context, docID string, page int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.doc(docID)
	if d.textBits[page] {
		return false, nil
	}
	d.textBits[page] = true
	d.textsRemaining--
	return d.textsRemaining == 0, nil
}

func (s *MemStore) AddPageDimension(_ context.Context, docID, dimension string, page int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.doc(docID)
	for _, existing := range d.dimensions[dimension] {
		if existing == page {
			return nil
		}
	}
	d.dimensions[dimension] = append(d.dimensions[dimension], page)
	return nil
}

func (s *MemStore) PageDimensions(_ context.Context, docID string) (map[string][]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.doc(docID)
	groups := make(map[string][]int, len(d.dimensions))
	for dimension, pages := range d.dimensions {
		groups[dimension] = append([]int(nil), pages...)
	}
	return groups, nil
}

func (s *MemStore) SetFileHash(_ context.Context, docID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc(docID).fileHash = hash
	return nil
}

func (s *MemStore) PopFileHash(_ context.Context, docID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.doc(docID)
	hash := d.fileHash
	d.fileHash = ""
	return hash, nil
}

func (s *MemStore) WritePageText(_ context.Context, docID string, page int, text PageText) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc(docID).pageText[page] = text
	return nil
}

func (s *MemStore) AllPageText(_ context.Context, docID string) (map[int]PageText, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.doc(docID)
	texts := make(map[int]PageText, len(d.pageText))
	for page, text := range d.pageText {
		texts[page] = text
	}
	return texts, nil
}

func (s *MemStore) Progress(_ context.Context, docID string) (Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[docID]
	if !ok {
		return Progress{}, nil
	}
	images, texts, pages := d.imagesRemaining, d.textsRemaining, d.pageCount
	return Progress{Images: &images, Texts: &texts, Pages: &pages}, nil
}

func (s *MemStore) CleanUp(_ context.Context, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, docID)
	return nil
}
