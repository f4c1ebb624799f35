package annotations

import (
	"context"
	"fmt"
	"sync"
)

// MemStore is an in-memory Store for tests.
type MemStore struct {
	mu       sync.Mutex
	seq      int
	notes    map[int64]map[string]Note
	sections map[int64]map[string]Section
}

func NewMemStore() *MemStore {
	return &MemStore{
		notes:    map[int64]map[string]Note{},
		sections: map[int64]map[string]Section{},
	}
}

// Seed installs initial annotations for a document.
func (s *MemStore) Seed(docID int64, notes []Note, sections []Section) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes[docID] = map[string]Note{}
	for _, note := range notes {
		s.notes[docID][note.ID] = note
	}
	s.sections[docID] = map[string]Section{}
	for _, section := range sections {
		s.sections[docID][section.ID] = section
	}
}

func (s *MemStore) Notes(_ context.Context, docID int64) ([]Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	notes := make([]Note, 0, len(s.notes[docID]))
	for _, note := range s.notes[docID] {
		notes = append(notes, note)
	}
	return notes, nil
}

func (s *MemStore) Sections(_ context.Context, docID int64) ([]Section, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sections := make([]Section, 0, len(s.sections[docID]))
	for _, section := range s.sections[docID] {
		sections = append(sections, section)
	}
	return sections, nil
}

func (s *MemStore) SaveNotes(_ context.Context, docID int64, notes []Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.notes[docID] == nil {
		s.notes[docID] = map[string]Note{}
	}
	for _, note := range notes {
		s.notes[docID][note.ID] = note
	}
	return nil
}

func (s *MemStore) CreateNotes(_ context.Context, docID int64, notes []Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.notes[docID] == nil {
		s.notes[docID] = map[string]Note{}
	}
	for _, note := range notes {
		s.seq++
		note.ID = fmt.Sprintf("mem-%d", s.seq)
		s.notes[docID][note.ID] = note
	}
	return nil
}

func (s *MemStore) SaveSections(_ context.Context, docID int64, sections []Section) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sections[docID] == nil {
		s.sections[docID] = map[string]Section{}
	}
	for _, section := range sections {
		s.sections[docID][section.ID] = section
	}
	return nil
}

func (s *MemStore) CreateSections(_ context.Context, docID int64, sections []Section) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sections[docID] == nil {
		s.sections[docID] = map[string]Section{}
	}
	for _, section := range sections {
		s.seq++
		section.ID = fmt.Sprintf("mem-%d", s.seq)
		s.sections[docID][section.ID] = section
	}
	return nil
}

func (s *MemStore) DeleteSections(_ context.Context, docID int64, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.sections[docID], id)
	}
	return nil
}
