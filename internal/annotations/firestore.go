package annotations

import (
	"context"
	"fmt"
	"strconv"

	"cloud.google.com/go/firestore"
)

// FirestoreStore keeps annotations under
// {collection}/{docID}/notes/{noteID} and {collection}/{docID}/sections/{sectionID}.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreStore creates a Firestore-backed annotation store.
func NewFirestoreStore(ctx context.Context, projectID, collection string) (*FirestoreStore, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}
	return &FirestoreStore{client: client, collection: collection}, nil
}

func (s *FirestoreStore) docRef(docID int64) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(strconv.FormatInt(docID, 10))
}

func (s *FirestoreStore) Notes(ctx context.Context, docID int64) ([]Note, error) {
	snaps, err := s.docRef(docID).Collection("notes").Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	notes := make([]Note, 0, len(snaps))
	for _, snap := range snaps {
		var note Note
		if err := snap.DataTo(&note); err != nil {
			return nil, fmt.Errorf("failed to decode note %s: %w", snap.Ref.ID, err)
		}
		note.ID = snap.Ref.ID
		notes = append(notes, note)
	}
	return notes, nil
}

func (s *FirestoreStore) Sections(ctx context.Context, docID int64) ([]Section, error) {
	snaps, err := s.docRef(docID).Collection("sections").Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list sections: %w", err)
	}
	sections := make([]Section, 0, len(snaps))
	for _, snap := range snaps {
		var section Section
		if err := snap.DataTo(&section); err != nil {
			return nil, fmt.Errorf("failed to decode section %s: %w", snap.Ref.ID, err)
		}
		section.ID = snap.Ref.ID
		sections = append(sections, section)
	}
	return sections, nil
}

// awaitJobs ends the BulkWriter and waits on every queued write.
// BulkWriter reports write failures only through the per-job results,
// so skipping this check would silently drop failed writes.
func awaitJobs(bw *firestore.BulkWriter, jobs []*firestore.BulkWriterJob) error {
	bw.End()
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return fmt.Errorf("bulk write failed: %w", err)
		}
	}
	return nil
}

// SaveNotes upserts notes through a BulkWriter so a large document's
// annotation rewrite is one batched round trip.
func (s *FirestoreStore) SaveNotes(ctx context.Context, docID int64, notes []Note) error {
	if len(notes) == 0 {
		return nil
	}
	bw := s.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(notes))
	for _, note := range notes {
		ref := s.docRef(docID).Collection("notes").Doc(note.ID)
		job, err := bw.Set(ref, note)
		if err != nil {
			return fmt.Errorf("failed to queue note %s: %w", note.ID, err)
		}
		jobs = append(jobs, job)
	}
	return awaitJobs(bw, jobs)
}

// CreateNotes stores notes under Firestore-assigned IDs.
func (s *FirestoreStore) CreateNotes(ctx context.Context, docID int64, notes []Note) error {
	if len(notes) == 0 {
		return nil
	}
	bw := s.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(notes))
	for _, note := range notes {
		ref := s.docRef(docID).Collection("notes").NewDoc()
		note.ID = ref.ID
		job, err := bw.Create(ref, note)
		if err != nil {
			return fmt.Errorf("failed to queue note create: %w", err)
		}
		jobs = append(jobs, job)
	}
	return awaitJobs(bw, jobs)
}

func (s *FirestoreStore) SaveSections(ctx context.Context, docID int64, sections []Section) error {
	if len(sections) == 0 {
		return nil
	}
	bw := s.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(sections))
	for _, section := range sections {
		ref := s.docRef(docID).Collection("sections").Doc(section.ID)
		job, err := bw.Set(ref, section)
		if err != nil {
			return fmt.Errorf("failed to queue section %s: %w", section.ID, err)
		}
		jobs = append(jobs, job)
	}
	return awaitJobs(bw, jobs)
}

// CreateSections stores sections under Firestore-assigned IDs.
func (s *FirestoreStore) CreateSections(ctx context.Context, docID int64, sections []Section) error {
	if len(sections) == 0 {
		return nil
	}
	bw := s.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(sections))
	for _, section := range sections {
		ref := s.docRef(docID).Collection("sections").NewDoc()
		section.ID = ref.ID
		job, err := bw.Create(ref, section)
		if err != nil {
			return fmt.Errorf("failed to queue section create: %w", err)
		}
		jobs = append(jobs, job)
	}
	return awaitJobs(bw, jobs)
}

func (s *FirestoreStore) DeleteSections(ctx context.Context, docID int64, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	bw := s.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(ids))
	for _, id := range ids {
		ref := s.docRef(docID).Collection("sections").Doc(id)
		job, err := bw.Delete(ref)
		if err != nil {
			return fmt.Errorf("failed to queue section delete %s: %w", id, err)
		}
		jobs = append(jobs, job)
	}
	return awaitJobs(bw, jobs)
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}
