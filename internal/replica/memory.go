package replica

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a concurrent in-memory Store used by tests and brokerless
// development runs. Semantics mirror the Mongo implementation: upserts
// replace, merges skip absent documents, deletion markers stick.
type MemoryStore struct {
	mu        sync.RWMutex
	dvds      map[string]DVDDocument
	directors map[string]DirectorDocument
}

// NewMemoryStore returns an empty in-memory replica.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		dvds:      make(map[string]DVDDocument),
		directors: make(map[string]DirectorDocument),
	}
}

// UpsertDVD writes the full snapshot under its identifier.
func (s *MemoryStore) UpsertDVD(_ context.Context, doc DVDDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dvds[doc.ID] = doc
	return nil
}

// MergeDVD applies the non-nil fields to an existing document.
func (s *MemoryStore) MergeDVD(_ context.Context, id string, fields DVDFields) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.dvds[id]
	if !ok {
		return false, nil
	}
	if fields.Title != nil {
		doc.Title = *fields.Title
	}
	if fields.Genre != nil {
		doc.Genre = *fields.Genre
	}
	if fields.Director != nil {
		doc.Director = *fields.Director
	}
	if fields.ReleaseDate != nil {
		doc.ReleaseDate = *fields.ReleaseDate
	}
	if fields.Copies != nil {
		doc.Copies = *fields.Copies
	}
	if fields.Available != nil {
		doc.Available = *fields.Available
	}
	if fields.UpdatedAt != nil {
		doc.UpdatedAt = *fields.UpdatedAt
	}
	s.dvds[id] = doc
	return true, nil
}

// MarkDVDDeleted sets the deletion timestamp once.
func (s *MemoryStore) MarkDVDDeleted(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.dvds[id]
	if !ok || doc.DeletedAt != nil {
		return nil
	}
	doc.DeletedAt = &at
	s.dvds[id] = doc
	return nil
}

// GetDVD loads one replica document.
func (s *MemoryStore) GetDVD(_ context.Context, id string) (DVDDocument, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.dvds[id]
	return doc, ok, nil
}

// UpsertDirector writes the full snapshot under its identifier.
func (s *MemoryStore) UpsertDirector(_ context.Context, doc DirectorDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.directors[doc.ID] = doc
	return nil
}

// MergeDirector applies the non-nil fields to an existing document.
func (s *MemoryStore) MergeDirector(_ context.Context, id string, fields DirectorFields) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.directors[id]
	if !ok {
		return false, nil
	}
	if fields.Name != nil {
		doc.Name = *fields.Name
	}
	if fields.Surname != nil {
		doc.Surname = *fields.Surname
	}
	if fields.UpdatedAt != nil {
		doc.UpdatedAt = *fields.UpdatedAt
	}
	s.directors[id] = doc
	return true, nil
}

// MarkDirectorDeleted sets the deletion timestamp once.
func (s *MemoryStore) MarkDirectorDeleted(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.directors[id]
	if !ok || doc.DeletedAt != nil {
		return nil
	}
	doc.DeletedAt = &at
	s.directors[id] = doc
	return nil
}

// GetDirector loads one replica document.
func (s *MemoryStore) GetDirector(_ context.Context, id string) (DirectorDocument, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.directors[id]
	return doc, ok, nil
}
