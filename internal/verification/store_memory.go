package verification

import (
	"context"
	"sort"
	"sync"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps verification records in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string]Record{}}
}

func (s *MemoryStore) Submit(_ context.Context, rec Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.records[rec.AlumniID]; ok {
		if existing.Status != StatusPending {
			return Record{}, ErrInvalidTransition
		}
		existing.Name = rec.Name
		existing.Email = rec.Email
		s.records[rec.AlumniID] = existing
		return existing, nil
	}
	s.records[rec.AlumniID] = rec
	return rec, nil
}

func (s *MemoryStore) Get(_ context.Context, alumniID string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[alumniID]
	if !ok {
		return Record{}, ErrRequestNotFound
	}
	return rec, nil
}

func (s *MemoryStore) Decide(_ context.Context, alumniID string, d Decision) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[alumniID]
	if !ok {
		return Record{}, ErrRequestNotFound
	}
	if rec.Status != StatusPending {
		return Record{}, ErrDuplicateDecision
	}
	rec.Status = d.Status
	rec.DecidedAt = d.DecidedAt
	rec.DecidedBy = d.DecidedBy
	s.records[alumniID] = rec
	return rec, nil
}

func (s *MemoryStore) ListPending(_ context.Context) ([]Record, error) {
	s.mu.Lock()
	out := make([]Record, 0)
	for _, rec := range s.records {
		if rec.Status == StatusPending {
			out = append(out, rec)
		}
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].RequestedAt.Equal(out[j].RequestedAt) {
			return out[i].AlumniID < out[j].AlumniID
		}
		return out[i].RequestedAt.Before(out[j].RequestedAt)
	})
	return out, nil
}
