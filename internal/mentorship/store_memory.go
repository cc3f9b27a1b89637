package mentorship

import (
	"context"
	"sort"
	"sync"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps requests in process memory.
type MemoryStore struct {
	mu       sync.Mutex
	requests map[string]Request
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{requests: map[string]Request{}}
}

func (s *MemoryStore) Create(_ context.Context, req Request) (Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.requests {
		if existing.Status == StatusPending && existing.StudentID == req.StudentID && existing.AlumniID == req.AlumniID {
			return Request{}, ErrPendingRequestExists
		}
	}
	s.requests[req.ID] = req
	return req, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return Request{}, ErrRequestNotFound
	}
	return req, nil
}

func (s *MemoryStore) Decide(_ context.Context, id string, d Decision) (Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return Request{}, ErrRequestNotFound
	}
	if req.Status != StatusPending {
		return Request{}, ErrDuplicateDecision
	}
	req.Status = d.Status
	req.RespondedAt = d.RespondedAt
	req.ResponseMessage = d.ResponseMessage
	s.requests[id] = req
	return req, nil
}

func (s *MemoryStore) ListByAlumni(_ context.Context, alumniID string, status Status) ([]Request, error) {
	return s.list(func(r Request) bool {
		return r.AlumniID == alumniID && (status == "" || r.Status == status)
	}), nil
}

func (s *MemoryStore) ListByStudent(_ context.Context, studentID string) ([]Request, error) {
	return s.list(func(r Request) bool { return r.StudentID == studentID }), nil
}

func (s *MemoryStore) list(keep func(Request) bool) []Request {
	s.mu.Lock()
	out := make([]Request, 0)
	for _, r := range s.requests {
		if keep(r) {
			out = append(out, r)
		}
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
