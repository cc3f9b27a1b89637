package postings

import (
	"context"
	"sort"
	"sync"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps postings in process memory.
type MemoryStore struct {
	mu       sync.Mutex
	postings []Posting
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Insert(_ context.Context, p Posting) (Posting, error) {
	s.mu.Lock()
	s.postings = append(s.postings, p)
	s.mu.Unlock()
	return p, nil
}

func (s *MemoryStore) List(_ context.Context, kind Kind, limit int) ([]Posting, error) {
	s.mu.Lock()
	out := make([]Posting, 0, len(s.postings))
	for _, p := range s.postings {
		if kind == "" || p.Kind == kind {
			out = append(out, p)
		}
	}
	s.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
