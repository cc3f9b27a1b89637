package presence

import (
	"sync"

	"github.com/alumnet/alumnet/internal/identity"
	"github.com/alumnet/alumnet/internal/logger"
)

type recordingSink struct {
	mu       sync.Mutex
	frames   []Envelope
	capacity int
	closed   bool
}

func newSink() *recordingSink { return &recordingSink{capacity: -1} }

func (s *recordingSink) Deliver(env Envelope) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.capacity >= 0 && len(s.frames) >= s.capacity {
		return false
	}
	s.frames = append(s.frames, env)
	return true
}

func (s *recordingSink) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *recordingSink) received() []Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Envelope(nil), s.frames...)
}

func (s *recordingSink) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func newTestRegistry() *Registry {
	log := logger.Discard()
	return NewRegistry(log, NewRouter(log, nil), nil)
}

func ident(userID string, role identity.Role) identity.Identity {
	return identity.Identity{UserID: userID, Role: role}
}

func mustChannel(ch Channel, err error) Channel {
	if err != nil {
		panic(err)
	}
	return ch
}
