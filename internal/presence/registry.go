package presence

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/alumnet/alumnet/internal/identity"
	"github.com/alumnet/alumnet/internal/logger"
	"github.com/alumnet/alumnet/internal/metrics"
)

type entry struct {
	conn Connection
	sink Sink
}

// Registry tracks every live connection and the identity bound to it. It is
// the only writer of router membership for bound identities.
//
// Lock order is registry then router; the router never calls back into the
// registry while holding its own lock.
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]*entry
	closed bool

	router  *Router
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewRegistry creates a registry and attaches it to router as the delivery target.
func NewRegistry(log *slog.Logger, router *Router, m *metrics.Metrics) *Registry {
	reg := &Registry{
		conns:   map[string]*entry{},
		router:  router,
		logger:  logger.OrDefault(log).With(slog.String("component", "registry")),
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
	router.attach(reg)
	return reg
}

// Router returns the router this registry maintains membership on.
func (r *Registry) Router() *Router {
	return r.router
}

// Register creates an unbound connection delivering through sink.
func (r *Registry) Register(connID string, sink Sink) (Connection, error) {
	if connID == "" || sink == nil {
		return Connection{}, fmt.Errorf("%w: id and sink required", ErrUnknownConnection)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return Connection{}, ErrRegistryClosed
	}
	if _, exists := r.conns[connID]; exists {
		return Connection{}, ErrDuplicateConnection
	}
	conn := Connection{ID: connID, ConnectedAt: r.now()}
	r.conns[connID] = &entry{conn: conn, sink: sink}
	r.metrics.ConnectionOpened()
	r.logger.Debug("connection registered", slog.String("conn_id", connID))
	return conn, nil
}

// Bind attaches id to connID and joins its role and personal channels. A
// malformed identity, an unknown connection or an already bound connection
// leaves all state untouched; the returned error says which.
func (r *Registry) Bind(connID string, id identity.Identity) (Connection, error) {
	if err := id.Validate(); err != nil {
		r.logger.Warn("bind ignored: malformed identity", slog.String("conn_id", connID), slog.Any("error", err))
		return Connection{}, fmt.Errorf("%w: %w", ErrInvalidIdentity, err)
	}
	channels, err := ChannelsFor(id)
	if err != nil {
		return Connection{}, fmt.Errorf("%w: %w", ErrInvalidIdentity, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[connID]
	if !ok {
		return Connection{}, ErrUnknownConnection
	}
	if e.conn.Bound() {
		r.logger.Warn("bind ignored: identity already bound",
			slog.String("conn_id", connID),
			slog.String("bound_user", e.conn.Identity.UserID),
			slog.String("requested_user", id.UserID),
		)
		return e.conn, ErrAlreadyBound
	}
	e.conn.Identity = id
	e.conn.BoundAt = r.now()
	for _, ch := range channels {
		r.router.Join(connID, ch)
	}
	r.metrics.ConnectionBound()
	r.logger.Info("connection bound",
		slog.String("conn_id", connID),
		slog.String("user_id", id.UserID),
		slog.String("role", id.Role.String()),
	)
	return e.conn, nil
}

// Unregister removes connID and every channel membership it held. It reports
// whether the connection existed.
func (r *Registry) Unregister(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[connID]
	if !ok {
		return false
	}
	delete(r.conns, connID)
	left := r.router.LeaveAll(connID)
	r.metrics.ConnectionClosed(e.conn.Bound())
	r.logger.Debug("connection unregistered", slog.String("conn_id", connID), slog.Int("channels_left", left))
	return true
}

// Lookup returns the identity bound to connID. ok is false when the connection
// is unknown or not yet authenticated.
func (r *Registry) Lookup(connID string) (identity.Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, exists := r.conns[connID]
	if !exists || !e.conn.Bound() {
		return identity.Identity{}, false
	}
	return e.conn.Identity, true
}

// Get returns a snapshot of connID.
func (r *Registry) Get(connID string) (Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[connID]
	if !ok {
		return Connection{}, false
	}
	return e.conn, true
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Connections returns snapshots of all live connections ordered by id.
func (r *Registry) Connections() []Connection {
	r.mu.RLock()
	out := make([]Connection, 0, len(r.conns))
	for _, e := range r.conns {
		out = append(out, e.conn)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Online reports whether userID has at least one bound connection.
func (r *Registry) Online(userID string) bool {
	ch, err := UserChannel(userID)
	if err != nil {
		return false
	}
	return len(r.router.Members(ch)) > 0
}

// Shutdown closes every sink, clears all connections and memberships, and
// rejects further registrations.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	sinks := make([]Sink, 0, len(r.conns))
	for _, e := range r.conns {
		sinks = append(sinks, e.sink)
	}
	r.conns = map[string]*entry{}
	r.closed = true
	r.router.Reset()
	r.metrics.ConnectionsReset()
	r.mu.Unlock()

	for _, s := range sinks {
		s.Close()
	}
	r.logger.Info("registry shut down", slog.Int("closed_connections", len(sinks)))
}

func (r *Registry) deliver(connID string, env Envelope) delivery {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[connID]
	if !ok || !e.conn.Bound() {
		return gone
	}
	if !e.sink.Deliver(env) {
		return dropped
	}
	return delivered
}
