package presence

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/alumnet/alumnet/internal/logger"
	"github.com/alumnet/alumnet/internal/metrics"
)

// delivery is the outcome of handing a frame to one member.
type delivery int

const (
	delivered delivery = iota
	// dropped means the member is live but its send buffer was full.
	dropped
	// gone means the member disconnected after the publish snapshot.
	gone
)

// deliverer hands a frame to one connection. The registry implements it.
type deliverer interface {
	deliver(connID string, env Envelope) delivery
}

// Router owns channel membership and fans frames out to current members.
// Nothing is queued: a publish reaches whoever is joined at that instant.
type Router struct {
	mu      sync.RWMutex
	members map[Channel]map[string]struct{}
	joined  map[string]map[Channel]struct{}
	target  deliverer

	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewRouter creates an empty router. It delivers nothing until a Registry is
// attached with NewRegistry.
func NewRouter(log *slog.Logger, m *metrics.Metrics) *Router {
	return &Router{
		members: map[Channel]map[string]struct{}{},
		joined:  map[string]map[Channel]struct{}{},
		logger:  logger.OrDefault(log).With(slog.String("component", "router")),
		metrics: m,
	}
}

func (r *Router) attach(d deliverer) {
	r.mu.Lock()
	r.target = d
	r.mu.Unlock()
}

// Join adds connID to ch. Joining twice is a no-op. It reports whether
// membership changed.
func (r *Router) Join(connID string, ch Channel) bool {
	if connID == "" || ch == "" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.members[ch]
	if !ok {
		set = map[string]struct{}{}
		r.members[ch] = set
	}
	if _, exists := set[connID]; exists {
		return false
	}
	set[connID] = struct{}{}

	chans, ok := r.joined[connID]
	if !ok {
		chans = map[Channel]struct{}{}
		r.joined[connID] = chans
	}
	chans[ch] = struct{}{}
	return true
}

// Leave removes connID from ch and reports whether it was a member.
func (r *Router) Leave(connID string, ch Channel) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaveLocked(connID, ch)
}

func (r *Router) leaveLocked(connID string, ch Channel) bool {
	set := r.members[ch]
	if set == nil {
		return false
	}
	if _, ok := set[connID]; !ok {
		return false
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(r.members, ch)
	}
	if chans := r.joined[connID]; chans != nil {
		delete(chans, ch)
		if len(chans) == 0 {
			delete(r.joined, connID)
		}
	}
	return true
}

// LeaveAll removes connID from every channel it joined and returns how many
// memberships were dropped.
func (r *Router) LeaveAll(connID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	chans := r.joined[connID]
	n := 0
	for ch := range chans {
		if r.leaveLocked(connID, ch) {
			n++
		}
	}
	delete(r.joined, connID)
	return n
}

// Publish delivers env to every connection currently joined to ch. A channel
// with zero members is logged and reported through PublishResult.Err; it is
// never an error for the caller.
func (r *Router) Publish(ch Channel, env Envelope) PublishResult {
	env.Channel = ch
	result := PublishResult{Channel: ch}

	r.mu.RLock()
	target := r.target
	ids := make([]string, 0, len(r.members[ch]))
	for id := range r.members[ch] {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	result.Members = len(ids)
	kind := string(ch.Kind())
	if len(ids) == 0 {
		if ch.Kind() == KindUser {
			result.Err = ErrAuthenticationMissing
			r.logger.Debug("publish dropped: recipient not connected",
				slog.String("channel", ch.String()), slog.String("type", env.Type))
		} else {
			result.Err = ErrUnknownChannel
			r.logger.Info("publish dropped: channel has no members",
				slog.String("channel", ch.String()), slog.String("type", env.Type))
		}
		r.metrics.IncEmptyPublish(kind)
		return result
	}
	if target == nil {
		result.Dropped = len(ids)
		r.logger.Warn("publish dropped: router has no registry attached", slog.String("channel", ch.String()))
		return result
	}

	for _, id := range ids {
		switch target.deliver(id, env) {
		case delivered:
			result.Delivered++
		case dropped:
			result.Dropped++
		case gone:
			result.Gone++
		}
	}
	r.metrics.AddDelivered(kind, result.Delivered)
	if result.Gone > 0 {
		r.logger.Debug("publish skipped disconnected members",
			slog.String("channel", ch.String()), slog.Int("gone", result.Gone))
	}
	if result.Dropped > 0 {
		r.metrics.AddSlowConsumerDrops(result.Dropped)
		r.logger.Warn("publish partially dropped",
			slog.String("channel", ch.String()),
			slog.String("type", env.Type),
			slog.Int("delivered", result.Delivered),
			slog.Int("dropped", result.Dropped),
		)
	}
	return result
}

// Members returns the sorted connection ids currently joined to ch.
func (r *Router) Members(ch Channel) []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.members[ch]))
	for id := range r.members[ch] {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// ChannelsOf returns the sorted channels connID has joined.
func (r *Router) ChannelsOf(connID string) []Channel {
	r.mu.RLock()
	chans := make([]Channel, 0, len(r.joined[connID]))
	for ch := range r.joined[connID] {
		chans = append(chans, ch)
	}
	r.mu.RUnlock()
	sort.Slice(chans, func(i, j int) bool { return chans[i] < chans[j] })
	return chans
}

// ChannelCount returns how many channels have at least one member.
func (r *Router) ChannelCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// Reset drops every membership.
func (r *Router) Reset() {
	r.mu.Lock()
	r.members = map[Channel]map[string]struct{}{}
	r.joined = map[string]map[Channel]struct{}{}
	r.mu.Unlock()
}
