// Package presence tracks live connections, the identity bound to each one, and
// the channel memberships derived from those identities.
package presence

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/alumnet/alumnet/internal/identity"
)

// Errors reported by the registry and router. None of them is fatal.
var (
	ErrUnknownConnection     = errors.New("unknown connection")
	ErrDuplicateConnection   = errors.New("connection already registered")
	ErrAlreadyBound          = errors.New("connection identity already bound")
	ErrInvalidIdentity       = errors.New("invalid identity")
	ErrRegistryClosed        = errors.New("registry is shut down")
	ErrUnknownChannel        = errors.New("channel has no members")
	ErrAuthenticationMissing = errors.New("no authenticated connection for identity")
	ErrInvalidChannel        = errors.New("invalid channel")
)

// Envelope is one outbound frame fanned out by the router.
type Envelope struct {
	Channel Channel         `json:"-"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Sink receives frames for one connection. Deliver must not block; it returns
// false when the frame was dropped.
type Sink interface {
	Deliver(env Envelope) bool
	Close()
}

// Connection is a read-only snapshot of a registered connection.
type Connection struct {
	ID          string            `json:"id"`
	Identity    identity.Identity `json:"identity,omitzero"`
	ConnectedAt time.Time         `json:"connected_at"`
	BoundAt     time.Time         `json:"bound_at,omitzero"`
}

// Bound reports whether an identity has been attached.
func (c Connection) Bound() bool {
	return !c.Identity.IsZero()
}

// PublishResult describes what a single publish reached.
type PublishResult struct {
	Channel   Channel
	Members   int
	Delivered int
	// Dropped counts live members whose send buffer was full.
	Dropped int
	// Gone counts members that disconnected while the publish was in flight.
	Gone int
	// Err is ErrUnknownChannel or ErrAuthenticationMissing when nobody was joined.
	Err error
}
