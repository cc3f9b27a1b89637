// Package event defines the closed catalog of realtime domain events and the
// dispatcher that validates, routes and publishes them.
package event

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alumnet/alumnet/internal/identity"
	"github.com/alumnet/alumnet/internal/presence"
)

// Type is the wire name of an event.
type Type string

// Event types. The set is closed: every Type has exactly one Event implementation.
const (
	TypeNewAlumniVerification Type = "new_alumni_verification"
	TypeVerificationDecision  Type = "verification_decision"
	TypeNewMentorshipRequest  Type = "new_mentorship_request"
	TypeMentorshipDecision    Type = "mentorship_decision"
	TypeNewJobPosted          Type = "new_job_posted"
	TypeNewEventCreated       Type = "new_event_created"
)

// ErrInvalidPayload is returned when an event does not have the shape its type requires.
var ErrInvalidPayload = errors.New("invalid event payload")

// Event is implemented only by the payload types in this package.
type Event interface {
	Type() Type
	// Validate checks the payload shape for the event type.
	Validate() error
	// Targets resolves recipient channels from fields carried by the payload.
	Targets() ([]presence.Channel, error)
	sealed()
}

func invalid(t Type, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidPayload, t, fmt.Sprintf(format, args...))
}

func requireUser(t Type, field, id string) error {
	if err := identity.ValidateUserID(id); err != nil {
		return invalid(t, "%s: %v", field, err)
	}
	return nil
}

func requireTime(t Type, ts time.Time) error {
	if ts.IsZero() {
		return invalid(t, "timestamp required")
	}
	return nil
}

func requireText(t Type, field, v string) error {
	if strings.TrimSpace(v) == "" {
		return invalid(t, "%s required", field)
	}
	return nil
}

func now() time.Time { return time.Now().UTC() }

func userTarget(id string) ([]presence.Channel, error) {
	ch, err := presence.UserChannel(id)
	if err != nil {
		return nil, err
	}
	return []presence.Channel{ch}, nil
}

func roleTargets(roles []identity.Role) ([]presence.Channel, error) {
	seen := make(map[identity.Role]struct{}, len(roles))
	out := make([]presence.Channel, 0, len(roles))
	for _, r := range roles {
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		ch, err := presence.RoleChannel(r)
		if err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, nil
}

func requireAudience(t Type, roles []identity.Role) error {
	if len(roles) == 0 {
		return invalid(t, "audience required")
	}
	for _, r := range roles {
		if !r.Valid() {
			return invalid(t, "audience role %q", string(r))
		}
	}
	return nil
}
