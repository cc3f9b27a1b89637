package presence

import (
	"fmt"
	"strings"

	"github.com/alumnet/alumnet/internal/identity"
)

// Kind selects which part of an identity names a channel.
type Kind string

// Channel kinds.
const (
	KindRole Kind = "role"
	KindUser Kind = "user"
)

// Channel is a derived multicast group name such as "role:ADMIN" or "user:42".
type Channel string

func (c Channel) String() string { return string(c) }

// Kind returns the channel kind prefix.
func (c Channel) Kind() Kind {
	kind, _, _ := strings.Cut(string(c), ":")
	return Kind(kind)
}

// ChannelFor derives the channel of the given kind for id. It is the only way
// channel names are built.
func ChannelFor(kind Kind, id identity.Identity) (Channel, error) {
	switch kind {
	case KindRole:
		if !id.Role.Valid() {
			return "", fmt.Errorf("%w: role %q", ErrInvalidChannel, string(id.Role))
		}
		return Channel(string(KindRole) + ":" + string(id.Role)), nil
	case KindUser:
		if err := identity.ValidateUserID(id.UserID); err != nil {
			return "", fmt.Errorf("%w: %w", ErrInvalidChannel, err)
		}
		return Channel(string(KindUser) + ":" + id.UserID), nil
	default:
		return "", fmt.Errorf("%w: kind %q", ErrInvalidChannel, string(kind))
	}
}

// RoleChannel returns the broadcast channel for role.
func RoleChannel(role identity.Role) (Channel, error) {
	return ChannelFor(KindRole, identity.Identity{Role: role})
}

// UserChannel returns the personal channel for userID.
func UserChannel(userID string) (Channel, error) {
	return ChannelFor(KindUser, identity.Identity{UserID: userID})
}

// ChannelsFor returns every channel a bound identity joins: its role channel and
// its personal channel.
func ChannelsFor(id identity.Identity) ([]Channel, error) {
	role, err := ChannelFor(KindRole, id)
	if err != nil {
		return nil, err
	}
	user, err := ChannelFor(KindUser, id)
	if err != nil {
		return nil, err
	}
	return []Channel{role, user}, nil
}
