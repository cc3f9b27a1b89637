package handlers

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alumnet/alumnet/internal/identity"
)

func mustIdentity(t *testing.T, userID, role string) identity.Identity {
	t.Helper()
	id, err := identity.New(userID, role)
	require.NoError(t, err)
	return id
}
