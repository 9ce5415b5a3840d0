package authclient_test

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/goliatone/go-authclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyringStoreRoundTrip(t *testing.T) {
	store := authclient.NewKeyringStoreFrom(keyring.NewArrayKeyring(nil))

	_, err := store.Get("missing")
	assert.ErrorIs(t, err, authclient.ErrMarkerNotFound)

	require.NoError(t, store.Set("proj-auth-token", "marker"))

	value, err := store.Get("proj-auth-token")
	require.NoError(t, err)
	assert.Equal(t, "marker", value)

	keys, err := store.Keys()
	require.NoError(t, err)
	assert.Contains(t, keys, "proj-auth-token")

	require.NoError(t, store.Delete("proj-auth-token"))
	_, err = store.Get("proj-auth-token")
	assert.Error(t, err)

	// deleting a missing key is not an error
	assert.NoError(t, store.Delete("proj-auth-token"))
}

func TestKeyringStoreWorksAsMarkerSource(t *testing.T) {
	store := authclient.NewKeyringStoreFrom(keyring.NewArrayKeyring(nil))
	require.NoError(t, store.Set("proj-auth-token", "opaque"))

	assert.True(t, authclient.LikelyAuthenticated(store, authclient.DefaultMarkerSuffix))
	require.NoError(t, authclient.ClearMarkers(store, authclient.DefaultMarkerSuffix))
	assert.False(t, authclient.LikelyAuthenticated(store, authclient.DefaultMarkerSuffix))
}
