package storage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/hangout/internal/game/account"
	"github.com/cory-johannsen/hangout/internal/storage"
)

func TestOffline_AuthenticateIsUnavailable(t *testing.T) {
	_, err := storage.Offline{}.Authenticate(context.Background(), "alice", "secret")
	require.ErrorIs(t, err, storage.ErrUnavailable)
	assert.NotErrorIs(t, err, account.ErrInvalidCredentials)
}

func TestOffline_ListingsAreEmpty(t *testing.T) {
	ctx := context.Background()
	ground, err := storage.Offline{}.ListGroundItems(ctx)
	require.NoError(t, err)
	assert.Empty(t, ground)

	owned, err := storage.Offline{}.ListOwnedItems(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, owned)
}
