package storage

import (
	"context"
	"errors"

	"github.com/cory-johannsen/hangout/internal/game/account"
	"github.com/cory-johannsen/hangout/internal/game/inventory"
)

// ErrUnavailable is returned by Offline for every operation that needs the database.
var ErrUnavailable = errors.New("storage unavailable")

// Offline stands in for the database when it cannot be reached at startup.
// Logins fail with ErrUnavailable; item and inventory listings are empty.
type Offline struct{}

// Authenticate always fails with ErrUnavailable.
func (Offline) Authenticate(context.Context, string, string) (account.User, error) {
	return account.User{}, ErrUnavailable
}

// ListGroundItems returns no items.
func (Offline) ListGroundItems(context.Context) ([]inventory.WorldItem, error) {
	return nil, nil
}

// ListOwnedItems returns an empty inventory.
func (Offline) ListOwnedItems(context.Context, string) ([]inventory.Entry, error) {
	return nil, nil
}
