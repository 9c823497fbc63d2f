// Package inventory provides ground items, inventory entries, and the
// write-through ground item cache.
package inventory

import (
	"context"
	"fmt"
)

// Entry is one held item in a user's inventory.
type Entry struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// WorldItem is an item lying on the ground of a room.
type WorldItem struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Room  string `json:"room"`
	GridX int    `json:"gridX"`
	GridY int    `json:"gridY"`
}

// Entry returns the inventory form of the item.
func (w WorldItem) Entry() Entry {
	return Entry{ID: w.ID, Type: w.Type}
}

// Place returns a WorldItem for the entry at the given cell.
func (e Entry) Place(room string, x, y int) WorldItem {
	return WorldItem{ID: e.ID, Type: e.Type, Room: room, GridX: x, GridY: y}
}

func (w WorldItem) String() string {
	return fmt.Sprintf("%s(%s)@%s:%d,%d", w.Type, w.ID, w.Room, w.GridX, w.GridY)
}

// IndexOf returns the position of itemID in entries, or -1.
func IndexOf(entries []Entry, itemID string) int {
	for i, e := range entries {
		if e.ID == itemID {
			return i
		}
	}
	return -1
}

// Without returns a copy of entries with the element at i removed.
//
// Precondition: 0 <= i < len(entries).
func Without(entries []Entry, i int) []Entry {
	out := make([]Entry, 0, len(entries)-1)
	out = append(out, entries[:i]...)
	return append(out, entries[i+1:]...)
}

// ItemSource provides the persisted set of unowned items.
type ItemSource interface {
	// ListGroundItems returns every item with no owner.
	ListGroundItems(ctx context.Context) ([]WorldItem, error)
}

// ItemWriter persists ownership transitions.
type ItemWriter interface {
	// AssignOwner marks itemID as held by ownerID.
	AssignOwner(ctx context.Context, itemID, ownerID string) error
	// PlaceOnGround clears the owner of item.ID and records its room and cell.
	PlaceOnGround(ctx context.Context, item WorldItem) error
}
