package inventory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ErrCellOccupied is returned when a different item already occupies the destination cell.
var ErrCellOccupied = errors.New("cell occupied")

type cell struct {
	room string
	x, y int
}

// GroundCache is the authoritative in-memory view of every item on the ground.
// No two items share a (room, x, y) cell. Mutations are mirrored to an
// ItemWriter on request; a failed write never rolls the cache back.
type GroundCache struct {
	mu     sync.RWMutex
	items  map[string]WorldItem
	cells  map[cell]string
	writer ItemWriter
	logger *zap.Logger
}

// NewGroundCache creates an empty GroundCache. writer may be nil, in which case
// the Sync methods are no-ops.
//
// Precondition: logger must be non-nil.
// Postcondition: Returns a cache with zero items.
func NewGroundCache(writer ItemWriter, logger *zap.Logger) *GroundCache {
	return &GroundCache{
		items:  make(map[string]WorldItem),
		cells:  make(map[cell]string),
		writer: writer,
		logger: logger,
	}
}

// Load replaces the cache contents wholesale with the ground items from source.
// Items colliding with an already-loaded cell are skipped and logged.
//
// Postcondition: On success returns the number of items held. On error the cache is unchanged.
func (g *GroundCache) Load(ctx context.Context, source ItemSource) (int, error) {
	loaded, err := source.ListGroundItems(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing ground items: %w", err)
	}

	items := make(map[string]WorldItem, len(loaded))
	cells := make(map[cell]string, len(loaded))
	for _, it := range loaded {
		c := cell{it.Room, it.GridX, it.GridY}
		if other, taken := cells[c]; taken {
			g.logger.Warn("skipping ground item on occupied cell",
				zap.String("item_id", it.ID),
				zap.String("occupant_id", other),
				zap.String("room", it.Room),
				zap.Int("grid_x", it.GridX),
				zap.Int("grid_y", it.GridY),
			)
			continue
		}
		items[it.ID] = it
		cells[c] = it.ID
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.items = items
	g.cells = cells
	return len(items), nil
}

// ItemsIn returns a snapshot of the items on the ground of roomID.
//
// Postcondition: The returned slice is a copy; order is unspecified.
func (g *GroundCache) ItemsIn(roomID string) []WorldItem {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]WorldItem, 0)
	for _, it := range g.items {
		if it.Room == roomID {
			out = append(out, it)
		}
	}
	return out
}

// FindAt returns the item at the given cell.
//
// Postcondition: Returns (item, true) if a ground item occupies the cell, or (zero, false).
func (g *GroundCache) FindAt(roomID string, x, y int) (WorldItem, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	id, ok := g.cells[cell{roomID, x, y}]
	if !ok {
		return WorldItem{}, false
	}
	return g.items[id], true
}

// Take removes and returns the item with the given ID.
//
// Postcondition: Returns (item, true) and the item is no longer cached, or (zero, false) if unknown.
func (g *GroundCache) Take(itemID string) (WorldItem, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	it, ok := g.items[itemID]
	if !ok {
		return WorldItem{}, false
	}
	g.removeLocked(it)
	return it, true
}

// TakeAt atomically finds and removes the item at the given cell.
// Of any number of concurrent callers on one cell, at most one receives the item.
//
// Postcondition: Returns (item, true) and the cell is empty, or (zero, false) if the cell was empty.
func (g *GroundCache) TakeAt(roomID string, x, y int) (WorldItem, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, ok := g.cells[cell{roomID, x, y}]
	if !ok {
		return WorldItem{}, false
	}
	it := g.items[id]
	g.removeLocked(it)
	return it, true
}

func (g *GroundCache) removeLocked(it WorldItem) {
	delete(g.items, it.ID)
	delete(g.cells, cell{it.Room, it.GridX, it.GridY})
}

// Put inserts item, or moves it if its ID is already cached.
//
// Precondition: The destination cell must be empty or already hold item.ID.
// Postcondition: Returns ErrCellOccupied and leaves the cache unchanged if another item holds the cell.
func (g *GroundCache) Put(item WorldItem) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.putLocked(item)
}

// PutIfEmpty atomically checks the destination cell and inserts item.
//
// Postcondition: Returns true if inserted; false if another item holds the cell.
func (g *GroundCache) PutIfEmpty(item WorldItem) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.putLocked(item) == nil
}

func (g *GroundCache) putLocked(item WorldItem) error {
	c := cell{item.Room, item.GridX, item.GridY}
	if other, taken := g.cells[c]; taken && other != item.ID {
		return fmt.Errorf("placing %s: %w", item, ErrCellOccupied)
	}
	if prev, ok := g.items[item.ID]; ok {
		g.removeLocked(prev)
	}
	g.items[item.ID] = item
	g.cells[c] = item.ID
	return nil
}

// Holds reports whether itemID is on the ground.
func (g *GroundCache) Holds(itemID string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.items[itemID]
	return ok
}

// Len returns the number of ground items.
func (g *GroundCache) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.items)
}

// SyncPickup records that ownerID now holds itemID.
// Failures are returned for the caller to log; the cache is not modified.
func (g *GroundCache) SyncPickup(ctx context.Context, itemID, ownerID string) error {
	if g.writer == nil {
		return nil
	}
	if err := g.writer.AssignOwner(ctx, itemID, ownerID); err != nil {
		return fmt.Errorf("persisting pickup of %s: %w", itemID, err)
	}
	return nil
}

// SyncDrop records that item lies unowned at its room and cell.
// Failures are returned for the caller to log; the cache is not modified.
func (g *GroundCache) SyncDrop(ctx context.Context, item WorldItem) error {
	if g.writer == nil {
		return nil
	}
	if err := g.writer.PlaceOnGround(ctx, item); err != nil {
		return fmt.Errorf("persisting drop of %s: %w", item.ID, err)
	}
	return nil
}
