package world

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrNoSource is reported when Load is called without a room source.
var ErrNoSource = errors.New("no room source configured")

// RoomSource provides the persisted room set.
type RoomSource interface {
	// ListRooms returns every active room.
	ListRooms(ctx context.Context) ([]Room, error)
}

// Directory provides thread-safe lookup of room metadata.
// Contents only change through Load, which replaces them wholesale.
type Directory struct {
	mu       sync.RWMutex
	rooms    map[string]Room
	degraded bool
}

// NewDirectory creates a Directory holding the fallback room set.
//
// Postcondition: Len() == len(FallbackRooms()) and Degraded() is true until a successful Load.
func NewDirectory() *Directory {
	d := &Directory{}
	d.replace(FallbackRooms(), true)
	return d
}

// FallbackRooms returns the minimal built-in room set used when persistence is unavailable.
func FallbackRooms() []Room {
	mk := func(id, name, bg string) Room {
		return Room{
			ID:          id,
			Name:        name,
			Background:  bg,
			Grid:        Grid{Width: GridWidth, Height: GridHeight},
			SpawnPoints: []Point{{X: 4, Y: 5}},
			MaxCapacity: 50,
			Active:      true,
		}
	}
	return []Room{
		mk("room1", "Rum 1", "bg1.jpeg"),
		mk("room2", "Rum 2", "bg2.jpeg"),
		mk("room3", "Rum 3", "bg3.jpg"),
	}
}

// Load replaces the directory contents with the rooms returned by source.
// If source is nil, fails, returns no rooms, or returns an invalid room set,
// the fallback set is installed instead and the cause is returned.
//
// Postcondition: The directory is never empty. Returns the number of rooms now held.
func (d *Directory) Load(ctx context.Context, source RoomSource) (int, error) {
	if source == nil {
		return d.fallback(ErrNoSource)
	}
	rooms, err := source.ListRooms(ctx)
	if err != nil {
		return d.fallback(fmt.Errorf("listing rooms: %w", err))
	}
	if len(rooms) == 0 {
		return d.fallback(errors.New("room source returned no rooms"))
	}
	if err := validateSet(rooms); err != nil {
		return d.fallback(err)
	}
	d.replace(rooms, false)
	return len(rooms), nil
}

func (d *Directory) fallback(cause error) (int, error) {
	rooms := FallbackRooms()
	d.replace(rooms, true)
	return len(rooms), cause
}

func (d *Directory) replace(rooms []Room, degraded bool) {
	m := make(map[string]Room, len(rooms))
	for _, r := range rooms {
		m[r.ID] = r
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rooms = m
	d.degraded = degraded
}

func validateSet(rooms []Room) error {
	seen := make(map[string]bool, len(rooms))
	for _, r := range rooms {
		if err := r.Validate(); err != nil {
			return err
		}
		if seen[r.ID] {
			return fmt.Errorf("duplicate room ID: %q", r.ID)
		}
		seen[r.ID] = true
	}
	return nil
}

// Exists reports whether a room with the given ID is loaded.
func (d *Directory) Exists(id string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.rooms[id]
	return ok
}

// Get returns the room with the given ID.
//
// Postcondition: Returns (room, true) if found, or (zero, false) otherwise.
func (d *Directory) Get(id string) (Room, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.rooms[id]
	return r, ok
}

// IDs returns all room IDs in sorted order.
func (d *Directory) IDs() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ids := make([]string, 0, len(d.rooms))
	for id := range d.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of loaded rooms.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.rooms)
}

// Degraded reports whether the directory is serving the fallback room set.
func (d *Directory) Degraded() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.degraded
}
