// Package world provides the room model and the room directory.
package world

import "fmt"

// Grid bounds shared by every room. Per-room grid dimensions are stored for
// clients but movement is always validated against these.
const (
	GridWidth  = 10
	GridHeight = 32
)

// Point is a grid cell.
type Point struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

// InBounds reports whether (x, y) lies inside the shared grid.
func InBounds(x, y int) bool {
	return x >= 0 && x < GridWidth && y >= 0 && y < GridHeight
}

// Clamp moves p to the nearest in-bounds cell.
//
// Postcondition: InBounds(result.X, result.Y) is true.
func Clamp(p Point) Point {
	return Point{X: clamp(p.X, 0, GridWidth-1), Y: clamp(p.Y, 0, GridHeight-1)}
}

// Center returns the geometric center of the shared grid.
func Center() Point {
	return Point{X: GridWidth / 2, Y: GridHeight / 2}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Grid is the advertised grid size of a room.
type Grid struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Room is static room configuration. Rooms are immutable after load.
type Room struct {
	// ID is the primary key referenced by sessions and ground items.
	ID string
	// Name is the display name.
	Name string
	// Background is a client-side asset reference.
	Background string
	// Grid is the advertised grid size.
	Grid Grid
	// SpawnPoints are suggested arrival cells.
	SpawnPoints []Point
	// MaxCapacity is advisory and not enforced at join time.
	MaxCapacity int
	// Active is false for rooms hidden from clients.
	Active bool
}

// Validate checks the room's own invariants.
//
// Postcondition: Returns nil if the room has an ID, a positive grid, and in-bounds spawn points.
func (r Room) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("room ID must not be empty")
	}
	if r.Grid.Width < 1 || r.Grid.Height < 1 {
		return fmt.Errorf("room %q: grid must be positive, got %dx%d", r.ID, r.Grid.Width, r.Grid.Height)
	}
	for _, sp := range r.SpawnPoints {
		if !InBounds(sp.X, sp.Y) {
			return fmt.Errorf("room %q: spawn point (%d,%d) out of bounds", r.ID, sp.X, sp.Y)
		}
	}
	if r.MaxCapacity < 0 {
		return fmt.Errorf("room %q: max capacity must not be negative", r.ID)
	}
	return nil
}
