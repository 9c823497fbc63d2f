// Package session provides live session state and the session registry.
package session

import (
	"github.com/cory-johannsen/hangout/internal/game/inventory"
	"github.com/cory-johannsen/hangout/internal/game/world"
)

// MaxChatLength is the maximum number of characters kept from a chat message.
const MaxChatLength = 50

// Session is the live state of one authenticated connection.
//
// The registry only stores sessions; every field mutation happens inside a
// presence engine operation while the engine lock is held.
type Session struct {
	// ConnID identifies the live connection.
	ConnID string
	// Username is the account username.
	Username string
	// UserID is the persistent user identifier used for item ownership.
	UserID string
	// Room is the current room ID.
	Room string
	// GridX and GridY are the current cell, always within world bounds.
	GridX int
	GridY int
	// Inventory holds the user's items in pickup order.
	Inventory []inventory.Entry
	// ChatMessage is the visible chat bubble, empty when none.
	ChatMessage string
	// ChatGeneration increments on every accepted chat message.
	ChatGeneration uint64
	// Avatar is the cosmetic appearance assigned at login.
	Avatar Avatar
}

// Params carries the values a Session is created from.
type Params struct {
	ConnID    string
	Username  string
	UserID    string
	Room      string
	Position  world.Point
	Inventory []inventory.Entry
	Avatar    Avatar
}

// Position returns the session's current cell.
func (s *Session) Position() world.Point {
	return world.Point{X: s.GridX, Y: s.GridY}
}

// MoveTo sets the session's cell.
//
// Precondition: world.InBounds(p.X, p.Y).
func (s *Session) MoveTo(p world.Point) {
	s.GridX, s.GridY = p.X, p.Y
}

// InventorySnapshot returns a copy of the session's inventory.
func (s *Session) InventorySnapshot() []inventory.Entry {
	out := make([]inventory.Entry, len(s.Inventory))
	copy(out, s.Inventory)
	return out
}
