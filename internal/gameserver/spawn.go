package gameserver

import (
	"github.com/cory-johannsen/hangout/internal/game/world"
)

// freeCell returns preferred if no other session in roomID stands on it,
// otherwise the nearest unoccupied cell by Manhattan distance, scanning each
// distance ring in row-major order.
//
// Precondition: e.mu is held; world.InBounds(preferred.X, preferred.Y).
// Postcondition: Returns false if every cell of the room is taken.
func (e *Engine) freeCell(roomID, excludeConnID string, preferred world.Point) (world.Point, bool) {
	taken := make(map[world.Point]bool)
	for _, s := range e.sessions.ListInRoom(roomID, excludeConnID) {
		taken[s.Position()] = true
	}
	if !taken[preferred] {
		return preferred, true
	}
	maxDist := world.GridWidth + world.GridHeight
	for d := 1; d <= maxDist; d++ {
		for dy := -d; dy <= d; dy++ {
			rest := d - abs(dy)
			for _, dx := range []int{-rest, rest} {
				p := world.Point{X: preferred.X + dx, Y: preferred.Y + dy}
				if world.InBounds(p.X, p.Y) && !taken[p] {
					return p, true
				}
				if rest == 0 {
					break
				}
			}
		}
	}
	return world.Point{}, false
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
