package gameserver

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/hangout/internal/game/account"
	"github.com/cory-johannsen/hangout/internal/game/world"
	"github.com/cory-johannsen/hangout/internal/protocol"
)

// Move places connID's session on (x, y). Out-of-bounds targets and cells held
// by another session in the same room are dropped without a reply.
//
// Postcondition: On success the whole room, mover included, receives
// userMovedToGrid and a systemMessage.
func (e *Engine) Move(connID string, x, y int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sess, ok := e.sessions.Get(connID)
	if !ok || !world.InBounds(x, y) {
		return
	}
	target := world.Point{X: x, Y: y}
	for _, other := range e.sessions.ListInRoom(sess.Room, connID) {
		if other.Position() == target {
			return
		}
	}

	sess.MoveTo(target)
	e.gw.Broadcast(sess.Room, "", protocol.EventUserMovedToGrid, protocol.UserMoved{ID: connID, GridX: x, GridY: y})
	e.gw.Broadcast(sess.Room, "", protocol.EventSystemMessage, protocol.SystemMessage{
		Message: fmt.Sprintf("%s moved to cell (%d, %d)", sess.Username, x, y),
		UserID:  connID,
	})
}

// ChangeRoom moves connID's session to roomID. Unknown rooms are ignored; a
// room with no free cell is refused with a unicast systemMessage.
//
// Postcondition: The old room receives a departure systemMessage and userLeft;
// the session stands on the center of the new room (or the nearest free cell);
// the initiator receives roomChanged, currentUsers and roomItems; the new room
// receives userJoined and a systemMessage.
func (e *Engine) ChangeRoom(ctx context.Context, connID, roomID string) {
	e.mu.Lock()

	sess, ok := e.sessions.Get(connID)
	if !ok || !e.rooms.Exists(roomID) {
		e.mu.Unlock()
		return
	}

	pos, free := e.freeCell(roomID, connID, world.Center())
	if !free {
		e.gw.Unicast(connID, protocol.EventSystemMessage, protocol.SystemMessage{Message: MsgRoomFull})
		e.mu.Unlock()
		return
	}

	oldRoom := sess.Room
	e.gw.Broadcast(oldRoom, "", protocol.EventSystemMessage, protocol.SystemMessage{
		Message: sess.Username + " left the room",
		UserID:  connID,
	})
	e.gw.Leave(connID, oldRoom)
	e.gw.Broadcast(oldRoom, "", protocol.EventUserLeft, connID)

	sess.Room = roomID
	sess.MoveTo(pos)
	e.gw.Join(connID, roomID)

	e.gw.Unicast(connID, protocol.EventRoomChanged, protocol.RoomChanged{Room: roomID, GridX: pos.X, GridY: pos.Y})
	e.sendRoomSnapshot(sess)
	e.gw.Broadcast(roomID, connID, protocol.EventUserJoined, protocol.Summarize(sess))
	e.gw.Broadcast(roomID, "", protocol.EventSystemMessage, protocol.SystemMessage{
		Message: sess.Username + " entered the room",
		UserID:  connID,
	})

	userID, username := sess.UserID, sess.Username
	e.mu.Unlock()

	e.logger.Debug("room changed",
		zap.String("conn_id", connID),
		zap.String("username", username),
		zap.String("from", oldRoom),
		zap.String("room", roomID),
	)
	e.flushPosition(ctx, userID, account.Position{Room: roomID, GridX: pos.X, GridY: pos.Y})
}
