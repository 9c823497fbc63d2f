package gameserver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/hangout/internal/game/account"
	"github.com/cory-johannsen/hangout/internal/game/inventory"
	"github.com/cory-johannsen/hangout/internal/game/session"
	"github.com/cory-johannsen/hangout/internal/game/world"
	"github.com/cory-johannsen/hangout/internal/protocol"
)

// Login error messages shown to the user.
const (
	MsgInvalidCredentials = "Wrong username or password"
	MsgLoginUnavailable   = "Login is unavailable, please try again"
	MsgAlreadyLoggedIn    = "This user is already logged in"
	MsgRoomFull           = "The room is full, please try again later"
)

// Login authenticates connID and places the new session in a room.
//
// Precondition: connID was returned by Connect.
// Postcondition: On success the session exists, the connection is joined to the
// room, the initiator receives loginSuccess, initialPosition, currentUsers,
// roomItems and inventoryUpdate, and the rest of the room receives userJoined and a systemMessage.
// On failure, including a room with no free cell, the initiator receives
// loginError and no session exists.
func (e *Engine) Login(ctx context.Context, connID, username, password string) {
	if e.loggedIn(connID) {
		e.logger.Debug("ignoring repeated login", zap.String("conn_id", connID))
		return
	}

	start := time.Now()
	actx, cancel := e.persistCtx(ctx)
	user, err := e.auth.Authenticate(actx, username, password)
	cancel()
	if err != nil {
		msg := MsgInvalidCredentials
		if !errors.Is(err, account.ErrInvalidCredentials) {
			msg = MsgLoginUnavailable
			e.logger.Error("authenticating",
				zap.String("conn_id", connID),
				zap.String("username", username),
				zap.Error(err),
			)
		}
		e.mu.Lock()
		e.gw.Unicast(connID, protocol.EventLoginError, msg)
		e.mu.Unlock()
		return
	}

	entries := e.loadInventory(ctx, user)

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.gw.Has(connID) {
		e.logger.Debug("connection closed during login", zap.String("conn_id", connID))
		return
	}
	if _, ok := e.sessions.Get(connID); ok {
		return
	}

	roomID := e.loginRoom(user.LastPosition)
	pos, ok := e.freeCell(roomID, connID, loginCell(user.LastPosition))
	if !ok {
		e.gw.Unicast(connID, protocol.EventLoginError, MsgRoomFull)
		return
	}

	sess, err := e.sessions.Create(session.Params{
		ConnID:    connID,
		Username:  user.Username,
		UserID:    user.ID,
		Room:      roomID,
		Position:  pos,
		Inventory: e.withoutGroundItems(entries),
		Avatar:    session.RandomAvatar(e.rng),
	})
	if err != nil {
		if errors.Is(err, session.ErrUsernameInUse) {
			e.gw.Unicast(connID, protocol.EventLoginError, MsgAlreadyLoggedIn)
			return
		}
		e.logger.Error("creating session", zap.String("conn_id", connID), zap.Error(err))
		e.gw.Unicast(connID, protocol.EventLoginError, MsgLoginUnavailable)
		return
	}

	e.gw.Join(connID, roomID)
	e.gw.Unicast(connID, protocol.EventLoginSuccess, protocol.LoginSuccess{Username: sess.Username})
	e.gw.Unicast(connID, protocol.EventInitialPosition, protocol.InitialPosition{GridX: pos.X, GridY: pos.Y, Room: roomID})
	e.sendRoomSnapshot(sess)
	e.gw.Unicast(connID, protocol.EventInventoryUpdate, protocol.Inventory(sess.InventorySnapshot()))
	e.gw.Broadcast(roomID, connID, protocol.EventUserJoined, protocol.Summarize(sess))
	e.gw.Broadcast(roomID, "", protocol.EventSystemMessage, protocol.SystemMessage{
		Message: fmt.Sprintf("%s entered the room at cell (%d, %d)", sess.Username, pos.X, pos.Y),
		UserID:  connID,
	})

	e.logger.Info("session created",
		zap.String("conn_id", connID),
		zap.String("username", sess.Username),
		zap.String("room", roomID),
		zap.Int("inventory", len(sess.Inventory)),
		zap.Duration("elapsed", time.Since(start)),
	)
}

func (e *Engine) loadInventory(ctx context.Context, user account.User) []inventory.Entry {
	lctx, cancel := e.persistCtx(ctx)
	defer cancel()
	entries, err := e.loader.ListOwnedItems(lctx, user.ID)
	if err != nil {
		e.logger.Warn("loading inventory, continuing with empty inventory",
			zap.String("username", user.Username),
			zap.Error(err),
		)
		return nil
	}
	return entries
}

// withoutGroundItems drops entries the ground cache still holds. The cache is
// authoritative when a drop write-through was lost.
//
// Precondition: e.mu is held.
func (e *Engine) withoutGroundItems(entries []inventory.Entry) []inventory.Entry {
	out := make([]inventory.Entry, 0, len(entries))
	for _, en := range entries {
		if e.ground.Holds(en.ID) {
			e.logger.Warn("ignoring owned item that lies on the ground", zap.String("item_id", en.ID))
			continue
		}
		out = append(out, en)
	}
	return out
}

// loginRoom picks the last room if it still exists, otherwise the default room.
//
// Precondition: e.mu is held.
func (e *Engine) loginRoom(last *account.Position) string {
	if last != nil && e.rooms.Exists(last.Room) {
		return last.Room
	}
	if e.rooms.Exists(e.opts.DefaultRoom) {
		return e.opts.DefaultRoom
	}
	return e.rooms.IDs()[0]
}

func loginCell(last *account.Position) world.Point {
	if last == nil {
		return DefaultSpawn
	}
	return world.Clamp(world.Point{X: last.GridX, Y: last.GridY})
}

// sendRoomSnapshot unicasts the other sessions and ground items of sess.Room.
//
// Precondition: e.mu is held.
func (e *Engine) sendRoomSnapshot(sess *session.Session) {
	others := e.sessions.ListInRoom(sess.Room, sess.ConnID)
	e.gw.Unicast(sess.ConnID, protocol.EventCurrentUsers, protocol.SummarizeAll(others))
	e.gw.Unicast(sess.ConnID, protocol.EventRoomItems, protocol.Items(e.ground.ItemsIn(sess.Room)))
}
