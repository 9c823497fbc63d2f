package gameserver

import (
	"context"

	"go.uber.org/zap"

	"github.com/cory-johannsen/hangout/internal/game/inventory"
	"github.com/cory-johannsen/hangout/internal/protocol"
)

// MsgCellOccupied is sent when a drop targets a cell that already holds an item.
const MsgCellOccupied = "There is already an item on this cell"

// PickupItem moves the ground item under connID's session into its inventory.
// An empty cell is a no-op. The cell is claimed and cleared in one step, so of
// two concurrent pickups on one cell exactly one succeeds.
//
// Postcondition: After the ownership write completes, the item's room receives
// itemPickedUp and a systemMessage, and the initiator receives inventoryUpdate.
func (e *Engine) PickupItem(ctx context.Context, connID string) {
	e.mu.Lock()
	sess, ok := e.sessions.Get(connID)
	if !ok {
		e.mu.Unlock()
		return
	}
	item, ok := e.ground.TakeAt(sess.Room, sess.GridX, sess.GridY)
	if !ok {
		e.mu.Unlock()
		return
	}
	sess.Inventory = append(sess.Inventory, item.Entry())
	userID, username := sess.UserID, sess.Username
	e.mu.Unlock()

	pctx, cancel := e.persistCtx(ctx)
	if err := e.ground.SyncPickup(pctx, item.ID, userID); err != nil {
		e.logger.Error("persisting pickup, cache stays authoritative",
			zap.String("conn_id", connID),
			zap.String("user_id", userID),
			zap.String("item_id", item.ID),
			zap.String("room", item.Room),
			zap.Error(err),
		)
	}
	cancel()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.gw.Broadcast(item.Room, "", protocol.EventItemPickedUp, protocol.ItemPickedUp{ItemID: item.ID, UserID: connID})
	if sess, ok := e.sessions.Get(connID); ok {
		e.gw.Unicast(connID, protocol.EventInventoryUpdate, protocol.Inventory(sess.InventorySnapshot()))
	}
	e.gw.Broadcast(item.Room, "", protocol.EventSystemMessage, protocol.SystemMessage{
		Message: username + " picked up " + item.Type,
	})
	e.logger.Debug("item picked up",
		zap.String("conn_id", connID),
		zap.String("item_id", item.ID),
		zap.String("room", item.Room),
	)
}

// DropItem places itemID from connID's inventory on the session's cell.
// Unknown items are a no-op. An occupied cell is refused with a unicast
// systemMessage and no state change.
//
// Postcondition: After the ownership write completes, the item's room receives
// itemDropped and a systemMessage, and the initiator receives inventoryUpdate.
func (e *Engine) DropItem(ctx context.Context, connID, itemID string) {
	e.mu.Lock()
	sess, ok := e.sessions.Get(connID)
	if !ok {
		e.mu.Unlock()
		return
	}
	idx := inventory.IndexOf(sess.Inventory, itemID)
	if idx < 0 {
		e.mu.Unlock()
		return
	}
	item := sess.Inventory[idx].Place(sess.Room, sess.GridX, sess.GridY)
	if !e.ground.PutIfEmpty(item) {
		e.gw.Unicast(connID, protocol.EventSystemMessage, protocol.SystemMessage{Message: MsgCellOccupied})
		e.mu.Unlock()
		return
	}
	sess.Inventory = inventory.Without(sess.Inventory, idx)
	userID, username := sess.UserID, sess.Username
	e.mu.Unlock()

	pctx, cancel := e.persistCtx(ctx)
	if err := e.ground.SyncDrop(pctx, item); err != nil {
		e.logger.Error("persisting drop, cache stays authoritative",
			zap.String("conn_id", connID),
			zap.String("user_id", userID),
			zap.String("item_id", item.ID),
			zap.String("room", item.Room),
			zap.Int("grid_x", item.GridX),
			zap.Int("grid_y", item.GridY),
			zap.Error(err),
		)
	}
	cancel()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.gw.Broadcast(item.Room, "", protocol.EventItemDropped, item)
	if sess, ok := e.sessions.Get(connID); ok {
		e.gw.Unicast(connID, protocol.EventInventoryUpdate, protocol.Inventory(sess.InventorySnapshot()))
	}
	e.gw.Broadcast(item.Room, "", protocol.EventSystemMessage, protocol.SystemMessage{
		Message: username + " dropped " + item.Type,
	})
	e.logger.Debug("item dropped",
		zap.String("conn_id", connID),
		zap.String("item_id", item.ID),
		zap.String("room", item.Room),
	)
}
