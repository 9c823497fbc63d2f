// Package protocol defines the event envelope and payloads exchanged with clients.
package protocol

import (
	"github.com/cory-johannsen/hangout/internal/game/inventory"
	"github.com/cory-johannsen/hangout/internal/game/session"
)

// Inbound event names.
const (
	EventLogin      = "login"
	EventMoveToGrid = "moveToGrid"
	EventChat       = "chat"
	EventPickupItem = "pickupItem"
	EventDropItem   = "dropItem"
	EventChangeRoom = "changeRoom"
)

// Outbound event names.
const (
	EventLoginError      = "loginError"
	EventLoginSuccess    = "loginSuccess"
	EventInitialPosition = "initialPosition"
	EventCurrentUsers    = "currentUsers"
	EventRoomItems       = "roomItems"
	EventUserJoined      = "userJoined"
	EventUserMovedToGrid = "userMovedToGrid"
	EventUserChat        = "userChat"
	EventUserChatCleared = "userChatCleared"
	EventItemPickedUp    = "itemPickedUp"
	EventInventoryUpdate = "inventoryUpdate"
	EventItemDropped     = "itemDropped"
	EventRoomChanged     = "roomChanged"
	EventUserLeft        = "userLeft"
	EventSystemMessage   = "systemMessage"
)

// LoginRequest is the login payload.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// MoveRequest is the moveToGrid payload.
type MoveRequest struct {
	GridX int `json:"gridX"`
	GridY int `json:"gridY"`
}

// LoginSuccess confirms a login.
type LoginSuccess struct {
	Username string `json:"username"`
}

// InitialPosition is the spawn cell after login.
type InitialPosition struct {
	GridX int    `json:"gridX"`
	GridY int    `json:"gridY"`
	Room  string `json:"room"`
}

// RoomChanged confirms a room change.
type RoomChanged struct {
	Room  string `json:"room"`
	GridX int    `json:"gridX"`
	GridY int    `json:"gridY"`
}

// SessionSummary is the public view of a session.
type SessionSummary struct {
	ID          string         `json:"id"`
	Username    string         `json:"username"`
	GridX       int            `json:"gridX"`
	GridY       int            `json:"gridY"`
	CurrentRoom string         `json:"currentRoom"`
	ChatMessage *string        `json:"chatMessage"`
	Avatar      session.Avatar `json:"avatar"`
}

// Summarize builds the public view of s.
func Summarize(s *session.Session) SessionSummary {
	sum := SessionSummary{
		ID:          s.ConnID,
		Username:    s.Username,
		GridX:       s.GridX,
		GridY:       s.GridY,
		CurrentRoom: s.Room,
		Avatar:      s.Avatar,
	}
	if s.ChatMessage != "" {
		msg := s.ChatMessage
		sum.ChatMessage = &msg
	}
	return sum
}

// SummarizeAll builds the public view of every session.
func SummarizeAll(ss []*session.Session) []SessionSummary {
	out := make([]SessionSummary, 0, len(ss))
	for _, s := range ss {
		out = append(out, Summarize(s))
	}
	return out
}

// UserMoved announces a movement.
type UserMoved struct {
	ID    string `json:"id"`
	GridX int    `json:"gridX"`
	GridY int    `json:"gridY"`
}

// UserChat carries a chat bubble.
type UserChat struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Message  string `json:"message"`
}

// ItemPickedUp announces a pickup. UserID is the acting connection.
type ItemPickedUp struct {
	ItemID string `json:"itemId"`
	UserID string `json:"userId"`
}

// SystemMessage is a human-readable notice. UserID names the subject connection, if any.
type SystemMessage struct {
	Message string `json:"message"`
	UserID  string `json:"userId,omitempty"`
}

// Inventory returns a non-nil inventory payload.
func Inventory(entries []inventory.Entry) []inventory.Entry {
	if entries == nil {
		return []inventory.Entry{}
	}
	return entries
}

// Items returns a non-nil room items payload.
func Items(items []inventory.WorldItem) []inventory.WorldItem {
	if items == nil {
		return []inventory.WorldItem{}
	}
	return items
}
