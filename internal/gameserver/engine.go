// Package gameserver implements the presence engine and its gRPC transport.
package gameserver

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/hangout/internal/game/account"
	"github.com/cory-johannsen/hangout/internal/game/inventory"
	"github.com/cory-johannsen/hangout/internal/game/session"
	"github.com/cory-johannsen/hangout/internal/game/world"
	"github.com/cory-johannsen/hangout/internal/gateway"
	"github.com/cory-johannsen/hangout/internal/protocol"
)

// InventoryLoader loads the items a user holds.
type InventoryLoader interface {
	ListOwnedItems(ctx context.Context, ownerID string) ([]inventory.Entry, error)
}

// Deps are the collaborators an Engine operates on.
type Deps struct {
	Auth      account.Authenticator
	Inventory InventoryLoader
	// Positions is optional; when nil, last positions are never flushed.
	Positions account.PositionWriter
	Rooms     *world.Directory
	Ground    *inventory.GroundCache
	Sessions  *session.Registry
	Gateway   *gateway.Gateway
	// Scheduler is optional; defaults to the wall clock.
	Scheduler Scheduler
	// Rand is optional; defaults to a time-seeded source.
	Rand   *rand.Rand
	Logger *zap.Logger
}

// Options tune engine behavior.
type Options struct {
	// DefaultRoom is used when a user's last room is unknown.
	DefaultRoom string
	// PersistTimeout bounds each persistence call.
	PersistTimeout time.Duration
	// FlushPosition saves the last position on disconnect and room change.
	FlushPosition bool
}

// DefaultSpawn is the login cell for users with no stored position.
var DefaultSpawn = world.Point{X: 4, Y: 5}

// Engine is the presence state machine. One mutex serializes every in-memory
// read and write of the session registry, ground cache, and gateway membership.
// Persistence calls run outside the lock.
type Engine struct {
	mu sync.Mutex

	auth      account.Authenticator
	loader    InventoryLoader
	positions account.PositionWriter
	rooms     *world.Directory
	ground    *inventory.GroundCache
	sessions  *session.Registry
	gw        *gateway.Gateway
	sched     Scheduler
	rng       *rand.Rand
	logger    *zap.Logger
	opts      Options
}

// NewEngine creates an Engine.
//
// Precondition: deps.Auth, deps.Inventory, deps.Rooms, deps.Ground, deps.Sessions,
// deps.Gateway and deps.Logger must be non-nil.
// Postcondition: Returns an Engine ready to accept connections.
func NewEngine(deps Deps, opts Options) *Engine {
	if deps.Scheduler == nil {
		deps.Scheduler = WallClock{}
	}
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.DefaultRoom == "" {
		opts.DefaultRoom = "room1"
	}
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = 5 * time.Second
	}
	return &Engine{
		auth:      deps.Auth,
		loader:    deps.Inventory,
		positions: deps.Positions,
		rooms:     deps.Rooms,
		ground:    deps.Ground,
		sessions:  deps.Sessions,
		gw:        deps.Gateway,
		sched:     deps.Scheduler,
		rng:       deps.Rand,
		logger:    deps.Logger,
		opts:      opts,
	}
}

// Connect registers a new connection and returns its outbound queue.
//
// Postcondition: The connection is anonymous until a successful login.
func (e *Engine) Connect(connID string) (*gateway.Client, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, err := e.gw.Register(connID)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("connection opened", zap.String("conn_id", connID))
	return c, nil
}

// Dispatch applies one inbound event from connID. Events other than login
// received before a successful login are ignored, as are malformed payloads.
func (e *Engine) Dispatch(ctx context.Context, connID string, in protocol.Inbound) {
	if in.Event == protocol.EventLogin {
		req, err := in.Login()
		if err != nil {
			e.rejectPayload(connID, in.Event, err)
			return
		}
		e.Login(ctx, connID, req.Username, req.Password)
		return
	}

	if !e.loggedIn(connID) {
		e.logger.Debug("ignoring event before login",
			zap.String("conn_id", connID),
			zap.String("event", in.Event),
		)
		return
	}

	switch in.Event {
	case protocol.EventMoveToGrid:
		req, err := in.Move()
		if err != nil {
			e.rejectPayload(connID, in.Event, err)
			return
		}
		e.Move(connID, req.GridX, req.GridY)
	case protocol.EventChat:
		text, err := in.Text()
		if err != nil {
			e.rejectPayload(connID, in.Event, err)
			return
		}
		e.Chat(connID, text)
	case protocol.EventPickupItem:
		e.PickupItem(ctx, connID)
	case protocol.EventDropItem:
		itemID, err := in.Text()
		if err != nil {
			e.rejectPayload(connID, in.Event, err)
			return
		}
		e.DropItem(ctx, connID, itemID)
	case protocol.EventChangeRoom:
		roomID, err := in.Text()
		if err != nil {
			e.rejectPayload(connID, in.Event, err)
			return
		}
		e.ChangeRoom(ctx, connID, roomID)
	default:
		e.logger.Debug("ignoring unknown event",
			zap.String("conn_id", connID),
			zap.String("event", in.Event),
		)
	}
}

func (e *Engine) rejectPayload(connID, event string, err error) {
	e.logger.Debug("rejecting malformed payload",
		zap.String("conn_id", connID),
		zap.String("event", event),
		zap.Error(err),
	)
}

func (e *Engine) loggedIn(connID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.sessions.Get(connID)
	return ok
}

// Disconnect tears down connID. If a session exists, the room is told the
// user left and the session is removed. Safe to call more than once.
func (e *Engine) Disconnect(ctx context.Context, connID string) {
	e.mu.Lock()
	e.gw.Unregister(connID)
	sess := e.sessions.Remove(connID)
	if sess == nil {
		e.mu.Unlock()
		return
	}
	e.gw.Broadcast(sess.Room, "", protocol.EventSystemMessage, protocol.SystemMessage{
		Message: sess.Username + " left the room",
		UserID:  connID,
	})
	e.gw.Broadcast(sess.Room, "", protocol.EventUserLeft, connID)
	username, userID := sess.Username, sess.UserID
	last := account.Position{Room: sess.Room, GridX: sess.GridX, GridY: sess.GridY}
	e.mu.Unlock()

	e.logger.Info("session closed",
		zap.String("conn_id", connID),
		zap.String("username", username),
		zap.String("room", last.Room),
	)
	e.flushPosition(ctx, userID, last)
}

// Stats is a point-in-time summary of engine state.
type Stats struct {
	Sessions    int  `json:"sessions"`
	Connections int  `json:"connections"`
	Rooms       int  `json:"rooms"`
	GroundItems int  `json:"groundItems"`
	Degraded    bool `json:"degraded"`
}

// Stats reports current counts.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Stats{
		Sessions:    e.sessions.Count(),
		Connections: e.gw.Len(),
		Rooms:       e.rooms.Len(),
		GroundItems: e.ground.Len(),
		Degraded:    e.rooms.Degraded(),
	}
}

// persistCtx derives a bounded context for a persistence call that must
// complete even if the originating connection goes away.
func (e *Engine) persistCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), e.opts.PersistTimeout)
}

func (e *Engine) flushPosition(ctx context.Context, userID string, pos account.Position) {
	if !e.opts.FlushPosition || e.positions == nil {
		return
	}
	pctx, cancel := e.persistCtx(ctx)
	defer cancel()
	if err := e.positions.SaveLastPosition(pctx, userID, pos); err != nil {
		e.logger.Warn("saving last position",
			zap.String("user_id", userID),
			zap.String("room", pos.Room),
			zap.Error(err),
		)
	}
}
