package gateway

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/cory-johannsen/hangout/internal/protocol"
)

// Gateway owns the connection table and the room → connections index.
// All methods are safe for concurrent use.
//
// A client whose buffer overflows is closed and dropped from every room so
// its transport observes the closed channel and disconnects.
type Gateway struct {
	mu         sync.Mutex
	clients    map[string]*Client
	rooms      map[string]map[string]bool // roomID → set of connIDs
	bufferSize int
	logger     *zap.Logger
}

// New creates an empty Gateway.
//
// Precondition: logger must be non-nil.
func New(bufferSize int, logger *zap.Logger) *Gateway {
	return &Gateway{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[string]bool),
		bufferSize: bufferSize,
		logger:     logger,
	}
}

// Register creates the outbound queue for connID.
//
// Postcondition: Returns the new Client, or an error if connID is already registered.
func (g *Gateway) Register(connID string) (*Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.clients[connID]; exists {
		return nil, fmt.Errorf("connection %q already registered", connID)
	}
	c := NewClient(connID, g.bufferSize)
	g.clients[connID] = c
	return c, nil
}

// Unregister removes connID from every room and closes its queue.
// Unregistering an unknown connID is a no-op.
func (g *Gateway) Unregister(connID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.clients[connID]
	if !ok {
		return
	}
	g.leaveAllLocked(connID)
	delete(g.clients, connID)
	c.Close()
}

// Has reports whether connID is registered.
func (g *Gateway) Has(connID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.clients[connID]
	return ok
}

// Join adds connID to roomID's broadcast group.
//
// Precondition: connID must be registered.
func (g *Gateway) Join(connID, roomID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.clients[connID]; !ok {
		return
	}
	if g.rooms[roomID] == nil {
		g.rooms[roomID] = make(map[string]bool)
	}
	g.rooms[roomID][connID] = true
}

// Leave removes connID from roomID's broadcast group.
func (g *Gateway) Leave(connID, roomID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.leaveLocked(connID, roomID)
}

func (g *Gateway) leaveLocked(connID, roomID string) {
	members, ok := g.rooms[roomID]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(g.rooms, roomID)
	}
}

func (g *Gateway) leaveAllLocked(connID string) {
	for roomID := range g.rooms {
		g.leaveLocked(connID, roomID)
	}
}

// Members returns the connIDs joined to roomID in sorted order.
func (g *Gateway) Members(roomID string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, 0, len(g.rooms[roomID]))
	for id := range g.rooms[roomID] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Unicast enqueues an event for a single connection.
func (g *Gateway) Unicast(connID, event string, data any) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.clients[connID]
	if !ok {
		return
	}
	g.pushLocked(c, protocol.Envelope{Event: event, Data: data})
}

// Broadcast enqueues an event for every connection joined to roomID except
// excludeConnID. Pass an empty excludeConnID to include everyone.
func (g *Gateway) Broadcast(roomID, excludeConnID, event string, data any) {
	g.mu.Lock()
	defer g.mu.Unlock()
	env := protocol.Envelope{Event: event, Data: data}
	for connID := range g.rooms[roomID] {
		if connID == excludeConnID {
			continue
		}
		if c, ok := g.clients[connID]; ok {
			g.pushLocked(c, env)
		}
	}
}

func (g *Gateway) pushLocked(c *Client, env protocol.Envelope) {
	if err := c.Push(env); err != nil {
		g.logger.Warn("push to client failed, dropping connection",
			zap.String("conn_id", c.connID),
			zap.String("event", env.Event),
			zap.Error(err),
		)
		g.leaveAllLocked(c.connID)
		delete(g.clients, c.connID)
		c.Close()
	}
}

// Len returns the number of registered connections.
func (g *Gateway) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.clients)
}
