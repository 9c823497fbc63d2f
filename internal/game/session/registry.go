package session

import (
	"errors"
	"fmt"
	"sync"
)

// Registry errors.
var (
	ErrDuplicateConnection = errors.New("connection already has a session")
	ErrUsernameInUse       = errors.New("username already has a live session")
)

// Registry tracks one Session per live connection.
// All methods are safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	sessions   map[string]*Session // connID → session
	byUsername map[string]string   // username → connID
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions:   make(map[string]*Session),
		byUsername: make(map[string]string),
	}
}

// Create registers a new Session built from p.
//
// Precondition: p.ConnID and p.Username must be non-empty.
// Postcondition: Returns the created Session, or ErrDuplicateConnection if
// p.ConnID is registered, or ErrUsernameInUse if p.Username has a live session.
func (r *Registry) Create(p Params) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[p.ConnID]; exists {
		return nil, fmt.Errorf("creating session for %q: %w", p.ConnID, ErrDuplicateConnection)
	}
	if other, exists := r.byUsername[p.Username]; exists {
		return nil, fmt.Errorf("creating session for %q (held by %q): %w", p.Username, other, ErrUsernameInUse)
	}

	inv := append(p.Inventory[:0:0], p.Inventory...)
	sess := &Session{
		ConnID:    p.ConnID,
		Username:  p.Username,
		UserID:    p.UserID,
		Room:      p.Room,
		GridX:     p.Position.X,
		GridY:     p.Position.Y,
		Inventory: inv,
		Avatar:    p.Avatar,
	}
	r.sessions[p.ConnID] = sess
	r.byUsername[p.Username] = p.ConnID
	return sess, nil
}

// Get returns the session for connID.
//
// Postcondition: Returns (session, true) if registered, or (nil, false).
func (r *Registry) Get(connID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[connID]
	return s, ok
}

// Remove deletes the session for connID. Removing an unknown connID is a no-op.
//
// Postcondition: Returns the removed session, or nil if none was registered.
func (r *Registry) Remove(connID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[connID]
	if !ok {
		return nil
	}
	delete(r.sessions, connID)
	if r.byUsername[s.Username] == connID {
		delete(r.byUsername, s.Username)
	}
	return s
}

// ListInRoom returns every session in roomID except excludeConnID.
// Pass an empty excludeConnID to include all.
//
// Postcondition: Returns a new slice (may be empty); order is unspecified.
func (r *Registry) ListInRoom(roomID, excludeConnID string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0)
	for id, s := range r.sessions {
		if id == excludeConnID || s.Room != roomID {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
