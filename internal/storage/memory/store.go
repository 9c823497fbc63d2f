// Package memory provides an in-process store used when PostgreSQL is not
// configured. Contents are seeded from content files and lost on exit.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cory-johannsen/hangout/internal/content"
	"github.com/cory-johannsen/hangout/internal/game/account"
	"github.com/cory-johannsen/hangout/internal/game/inventory"
	"github.com/cory-johannsen/hangout/internal/game/world"
	"github.com/cory-johannsen/hangout/internal/storage"
)

type itemRecord struct {
	item     inventory.WorldItem
	ownerID  string
	// acquired orders a user's inventory by pickup.
	acquired uint64
}

// Store implements every persistence interface of the presence engine.
// All methods are safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	users map[string]*account.User // username → user
	byID  map[string]*account.User // id → user
	items map[string]*itemRecord
	rooms []world.Room
	clock uint64
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		users: make(map[string]*account.User),
		byID:  make(map[string]*account.User),
		items: make(map[string]*itemRecord),
	}
}

// NewFromSeed creates a Store holding seed's rooms, items and users.
//
// Precondition: seed must have passed Validate.
// Postcondition: Returns a populated Store or an error if a password could not be hashed.
func NewFromSeed(ctx context.Context, seed *content.Seed) (*Store, error) {
	s := New()
	s.rooms = append([]world.Room(nil), seed.Rooms...)
	for _, it := range seed.Items {
		id := uuid.NewString()
		s.items[id] = &itemRecord{item: inventory.WorldItem{ID: id, Type: it.Type, Room: it.Room, GridX: it.GridX, GridY: it.GridY}}
	}
	for _, u := range seed.Users {
		created, err := s.CreateUser(ctx, u.Username, u.Password)
		if err != nil {
			return nil, fmt.Errorf("seeding user %q: %w", u.Username, err)
		}
		if u.LastPosition != nil {
			if err := s.SaveLastPosition(ctx, created.ID, *u.LastPosition); err != nil {
				return nil, err
			}
		}
	}
	return s, nil
}

// CreateUser inserts a user with a bcrypt-hashed password.
//
// Postcondition: Returns the created user, or storage.ErrUserExists.
func (s *Store) CreateUser(_ context.Context, username, password string) (account.User, error) {
	hash, err := account.HashPassword(password)
	if err != nil {
		return account.User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[username]; exists {
		return account.User{}, storage.ErrUserExists
	}
	u := &account.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	}
	s.users[username] = u
	s.byID[u.ID] = u
	return *u, nil
}

// Authenticate verifies credentials.
//
// Postcondition: Returns the user, or account.ErrInvalidCredentials for an unknown
// username or wrong password.
func (s *Store) Authenticate(_ context.Context, username, password string) (account.User, error) {
	s.mu.RLock()
	u, ok := s.users[username]
	var snapshot account.User
	if ok {
		snapshot = copyUser(u)
	}
	s.mu.RUnlock()
	if !ok || !account.CheckPassword(password, snapshot.PasswordHash) {
		return account.User{}, account.ErrInvalidCredentials
	}
	return snapshot, nil
}

// GetByUsername returns the user named username, or storage.ErrUserNotFound.
func (s *Store) GetByUsername(_ context.Context, username string) (account.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[username]
	if !ok {
		return account.User{}, storage.ErrUserNotFound
	}
	return copyUser(u), nil
}

func copyUser(u *account.User) account.User {
	c := *u
	if u.LastPosition != nil {
		p := *u.LastPosition
		c.LastPosition = &p
	}
	return c
}

// SaveLastPosition records userID's last room and cell.
func (s *Store) SaveLastPosition(_ context.Context, userID string, pos account.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[userID]
	if !ok {
		return fmt.Errorf("saving position for %s: %w", userID, storage.ErrUserNotFound)
	}
	u.LastPosition = &pos
	return nil
}

// ListRooms returns every active room.
func (s *Store) ListRooms(context.Context) ([]world.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]world.Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		if r.Active {
			out = append(out, r)
		}
	}
	return out, nil
}

// ListGroundItems returns every unowned item.
func (s *Store) ListGroundItems(context.Context) ([]inventory.WorldItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]inventory.WorldItem, 0, len(s.items))
	for _, rec := range s.items {
		if rec.ownerID == "" {
			out = append(out, rec.item)
		}
	}
	return out, nil
}

// ListOwnedItems returns ownerID's items in pickup order.
func (s *Store) ListOwnedItems(_ context.Context, ownerID string) ([]inventory.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var owned []*itemRecord
	for _, rec := range s.items {
		if rec.ownerID == ownerID {
			owned = append(owned, rec)
		}
	}
	sort.Slice(owned, func(i, j int) bool { return owned[i].acquired < owned[j].acquired })
	out := make([]inventory.Entry, 0, len(owned))
	for _, rec := range owned {
		out = append(out, rec.item.Entry())
	}
	return out, nil
}

// AssignOwner marks itemID as held by ownerID.
func (s *Store) AssignOwner(_ context.Context, itemID, ownerID string) error {
	if ownerID == "" {
		return errors.New("owner ID must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.items[itemID]
	if !ok {
		return fmt.Errorf("assigning %s: %w", itemID, storage.ErrItemNotFound)
	}
	s.clock++
	rec.ownerID = ownerID
	rec.acquired = s.clock
	return nil
}

// PlaceOnGround clears the owner of item.ID and records its room and cell.
func (s *Store) PlaceOnGround(_ context.Context, item inventory.WorldItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.items[item.ID]
	if !ok {
		return fmt.Errorf("placing %s: %w", item.ID, storage.ErrItemNotFound)
	}
	rec.ownerID = ""
	rec.acquired = 0
	rec.item.Room, rec.item.GridX, rec.item.GridY = item.Room, item.GridX, item.GridY
	return nil
}
