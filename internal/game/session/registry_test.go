package session

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/hangout/internal/game/inventory"
	"github.com/cory-johannsen/hangout/internal/game/world"
)

func params(conn, user, room string) Params {
	return Params{
		ConnID:   conn,
		Username: user,
		UserID:   "id-" + user,
		Room:     room,
		Position: world.Point{X: 4, Y: 5},
	}
}

func TestRegistry_Create(t *testing.T) {
	r := NewRegistry()
	s, err := r.Create(params("c1", "Zoidberg", "room1"))
	require.NoError(t, err)
	assert.Equal(t, "Zoidberg", s.Username)
	assert.Equal(t, "room1", s.Room)
	assert.Equal(t, world.Point{X: 4, Y: 5}, s.Position())
	assert.Equal(t, 1, r.Count())
}

func TestRegistry_CreateCopiesInventory(t *testing.T) {
	r := NewRegistry()
	sp := params("c1", "Zoidberg", "room1")
	sp.Inventory = []inventory.Entry{{ID: "f1", Type: "flower"}}
	s, err := r.Create(sp)
	require.NoError(t, err)

	sp.Inventory[0].ID = "mutated"
	assert.Equal(t, "f1", s.Inventory[0].ID)
}

func TestRegistry_CreateDuplicateConnection(t *testing.T) {
	r := NewRegistry()
	_, err := r.Create(params("c1", "Zoidberg", "room1"))
	require.NoError(t, err)
	_, err = r.Create(params("c1", "Jeffmayn", "room1"))
	assert.ErrorIs(t, err, ErrDuplicateConnection)
}

func TestRegistry_CreateUsernameInUse(t *testing.T) {
	r := NewRegistry()
	_, err := r.Create(params("c1", "Zoidberg", "room1"))
	require.NoError(t, err)
	_, err = r.Create(params("c2", "Zoidberg", "room2"))
	assert.ErrorIs(t, err, ErrUsernameInUse)

	r.Remove("c1")
	_, err = r.Create(params("c2", "Zoidberg", "room2"))
	assert.NoError(t, err, "username is free again after removal")
}

func TestRegistry_RemoveIdempotent(t *testing.T) {
	r := NewRegistry()
	_, err := r.Create(params("c1", "Zoidberg", "room1"))
	require.NoError(t, err)

	assert.NotNil(t, r.Remove("c1"))
	assert.Nil(t, r.Remove("c1"))
	assert.Equal(t, 0, r.Count())
	_, ok := r.Get("c1")
	assert.False(t, ok)
}

func TestRegistry_ListInRoom(t *testing.T) {
	r := NewRegistry()
	for i, room := range []string{"room1", "room1", "room2"} {
		_, err := r.Create(params(fmt.Sprintf("c%d", i), fmt.Sprintf("user%d", i), room))
		require.NoError(t, err)
	}

	assert.Len(t, r.ListInRoom("room1", ""), 2)
	others := r.ListInRoom("room1", "c0")
	require.Len(t, others, 1)
	assert.Equal(t, "c1", others[0].ConnID)
	assert.Empty(t, r.ListInRoom("room3", ""))

	s, _ := r.Get("c2")
	s.Room = "room1"
	assert.Len(t, r.ListInRoom("room1", ""), 3, "ListInRoom follows the session's current room")
}

func TestRegistry_ConcurrentCreate(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = r.Create(params(fmt.Sprintf("c%d", i), fmt.Sprintf("user%d", i), "room1"))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, r.Count())
}

func TestSession_InventorySnapshot(t *testing.T) {
	s := &Session{Inventory: []inventory.Entry{{ID: "f1", Type: "flower"}}}
	snap := s.InventorySnapshot()
	snap[0].ID = "x"
	assert.Equal(t, "f1", s.Inventory[0].ID)
}

func TestRandomAvatar_PicksFromChoiceSets(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 100; i++ {
		a := RandomAvatar(rng)
		assert.Contains(t, AvatarTypes, a.Type)
		assert.Contains(t, HairColors, a.HairColor)
		assert.Contains(t, SkinTones, a.SkinTone)
		assert.Contains(t, ClothingColors, a.ClothingColor)
	}
}

func TestPropertyUsernameUniqueness(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		r := NewRegistry()
		live := map[string]string{} // username → connID
		n := rapid.IntRange(1, 40).Draw(t, "n")
		for i := 0; i < n; i++ {
			user := rapid.SampledFrom([]string{"a", "b", "c", "d"}).Draw(t, "user")
			conn := fmt.Sprintf("c%d", i)
			if rapid.Bool().Draw(t, "remove") {
				if c, ok := live[user]; ok {
					r.Remove(c)
					delete(live, user)
				}
				continue
			}
			_, err := r.Create(params(conn, user, "room1"))
			_, held := live[user]
			if held && err == nil {
				t.Fatalf("second live session for %q accepted", user)
			}
			if !held && err != nil {
				t.Fatalf("create for free username %q failed: %v", user, err)
			}
			if err == nil {
				live[user] = conn
			}
		}
		if r.Count() != len(live) {
			t.Fatalf("Count %d != live %d", r.Count(), len(live))
		}
	})
}
