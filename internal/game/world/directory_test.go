package world

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type stubSource struct {
	rooms []Room
	err   error
}

func (s stubSource) ListRooms(context.Context) ([]Room, error) {
	return s.rooms, s.err
}

func testRoom(id string) Room {
	return Room{
		ID:          id,
		Name:        "Room " + id,
		Background:  "/backgrounds/" + id + ".jpg",
		Grid:        Grid{Width: GridWidth, Height: GridHeight},
		SpawnPoints: []Point{{X: 1, Y: 1}},
		MaxCapacity: 10,
		Active:      true,
	}
}

func TestNewDirectory_StartsWithFallback(t *testing.T) {
	d := NewDirectory()
	assert.Equal(t, 3, d.Len())
	assert.True(t, d.Degraded())
	assert.Equal(t, []string{"room1", "room2", "room3"}, d.IDs())
}

func TestDirectory_Load(t *testing.T) {
	d := NewDirectory()
	n, err := d.Load(context.Background(), stubSource{rooms: []Room{testRoom("lobby"), testRoom("garden")}})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.False(t, d.Degraded())
	assert.True(t, d.Exists("lobby"))
	assert.False(t, d.Exists("room1"), "load replaces wholesale")

	r, ok := d.Get("garden")
	require.True(t, ok)
	assert.Equal(t, "Room garden", r.Name)
}

func TestDirectory_LoadFailureFallsBack(t *testing.T) {
	d := NewDirectory()
	_, err := d.Load(context.Background(), stubSource{rooms: []Room{testRoom("lobby")}})
	require.NoError(t, err)

	boom := errors.New("connection refused")
	n, err := d.Load(context.Background(), stubSource{err: boom})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, n)
	assert.True(t, d.Degraded())
	assert.True(t, d.Exists("room1"))
	assert.False(t, d.Exists("lobby"))
}

func TestDirectory_LoadNilSource(t *testing.T) {
	d := NewDirectory()
	n, err := d.Load(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoSource)
	assert.Equal(t, 3, n)
}

func TestDirectory_LoadEmptyFallsBack(t *testing.T) {
	d := NewDirectory()
	_, err := d.Load(context.Background(), stubSource{})
	assert.Error(t, err)
	assert.True(t, d.Degraded())
}

func TestDirectory_LoadDuplicateFallsBack(t *testing.T) {
	d := NewDirectory()
	_, err := d.Load(context.Background(), stubSource{rooms: []Room{testRoom("a"), testRoom("a")}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate room ID")
	assert.True(t, d.Exists("room1"))
}

func TestDirectory_GetMissing(t *testing.T) {
	d := NewDirectory()
	_, ok := d.Get("nonexistent")
	assert.False(t, ok)
}

func TestRoom_Validate(t *testing.T) {
	r := testRoom("a")
	assert.NoError(t, r.Validate())

	r.SpawnPoints = []Point{{X: GridWidth, Y: 0}}
	assert.Error(t, r.Validate())

	r = testRoom("")
	assert.Error(t, r.Validate())

	r = testRoom("a")
	r.Grid = Grid{}
	assert.Error(t, r.Validate())
}

func TestCenter(t *testing.T) {
	assert.Equal(t, Point{X: 5, Y: 16}, Center())
}

func TestPropertyClampAlwaysInBounds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		p := Point{
			X: rapid.IntRange(-100, 100).Draw(t, "x"),
			Y: rapid.IntRange(-100, 100).Draw(t, "y"),
		}
		c := Clamp(p)
		if !InBounds(c.X, c.Y) {
			t.Fatalf("Clamp(%v) = %v out of bounds", p, c)
		}
		if InBounds(p.X, p.Y) && c != p {
			t.Fatalf("Clamp moved in-bounds point %v to %v", p, c)
		}
	})
}
