package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile_ShippedSeed(t *testing.T) {
	seed, err := LoadFile("../../content/seed.yaml")
	require.NoError(t, err)

	assert.Len(t, seed.Rooms, 3)
	assert.Len(t, seed.Items, 10)
	require.Len(t, seed.Users, 2)

	zoidberg := seed.Users[1]
	assert.Equal(t, "Zoidberg", zoidberg.Username)
	require.NotNil(t, zoidberg.LastPosition)
	assert.Equal(t, "room1", zoidberg.LastPosition.Room)
	assert.Equal(t, 5, zoidberg.LastPosition.GridX)
	assert.Equal(t, 6, zoidberg.LastPosition.GridY)

	r := seed.Rooms[0]
	assert.Equal(t, "Rum 1", r.Name)
	assert.Equal(t, DefaultMaxCapacity, r.MaxCapacity)
	assert.True(t, r.Active)
	assert.Len(t, r.SpawnPoints, 3)
}

func TestLoadBytes_Defaults(t *testing.T) {
	seed, err := LoadBytes([]byte(`
rooms:
  - id: lobby
    name: Lobby
    background: lobby.png
    active: false
    max_capacity: 5
`))
	require.NoError(t, err)
	require.Len(t, seed.Rooms, 1)
	assert.Equal(t, 10, seed.Rooms[0].Grid.Width)
	assert.Equal(t, 32, seed.Rooms[0].Grid.Height)
	assert.False(t, seed.Rooms[0].Active)
	assert.Equal(t, 5, seed.Rooms[0].MaxCapacity)
}

func TestLoadBytes_Rejects(t *testing.T) {
	cases := map[string]string{
		"malformed": `rooms: [`,
		"duplicate room": `
rooms:
  - { id: a, name: A, background: a.png }
  - { id: a, name: A, background: a.png }`,
		"item in unknown room": `
rooms:
  - { id: a, name: A, background: a.png }
items:
  - { type: flower, room: b, grid_x: 1, grid_y: 1 }`,
		"item out of bounds": `
rooms:
  - { id: a, name: A, background: a.png }
items:
  - { type: flower, room: a, grid_x: 10, grid_y: 1 }`,
		"items share cell": `
rooms:
  - { id: a, name: A, background: a.png }
items:
  - { type: flower, room: a, grid_x: 1, grid_y: 1 }
  - { type: flower, room: a, grid_x: 1, grid_y: 1 }`,
		"duplicate user": `
users:
  - { username: u, password: p }
  - { username: u, password: p }`,
		"user without password": `
users:
  - { username: u }`,
		"user in unknown room": `
users:
  - { username: u, password: p, last_position: { room: nowhere, grid_x: 0, grid_y: 0 } }`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadBytes([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile("/nonexistent/seed.yaml")
	assert.Error(t, err)
}
