// Package content loads the YAML seed file describing rooms, items and users.
package content

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/hangout/internal/game/account"
	"github.com/cory-johannsen/hangout/internal/game/world"
)

// Seed is the validated content of a seed file.
type Seed struct {
	Rooms []world.Room
	Items []Item
	Users []User
}

// Item is a seeded ground item. IDs are issued by the store.
type Item struct {
	Type  string
	Room  string
	GridX int
	GridY int
}

// User is a seeded user with a plaintext password to be hashed by the store.
type User struct {
	Username     string
	Password     string
	LastPosition *account.Position
}

type yamlSeedFile struct {
	Rooms []yamlRoom `yaml:"rooms"`
	Items []yamlItem `yaml:"items"`
	Users []yamlUser `yaml:"users"`
}

type yamlRoom struct {
	ID          string        `yaml:"id"`
	Name        string        `yaml:"name"`
	Background  string        `yaml:"background"`
	Grid        *world.Grid   `yaml:"grid"`
	SpawnPoints []world.Point `yaml:"spawn_points"`
	MaxCapacity *int          `yaml:"max_capacity"`
	Active      *bool         `yaml:"active"`
}

type yamlItem struct {
	Type  string `yaml:"type"`
	Room  string `yaml:"room"`
	GridX int    `yaml:"grid_x"`
	GridY int    `yaml:"grid_y"`
}

type yamlUser struct {
	Username     string            `yaml:"username"`
	Password     string            `yaml:"password"`
	LastPosition *account.Position `yaml:"last_position"`
}

// DefaultMaxCapacity is applied to rooms that do not set max_capacity.
const DefaultMaxCapacity = 50

// LoadFile reads and validates a seed file.
//
// Precondition: path must point to a YAML seed file.
// Postcondition: Returns a validated Seed or a non-nil error.
func LoadFile(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file %s: %w", path, err)
	}
	return LoadBytes(data)
}

// LoadBytes parses and validates a seed from YAML bytes.
//
// Postcondition: Returns a validated Seed or a non-nil error.
func LoadBytes(data []byte) (*Seed, error) {
	var file yamlSeedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing seed YAML: %w", err)
	}
	seed := convert(file)
	if err := seed.Validate(); err != nil {
		return nil, fmt.Errorf("validating seed: %w", err)
	}
	return seed, nil
}

func convert(f yamlSeedFile) *Seed {
	s := &Seed{}
	for _, yr := range f.Rooms {
		r := world.Room{
			ID:          yr.ID,
			Name:        yr.Name,
			Background:  yr.Background,
			Grid:        world.Grid{Width: world.GridWidth, Height: world.GridHeight},
			SpawnPoints: yr.SpawnPoints,
			MaxCapacity: DefaultMaxCapacity,
			Active:      true,
		}
		if yr.Grid != nil {
			r.Grid = *yr.Grid
		}
		if yr.MaxCapacity != nil {
			r.MaxCapacity = *yr.MaxCapacity
		}
		if yr.Active != nil {
			r.Active = *yr.Active
		}
		s.Rooms = append(s.Rooms, r)
	}
	for _, yi := range f.Items {
		s.Items = append(s.Items, Item{Type: yi.Type, Room: yi.Room, GridX: yi.GridX, GridY: yi.GridY})
	}
	for _, yu := range f.Users {
		s.Users = append(s.Users, User{Username: yu.Username, Password: yu.Password, LastPosition: yu.LastPosition})
	}
	return s
}

// Validate checks cross-references: rooms are valid and unique, items sit
// in-bounds in known rooms without sharing a cell, usernames are unique.
func (s *Seed) Validate() error {
	rooms := make(map[string]bool, len(s.Rooms))
	for _, r := range s.Rooms {
		if err := r.Validate(); err != nil {
			return err
		}
		if rooms[r.ID] {
			return fmt.Errorf("duplicate room ID: %q", r.ID)
		}
		rooms[r.ID] = true
	}

	type cell struct {
		room string
		x, y int
	}
	cells := make(map[cell]bool, len(s.Items))
	for i, it := range s.Items {
		if it.Type == "" {
			return fmt.Errorf("item %d: type must not be empty", i)
		}
		if !rooms[it.Room] {
			return fmt.Errorf("item %d: unknown room %q", i, it.Room)
		}
		if !world.InBounds(it.GridX, it.GridY) {
			return fmt.Errorf("item %d: cell (%d,%d) out of bounds", i, it.GridX, it.GridY)
		}
		c := cell{it.Room, it.GridX, it.GridY}
		if cells[c] {
			return fmt.Errorf("item %d: cell (%d,%d) in %q already holds an item", i, it.GridX, it.GridY, it.Room)
		}
		cells[c] = true
	}

	users := make(map[string]bool, len(s.Users))
	for _, u := range s.Users {
		if u.Username == "" || u.Password == "" {
			return fmt.Errorf("user entries need a username and password")
		}
		if users[u.Username] {
			return fmt.Errorf("duplicate username: %q", u.Username)
		}
		users[u.Username] = true
		if p := u.LastPosition; p != nil && !rooms[p.Room] {
			return fmt.Errorf("user %q: last position in unknown room %q", u.Username, p.Room)
		}
	}
	return nil
}
