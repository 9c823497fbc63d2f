package postgres

import (
	"context"
	"fmt"

	goccy "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/hangout/internal/game/world"
)

// RoomRepository provides room persistence operations.
type RoomRepository struct {
	db *pgxpool.Pool
}

// NewRoomRepository creates a RoomRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewRoomRepository(db *pgxpool.Pool) *RoomRepository {
	return &RoomRepository{db: db}
}

type spawnPoint struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func encodeSpawnPoints(points []world.Point) ([]byte, error) {
	out := make([]spawnPoint, len(points))
	for i, p := range points {
		out[i] = spawnPoint{X: p.X, Y: p.Y}
	}
	return goccy.Marshal(out)
}

func decodeSpawnPoints(raw []byte) ([]world.Point, error) {
	var in []spawnPoint
	if len(raw) > 0 {
		if err := goccy.Unmarshal(raw, &in); err != nil {
			return nil, err
		}
	}
	out := make([]world.Point, len(in))
	for i, p := range in {
		out[i] = world.Point{X: p.X, Y: p.Y}
	}
	return out, nil
}

// ListRooms returns every active room ordered by ID.
func (r *RoomRepository) ListRooms(ctx context.Context) ([]world.Room, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name, background, grid_width, grid_height, spawn_points, max_capacity, active
		 FROM rooms WHERE active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying rooms: %w", err)
	}
	rooms, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (world.Room, error) {
		var (
			rm  world.Room
			raw []byte
		)
		if err := row.Scan(&rm.ID, &rm.Name, &rm.Background, &rm.Grid.Width, &rm.Grid.Height,
			&raw, &rm.MaxCapacity, &rm.Active); err != nil {
			return world.Room{}, err
		}
		points, err := decodeSpawnPoints(raw)
		if err != nil {
			return world.Room{}, fmt.Errorf("room %q spawn points: %w", rm.ID, err)
		}
		rm.SpawnPoints = points
		return rm, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning rooms: %w", err)
	}
	return rooms, nil
}

// Upsert inserts room or overwrites the stored row with the same ID.
func (r *RoomRepository) Upsert(ctx context.Context, room world.Room) error {
	return upsertRoom(ctx, r.db, room)
}

func upsertRoom(ctx context.Context, db execer, room world.Room) error {
	points, err := encodeSpawnPoints(room.SpawnPoints)
	if err != nil {
		return fmt.Errorf("encoding spawn points for room %q: %w", room.ID, err)
	}
	_, err = db.Exec(ctx,
		`INSERT INTO rooms (id, name, background, grid_width, grid_height, spawn_points, max_capacity, active)
		 VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8)
		 ON CONFLICT (id) DO UPDATE
		   SET name = EXCLUDED.name,
		       background = EXCLUDED.background,
		       grid_width = EXCLUDED.grid_width,
		       grid_height = EXCLUDED.grid_height,
		       spawn_points = EXCLUDED.spawn_points,
		       max_capacity = EXCLUDED.max_capacity,
		       active = EXCLUDED.active`,
		room.ID, room.Name, room.Background, room.Grid.Width, room.Grid.Height,
		string(points), room.MaxCapacity, room.Active,
	)
	if err != nil {
		return fmt.Errorf("upserting room %q: %w", room.ID, err)
	}
	return nil
}
