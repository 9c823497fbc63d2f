package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/hangout/internal/game/inventory"
)

// ItemRepository provides item persistence operations.
// An item with a NULL owner_id lies on the ground.
type ItemRepository struct {
	db *pgxpool.Pool
}

// NewItemRepository creates an ItemRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewItemRepository(db *pgxpool.Pool) *ItemRepository {
	return &ItemRepository{db: db}
}

// Create inserts an unowned item and returns it with its ID set.
func (r *ItemRepository) Create(ctx context.Context, itemType, room string, x, y int) (inventory.WorldItem, error) {
	var it inventory.WorldItem
	err := r.db.QueryRow(ctx,
		`INSERT INTO items (type, room, grid_x, grid_y) VALUES ($1, $2, $3, $4)
		 RETURNING id::text, type, room, grid_x, grid_y`,
		itemType, room, x, y,
	).Scan(&it.ID, &it.Type, &it.Room, &it.GridX, &it.GridY)
	if err != nil {
		return inventory.WorldItem{}, fmt.Errorf("inserting item: %w", err)
	}
	return it, nil
}

// ListGroundItems returns every unowned item.
func (r *ItemRepository) ListGroundItems(ctx context.Context) ([]inventory.WorldItem, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id::text, type, room, grid_x, grid_y FROM items
		 WHERE owner_id IS NULL ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("querying ground items: %w", err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (inventory.WorldItem, error) {
		var it inventory.WorldItem
		err := row.Scan(&it.ID, &it.Type, &it.Room, &it.GridX, &it.GridY)
		return it, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning ground items: %w", err)
	}
	return items, nil
}

// ListOwnedItems returns ownerID's items in pickup order.
func (r *ItemRepository) ListOwnedItems(ctx context.Context, ownerID string) ([]inventory.Entry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id::text, type FROM items
		 WHERE owner_id = $1::uuid ORDER BY acquired_at NULLS FIRST, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("querying owned items: %w", err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (inventory.Entry, error) {
		var e inventory.Entry
		err := row.Scan(&e.ID, &e.Type)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning owned items: %w", err)
	}
	return entries, nil
}

// AssignOwner marks itemID as held by ownerID. The stored cell is kept.
//
// Postcondition: Returns ErrItemNotFound if no row matched.
func (r *ItemRepository) AssignOwner(ctx context.Context, itemID, ownerID string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE items SET owner_id = $2::uuid, acquired_at = clock_timestamp() WHERE id = $1::uuid`,
		itemID, ownerID,
	)
	if err != nil {
		return fmt.Errorf("assigning owner: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

// PlaceOnGround clears the owner of item.ID and records its room and cell.
//
// Postcondition: Returns ErrItemNotFound if no row matched.
func (r *ItemRepository) PlaceOnGround(ctx context.Context, item inventory.WorldItem) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE items SET owner_id = NULL, acquired_at = NULL, room = $2, grid_x = $3, grid_y = $4
		 WHERE id = $1::uuid`,
		item.ID, item.Room, item.GridX, item.GridY,
	)
	if err != nil {
		return fmt.Errorf("placing item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}
