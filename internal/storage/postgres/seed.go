package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/hangout/internal/content"
	"github.com/cory-johannsen/hangout/internal/game/account"
)

// SeedResult counts the rows written by ApplySeed.
type SeedResult struct {
	Rooms int
	Items int
	Users int
}

// ApplySeed writes seed in a single transaction. Rooms and users are upserted
// by key. Every unowned item is replaced by the seeded ground items; held items
// are left alone.
//
// Precondition: seed must have passed content validation.
// Postcondition: Either every row is written or none is.
func ApplySeed(ctx context.Context, db *pgxpool.Pool, seed *content.Seed) (SeedResult, error) {
	hashes := make([]string, len(seed.Users))
	for i, u := range seed.Users {
		h, err := account.HashPassword(u.Password)
		if err != nil {
			return SeedResult{}, fmt.Errorf("hashing password for %q: %w", u.Username, err)
		}
		hashes[i] = h
	}

	var res SeedResult
	err := pgx.BeginFunc(ctx, db, func(tx pgx.Tx) error {
		for _, rm := range seed.Rooms {
			if err := upsertRoom(ctx, tx, rm); err != nil {
				return err
			}
			res.Rooms++
		}

		if _, err := tx.Exec(ctx, `DELETE FROM items WHERE owner_id IS NULL`); err != nil {
			return fmt.Errorf("clearing ground items: %w", err)
		}
		for _, it := range seed.Items {
			if _, err := tx.Exec(ctx,
				`INSERT INTO items (type, room, grid_x, grid_y) VALUES ($1, $2, $3, $4)`,
				it.Type, it.Room, it.GridX, it.GridY,
			); err != nil {
				return fmt.Errorf("inserting %s in %s: %w", it.Type, it.Room, err)
			}
			res.Items++
		}

		for i, u := range seed.Users {
			var room *string
			var x, y *int
			if u.LastPosition != nil {
				room, x, y = &u.LastPosition.Room, &u.LastPosition.GridX, &u.LastPosition.GridY
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO users (username, password_hash, last_room, last_grid_x, last_grid_y)
				 VALUES ($1, $2, $3, $4, $5)
				 ON CONFLICT (username) DO UPDATE
				   SET password_hash = EXCLUDED.password_hash, updated_at = NOW()`,
				u.Username, hashes[i], room, x, y,
			); err != nil {
				return fmt.Errorf("upserting user %q: %w", u.Username, err)
			}
			res.Users++
		}
		return nil
	})
	if err != nil {
		return SeedResult{}, fmt.Errorf("applying seed: %w", err)
	}
	return res, nil
}
