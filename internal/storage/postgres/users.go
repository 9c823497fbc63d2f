package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/hangout/internal/game/account"
)

// UserRepository provides user persistence operations.
type UserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository creates a UserRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id::text, username, password_hash, last_room, last_grid_x, last_grid_y, created_at`

func scanUser(row pgx.Row) (account.User, error) {
	var (
		u    account.User
		room *string
		x, y *int
	)
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &room, &x, &y, &u.CreatedAt); err != nil {
		return account.User{}, err
	}
	if room != nil && x != nil && y != nil {
		u.LastPosition = &account.Position{Room: *room, GridX: *x, GridY: *y}
	}
	return u, nil
}

// Create inserts a new user with a bcrypt-hashed password.
//
// Precondition: username and password must be non-empty.
// Postcondition: Returns the created user, or ErrUserExists if the username is taken.
func (r *UserRepository) Create(ctx context.Context, username, password string) (account.User, error) {
	hash, err := account.HashPassword(password)
	if err != nil {
		return account.User{}, err
	}
	u, err := scanUser(r.db.QueryRow(ctx,
		`INSERT INTO users (username, password_hash) VALUES ($1, $2)
		 RETURNING `+userColumns,
		username, hash,
	))
	if err != nil {
		if isDuplicateKeyError(err) {
			return account.User{}, ErrUserExists
		}
		return account.User{}, fmt.Errorf("inserting user: %w", err)
	}
	return u, nil
}

// Upsert creates username or resets its password, leaving its ID stable.
//
// Postcondition: Returns the stored user.
func (r *UserRepository) Upsert(ctx context.Context, username, password string, last *account.Position) (account.User, error) {
	hash, err := account.HashPassword(password)
	if err != nil {
		return account.User{}, err
	}
	var room *string
	var x, y *int
	if last != nil {
		room, x, y = &last.Room, &last.GridX, &last.GridY
	}
	u, err := scanUser(r.db.QueryRow(ctx,
		`INSERT INTO users (username, password_hash, last_room, last_grid_x, last_grid_y)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (username) DO UPDATE
		   SET password_hash = EXCLUDED.password_hash,
		       last_room = EXCLUDED.last_room,
		       last_grid_x = EXCLUDED.last_grid_x,
		       last_grid_y = EXCLUDED.last_grid_y,
		       updated_at = NOW()
		 RETURNING `+userColumns,
		username, hash, room, x, y,
	))
	if err != nil {
		return account.User{}, fmt.Errorf("upserting user %q: %w", username, err)
	}
	return u, nil
}

// GetByUsername retrieves a user by username.
//
// Postcondition: Returns the user or ErrUserNotFound.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (account.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return account.User{}, ErrUserNotFound
		}
		return account.User{}, fmt.Errorf("querying user: %w", err)
	}
	return u, nil
}

// Authenticate verifies credentials and returns the matching user.
//
// Postcondition: Returns the user if credentials are valid, or
// account.ErrInvalidCredentials for an unknown username or wrong password.
func (r *UserRepository) Authenticate(ctx context.Context, username, password string) (account.User, error) {
	u, err := r.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return account.User{}, account.ErrInvalidCredentials
		}
		return account.User{}, err
	}
	if !account.CheckPassword(password, u.PasswordHash) {
		return account.User{}, account.ErrInvalidCredentials
	}
	return u, nil
}

// SaveLastPosition records userID's last room and cell.
//
// Postcondition: Returns ErrUserNotFound if no row matched.
func (r *UserRepository) SaveLastPosition(ctx context.Context, userID string, pos account.Position) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET last_room = $2, last_grid_x = $3, last_grid_y = $4, updated_at = NOW()
		 WHERE id = $1::uuid`,
		userID, pos.Room, pos.GridX, pos.GridY,
	)
	if err != nil {
		return fmt.Errorf("updating last position: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
