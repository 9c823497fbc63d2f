// Package account provides user identities, credential checks, and the
// interfaces the presence engine uses to reach user persistence.
package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned when a username/password pair does not authenticate.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Position is a user's last known room and cell.
type Position struct {
	Room  string `yaml:"room"`
	GridX int    `yaml:"grid_x"`
	GridY int    `yaml:"grid_y"`
}

// User is a persisted user record.
type User struct {
	// ID is the persistent identifier used for item ownership.
	ID           string
	Username     string
	PasswordHash string
	// LastPosition is nil when the user has never been placed.
	LastPosition *Position
	CreatedAt    time.Time
}

// Authenticator verifies credentials.
type Authenticator interface {
	// Authenticate returns the user for a valid username/password pair.
	// A wrong password or unknown username yields ErrInvalidCredentials.
	Authenticate(ctx context.Context, username, password string) (User, error)
}

// PositionWriter persists a user's last position.
type PositionWriter interface {
	SaveLastPosition(ctx context.Context, userID string, pos Position) error
}

// HashPassword creates a bcrypt hash of the given password.
//
// Precondition: password must be non-empty and at most 72 bytes.
// Postcondition: Returns a bcrypt hash string.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword compares a plaintext password against a bcrypt hash.
//
// Postcondition: Returns true if password matches the hash.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
