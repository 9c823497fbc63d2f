// Package gateway delivers outbound events to connections, individually or
// to every connection joined to a room.
package gateway

import (
	"fmt"
	"sync"

	"github.com/cory-johannsen/hangout/internal/protocol"
)

// DefaultBufferSize is the outbound queue length used when none is given.
const DefaultBufferSize = 64

// Client is the outbound event queue of one connection. A transport drains
// Events on its own goroutine and writes each envelope to the wire.
type Client struct {
	connID string
	events chan protocol.Envelope
	mu     sync.Mutex
	closed bool
}

// NewClient creates a Client for the given connection.
//
// Precondition: connID must be non-empty.
// Postcondition: Returns a Client with an open events channel.
func NewClient(connID string, bufferSize int) *Client {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Client{
		connID: connID,
		events: make(chan protocol.Envelope, bufferSize),
	}
}

// ConnID returns the connection identifier.
func (c *Client) ConnID() string {
	return c.connID
}

// Push enqueues env without blocking.
//
// Postcondition: env is enqueued, or an error is returned if the client is closed or its buffer is full.
func (c *Client) Push(env protocol.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("client %s is closed", c.connID)
	}
	select {
	case c.events <- env:
		return nil
	default:
		return fmt.Errorf("client %s event buffer full", c.connID)
	}
}

// Events returns the read-only outbound channel. It is closed by Close.
func (c *Client) Events() <-chan protocol.Envelope {
	return c.events
}

// Close closes the events channel. Safe to call more than once.
//
// Postcondition: Further Push calls return an error.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.events)
	}
}

// IsClosed reports whether the client has been closed.
func (c *Client) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
