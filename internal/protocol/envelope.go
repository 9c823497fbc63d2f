package protocol

import (
	"errors"
	"fmt"
	"strings"

	goccy "github.com/goccy/go-json"
)

// ErrMissingEvent is returned when an inbound envelope has no event name.
var ErrMissingEvent = errors.New("envelope has no event name")

// Envelope is an outbound event.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Inbound is a decoded client event whose payload is decoded on demand.
type Inbound struct {
	Event string          `json:"event"`
	Data  goccy.RawMessage `json:"data,omitempty"`
}

// Encode serializes env to JSON.
func Encode(env Envelope) ([]byte, error) {
	b, err := goccy.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", env.Event, err)
	}
	return b, nil
}

// Decode parses a client frame.
//
// Postcondition: Returns an Inbound with a non-empty Event, or an error.
func Decode(frame []byte) (Inbound, error) {
	var in Inbound
	if err := goccy.Unmarshal(frame, &in); err != nil {
		return Inbound{}, fmt.Errorf("decoding envelope: %w", err)
	}
	if in.Event == "" {
		return Inbound{}, ErrMissingEvent
	}
	return in, nil
}

// Login decodes a login payload.
func (in Inbound) Login() (LoginRequest, error) {
	var req LoginRequest
	if err := in.decode(&req); err != nil {
		return LoginRequest{}, err
	}
	return req, nil
}

// Move decodes a moveToGrid payload.
func (in Inbound) Move() (MoveRequest, error) {
	var req MoveRequest
	if err := in.decode(&req); err != nil {
		return MoveRequest{}, err
	}
	return req, nil
}

// Text decodes a bare string payload (chat, dropItem, changeRoom).
func (in Inbound) Text() (string, error) {
	var s string
	if err := in.decode(&s); err != nil {
		return "", err
	}
	return s, nil
}

func (in Inbound) decode(v any) error {
	if len(in.Data) == 0 || strings.TrimSpace(string(in.Data)) == "null" {
		return fmt.Errorf("decoding %s payload: empty", in.Event)
	}
	if err := goccy.Unmarshal(in.Data, v); err != nil {
		return fmt.Errorf("decoding %s payload: %w", in.Event, err)
	}
	return nil
}
