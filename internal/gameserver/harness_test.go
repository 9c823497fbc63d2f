package gameserver

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/hangout/internal/content"
	"github.com/cory-johannsen/hangout/internal/game/account"
	"github.com/cory-johannsen/hangout/internal/game/inventory"
	"github.com/cory-johannsen/hangout/internal/game/session"
	"github.com/cory-johannsen/hangout/internal/game/world"
	"github.com/cory-johannsen/hangout/internal/gateway"
	"github.com/cory-johannsen/hangout/internal/protocol"
	"github.com/cory-johannsen/hangout/internal/storage/memory"
)

const testSeed = `
rooms:
  - id: room1
    name: Room 1
    background: bg1.jpeg
  - id: room2
    name: Room 2
    background: bg2.jpeg
items:
  - { type: flower, room: room1, grid_x: 2, grid_y: 3 }
  - { type: flower, room: room1, grid_x: 6, grid_y: 6 }
  - { type: flower, room: room2, grid_x: 5, grid_y: 16 }
users:
  - username: alice
    password: secret1
    last_position: { room: room1, grid_x: 4, grid_y: 5 }
  - username: bob
    password: secret2
    last_position: { room: room1, grid_x: 4, grid_y: 5 }
  - username: carol
    password: secret3
  - username: dave
    password: secret4
`

const seedItemCount = 3

// manualClock records scheduled callbacks and runs them on demand.
type manualClock struct {
	mu    sync.Mutex
	tasks []scheduledTask
}

type scheduledTask struct {
	after time.Duration
	fn    func()
	fired bool
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tasks = append(c.tasks, scheduledTask{after: d, fn: f})
}

func (c *manualClock) Delays() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.tasks))
	for i, task := range c.tasks {
		out[i] = task.after
	}
	return out
}

// Fire runs task i once. The callback runs without the clock lock held.
func (c *manualClock) Fire(i int) {
	c.mu.Lock()
	if i >= len(c.tasks) || c.tasks[i].fired {
		c.mu.Unlock()
		return
	}
	c.tasks[i].fired = true
	fn := c.tasks[i].fn
	c.mu.Unlock()
	fn()
}

func (c *manualClock) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tasks)
}

// staticAuth accepts any known username with password "pw" without hashing.
type staticAuth struct{}

func (staticAuth) Authenticate(_ context.Context, username, password string) (account.User, error) {
	if username == "" || password != "pw" {
		return account.User{}, account.ErrInvalidCredentials
	}
	return account.User{ID: "u-" + username, Username: username}, nil
}

type failingAuth struct{ err error }

func (a failingAuth) Authenticate(context.Context, string, string) (account.User, error) {
	return account.User{}, a.err
}

// failingWriter rejects every write-through.
type failingWriter struct{}

var errWriteFailed = errors.New("write failed")

func (failingWriter) AssignOwner(context.Context, string, string) error { return errWriteFailed }

func (failingWriter) PlaceOnGround(context.Context, inventory.WorldItem) error {
	return errWriteFailed
}

type harnessConfig struct {
	seed      string
	auth      account.Authenticator
	writer    inventory.ItemWriter
	opts      Options
	buffer    int
	logger    *zap.Logger
	noStorage bool
}

type harness struct {
	engine *Engine
	store  *memory.Store
	ground *inventory.GroundCache
	clock  *manualClock
}

func buildHarness(cfg harnessConfig) (*harness, error) {
	ctx := context.Background()
	if cfg.seed == "" {
		cfg.seed = testSeed
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	if cfg.buffer == 0 {
		cfg.buffer = 256
	}
	seed, err := content.LoadBytes([]byte(cfg.seed))
	if err != nil {
		return nil, err
	}
	store, err := memory.NewFromSeed(ctx, seed)
	if err != nil {
		return nil, err
	}

	rooms := world.NewDirectory()
	if _, err := rooms.Load(ctx, store); err != nil {
		return nil, err
	}

	var writer inventory.ItemWriter = store
	if cfg.writer != nil {
		writer = cfg.writer
	}
	ground := inventory.NewGroundCache(writer, cfg.logger)
	if _, err := ground.Load(ctx, store); err != nil {
		return nil, err
	}

	var auth account.Authenticator = store
	if cfg.auth != nil {
		auth = cfg.auth
	}
	clock := &manualClock{}
	deps := Deps{
		Auth:      auth,
		Inventory: store,
		Positions: store,
		Rooms:     rooms,
		Ground:    ground,
		Sessions:  session.NewRegistry(),
		Gateway:   gateway.New(cfg.buffer, cfg.logger),
		Scheduler: clock,
		Rand:      rand.New(rand.NewSource(1)),
		Logger:    cfg.logger,
	}
	if cfg.noStorage {
		deps.Positions = nil
	}
	return &harness{
		engine: NewEngine(deps, cfg.opts),
		store:  store,
		ground: ground,
		clock:  clock,
	}, nil
}

func newHarness(t *testing.T, mutate ...func(*harnessConfig)) *harness {
	t.Helper()
	cfg := harnessConfig{
		logger: zaptest.NewLogger(t),
		opts:   Options{DefaultRoom: "room1", PersistTimeout: time.Second, FlushPosition: true},
	}
	for _, m := range mutate {
		m(&cfg)
	}
	h, err := buildHarness(cfg)
	require.NoError(t, err)
	return h
}

func inbound(t *testing.T, event string, data any) protocol.Inbound {
	t.Helper()
	frame, err := protocol.Encode(protocol.Envelope{Event: event, Data: data})
	require.NoError(t, err)
	in, err := protocol.Decode(frame)
	require.NoError(t, err)
	return in
}

func (h *harness) connect(t *testing.T, connID string) *gateway.Client {
	t.Helper()
	c, err := h.engine.Connect(connID)
	require.NoError(t, err)
	return c
}

// login connects connID and logs username in, discarding nothing.
func (h *harness) login(t *testing.T, connID, username, password string) *gateway.Client {
	t.Helper()
	c := h.connect(t, connID)
	h.engine.Dispatch(context.Background(), connID, inbound(t, protocol.EventLogin, protocol.LoginRequest{
		Username: username,
		Password: password,
	}))
	return c
}

func (h *harness) send(t *testing.T, connID, event string, data any) {
	t.Helper()
	h.engine.Dispatch(context.Background(), connID, inbound(t, event, data))
}

func (h *harness) session(connID string) (session.Session, bool) {
	h.engine.mu.Lock()
	defer h.engine.mu.Unlock()
	s, ok := h.engine.sessions.Get(connID)
	if !ok {
		return session.Session{}, false
	}
	cp := *s
	cp.Inventory = s.InventorySnapshot()
	return cp, true
}

func (h *harness) userID(t *testing.T, username string) string {
	t.Helper()
	u, err := h.store.GetByUsername(context.Background(), username)
	require.NoError(t, err)
	return u.ID
}

func drain(c *gateway.Client) []protocol.Envelope {
	var out []protocol.Envelope
	for {
		select {
		case env, ok := <-c.Events():
			if !ok {
				return out
			}
			out = append(out, env)
		default:
			return out
		}
	}
}

func names(envs []protocol.Envelope) []string {
	out := make([]string, 0, len(envs))
	for _, env := range envs {
		out = append(out, env.Event)
	}
	return out
}

func find(t *testing.T, envs []protocol.Envelope, event string) protocol.Envelope {
	t.Helper()
	for _, env := range envs {
		if env.Event == event {
			return env
		}
	}
	t.Fatalf("no %s event in %v", event, names(envs))
	return protocol.Envelope{}
}
