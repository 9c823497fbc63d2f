package ws_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	goccy "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cory-johannsen/hangout/internal/config"
	"github.com/cory-johannsen/hangout/internal/content"
	"github.com/cory-johannsen/hangout/internal/frontend/ws"
	"github.com/cory-johannsen/hangout/internal/game/inventory"
	"github.com/cory-johannsen/hangout/internal/game/session"
	"github.com/cory-johannsen/hangout/internal/game/world"
	"github.com/cory-johannsen/hangout/internal/gameserver"
	"github.com/cory-johannsen/hangout/internal/gateway"
	"github.com/cory-johannsen/hangout/internal/protocol"
	"github.com/cory-johannsen/hangout/internal/storage/memory"
)

// echoEngine answers every inbound event with an "echo" unicast carrying its name.
type echoEngine struct {
	gw *gateway.Gateway

	mu           sync.Mutex
	disconnected []string
}

func (e *echoEngine) Connect(connID string) (*gateway.Client, error) {
	return e.gw.Register(connID)
}

func (e *echoEngine) Dispatch(_ context.Context, connID string, in protocol.Inbound) {
	e.gw.Unicast(connID, "echo", in.Event)
}

func (e *echoEngine) Disconnect(_ context.Context, connID string) {
	e.gw.Unregister(connID)
	e.mu.Lock()
	e.disconnected = append(e.disconnected, connID)
	e.mu.Unlock()
}

func (e *echoEngine) Stats() gameserver.Stats {
	return gameserver.Stats{Connections: e.gw.Len(), Rooms: 3}
}

func (e *echoEngine) disconnects() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.disconnected)
}

func httpConfig() config.HTTPConfig {
	return config.HTTPConfig{
		Path:         "/ws",
		ReadLimit:    4096,
		WriteTimeout: time.Second,
	}
}

func startServer(t *testing.T, engine ws.Engine, cfg config.HTTPConfig) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(ws.NewMux(engine, cfg, zap.NewNop()))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, header http.Header) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

type rawEnvelope struct {
	Event string           `json:"event"`
	Data  goccy.RawMessage `json:"data"`
}

func writeEnvelope(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	frame, err := protocol.Encode(protocol.Envelope{Event: event, Data: data})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))
}

func readEnvelope(t *testing.T, conn *websocket.Conn) rawEnvelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)
	var env rawEnvelope
	require.NoError(t, goccy.Unmarshal(frame, &env))
	return env
}

func waitFor(t *testing.T, conn *websocket.Conn, event string) rawEnvelope {
	t.Helper()
	for {
		env := readEnvelope(t, conn)
		if env.Event == event {
			return env
		}
	}
}

func TestHandler_RoundTrip(t *testing.T) {
	engine := &echoEngine{gw: gateway.New(16, zap.NewNop())}
	srv := startServer(t, engine, httpConfig())
	conn := dial(t, srv, nil)

	writeEnvelope(t, conn, protocol.EventChat, "hi")
	env := readEnvelope(t, conn)
	assert.Equal(t, "echo", env.Event)
	assert.JSONEq(t, `"chat"`, string(env.Data))
}

func TestHandler_SkipsMalformedFrames(t *testing.T) {
	engine := &echoEngine{gw: gateway.New(16, zap.NewNop())}
	srv := startServer(t, engine, httpConfig())
	conn := dial(t, srv, nil)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"data":1}`)))
	writeEnvelope(t, conn, protocol.EventPickupItem, nil)

	env := readEnvelope(t, conn)
	assert.JSONEq(t, `"pickupItem"`, string(env.Data))
}

func TestHandler_CloseDisconnects(t *testing.T) {
	engine := &echoEngine{gw: gateway.New(16, zap.NewNop())}
	srv := startServer(t, engine, httpConfig())
	conn := dial(t, srv, nil)
	writeEnvelope(t, conn, protocol.EventChat, "hi")
	readEnvelope(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	assert.Eventually(t, func() bool { return engine.disconnects() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, engine.gw.Len())
}

func TestHandler_OriginAllowList(t *testing.T) {
	engine := &echoEngine{gw: gateway.New(16, zap.NewNop())}
	cfg := httpConfig()
	cfg.AllowedOrigins = []string{"https://hangout.example"}
	srv := startServer(t, engine, cfg)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn := dial(t, srv, http.Header{"Origin": {"https://hangout.example"}})
	writeEnvelope(t, conn, protocol.EventChat, "hi")
	assert.Equal(t, "echo", readEnvelope(t, conn).Event)
}

func TestHealthHandler(t *testing.T) {
	engine := &echoEngine{gw: gateway.New(16, zap.NewNop())}
	srv := startServer(t, engine, httpConfig())

	resp, err := http.Get(srv.URL + ws.HealthPath)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var st gameserver.Stats
	require.NoError(t, goccy.NewDecoder(resp.Body).Decode(&st))
	assert.Equal(t, 3, st.Rooms)
}

const e2eSeed = `
rooms:
  - id: room1
    name: Room 1
    background: bg1.jpeg
items:
  - { type: flower, room: room1, grid_x: 4, grid_y: 5 }
users:
  - username: alice
    password: secret1
  - username: bob
    password: secret2
`

func newPresenceEngine(t *testing.T) *gameserver.Engine {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()
	seed, err := content.LoadBytes([]byte(e2eSeed))
	require.NoError(t, err)
	store, err := memory.NewFromSeed(ctx, seed)
	require.NoError(t, err)

	rooms := world.NewDirectory()
	_, err = rooms.Load(ctx, store)
	require.NoError(t, err)
	ground := inventory.NewGroundCache(store, logger)
	_, err = ground.Load(ctx, store)
	require.NoError(t, err)

	return gameserver.NewEngine(gameserver.Deps{
		Auth:      store,
		Inventory: store,
		Positions: store,
		Rooms:     rooms,
		Ground:    ground,
		Sessions:  session.NewRegistry(),
		Gateway:   gateway.New(64, logger),
		Logger:    logger,
	}, gameserver.Options{DefaultRoom: "room1", PersistTimeout: time.Second, FlushPosition: true})
}

func TestHandler_PresenceEndToEnd(t *testing.T) {
	srv := startServer(t, newPresenceEngine(t), httpConfig())

	alice := dial(t, srv, nil)
	writeEnvelope(t, alice, protocol.EventLogin, protocol.LoginRequest{Username: "alice", Password: "secret1"})
	success := waitFor(t, alice, protocol.EventLoginSuccess)
	assert.JSONEq(t, `{"username":"alice"}`, string(success.Data))
	items := waitFor(t, alice, protocol.EventRoomItems)
	var ground []inventory.WorldItem
	require.NoError(t, goccy.Unmarshal(items.Data, &ground))
	require.Len(t, ground, 1)

	// Alice spawns on the flower.
	writeEnvelope(t, alice, protocol.EventPickupItem, nil)
	picked := waitFor(t, alice, protocol.EventItemPickedUp)
	var pickup protocol.ItemPickedUp
	require.NoError(t, goccy.Unmarshal(picked.Data, &pickup))
	assert.Equal(t, ground[0].ID, pickup.ItemID)

	bob := dial(t, srv, nil)
	writeEnvelope(t, bob, protocol.EventLogin, protocol.LoginRequest{Username: "bob", Password: "secret2"})
	users := waitFor(t, bob, protocol.EventCurrentUsers)
	var others []protocol.SessionSummary
	require.NoError(t, goccy.Unmarshal(users.Data, &others))
	require.Len(t, others, 1)
	assert.Equal(t, "alice", others[0].Username)
	assert.Nil(t, others[0].ChatMessage)

	joined := waitFor(t, alice, protocol.EventUserJoined)
	var bobSummary protocol.SessionSummary
	require.NoError(t, goccy.Unmarshal(joined.Data, &bobSummary))
	assert.Equal(t, "bob", bobSummary.Username)

	writeEnvelope(t, bob, protocol.EventChat, "hello alice")
	chat := waitFor(t, alice, protocol.EventUserChat)
	var said protocol.UserChat
	require.NoError(t, goccy.Unmarshal(chat.Data, &said))
	assert.Equal(t, protocol.UserChat{ID: bobSummary.ID, Username: "bob", Message: "hello alice"}, said)

	require.NoError(t, bob.Close())
	left := waitFor(t, alice, protocol.EventUserLeft)
	assert.JSONEq(t, `"`+bobSummary.ID+`"`, string(left.Data))
}

func TestServer_StartStop(t *testing.T) {
	engine := &echoEngine{gw: gateway.New(16, zap.NewNop())}
	cfg := httpConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	s := ws.NewServer(cfg, engine, zap.NewNop())

	done := make(chan error, 1)
	go func() { done <- s.Start() }()
	require.Eventually(t, func() bool { return s.Addr() != nil }, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + s.Addr().String() + ws.HealthPath)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	s.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
