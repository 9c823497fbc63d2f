// Package ws serves the presence protocol to browsers over websockets.
package ws

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cory-johannsen/hangout/internal/config"
	"github.com/cory-johannsen/hangout/internal/gameserver"
	"github.com/cory-johannsen/hangout/internal/gateway"
	"github.com/cory-johannsen/hangout/internal/protocol"
)

// Engine is the subset of the presence engine a transport drives.
type Engine interface {
	Connect(connID string) (*gateway.Client, error)
	Dispatch(ctx context.Context, connID string, in protocol.Inbound)
	Disconnect(ctx context.Context, connID string)
	Stats() gameserver.Stats
}

const defaultWriteTimeout = 10 * time.Second

// Handler upgrades HTTP requests and bridges each websocket to the engine.
type Handler struct {
	engine   Engine
	cfg      config.HTTPConfig
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a Handler.
//
// Precondition: engine and logger must be non-nil.
// Postcondition: Returns a Handler that accepts origins listed in cfg.AllowedOrigins,
// or any origin when the list is empty.
func NewHandler(engine Engine, cfg config.HTTPConfig, logger *zap.Logger) *Handler {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	h := &Handler{
		engine: engine,
		cfg:    cfg,
		logger: logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	h.logger.Warn("rejecting websocket origin", zap.String("origin", origin))
	return false
}

// ServeHTTP upgrades the request and runs the connection until either side closes it.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}
	defer conn.Close()

	connID := uuid.NewString()
	client, err := h.engine.Connect(connID)
	if err != nil {
		h.logger.Error("registering connection", zap.String("conn_id", connID), zap.Error(err))
		return
	}
	if h.cfg.ReadLimit > 0 {
		conn.SetReadLimit(h.cfg.ReadLimit)
	}

	start := time.Now()
	h.logger.Info("websocket connected",
		zap.String("conn_id", connID),
		zap.String("remote", r.RemoteAddr),
	)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.writeLoop(conn, client)
	}()

	ctx := r.Context()
	h.readLoop(ctx, connID, conn)

	h.engine.Disconnect(context.WithoutCancel(ctx), connID)
	wg.Wait()

	h.logger.Info("websocket disconnected",
		zap.String("conn_id", connID),
		zap.Duration("elapsed", time.Since(start)),
	)
}

// readLoop dispatches inbound frames until the connection fails or closes.
func (h *Handler) readLoop(ctx context.Context, connID string, conn *websocket.Conn) {
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("websocket read failed", zap.String("conn_id", connID), zap.Error(err))
			}
			return
		}
		in, err := protocol.Decode(frame)
		if err != nil {
			h.logger.Debug("discarding malformed frame", zap.String("conn_id", connID), zap.Error(err))
			continue
		}
		h.engine.Dispatch(ctx, connID, in)
	}
}

// writeLoop writes queued envelopes until the queue closes. A write failure or
// a queue closed by the gateway closes the socket, which ends readLoop.
func (h *Handler) writeLoop(conn *websocket.Conn, client *gateway.Client) {
	for env := range client.Events() {
		frame, err := protocol.Encode(env)
		if err != nil {
			h.logger.Error("encoding event", zap.String("event", env.Event), zap.Error(err))
			continue
		}
		_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			h.logger.Debug("websocket write failed", zap.String("conn_id", client.ConnID()), zap.Error(err))
			_ = conn.Close()
			return
		}
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	_ = conn.Close()
}
