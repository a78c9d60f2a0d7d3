// Package signal is the WebSocket signaling relay: it owns the live
// connection set, brokers the SDP and ICE exchange between two paired
// peers and fans presence changes out to everyone connected.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/Maxim-5GHZ/WebRTCPhoneP2Pv2.0/internal/app"
	"github.com/Maxim-5GHZ/WebRTCPhoneP2Pv2.0/internal/core"
	"github.com/Maxim-5GHZ/WebRTCPhoneP2Pv2.0/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

// Controller routes signaling frames between authenticated peers.
// It implements core.Presence for the HTTP layer.
type Controller struct {
	registry *app.Registry
	calls    *app.CallState
	users    core.UserDirectory
	events   core.EventSink

	readLimit  int64
	pingPeriod time.Duration
}

// NewController wires the relay. events may be nil when no out-of-process
// consumer is configured.
func NewController(
	registry *app.Registry,
	calls *app.CallState,
	users core.UserDirectory,
	events core.EventSink,
	readLimit int64,
	pingPeriod time.Duration,
) *Controller {
	return &Controller{
		registry:   registry,
		calls:      calls,
		users:      users,
		events:     events,
		readLimit:  readLimit,
		pingPeriod: pingPeriod,
	}
}

// OnlineUserIDs implements core.Presence.
func (ctl *Controller) OnlineUserIDs() []domain.UserID {
	return ctl.registry.IDs()
}

// InCall implements core.Presence.
func (ctl *Controller) InCall(id domain.UserID) bool {
	return ctl.calls.InCall(id)
}

// wsConn wraps a websocket with a buffered send channel. The write pump
// is the only goroutine that touches the socket for writes, so frames
// from concurrent senders never interleave.
type wsConn struct {
	userID domain.UserID
	conn   *websocket.Conn
	send   chan core.Frame

	mu     sync.RWMutex
	closed bool
}

// TrySend queues a frame for the write pump without blocking. A send to
// a closed connection is a no-op error, never a panic.
func (c *wsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades an already-authenticated request. The handshake
// middleware has validated the token and put the numeric user id into
// the gin context; a request without it never reaches this point.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	uid := domain.UserID(c.GetInt64("user_id"))
	log.Info().Str("module", "signal").Int64("user_id", int64(uid)).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	if ctl.readLimit > 0 {
		ws.SetReadLimit(ctl.readLimit)
	}
	if ctl.pingPeriod > 0 {
		// Dead peers stop answering pings; the read deadline reaps them.
		pongWait := ctl.pingPeriod + 10*time.Second
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(pongWait))
		})
	}

	conn := &wsConn{
		userID: uid,
		conn:   ws,
		send:   make(chan core.Frame, 32),
	}

	ctx, cancel := context.WithCancel(ctx)
	ctl.onConnected(ctx, uid, conn)

	go ctl.writePump(ctx, cancel, conn)
	go ctl.readPump(ctx, cancel, conn)
}
