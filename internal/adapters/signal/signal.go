// Package signal is the WebSocket gateway for room membership and live previews.
package signal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/shoproom/internal/app/offer"
	"github.com/dkeye/shoproom/internal/app/orch"
	"github.com/dkeye/shoproom/internal/core"
	"github.com/dkeye/shoproom/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

// CartReader loads the cart a preview is computed for.
type CartReader interface {
	Get(ctx context.Context, owner domain.OwnerID) (*domain.Cart, error)
}

type Previewer interface {
	PreviewTotal(ctx context.Context, c *domain.Cart, conn core.ConnectionID) (offer.Preview, error)
}

type Settings struct {
	ReadLimit  int64
	PingPeriod time.Duration // zero disables keepalive pings
	SendBuffer int
	WriteWait  time.Duration
}

type SignalWSController struct {
	Orch    *orch.Orchestrator
	Carts   CartReader
	Prices  Previewer
	Limiter *RoomRateLimiter

	settings Settings
}

func NewSignalWSController(o *orch.Orchestrator, carts CartReader, prices Previewer, s Settings) *SignalWSController {
	if s.SendBuffer <= 0 {
		s.SendBuffer = 32
	}
	if s.WriteWait <= 0 {
		s.WriteWait = 5 * time.Second
	}
	return &SignalWSController{
		Orch:     o,
		Carts:    carts,
		Prices:   prices,
		Limiter:  NewRoomRateLimiter(10, 10*time.Second),
		settings: s,
	}
}

// WsSignalConn is the transport of one connection. Room events and direct
// replies share the bounded send queue; a full queue is reported, never waited on.
type WsSignalConn struct {
	id   core.ConnectionID
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(ev core.Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return c.enqueue(b)
}

func (c *WsSignalConn) enqueue(b []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- b:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
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

// HandleSignal upgrades the request and serves the connection until its read
// loop ends. ctx must outlive the request, it bounds the connection's life.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context, owner domain.OwnerID) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	if ctl.settings.ReadLimit > 0 {
		ws.SetReadLimit(ctl.settings.ReadLimit)
	}

	id := core.ConnectionID(uuid.NewString())
	conn := &WsSignalConn{
		id:   id,
		conn: ws,
		send: make(chan []byte, ctl.settings.SendBuffer),
	}
	log.Info().Str("module", "signal").Str("conn", string(id)).Str("owner", string(owner)).Msg("new WS connection")

	sess := core.NewMemberSession(domain.NewMember(owner), conn)
	ctx, cancel := context.WithCancel(ctx)
	ctl.Orch.Connect(id, sess, cancel)

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, sess, conn)
}
