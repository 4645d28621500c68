package http

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/dkeye/WatchParty/internal/app"
	"github.com/dkeye/WatchParty/internal/app/room"
	"github.com/dkeye/WatchParty/internal/core"
	"github.com/dkeye/WatchParty/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

// RoomWSController pushes room views to the browser and feeds its commands
// to the room controller.
type RoomWSController struct {
	Orch      *app.Orchestrator
	Limiter   *SendRateLimiter
	ReadLimit int64
}

func NewRoomWSController(orch *app.Orchestrator, limiter *SendRateLimiter, readLimit int64) *RoomWSController {
	return &RoomWSController{Orch: orch, Limiter: limiter, ReadLimit: readLimit}
}

type WsViewConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsViewConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsViewConn) Close() {
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

var _ core.ViewConnection = (*WsViewConn)(nil)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// roomSocket is one browser socket bound to one room controller.
type roomSocket struct {
	token app.ClientToken
	conn  *WsViewConn
	room  *room.Controller
}

func (ctl *RoomWSController) HandleRoom(ctx context.Context, c *gin.Context) {
	token := clientToken(c)
	nav := domain.Navigation{
		RoomID:   domain.RoomID(c.Param("roomID")),
		Nickname: c.Query("nickname"),
	}
	log.Info().Str("module", "adapters.http").Str("token", string(token)).Str("room_id", string(nav.RoomID)).Msg("new room WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("ws upgrade")
		return
	}
	if ctl.ReadLimit > 0 {
		ws.SetReadLimit(ctl.ReadLimit)
	}

	sock := &roomSocket{
		token: token,
		conn: &WsViewConn{
			conn: ws,
			send: make(chan core.Frame, 32),
		},
	}

	ctx, cancel := context.WithCancel(ctx)
	sock.room = ctl.Orch.MountRoom(ctx, token, nav, func(v room.View) {
		ctl.sendJSON(sock, roomViewFrame{Type: "room_view", View: v})
	})

	go ctl.writePump(ctx, sock.conn)
	go ctl.readPump(ctx, cancel, sock)
}
