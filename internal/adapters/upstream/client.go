// Package upstream binds core.RealtimeClient to the real-time service over a
// websocket carrying JSON envelopes.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/dkeye/WatchParty/internal/core"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	ErrBackpressure = errors.New("upstream: send queue full")
	ErrClosed       = errors.New("upstream: connection closed")
	ErrNotOpen      = errors.New("upstream: connection not open")
)

const (
	typeCreateSession = "createSession"
	typeJoinSession   = "joinSession"
)

type Config struct {
	URL              string
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	PingPeriod       time.Duration
	ReadLimit        int64
	SendQueue        int
}

func (c Config) withDefaults() Config {
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	if c.PingPeriod <= 0 {
		c.PingPeriod = 30 * time.Second
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = 1 << 20
	}
	if c.SendQueue <= 0 {
		c.SendQueue = 32
	}
	return c
}

// envelope is the frame shape in both directions.
type envelope struct {
	Type       string          `json:"type"`
	CallbackID string          `json:"callbackId,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
}

type rejection struct {
	Error string `json:"error"`
}

type Client struct {
	cfg     Config
	handler core.EventHandler
	send    chan []byte
	ctx     context.Context
	cancel  context.CancelFunc

	mu      sync.Mutex
	conn    *websocket.Conn
	open    bool
	closed  bool // torn down locally
	pending map[string]chan envelope
}

// Dialer returns a core.Dialer that connects to cfg.URL in the background.
func Dialer(cfg Config) core.Dialer {
	cfg = cfg.withDefaults()
	return func(_ context.Context, h core.EventHandler) (core.RealtimeClient, error) {
		if cfg.URL == "" {
			return nil, errors.New("upstream: empty url")
		}
		if _, err := url.Parse(cfg.URL); err != nil {
			return nil, fmt.Errorf("upstream: parse url: %w", err)
		}
		c := newClient(cfg, h)
		go c.run()
		return c, nil
	}
}

func newClient(cfg Config, h core.EventHandler) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		cfg:     cfg,
		handler: h,
		send:    make(chan []byte, cfg.SendQueue),
		ctx:     ctx,
		cancel:  cancel,
		pending: make(map[string]chan envelope),
	}
}

func (c *Client) run() {
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	ws, _, err := dialer.DialContext(c.ctx, c.cfg.URL, nil)
	if err != nil {
		if c.ctx.Err() == nil {
			log.Error().Err(err).Str("module", "upstream").Str("url", c.cfg.URL).Msg("dial failed")
			c.handler.OnClose()
		}
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = ws.Close()
		return
	}
	c.conn = ws
	c.open = true
	c.mu.Unlock()

	pongWait := c.cfg.PingPeriod * 10 / 9
	ws.SetReadLimit(c.cfg.ReadLimit)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	log.Info().Str("module", "upstream").Str("url", c.cfg.URL).Msg("connected")
	go c.writePump(ws)
	c.handler.OnConnectionReady()
	c.readPump(ws, pongWait)
}

func (c *Client) readPump(ws *websocket.Conn, pongWait time.Duration) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			c.shutdown(ws, err)
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Warn().Err(err).Str("module", "upstream").Msg("bad json")
			continue
		}
		if env.CallbackID != "" {
			// A reply whose caller gave up is stale.
			if !c.resolve(env) {
				log.Debug().Str("module", "upstream").Str("type", env.Type).Str("callback_id", env.CallbackID).Msg("reply without pending request, dropped")
			}
			continue
		}
		c.handler.OnMessage(core.SocketMessage{Type: env.Type, Data: env.Data})
	}
}

func (c *Client) writePump(ws *websocket.Conn) {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			log.Debug().Str("module", "upstream").Msg("writePump ctx done")
			return
		case data := <-c.send:
			if err := ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
				log.Error().Err(err).Str("module", "upstream").Msg("writePump set deadline")
				_ = ws.Close()
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "upstream").Msg("writePump write error")
				_ = ws.Close()
				return
			}
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteTimeout)); err != nil {
				log.Warn().Err(err).Str("module", "upstream").Msg("ping failed")
				_ = ws.Close()
				return
			}
		}
	}
}

// shutdown runs once the read side is gone. A loss that was not caused by
// Teardown is reported to the handler.
func (c *Client) shutdown(ws *websocket.Conn, err error) {
	c.mu.Lock()
	local := c.closed
	c.open = false
	c.failPendingLocked()
	c.mu.Unlock()
	c.cancel()
	_ = ws.Close()

	if local {
		log.Debug().Str("module", "upstream").Msg("read loop stopped after teardown")
		return
	}
	log.Warn().Err(err).Str("module", "upstream").Msg("connection lost")
	c.handler.OnClose()
}

func (c *Client) failPendingLocked() {
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

func (c *Client) resolve(env envelope) bool {
	c.mu.Lock()
	ch, ok := c.pending[env.CallbackID]
	if ok {
		delete(c.pending, env.CallbackID)
	}
	c.mu.Unlock()
	if !ok {
		return false
	}
	ch <- env
	return true
}

func (c *Client) enqueue(env any) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("upstream: marshal: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if !c.open {
		return ErrNotOpen
	}
	select {
	case c.send <- data:
	default:
		return ErrBackpressure
	}
	return nil
}

type request struct {
	Type       string `json:"type"`
	CallbackID string `json:"callbackId"`
	Data       any    `json:"data"`
}

// call sends a request and waits for the frame carrying the same callback id.
// A response with data.error is returned as an error with that text.
func (c *Client) call(ctx context.Context, typ string, data any) (json.RawMessage, error) {
	id := uuid.NewString()
	ch := make(chan envelope, 1)

	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.enqueue(request{Type: typ, CallbackID: id, Data: data}); err != nil {
		return nil, err
	}

	select {
	case env, ok := <-ch:
		if !ok {
			return nil, ErrClosed
		}
		var rej rejection
		if json.Unmarshal(env.Data, &rej) == nil && rej.Error != "" {
			return nil, errors.New(rej.Error)
		}
		return env.Data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type createSessionData struct {
	Nickname string `json:"nickname"`
	UserIcon string `json:"userIcon,omitempty"`
}

type joinSessionData struct {
	Nickname string `json:"nickname"`
	RoomID   string `json:"roomId"`
	UserIcon string `json:"userIcon,omitempty"`
}

func (c *Client) CreateRoom(ctx context.Context, nickname, icon string) (string, error) {
	raw, err := c.call(ctx, typeCreateSession, createSessionData{Nickname: nickname, UserIcon: icon})
	if err != nil {
		return "", err
	}
	var resp struct {
		RoomID string `json:"roomId"`
	}
	if err := json.Unmarshal(raw, &resp); err == nil && resp.RoomID != "" {
		return resp.RoomID, nil
	}
	var id string
	if err := json.Unmarshal(raw, &id); err == nil && id != "" {
		return id, nil
	}
	return "", fmt.Errorf("upstream: createSession response without room id: %s", raw)
}

func (c *Client) JoinRoom(ctx context.Context, nickname, roomID, icon string) (json.RawMessage, error) {
	return c.call(ctx, typeJoinSession, joinSessionData{Nickname: nickname, RoomID: roomID, UserIcon: icon})
}

func (c *Client) SendTagged(kind string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("upstream: marshal %s: %w", kind, err)
	}
	return c.enqueue(envelope{Type: kind, Data: data})
}

// Teardown closes the connection. The handler receives nothing afterwards.
func (c *Client) Teardown() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.open = false
	ws := c.conn
	c.failPendingLocked()
	c.mu.Unlock()
	c.cancel()

	if ws == nil {
		return nil
	}
	_ = ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "teardown"),
		time.Now().Add(c.cfg.WriteTimeout),
	)
	if err := ws.Close(); err != nil {
		return fmt.Errorf("upstream: close: %w", err)
	}
	return nil
}

var _ core.RealtimeClient = (*Client)(nil)
