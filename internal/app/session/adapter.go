// Package session owns the single connection to the real-time service.
//
// The Adapter tracks readiness, classifies inbound frames into domain events
// and fans them out to subscribers in registration order. Views never talk to
// the real-time client directly.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"

	"github.com/dkeye/WatchParty/internal/core"
	"github.com/dkeye/WatchParty/internal/domain"
	"github.com/rs/zerolog/log"
)

var errConnectionClosed = errors.New("connection closed")

// Kinds are the message-kind tags used on the wire.
type Kinds struct {
	Chat     string
	Typing   string
	Identity string // optional; empty disables the explicit identity signal
}

func DefaultKinds() Kinds {
	return Kinds{
		Chat:     "sendMessage",
		Typing:   "setTypingPresence",
		Identity: "userId",
	}
}

type subscriber struct {
	id int
	fn func(domain.Event)
}

type closeListener struct {
	id int
	fn func()
}

type Adapter struct {
	dial  core.Dialer
	kinds Kinds

	mu       sync.Mutex
	conn     *connHandler // live connection lifetime, nil when none
	client   core.RealtimeClient
	ready    bool
	readyCh  chan struct{} // closed when ready; replaced when readiness is lost
	subs     []subscriber
	onClose  []closeListener
	nextID   int
	senderID string
	// earlyReady records a readiness event that arrived before the dialer
	// returned the client.
	earlyReady bool
	// pendingEchoes counts sends handed to the client and not yet echoed;
	// while positive, the next non-system chat event is assumed to be ours.
	pendingEchoes int
}

func New(dial core.Dialer, kinds Kinds) *Adapter {
	return &Adapter{
		dial:    dial,
		kinds:   kinds,
		readyCh: make(chan struct{}),
	}
}

// connHandler binds events to one connection lifetime so that a torn-down
// client cannot touch the state of its successor.
type connHandler struct {
	a *Adapter
}

func (h *connHandler) OnConnectionReady()             { h.a.handleReady(h) }
func (h *connHandler) OnMessage(m core.SocketMessage) { h.a.handleMessage(h, m) }
func (h *connHandler) OnClose()                       { h.a.handleClose(h) }

// Connect creates the real-time client unless one is already live.
// It returns before the connection is ready.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	if a.conn != nil {
		a.mu.Unlock()
		return nil
	}
	h := &connHandler{a: a}
	a.conn = h
	a.senderID = ""
	a.pendingEchoes = 0
	a.earlyReady = false
	a.mu.Unlock()

	log.Info().Str("module", "session").Msg("creating realtime client")
	client, err := a.dial(ctx, h)

	a.mu.Lock()
	if a.conn != h {
		// Disconnected or closed while dialing.
		a.mu.Unlock()
		if err == nil && client != nil {
			_ = client.Teardown()
		}
		return nil
	}
	if err != nil {
		a.conn = nil
		a.mu.Unlock()
		log.Error().Err(err).Str("module", "session").Msg("create realtime client")
		return domain.ConnectionError(err)
	}
	a.client = client
	if a.earlyReady {
		a.earlyReady = false
		a.markReadyLocked()
	}
	a.mu.Unlock()
	return nil
}

// WaitUntilReady returns immediately when ready, otherwise blocks until the
// next readiness event or until ctx is done.
func (a *Adapter) WaitUntilReady(ctx context.Context) error {
	a.mu.Lock()
	if a.ready {
		a.mu.Unlock()
		return nil
	}
	ch := a.readyCh
	a.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Adapter) IsReady() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ready
}

func (a *Adapter) CreateRoom(ctx context.Context, nickname, icon string) (domain.RoomID, error) {
	if err := a.WaitUntilReady(ctx); err != nil {
		return "", err
	}
	client := a.liveClient()
	if client == nil {
		return "", domain.ConnectionError(errConnectionClosed)
	}
	log.Info().Str("module", "session").Str("nickname", nickname).Msg("creating room")
	id, err := client.CreateRoom(ctx, nickname, icon)
	if err != nil {
		log.Warn().Err(err).Str("module", "session").Msg("create room rejected")
		return "", domain.ConnectionError(err)
	}
	return domain.RoomID(id), nil
}

// JoinRoom joins roomID and publishes the returned history to every current
// subscriber before returning it.
func (a *Adapter) JoinRoom(ctx context.Context, nickname string, roomID domain.RoomID, icon string) (domain.MessageHistory, error) {
	if err := a.WaitUntilReady(ctx); err != nil {
		return domain.MessageHistory{}, err
	}
	client := a.liveClient()
	if client == nil {
		return domain.MessageHistory{}, domain.ConnectionError(errConnectionClosed)
	}
	log.Info().Str("module", "session").Str("room_id", string(roomID)).Msg("joining room")
	raw, err := client.JoinRoom(ctx, nickname, string(roomID), icon)
	if err != nil {
		log.Warn().Err(err).Str("module", "session").Str("room_id", string(roomID)).Msg("join room rejected")
		return domain.MessageHistory{}, domain.ConnectionError(err)
	}
	if !hasMessages(raw) {
		return domain.MessageHistory{}, nil
	}
	var history domain.MessageHistory
	if err := json.Unmarshal(raw, &history); err != nil {
		log.Error().Err(err).Str("module", "session").Msg("bad history payload")
		return domain.MessageHistory{}, domain.ConnectionError(err)
	}
	a.publish(domain.HistoryEvent{History: history})
	return history, nil
}

type sendMessagePayload struct {
	Body string `json:"body"`
}

type typingPayload struct {
	Typing bool `json:"typing"`
}

// SendMessage fails fast with domain.ErrNotReady; it never queues.
func (a *Adapter) SendMessage(body string) error {
	a.mu.Lock()
	if !a.ready || a.client == nil {
		a.mu.Unlock()
		return domain.ErrNotReady
	}
	client, conn := a.client, a.conn
	// Counted before the send: the echo can arrive before SendTagged returns.
	a.pendingEchoes++
	a.mu.Unlock()

	if err := client.SendTagged(a.kinds.Chat, sendMessagePayload{Body: body}); err != nil {
		a.mu.Lock()
		if a.conn == conn && a.pendingEchoes > 0 {
			a.pendingEchoes--
		}
		a.mu.Unlock()
		log.Warn().Err(err).Str("module", "session").Msg("send message")
		return domain.ConnectionError(err)
	}
	return nil
}

// SendTypingPresence is best effort: it never reports failure.
func (a *Adapter) SendTypingPresence(typing bool) {
	a.mu.Lock()
	if !a.ready || a.client == nil {
		a.mu.Unlock()
		log.Debug().Str("module", "session").Bool("typing", typing).Msg("typing presence skipped, not ready")
		return
	}
	client := a.client
	a.mu.Unlock()

	if err := client.SendTagged(a.kinds.Typing, typingPayload{Typing: typing}); err != nil {
		log.Warn().Err(err).Str("module", "session").Msg("send typing presence")
	}
}

// Subscribe registers fn for every inbound event. The returned func removes it.
func (a *Adapter) Subscribe(fn func(domain.Event)) func() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nextID++
	id := a.nextID
	a.subs = append(a.subs, subscriber{id: id, fn: fn})
	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.subs = slices.DeleteFunc(a.subs, func(s subscriber) bool { return s.id == id })
	}
}

// OnClose registers fn to run once per connection lifetime when it ends,
// whether the service dropped it or Disconnect tore it down.
func (a *Adapter) OnClose(fn func()) func() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nextID++
	id := a.nextID
	a.onClose = append(a.onClose, closeListener{id: id, fn: fn})
	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.onClose = slices.DeleteFunc(a.onClose, func(l closeListener) bool { return l.id == id })
	}
}

// LocalSenderID is best effort; see captureEcho.
func (a *Adapter) LocalSenderID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.senderID
}

// Disconnect tears down the client. Safe to call any number of times.
func (a *Adapter) Disconnect() {
	a.mu.Lock()
	hadConn := a.conn != nil
	client := a.client
	a.conn = nil
	a.client = nil
	a.resetReadyLocked()
	a.senderID = ""
	a.pendingEchoes = 0
	listeners := a.closeListenersLocked(hadConn)
	a.mu.Unlock()

	if client != nil {
		if err := client.Teardown(); err != nil {
			log.Warn().Err(err).Str("module", "session").Msg("teardown error")
		} else {
			log.Info().Str("module", "session").Msg("teardown complete")
		}
	}
	for _, fn := range listeners {
		fn()
	}
}

func (a *Adapter) liveClient() core.RealtimeClient {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.client
}

func (a *Adapter) resetReadyLocked() {
	a.earlyReady = false
	if a.ready {
		a.ready = false
		a.readyCh = make(chan struct{})
	}
}

func (a *Adapter) closeListenersLocked(fire bool) []func() {
	if !fire {
		return nil
	}
	out := make([]func(), 0, len(a.onClose))
	for _, l := range a.onClose {
		out = append(out, l.fn)
	}
	return out
}

func (a *Adapter) handleReady(h *connHandler) {
	a.mu.Lock()
	if a.conn != h || a.ready {
		a.mu.Unlock()
		return
	}
	if a.client == nil {
		a.earlyReady = true
		a.mu.Unlock()
		return
	}
	a.markReadyLocked()
	a.mu.Unlock()
}

func (a *Adapter) markReadyLocked() {
	a.ready = true
	close(a.readyCh)
	log.Info().Str("module", "session").Msg("connection ready")
}

func (a *Adapter) handleClose(h *connHandler) {
	a.mu.Lock()
	if a.conn != h {
		a.mu.Unlock()
		return
	}
	a.conn = nil
	a.client = nil
	a.resetReadyLocked()
	a.pendingEchoes = 0
	listeners := a.closeListenersLocked(true)
	a.mu.Unlock()

	log.Info().Str("module", "session").Msg("connection closed")
	for _, fn := range listeners {
		fn()
	}
}

func (a *Adapter) handleMessage(h *connHandler, m core.SocketMessage) {
	a.mu.Lock()
	live := a.conn == h
	a.mu.Unlock()
	if !live {
		return
	}
	if ev, ok := a.classify(m); ok {
		a.publish(ev)
	}
}

func (a *Adapter) publish(ev domain.Event) {
	a.mu.Lock()
	subs := slices.Clone(a.subs)
	a.mu.Unlock()
	for _, s := range subs {
		s.fn(ev)
	}
}

var _ core.Session = (*Adapter)(nil)
