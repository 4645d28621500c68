// Package room holds the state of the chat room view.
package room

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dkeye/WatchParty/internal/core"
	"github.com/dkeye/WatchParty/internal/domain"
	"github.com/rs/zerolog/log"
)

const (
	textMissingParams  = "Missing room ID or nickname"
	textConnectFailed  = "Failed to connect to room: "
	textConnectionLost = "Connection lost. Please return home."
	textSendFailed     = "Failed to send message"
)

type State int

const (
	Connecting State = iota
	Connected
	Disconnected
	Errored
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	case Errored:
		return "errored"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// View is an immutable snapshot handed to renderers.
type View struct {
	RoomID        domain.RoomID        `json:"room_id"`
	State         State                `json:"state"`
	Messages      []domain.ChatMessage `json:"messages"`
	AnyoneTyping  bool                 `json:"anyone_typing"`
	TypingUserIDs []string             `json:"typing_user_ids,omitempty"`
	Identity      domain.LocalIdentity `json:"identity"`
	Error         string               `json:"error,omitempty"`
	Banner        string               `json:"banner,omitempty"`
}

type Option func(*Controller)

func WithClock(c Clock) Option {
	return func(ctl *Controller) { ctl.clock = c }
}

func WithTypingIdle(d time.Duration) Option {
	return func(ctl *Controller) {
		if d > 0 {
			ctl.idle = d
		}
	}
}

type Controller struct {
	session core.Session
	clock   Clock
	idle    time.Duration
	typing  *typingPolicy

	mu        sync.Mutex
	roomID    domain.RoomID
	nickname  string
	state     State
	messages  domain.MessageLog
	status    domain.TypingStatus
	senderID  string
	errText   string
	banner    string
	seeded    bool // history already applied for this mount
	alive     bool
	cancel    context.CancelFunc
	unsub     []func()
	listeners []listener
	nextID    int
}

type listener struct {
	id int
	fn func(View)
}

func New(session core.Session, opts ...Option) *Controller {
	c := &Controller{
		session: session,
		clock:   realClock{},
		idle:    DefaultTypingIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.typing = newTypingPolicy(c.clock, c.idle, c.emitTyping)
	return c
}

// OnChange registers fn to receive a fresh View after every state change.
func (c *Controller) OnChange(fn func(View)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	c.listeners = append(c.listeners, listener{id: id, fn: fn})
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.listeners = slices.DeleteFunc(c.listeners, func(l listener) bool { return l.id == id })
	}
}

// Mount subscribes to the session and joins roomID. It blocks until the join
// resolves, ctx ends, or the controller is unmounted.
func (c *Controller) Mount(ctx context.Context, roomID domain.RoomID, nickname string) error {
	ctx, cancel := context.WithCancel(ctx)
	roomID = domain.RoomID(strings.TrimSpace(string(roomID)))
	nickname = strings.TrimSpace(nickname)

	c.mu.Lock()
	c.roomID = roomID
	c.nickname = nickname
	c.state = Connecting
	c.alive = true
	c.cancel = cancel
	c.seeded = false
	c.messages = domain.MessageLog{}
	c.status = domain.TypingStatus{}
	c.errText = ""
	c.banner = ""
	c.senderID = c.session.LocalSenderID()
	if roomID == "" || nickname == "" {
		c.state = Errored
		c.errText = textMissingParams
		c.mu.Unlock()
		cancel()
		c.notify()
		return domain.NewError(domain.ErrorMissingParameter, textMissingParams)
	}
	// Subscribe first: the join publishes its snapshot synchronously.
	c.unsub = append(c.unsub,
		c.session.Subscribe(c.handleEvent),
		c.session.OnClose(c.handleClose),
	)
	c.mu.Unlock()
	c.notify()

	log.Info().Str("module", "room").Str("room_id", string(roomID)).Str("nickname", nickname).Msg("mounting room")
	history, err := c.session.JoinRoom(ctx, nickname, roomID, "")

	c.mu.Lock()
	if !c.alive || c.state != Connecting {
		c.mu.Unlock()
		return err
	}
	if err != nil {
		c.state = Errored
		c.errText = textConnectFailed + domain.Reason(err)
		c.mu.Unlock()
		log.Warn().Err(err).Str("module", "room").Str("room_id", string(roomID)).Msg("join failed")
		c.notify()
		return err
	}
	if !c.seeded && history.Messages != nil {
		c.messages.Reset(history.Messages)
	}
	c.state = Connected
	c.mu.Unlock()

	log.Info().Str("module", "room").Str("room_id", string(roomID)).Msg("room connected")
	c.notify()
	return nil
}

// Send forwards text to the session. Blank text is ignored.
func (c *Controller) Send(text string) error {
	body := strings.TrimSpace(text)
	if body == "" {
		return nil
	}
	if c.State() != Connected {
		return domain.ErrNotReady
	}

	err := c.session.SendMessage(body)
	c.typing.stop()

	c.mu.Lock()
	if err != nil {
		c.banner = textSendFailed
	} else {
		c.banner = ""
	}
	c.mu.Unlock()

	if err != nil {
		log.Warn().Err(err).Str("module", "room").Msg("send failed")
	}
	c.notify()
	return err
}

// Keystroke feeds the typing-idle policy.
func (c *Controller) Keystroke() {
	if c.State() != Connected {
		return
	}
	c.typing.keystroke()
}

// Leave disconnects the session and disposes the controller.
// It is the only path that tears the connection down.
func (c *Controller) Leave() {
	c.mu.Lock()
	if !c.alive {
		c.mu.Unlock()
		return
	}
	c.state = Disconnected
	roomID := c.roomID
	c.mu.Unlock()

	log.Info().Str("module", "room").Str("room_id", string(roomID)).Msg("leaving room")
	c.notify()
	c.dispose()
	c.session.Disconnect()
}

// Unmount releases subscriptions and the typing timer but keeps the
// connection alive. Results arriving afterwards are ignored.
func (c *Controller) Unmount() {
	c.dispose()
}

func (c *Controller) dispose() {
	c.mu.Lock()
	if !c.alive {
		c.mu.Unlock()
		return
	}
	c.alive = false
	unsub := c.unsub
	c.unsub = nil
	cancel := c.cancel
	c.mu.Unlock()

	for _, fn := range unsub {
		fn()
	}
	c.typing.cancel()
	if cancel != nil {
		cancel()
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

// viewLocked reads the session identity on every snapshot: an explicit
// identity signal is not an event and would otherwise wait for the next chat.
func (c *Controller) viewLocked() View {
	senderID := c.senderID
	if id := c.session.LocalSenderID(); id != "" {
		senderID = id
	}
	return View{
		RoomID:        c.roomID,
		State:         c.state,
		Messages:      c.messages.Snapshot(),
		AnyoneTyping:  c.status.AnyoneTyping,
		TypingUserIDs: slices.Clone(c.status.TypingUserIDs),
		Identity:      domain.LocalIdentity{Nickname: c.nickname, SenderID: senderID},
		Error:         c.errText,
		Banner:        c.banner,
	}
}

func (c *Controller) handleEvent(ev domain.Event) {
	c.mu.Lock()
	if !c.alive || (c.state != Connecting && c.state != Connected) {
		c.mu.Unlock()
		return
	}
	switch e := ev.(type) {
	case domain.ChatEvent:
		if !c.messages.Append(e.Message) {
			c.mu.Unlock()
			log.Debug().Str("module", "room").Str("sender_id", e.Message.SenderID).
				Int64("timestamp", e.Message.Timestamp).Msg("duplicate message dropped")
			return
		}
		c.refreshIdentityLocked(e.Message)
	case domain.TypingEvent:
		c.status = e.Status
	case domain.HistoryEvent:
		c.messages.Reset(e.History.Messages)
		c.seeded = true
	}
	c.mu.Unlock()
	c.notify()
}

// refreshIdentityLocked prefers the session's notion of the local sender and
// falls back to matching the nickname of a non-system message.
func (c *Controller) refreshIdentityLocked(msg domain.ChatMessage) {
	if id := c.session.LocalSenderID(); id != "" {
		c.senderID = id
		return
	}
	if c.senderID == "" && !msg.IsSystemMessage && msg.UserNickname == c.nickname {
		c.senderID = msg.SenderID
	}
}

func (c *Controller) handleClose() {
	c.mu.Lock()
	if !c.alive || (c.state != Connecting && c.state != Connected) {
		c.mu.Unlock()
		return
	}
	c.state = Errored
	c.errText = textConnectionLost
	roomID := c.roomID
	c.mu.Unlock()

	c.typing.cancel()
	log.Warn().Str("module", "room").Str("room_id", string(roomID)).Msg("connection lost")
	c.notify()
}

func (c *Controller) emitTyping(typing bool) {
	if c.State() != Connected {
		return
	}
	c.session.SendTypingPresence(typing)
}

func (c *Controller) notify() {
	c.mu.Lock()
	v := c.viewLocked()
	ls := slices.Clone(c.listeners)
	c.mu.Unlock()
	for _, l := range ls {
		l.fn(v)
	}
}
